package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
	"gorm.io/gorm"
)

type emailPayload struct {
	To string `json:"to" validate:"required,email"`
}

// transactionRow is one exported history line
type transactionRow struct {
	ID          string `csv:"id"`
	Timestamp   string `csv:"timestamp"`
	Operator    string `csv:"operator"`
	Items       int64  `csv:"items"`
	Subtotal    int64  `csv:"subtotal"`
	Tax         int64  `csv:"tax"`
	Total       int64  `csv:"total"`
	Tendered    int64  `csv:"tendered"`
	Change      int64  `csv:"change"`
	TaxIncluded bool   `csv:"tax_included"`
}

var exportHeaders = []string{"id", "timestamp", "operator", "items", "subtotal", "tax", "total", "tendered", "change", "tax_included"}

func (r transactionRow) values() []interface{} {
	return []interface{}{r.ID, r.Timestamp, r.Operator, r.Items, r.Subtotal, r.Tax, r.Total, r.Tendered, r.Change, r.TaxIncluded}
}

func newTransactionRow(tx domain.Transaction) transactionRow {
	return transactionRow{
		ID:          tx.ID,
		Timestamp:   tx.Timestamp.Format("2006-01-02 15:04:05"),
		Operator:    tx.Operator,
		Items:       tx.Items.Quantity(),
		Subtotal:    tx.Subtotal,
		Tax:         tx.Tax,
		Total:       tx.Total,
		Tendered:    tx.TenderedAmount,
		Change:      tx.Change,
		TaxIncluded: tx.TaxIncluded,
	}
}

func registerTransactionRoutes() {
	webserver.ApiGET("/pos/transactions", listTransactions)
	webserver.ApiGET("/pos/transactions/export", exportTransactions)
	webserver.ApiGET("/pos/transactions/:id", getTransaction)
	webserver.ApiGET("/pos/transactions/:id/receipt", getReceipt)
	webserver.ApiPOST("/pos/transactions/:id/email", emailReceipt)
}

// parseHistoryQuery reads from/to/operator. A date-only "to" covers the whole day.
func parseHistoryQuery(c echo.Context) (pos.TransactionQuery, error) {
	var q pos.TransactionQuery
	if from := strings.TrimSpace(c.QueryParam("from")); from != "" {
		t, err := dateparse.ParseIn(from, time.Local)
		if err != nil {
			return q, fmt.Errorf("invalid from: %w", err)
		}
		q.From = t
	}
	if to := strings.TrimSpace(c.QueryParam("to")); to != "" {
		t, err := dateparse.ParseIn(to, time.Local)
		if err != nil {
			return q, fmt.Errorf("invalid to: %w", err)
		}
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && len(to) <= 10 {
			t = t.AddDate(0, 0, 1)
		}
		q.To = t
	}
	q.Operator = strings.TrimSpace(c.QueryParam("operator"))
	return q, nil
}

func listTransactions(c echo.Context) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse date filter", err.Error())
	}
	appCtx := GetAppContext(c)
	page, pageSize := parsePagination(c)
	if c.QueryParam("pageSize") == "" && c.QueryParam("perPage") == "" {
		if n := int(appCtx.GetSettingsInt64Value("pos", "history_page_size")); n > 0 {
			pageSize = n
		}
	}
	q.Page, q.PageSize = page, pageSize

	rows, total, err := appCtx.POS().Repository().QueryTransactions(c.Request().Context(), q)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query transactions", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func loadTransaction(c echo.Context) (*domain.Transaction, error) {
	tx, err := GetAppContext(c).POS().Repository().GetTransaction(c.Request().Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Transaction not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query transaction", err.Error())
	}
	return tx, nil
}

func getTransaction(c echo.Context) error {
	tx, err := loadTransaction(c)
	if tx == nil {
		return err
	}
	return ok(c, tx)
}

func getReceipt(c echo.Context) error {
	tx, err := loadTransaction(c)
	if tx == nil {
		return err
	}
	return c.String(http.StatusOK, GetAppContext(c).POS().Receipt(*tx))
}

func emailReceipt(c echo.Context) error {
	var payload emailPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	appCtx := GetAppContext(c)
	if !appCtx.Mailer().Enabled() {
		return fail(c, http.StatusServiceUnavailable, "MAIL_DISABLED", "Mail delivery is not configured", nil)
	}
	tx, err := loadTransaction(c)
	if tx == nil {
		return err
	}

	subject := appCtx.GetSettingsStringValue("pos", "receipt_subject")
	if subject == "" {
		subject = "Receipt"
	}
	subject = fmt.Sprintf("%s %s - %s", subject, appCtx.POS().Settings().StoreName, tx.ID)
	if err := appCtx.Mailer().SendReceipt(payload.To, subject, appCtx.POS().Receipt(*tx)); err != nil {
		return fail(c, http.StatusServiceUnavailable, "MAIL_QUEUE_FULL", "Unable to queue the receipt", err.Error())
	}
	oprLog(c, "email_receipt", "mailed receipt "+tx.ID+" to "+payload.To)
	return c.JSON(http.StatusAccepted, Response{Data: map[string]interface{}{"id": tx.ID, "to": payload.To}})
}

// exportTransactions writes the filtered history as csv (default) or xlsx
func exportTransactions(c echo.Context) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse date filter", err.Error())
	}
	txs, _, err := GetAppContext(c).POS().Repository().QueryTransactions(c.Request().Context(), q)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query transactions", err.Error())
	}
	rows := make([]transactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, newTransactionRow(tx))
	}

	stamp := time.Now().Format("20060102150405")
	resp := c.Response()
	switch strings.ToLower(c.QueryParam("format")) {
	case "", "csv":
		resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=transactions-%s.csv", stamp))
		resp.WriteHeader(http.StatusOK)
		return gocsv.Marshal(rows, resp)
	case "xlsx":
		const sheet = "Sheet1"
		xlsx := excelize.NewFile()
		for i, h := range exportHeaders {
			xlsx.SetCellValue(sheet, cellName(i, 1), h)
		}
		for r, row := range rows {
			for i, v := range row.values() {
				xlsx.SetCellValue(sheet, cellName(i, r+2), v)
			}
		}
		resp.Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=transactions-%s.xlsx", stamp))
		resp.WriteHeader(http.StatusOK)
		return xlsx.Write(resp)
	}
	return fail(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx", nil)
}

// cellName converts a zero-based column and one-based row into "A1" form
func cellName(col, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name + strconv.Itoa(row)
}
