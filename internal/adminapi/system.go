package adminapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/metrics"
)

// TableInfo is the row count of one application table
type TableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// ServerInfo describes the database behind the store
type ServerInfo struct {
	DatabaseType    string `json:"database_type"`
	DatabaseVersion string `json:"database_version"`
	DatabaseSize    string `json:"database_size,omitempty"`
	TableCount      int    `json:"table_count"`
	ServerTime      string `json:"server_time"`
}

var metricNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

func registerSystemRoutes() {
	webserver.ApiGET("/system/tables", listTables)
	webserver.ApiGET("/system/serverinfo", serverInfo)
	webserver.ApiGET("/system/metrics/:name", queryMetric)
	webserver.ApiGET("/system/oprlogs", listOprLogs)
}

// listTables returns the row count of every application table
func listTables(c echo.Context) error {
	db := GetDB(c)
	tables := make([]TableInfo, 0, len(domain.Tables))
	for i, name := range domain.TableNames() {
		var count int64
		if err := db.Model(domain.Tables[i]).Count(&count).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count "+name, err.Error())
		}
		tables = append(tables, TableInfo{Name: name, RowCount: count})
	}
	return ok(c, tables)
}

func serverInfo(c echo.Context) error {
	db := GetDB(c)
	dbType := db.Dialector.Name()

	info := ServerInfo{
		DatabaseType: dbType,
		TableCount:   len(domain.Tables),
		ServerTime:   time.Now().Format("2006-01-02 15:04:05"),
	}

	switch dbType {
	case "postgres":
		var version, dbSize string
		db.Raw("SELECT version()").Scan(&version)
		db.Raw("SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&dbSize)
		info.DatabaseVersion = version
		info.DatabaseSize = dbSize
	case "sqlite":
		var version string
		db.Raw("SELECT sqlite_version()").Scan(&version)
		info.DatabaseVersion = "SQLite " + version

		var pageCount, pageSize int64
		db.Raw("PRAGMA page_count").Scan(&pageCount)
		db.Raw("PRAGMA page_size").Scan(&pageSize)
		sizeBytes := pageCount * pageSize
		if sizeBytes < 1024*1024 {
			info.DatabaseSize = fmt.Sprintf("%.2f KB", float64(sizeBytes)/1024)
		} else {
			info.DatabaseSize = fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
		}
	}

	return ok(c, info)
}

// queryMetric returns the samples of a metric, the last hour by default
func queryMetric(c echo.Context) error {
	name := c.Param("name")
	if !metricNamePattern.MatchString(name) {
		return fail(c, http.StatusBadRequest, "INVALID_METRIC", "Invalid metric name", nil)
	}
	end := time.Now()
	start := end.Add(-time.Hour)
	if s := strings.TrimSpace(c.QueryParam("start")); s != "" {
		t, err := dateparse.ParseIn(s, time.Local)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse start", err.Error())
		}
		start = t
	}
	if s := strings.TrimSpace(c.QueryParam("end")); s != "" {
		t, err := dateparse.ParseIn(s, time.Local)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse end", err.Error())
		}
		end = t
	}
	if !start.Before(end) {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "start must be before end", nil)
	}

	points, err := metrics.Query(name, start, end)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "Failed to query metrics", err.Error())
	}
	return ok(c, points)
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{})
	if name := strings.TrimSpace(c.QueryParam("operator")); name != "" {
		db = db.Where("opr_name = ?", name)
	}
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
