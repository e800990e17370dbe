package pos

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/i18n"
)

var weekdayKeys = [...]string{"weekdaySun", "weekdayMon", "weekdayTue", "weekdayWed", "weekdayThu", "weekdayFri", "weekdaySat"}

// DailySales is one point of the weekly chart
type DailySales struct {
	Date   string `json:"date"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// ProductSales aggregates the units and revenue of one product
type ProductSales struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Revenue   int64  `json:"revenue"`
}

// Report summarizes a set of transactions
type Report struct {
	TotalRevenue      int64          `json:"total_revenue"`
	TotalProfit       int64          `json:"total_profit"`
	TotalTransactions int            `json:"total_transactions"`
	TotalItemsSold    int64          `json:"total_items_sold"`
	AverageTicket     float64        `json:"average_ticket"`
	MedianTicket      float64        `json:"median_ticket"`
	Weekly            []DailySales   `json:"weekly"`
	TopProducts       []ProductSales `json:"top_products"`
}

// BuildReport aggregates transactions. The weekly series covers the seven
// days ending on the day of now, oldest first.
func BuildReport(transactions []domain.Transaction, now time.Time) Report {
	r := Report{TotalTransactions: len(transactions)}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -6)
	r.Weekly = make([]DailySales, 7)
	for i := range r.Weekly {
		day := start.AddDate(0, 0, i)
		r.Weekly[i] = DailySales{Date: day.Format("2006-01-02"), Label: i18n.T(weekdayKeys[day.Weekday()], nil)}
	}

	tickets := make(stats.Float64Data, 0, len(transactions))
	byProduct := make(map[string]*ProductSales)
	for _, tx := range transactions {
		r.TotalRevenue += tx.Total
		tickets = append(tickets, float64(tx.Total))
		for _, item := range tx.Items {
			r.TotalProfit += item.LineProfit()
			r.TotalItemsSold += item.Quantity
			ps, ok := byProduct[item.ID]
			if !ok {
				ps = &ProductSales{ProductID: item.ID, Name: item.Name}
				byProduct[item.ID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue += item.LineTotal()
		}

		ts := tx.Timestamp.In(now.Location())
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, now.Location())
		if !day.Before(start) && !day.After(today) {
			r.Weekly[int(day.Sub(start).Hours()/24+0.5)].Amount += tx.Total
		}
	}

	if mean, err := tickets.Mean(); err == nil {
		r.AverageTicket = mean
	}
	if median, err := tickets.Median(); err == nil {
		r.MedianTicket = median
	}

	r.TopProducts = make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		r.TopProducts = append(r.TopProducts, *ps)
	}
	sort.Slice(r.TopProducts, func(i, j int) bool {
		if r.TopProducts[i].Quantity != r.TopProducts[j].Quantity {
			return r.TopProducts[i].Quantity > r.TopProducts[j].Quantity
		}
		return r.TopProducts[i].ProductID < r.TopProducts[j].ProductID
	})
	if len(r.TopProducts) > 5 {
		r.TopProducts = r.TopProducts[:5]
	}
	return r
}

// Report summarizes the cached sales history
func (s *Store) Report(now time.Time) Report {
	return BuildReport(s.Transactions(), now)
}
