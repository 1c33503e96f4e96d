// Package report turns sale and expense rows into daily and monthly financial
// summaries. Everything here is read-only; cancelled sales never count.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/internal/domain"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// MonthBounds returns [start, end) of the calendar month containing t in loc.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Summarize aggregates the given rows without looking at their dates.
func Summarize(sales []domain.Sale, expenses []domain.Expense) domain.Summary {
	summary := domain.Summary{
		Revenue:      decimal.Zero,
		COGS:         decimal.Zero,
		GrossProfit:  decimal.Zero,
		ExpenseTotal: decimal.Zero,
		NetProfit:    decimal.Zero,
		ByPayment:    []domain.PaymentBreakdown{},
	}

	byPayment := map[domain.PaymentMethod]*domain.PaymentBreakdown{}
	for _, sale := range sales {
		if sale.IsCancelled {
			continue
		}
		summary.Sales++
		summary.UnitsSold += int64(sale.QuantitySold)
		summary.Revenue = summary.Revenue.Add(sale.TotalAmount)
		summary.COGS = summary.COGS.Add(sale.Cost())
		summary.GrossProfit = summary.GrossProfit.Add(sale.Profit)

		bucket, ok := byPayment[sale.PaymentMethod]
		if !ok {
			bucket = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod, Revenue: decimal.Zero}
			byPayment[sale.PaymentMethod] = bucket
		}
		bucket.Sales++
		bucket.Revenue = bucket.Revenue.Add(sale.TotalAmount)
	}

	for _, expense := range expenses {
		summary.Expenses++
		summary.ExpenseTotal = summary.ExpenseTotal.Add(expense.Amount)
	}
	summary.NetProfit = summary.GrossProfit.Sub(summary.ExpenseTotal)

	for _, bucket := range byPayment {
		summary.ByPayment = append(summary.ByPayment, *bucket)
	}
	slices.SortFunc(summary.ByPayment, func(a, b domain.PaymentBreakdown) int {
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	return summary
}

// Daily builds the report for the calendar day containing day in loc. Rows
// outside that day are ignored.
func Daily(day time.Time, loc *time.Location, sales []domain.Sale, expenses []domain.Expense) domain.DailyReport {
	start, end := DayBounds(day, loc)
	return domain.DailyReport{
		Date:    start.Format(DayLayout),
		Summary: Summarize(filterSales(sales, start, end), filterExpenses(expenses, start, end)),
	}
}

// Monthly builds one daily report per calendar day that has at least one
// counted sale or expense, plus totals over the whole month.
func Monthly(month time.Time, loc *time.Location, sales []domain.Sale, expenses []domain.Expense) domain.MonthlyReport {
	start, end := MonthBounds(month, loc)
	sales = filterSales(sales, start, end)
	expenses = filterExpenses(expenses, start, end)

	salesByDay := map[string][]domain.Sale{}
	expensesByDay := map[string][]domain.Expense{}
	days := make([]string, 0, 31)
	seen := map[string]bool{}
	mark := func(key string) {
		if !seen[key] {
			seen[key] = true
			days = append(days, key)
		}
	}

	for _, sale := range sales {
		if sale.IsCancelled {
			continue
		}
		key := sale.SaleDate.In(loc).Format(DayLayout)
		salesByDay[key] = append(salesByDay[key], sale)
		mark(key)
	}
	for _, expense := range expenses {
		key := expense.Date.In(loc).Format(DayLayout)
		expensesByDay[key] = append(expensesByDay[key], expense)
		mark(key)
	}
	slices.Sort(days)

	out := domain.MonthlyReport{
		Month:  start.Format(MonthLayout),
		Days:   make([]domain.DailyReport, 0, len(days)),
		Totals: Summarize(sales, expenses),
	}
	for _, key := range days {
		out.Days = append(out.Days, domain.DailyReport{
			Date:    key,
			Summary: Summarize(salesByDay[key], expensesByDay[key]),
		})
	}
	return out
}

func filterSales(sales []domain.Sale, start, end time.Time) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if !sale.SaleDate.Before(start) && sale.SaleDate.Before(end) {
			out = append(out, sale)
		}
	}
	return out
}

func filterExpenses(expenses []domain.Expense, start, end time.Time) []domain.Expense {
	out := make([]domain.Expense, 0, len(expenses))
	for _, expense := range expenses {
		if !expense.Date.Before(start) && expense.Date.Before(end) {
			out = append(out, expense)
		}
	}
	return out
}
