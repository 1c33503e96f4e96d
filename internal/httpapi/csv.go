package httpapi

import (
	"encoding/csv"
	"io"
	"strconv"

	"tokopos/internal/domain"
)

func writeDailyCSV(w io.Writer, report domain.DailyReport) error {
	out := csv.NewWriter(w)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", report.Date},
		{"summary", "currency_code", report.CurrencyCode},
		{"summary", "sales", strconv.FormatInt(report.Sales, 10)},
		{"summary", "units_sold", strconv.FormatInt(report.UnitsSold, 10)},
		{"summary", "revenue", report.Revenue.StringFixed(2)},
		{"summary", "cogs", report.COGS.StringFixed(2)},
		{"summary", "gross_profit", report.GrossProfit.StringFixed(2)},
		{"summary", "expenses", strconv.FormatInt(report.Expenses, 10)},
		{"summary", "expense_total", report.ExpenseTotal.StringFixed(2)},
		{"summary", "net_profit", report.NetProfit.StringFixed(2)},
	}
	for _, payment := range report.ByPayment {
		method := string(payment.PaymentMethod)
		rows = append(rows,
			[]string{"payment", method + "_sales", strconv.FormatInt(payment.Sales, 10)},
			[]string{"payment", method + "_revenue", payment.Revenue.StringFixed(2)},
		)
	}
	if err := out.WriteAll(rows); err != nil {
		return err
	}
	return out.Error()
}
