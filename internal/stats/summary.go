package stats

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"cropopt/internal/catalog"
	"cropopt/internal/model"
)

// SummaryRow is one allocation of a plan summary. Missing rows name crops the
// catalog does not know; their profit and yield are zero.
type SummaryRow struct {
	Crop    string  `json:"crop"`
	AreaHa  float64 `json:"area_ha"`
	Profit  float64 `json:"profit"`
	Yield   float64 `json:"yield"`
	Missing bool    `json:"missing,omitempty"`
}

type PlanSummary struct {
	Rows            []SummaryRow `json:"rows"`
	TotalAreaHa     float64      `json:"total_area_ha"`
	AreaUsedHa      float64      `json:"area_used_ha"`
	AreaRemainingHa float64      `json:"area_remaining_ha"`
	TotalProfit     float64      `json:"total_profit"`
	TotalYield      float64      `json:"total_yield"`
	Fitness         float64      `json:"fitness"`
}

func Summarize(plan model.Plan, c *catalog.Catalog, fitness, totalAreaHa float64) PlanSummary {
	summary := PlanSummary{
		Rows:        make([]SummaryRow, 0, len(plan.Allocations)),
		TotalAreaHa: totalAreaHa,
		Fitness:     fitness,
	}
	for _, allocation := range plan.Allocations {
		row := SummaryRow{Crop: allocation.Crop, AreaHa: allocation.AreaHa}
		if record, ok := c.FindByName(allocation.Crop); ok {
			row.Profit = record.ProfitPerHa * allocation.AreaHa
			row.Yield = record.YieldPerHa * allocation.AreaHa
		} else {
			row.Missing = true
		}
		summary.Rows = append(summary.Rows, row)
		summary.AreaUsedHa += allocation.AreaHa
		summary.TotalProfit += row.Profit
		summary.TotalYield += row.Yield
	}
	summary.AreaRemainingHa = totalAreaHa - summary.AreaUsedHa
	return summary
}

func WritePlanSummary(w io.Writer, s PlanSummary) error {
	for i, row := range s.Rows {
		status := ""
		if row.Missing {
			status = "  (not in catalog)"
		}
		if _, err := fmt.Fprintf(w, "%2d. %-24s %8s ha  profit %14s  yield %10s%s\n",
			i+1, row.Crop, formatNumber(row.AreaHa), formatNumber(row.Profit), formatNumber(row.Yield), status); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w,
		"area used: %s ha of %s ha (remaining %s ha)\ntotal profit: %s\ntotal yield: %s\nfitness: %s\n",
		formatNumber(s.AreaUsedHa), formatNumber(s.TotalAreaHa), formatNumber(s.AreaRemainingHa),
		formatNumber(s.TotalProfit), formatNumber(s.TotalYield), formatNumber(s.Fitness))
	return err
}

func formatNumber(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
