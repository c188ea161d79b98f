package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"expeval/domain/stats"
)

const resultsSheet = "Results"

// ReportWriter renders evaluation responses into analyst-facing workbooks.
type ReportWriter struct{}

// NewReportWriter creates a workbook writer for evaluation responses.
func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// Write renders the response as an xlsx workbook onto w. The sheet has one
// row per variant plus a verdict block underneath.
func (r *ReportWriter) Write(w io.Writer, resp stats.EvaluationResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(resultsSheet)
	if err != nil {
		return fmt.Errorf("failed to create results sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	row := 1
	if len(resp.FunnelVariants) > 0 {
		setRow(f, row, "Variant", "Successes", "Failures", "Win Probability", "CI Lower", "CI Upper")
		row++
		for _, v := range resp.FunnelVariants {
			ci := resp.CredibleIntervals[v.Key]
			setRow(f, row, string(v.Key), v.SuccessCount, v.FailureCount, resp.Probability[v.Key], ci[0], ci[1])
			row++
		}
	} else {
		setRow(f, row, "Variant", "Value", "Exposure", "Win Probability", "CI Lower", "CI Upper")
		row++
		for _, v := range resp.TrendsVariants {
			ci := resp.CredibleIntervals[v.Key]
			setRow(f, row, string(v.Key), v.Count, v.AbsoluteExposure, resp.Probability[v.Key], ci[0], ci[1])
			row++
		}
	}

	row++
	setRow(f, row, "Metric", string(resp.Metric.Type))
	row++
	setRow(f, row, "Engine Version", resp.StatsVersion)
	row++
	setRow(f, row, "Significant", resp.Significant)
	row++
	setRow(f, row, "Verdict", string(resp.SignificanceCode))
	row++
	setRow(f, row, "P-Value", resp.PValue)
	row++
	setRow(f, row, "Computed At", resp.ComputedAt.String())

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		// SetCellValue only fails for an invalid sheet or cell name,
		// both of which are fixed here.
		_ = f.SetCellValue(resultsSheet, cell, v)
	}
}
