package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	models "PriceCast/internal/domain/models"
)

// ReportPrinter renders forecast reports as console tables.
type ReportPrinter struct {
	out     io.Writer
	topN    int
	recentN int
}

type PrinterOption func(*ReportPrinter)

// WithTop limits the importance table to n rows. Zero prints all.
func WithTop(n int) PrinterOption {
	return func(p *ReportPrinter) { p.topN = n }
}

// WithRecent prints the last n test predictions. Zero skips the table.
func WithRecent(n int) PrinterOption {
	return func(p *ReportPrinter) { p.recentN = n }
}

func NewReportPrinter(out io.Writer, opts ...PrinterOption) *ReportPrinter {
	if out == nil {
		out = os.Stdout
	}
	p := &ReportPrinter{out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ReportPrinter) Print(r *models.ForecastReport) {
	fmt.Fprintf(p.out, "\n[%s] %s run %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.SeriesCode, r.RunID)
	fmt.Fprintf(p.out, "  window %s .. %s  train %d  test %d  took %s\n\n",
		r.WindowStart.Format("2006-01-02"), r.WindowEnd.Format("2006-01-02"),
		r.TrainSize, r.TestSize, r.TrainDuration.Round(time.Millisecond))

	p.printMetrics(r)
	p.printRounds(r.Rounds)
	p.printImportances(r.Evaluation.Importances)
	if p.recentN > 0 {
		p.printPredictions(r.Evaluation.Predictions)
	}
}

func (p *ReportPrinter) printMetrics(r *models.ForecastReport) {
	bp := r.BestParams
	depth := "none"
	if bp.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", bp.MaxDepth)
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Metric", "Value")
	table.Append("MAE", fmt.Sprintf("%.4f", r.Evaluation.MAE))
	table.Append("MAPE", fmt.Sprintf("%.2f%%", r.Evaluation.MAPE*100))
	table.Append("R2", fmt.Sprintf("%.4f", r.Evaluation.R2))
	table.Append("Best CV (neg MSE)", fmt.Sprintf("%.4f", r.BestCVScore))
	table.Append("feature_context", r.FeatureContext)
	table.Append("n_estimators", fmt.Sprintf("%d", bp.NEstimators))
	table.Append("max_depth", depth)
	table.Append("min_samples_split", fmt.Sprintf("%d", bp.MinSamplesSplit))
	table.Append("max_features", bp.MaxFeatures)
	table.Append("bootstrap", fmt.Sprintf("%t", bp.Bootstrap))
	table.Render()
}

func (p *ReportPrinter) printRounds(rounds []models.HalvingRound) {
	if len(rounds) == 0 {
		return
	}
	table := tablewriter.NewWriter(p.out)
	table.Header("Iter", "Resources", "Candidates", "Failed", "Best score")
	for _, rd := range rounds {
		table.Append(
			fmt.Sprintf("%d", rd.Iteration),
			fmt.Sprintf("%d", rd.Resources),
			fmt.Sprintf("%d", rd.Candidates),
			fmt.Sprintf("%d", rd.Failed),
			fmt.Sprintf("%.4f", rd.BestScore),
		)
	}
	table.Render()
}

func (p *ReportPrinter) printImportances(ranking []models.FeatureImportance) {
	if p.topN > 0 && len(ranking) > p.topN {
		ranking = ranking[:p.topN]
	}
	table := tablewriter.NewWriter(p.out)
	table.Header("#", "Feature", "Importance")
	for i, fi := range ranking {
		table.Append(fmt.Sprintf("%d", i+1), fi.Feature, fmt.Sprintf("%.4f", fi.Importance))
	}
	table.Render()
}

func (p *ReportPrinter) printPredictions(preds []models.Prediction) {
	if len(preds) > p.recentN {
		preds = preds[len(preds)-p.recentN:]
	}
	table := tablewriter.NewWriter(p.out)
	table.Header("Date", "Actual", "Predicted", "Error")
	for _, pr := range preds {
		table.Append(
			pr.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", pr.Actual),
			fmt.Sprintf("%.2f", pr.Predicted),
			fmt.Sprintf("%+.2f", pr.Predicted-pr.Actual),
		)
	}
	table.Render()
}
