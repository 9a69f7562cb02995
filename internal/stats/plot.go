package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"cropopt/internal/model"
)

// PlotFitness draws best and mean fitness per generation. The output format
// follows the path extension.
func PlotFitness(diagnostics []model.GenerationDiagnostics, title, outPath string) error {
	if len(diagnostics) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	bestPts := make(plotter.XYs, len(diagnostics))
	meanPts := make(plotter.XYs, len(diagnostics))
	for i, d := range diagnostics {
		bestPts[i].X = float64(d.Generation)
		bestPts[i].Y = d.BestFitness
		meanPts[i].X = float64(d.Generation)
		meanPts[i].Y = d.MeanFitness
	}

	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, outPath)
}
