// Package charts renders frontier runs as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	gocharts "github.com/vicanso/go-charts/v2"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/frontier"
)

const (
	// FrontierFile is the scatter of the sample with the envelope and CML
	FrontierFile = "frontier.png"
	// WeightsFile is the bar chart of the tangency allocation
	WeightsFile = "tangency_weights.png"
)

var (
	envelopeColor = drawing.ColorBlack
	tangencyColor = drawing.ColorRed
	minRiskColor  = drawing.ColorBlue
	cmlColor      = drawing.ColorFromHex("FFA500")
)

// Renderer draws frontier charts
type Renderer struct {
	width  int
	height int
	log    zerolog.Logger
}

// NewRenderer creates a renderer producing images of the given size
func NewRenderer(width, height int, log zerolog.Logger) *Renderer {
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 600
	}
	return &Renderer{
		width:  width,
		height: height,
		log:    log.With().Str("service", "charts").Logger(),
	}
}

// Frontier renders risk (x) against return (y) for every trial, colored by Sharpe,
// with the filtered envelope, the tangency and minimum-risk portfolios and the
// capital market line.
func (r *Renderer) Frontier(w io.Writer, result *frontier.Result) error {
	if len(result.Sample) == 0 {
		return fmt.Errorf("no portfolios to plot")
	}

	n := len(result.Sample)
	xs := make([]float64, n)
	ys := make([]float64, n)
	sharpes := make([]float64, n)
	for i, rec := range result.Sample {
		xs[i] = rec.Metrics.Risk
		ys[i] = rec.Metrics.Return
		sharpes[i] = rec.Metrics.Sharpe
	}
	minSharpe, maxSharpe := bounds(sharpes)

	cml := result.CML
	series := []chart.Series{
		chart.ContinuousSeries{
			Name: "Portfolios",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    2,
				DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
					return chart.Viridis(sharpes[index], minSharpe, maxSharpe)
				},
			},
			XValues: xs,
			YValues: ys,
		},
		chart.ContinuousSeries{
			Name: "CML",
			Style: chart.Style{
				StrokeColor:     cmlColor,
				StrokeWidth:     2,
				StrokeDashArray: []float64{6, 4},
			},
			XValues: []float64{0, cml.TangencyRisk},
			YValues: []float64{cml.RiskFreeRate, cml.TangencyReturn},
		},
	}

	if len(result.Envelope) > 0 {
		ex := make([]float64, len(result.Envelope))
		ey := make([]float64, len(result.Envelope))
		for i, rec := range result.Envelope {
			ex[i] = rec.Metrics.Risk
			ey[i] = rec.Metrics.Return
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "Filtered frontier",
			Style:   dotStyle(envelopeColor, 3),
			XValues: ex,
			YValues: ey,
		})
	}

	series = append(series,
		chart.ContinuousSeries{
			Name:    "Tangency",
			Style:   dotStyle(tangencyColor, 6),
			XValues: []float64{result.Tangency.Metrics.Risk},
			YValues: []float64{result.Tangency.Metrics.Return},
		},
		chart.ContinuousSeries{
			Name:    "Minimum risk",
			Style:   dotStyle(minRiskColor, 6),
			XValues: []float64{result.MinRisk.Metrics.Risk},
			YValues: []float64{result.MinRisk.Metrics.Return},
		},
	)

	xMin, xMax := bounds(xs, 0)
	yMin, yMax := bounds(ys, cml.RiskFreeRate)

	graph := chart.Chart{
		Title:  "Efficient Frontier (Markowitz)",
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Risk (annual volatility)",
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: percentFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Expected annual return",
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			ValueFormatter: percentFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render frontier chart: %w", err)
	}
	return nil
}

func dotStyle(color drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    width,
		DotColor:    color,
	}
}

// bounds returns the range of values and extra, padded by 5%
func bounds(values []float64, extra ...float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range append(append([]float64(nil), values...), extra...) {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 0.01)
	}
	return lo - pad, hi + pad
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f%%", f*100)
	}
	return ""
}

// TangencyWeights renders the tangency allocation as a bar chart of percentages
func (r *Renderer) TangencyWeights(labels []string, weights domain.WeightVector) ([]byte, error) {
	if len(labels) == 0 || len(labels) != len(weights) {
		return nil, fmt.Errorf("weights size %d doesn't match asset count %d", len(weights), len(labels))
	}

	values := make([]float64, len(weights))
	for i, w := range weights {
		values[i] = math.Round(w*10000) / 100
	}

	painter, err := gocharts.BarRender(
		[][]float64{values},
		gocharts.PNGTypeOption(),
		gocharts.TitleTextOptionFunc("Tangency portfolio weights (%)"),
		gocharts.XAxisDataOptionFunc(labels),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(r.width),
		gocharts.HeightOptionFunc(r.height/3*2),
		func(opt *gocharts.ChartOption) {
			if len(opt.SeriesList) > 0 {
				opt.SeriesList[0].Label.Show = true
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render weights chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights chart: %w", err)
	}
	return buf, nil
}

// WriteFiles renders both charts into dir and returns the paths written
func (r *Renderer) WriteFiles(dir string, labels []string, result *frontier.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	var buf bytes.Buffer
	if err := r.Frontier(&buf, result); err != nil {
		return nil, err
	}
	frontierPath := filepath.Join(dir, FrontierFile)
	if err := os.WriteFile(frontierPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", frontierPath, err)
	}

	weights, err := r.TangencyWeights(labels, result.Tangency.Weights)
	if err != nil {
		return nil, err
	}
	weightsPath := filepath.Join(dir, WeightsFile)
	if err := os.WriteFile(weightsPath, weights, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", weightsPath, err)
	}

	r.log.Debug().Str("dir", dir).Msg("Rendered frontier charts")
	return []string{frontierPath, weightsPath}, nil
}
