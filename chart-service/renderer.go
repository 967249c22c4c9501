package main

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/goccy/go-json"
	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	chartTitle     = "Extracted chart data"
	chartValueAxis = "Value"
	chartBarColor  = "4682b4"

	// minBarSlot is the narrowest horizontal room a bar and its gap get.
	minBarSlot = 70
	// chartChrome is the width taken by padding and the value axis.
	chartChrome = 100
	// labelPadding is the bottom padding below the x-axis for short labels.
	labelPadding  = 80
	maxLabelRunes = 40
)

type ChartRenderer struct {
	width  int
	height int
	font   *truetype.Font
}

func NewChartRenderer() (*ChartRenderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &ChartRenderer{width: 800, height: 600, font: f}, nil
}

// labelFace matches the face go-chart uses for axis labels.
func (r *ChartRenderer) labelFace() font.Face {
	return truetype.NewFace(r.font, &truetype.Options{Size: chart.DefaultAxisFontSize, DPI: chart.DefaultDPI})
}

// Render draws a bar chart of the data and returns it PNG-encoded. Values must
// be numbers; labels of any type are printed as-is. Only paired entries are plotted.
func (r *ChartRenderer) Render(data *ChartData) ([]byte, error) {
	labels, values, err := toSeries(data)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return r.renderEmpty()
	}
	return r.renderBars(labels, values)
}

func toSeries(data *ChartData) ([]string, []float64, error) {
	n := min(len(data.Labels), len(data.Values))

	labels := make([]string, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := toFloat(data.Values[i])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: values[%d] %v", ErrInvalidShape, i, err)
		}
		values[i] = v

		if s, ok := data.Labels[i].(string); ok {
			labels[i] = truncateLabel(s)
		} else {
			labels[i] = truncateLabel(fmt.Sprint(data.Labels[i]))
		}
	}
	return labels, values, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, errors.New("is out of range")
		}
		return f, nil
	case float64:
		return n, nil
	default:
		return 0, errors.New("is not a number")
	}
}

func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelRunes {
		return s
	}
	return string(runes[:maxLabelRunes-1]) + "…"
}

func (r *ChartRenderer) renderBars(labels []string, values []float64) ([]byte, error) {
	barStyle := chart.Style{
		FillColor:   drawing.ColorFromHex(chartBarColor),
		StrokeColor: drawing.ColorFromHex(chartBarColor),
		StrokeWidth: 1,
	}

	lo, hi := 0.0, 0.0
	bars := make([]chart.Value, len(values))
	for i, v := range values {
		lo, hi = min(lo, v), max(hi, v)
		bars[i] = chart.Value{Label: labels[i], Value: v, Style: barStyle}
	}
	// go-chart refuses a zero-height range
	if hi == lo {
		hi = lo + 1
	}

	// Bars share the plot width evenly so a short series still fills it.
	slot := max(minBarSlot, (r.width-chartChrome)/len(bars))
	barWidth := slot * 3 / 5

	// Rotated labels are drawn unwrapped, so the bottom margin grows to fit
	// the longest one and the right margin to fit the last one's overhang.
	face := r.labelFace()
	longest := 0
	for _, label := range labels {
		longest = max(longest, font.MeasureString(face, label).Ceil())
	}
	extent := int(float64(longest) * math.Sqrt2 / 2)
	bottom := max(labelPadding, extent+30)
	right := max(10, extent-slot)

	graph := chart.BarChart{
		Title:      chartTitle,
		Width:      max(r.width, len(bars)*slot+chartChrome) + right - 10,
		Height:     r.height + bottom - labelPadding,
		Font:       r.font,
		BarWidth:   barWidth,
		BarSpacing: slot - barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: right, Bottom: bottom},
		},
		XAxis: chart.Style{
			TextRotationDegrees: 45,
			TextWrap:            chart.TextWrapNone,
			TextHorizontalAlign: chart.TextHorizontalAlignLeft,
		},
		YAxis: chart.YAxis{
			Name:  chartValueAxis,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// renderEmpty produces a titled "No data" image; go-chart cannot draw zero bars.
func (r *ChartRenderer) renderEmpty() ([]byte, error) {
	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(color.White)
	dc.Clear()

	w, h := float64(r.width), float64(r.height)
	dc.SetColor(color.Black)
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: 24}))
	dc.DrawStringAnchored(chartTitle, w/2, 40, 0.5, 0.5)

	dc.SetRGB(0.45, 0.45, 0.45)
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: 18}))
	dc.DrawStringAnchored("No data", w/2, h/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
