// Package chart renders prepared numeric series into raster images.
package chart

import (
	"bytes"

	gochart "github.com/wcharczuk/go-chart/v2"

	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
)

type Kind string

const (
	Pie  Kind = "pie"
	Bar  Kind = "bar"
	Line Kind = "line"
)

// Point is one (label, value) pair of a series. Series order is preserved in
// the rendered legend and axis order.
type Point struct {
	Label string
	Value float64
}

// Renderer turns a series into an opaque image payload.
type Renderer interface {
	Render(kind Kind, series []Point) ([]byte, error)
}

// PNGRenderer renders charts to PNG bytes.
type PNGRenderer struct {
	width  int
	height int
}

func NewPNG() *PNGRenderer {
	return &PNGRenderer{width: 768, height: 512}
}

func (r *PNGRenderer) Render(kind Kind, series []Point) ([]byte, error) {
	if len(series) == 0 {
		return nil, boterr.New(boterr.CodeRender, "cannot render empty series")
	}

	var buf bytes.Buffer
	var err error
	switch kind {
	case Pie:
		err = r.renderPie(series, &buf)
	case Bar:
		err = r.renderBar(series, &buf)
	case Line:
		err = r.renderLine(series, &buf)
	default:
		return nil, boterr.New(boterr.CodeRender, "unsupported chart kind "+string(kind))
	}
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeRender, "render "+string(kind)+" chart", err)
	}
	return buf.Bytes(), nil
}

func (r *PNGRenderer) renderPie(series []Point, buf *bytes.Buffer) error {
	pie := gochart.PieChart{
		Width:  r.height,
		Height: r.height,
		Values: toValues(series),
	}
	return pie.Render(gochart.PNG, buf)
}

func (r *PNGRenderer) renderBar(series []Point, buf *bytes.Buffer) error {
	bar := gochart.BarChart{
		Width:    r.width,
		Height:   r.height,
		BarWidth: 48,
		Bars:     toValues(series),
	}
	return bar.Render(gochart.PNG, buf)
}

func (r *PNGRenderer) renderLine(series []Point, buf *bytes.Buffer) error {
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		xs[i] = float64(i)
		ys[i] = p.Value
	}
	line := gochart.Chart{
		Width:  r.width,
		Height: r.height,
		Series: []gochart.Series{
			gochart.ContinuousSeries{XValues: xs, YValues: ys},
		},
	}
	return line.Render(gochart.PNG, buf)
}

func toValues(series []Point) []gochart.Value {
	values := make([]gochart.Value, 0, len(series))
	for _, p := range series {
		values = append(values, gochart.Value{Label: p.Label, Value: p.Value})
	}
	return values
}
