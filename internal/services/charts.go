package services

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const defaultChartHeight = "360px"

// ChartSeries represents a set of values plotted for a given legend entry.
type ChartSeries struct {
	Name   string
	Points []ChartPoint
}

// ChartPoint is one value. Pair holds x/y for scatter charts; Missing
// leaves a gap in line charts.
type ChartPoint struct {
	Label   string
	Value   float64
	Pair    []float64
	Missing bool
}

// Chart is rendered chart markup ready to embed in a page.
type Chart struct {
	Title string `json:"title"`
	HTML  string `json:"-"`
}

// ChartRenderer renders server-side ECharts pages with go-echarts.
type ChartRenderer struct {
	theme      string
	height     string
	assetsHost string
}

type ChartOption func(*ChartRenderer)

// WithChartTheme sets a static theme (defaults to Westeros).
func WithChartTheme(theme string) ChartOption {
	return func(c *ChartRenderer) { c.theme = theme }
}

// WithChartAssetsHost rewrites the assets host so ECharts JS loads from a CDN.
func WithChartAssetsHost(host string) ChartOption {
	return func(c *ChartRenderer) { c.assetsHost = host }
}

func NewChartRenderer(options ...ChartOption) *ChartRenderer {
	c := &ChartRenderer{theme: types.ThemeWesteros, height: defaultChartHeight}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *ChartRenderer) Bar(title string, xAxis []string, series []ChartSeries) (Chart, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(c.globalOptions(title, len(series) > 1)...)
	bar.SetXAxis(xAxis)
	for _, s := range series {
		bar.AddSeries(s.Name, toBarData(s.Points))
	}
	return c.render(title, bar)
}

func (c *ChartRenderer) Line(title string, xAxis []string, series []ChartSeries) (Chart, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(c.globalOptions(title, true)...)
	line.SetXAxis(xAxis)
	for _, s := range series {
		line.AddSeries(s.Name, toLineData(s.Points))
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)
	return c.render(title, line)
}

// Donut renders a pie with a hollow center.
func (c *ChartRenderer) Donut(title string, s ChartSeries) (Chart, error) {
	pie := charts.NewPie()
	pie.SetGlobalOptions(c.globalOptions(title, true)...)
	pie.AddSeries(s.Name, toPieData(s.Points),
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
	return c.render(title, pie)
}

// Scatter plots Pair points on two value axes.
func (c *ChartRenderer) Scatter(title, xName, yName string, series []ChartSeries) (Chart, error) {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(append(c.globalOptions(title, len(series) > 1),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yName, Min: "dataMin", Max: "dataMax"}),
	)...)
	for _, s := range series {
		scatter.AddSeries(s.Name, toScatterData(s.Points))
	}
	return c.render(title, scatter)
}

func (c *ChartRenderer) render(title string, renderable interface{ Render(io.Writer) error }) (Chart, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return Chart{}, fmt.Errorf("render chart %q: %w", title, err)
	}
	return Chart{Title: title, HTML: buf.String()}, nil
}

func (c *ChartRenderer) globalOptions(title string, legend bool) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  c.theme,
		Width:  "100%",
		Height: c.height,
	}
	if c.assetsHost != "" {
		initOpts.AssetsHost = c.assetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend), Top: "bottom"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithToolboxOpts(opts.Toolbox{Show: opts.Bool(true)}),
	}
}

func toBarData(points []ChartPoint) []opts.BarData {
	data := make([]opts.BarData, len(points))
	for i, point := range points {
		data[i] = opts.BarData{
			Name:  point.Label,
			Value: point.Value,
		}
	}
	return data
}

func toLineData(points []ChartPoint) []opts.LineData {
	data := make([]opts.LineData, len(points))
	for i, point := range points {
		var value interface{} = point.Value
		if point.Missing {
			value = "-"
		}
		data[i] = opts.LineData{
			Name:  point.Label,
			Value: value,
		}
	}
	return data
}

func toPieData(points []ChartPoint) []opts.PieData {
	data := make([]opts.PieData, len(points))
	for i, point := range points {
		name := point.Label
		if name == "" {
			name = fmt.Sprintf("Slice %d", i+1)
		}
		data[i] = opts.PieData{
			Name:  name,
			Value: point.Value,
		}
	}
	return data
}

func toScatterData(points []ChartPoint) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(points))
	for _, point := range points {
		if len(point.Pair) < 2 {
			continue
		}
		data = append(data, opts.ScatterData{
			Name:  point.Label,
			Value: point.Pair[:2],
		})
	}
	return data
}
