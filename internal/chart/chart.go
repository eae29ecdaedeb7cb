// Package chart renders results sections as standalone ECharts pages.
package chart

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
)

const (
	width  = "100%"
	height = "380px"
)

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     width,
		Height:    height,
	})
}

// Render returns an HTML document drawing the section's chart. It returns
// nil when the section has nothing to draw.
func Render(sec results.Section) ([]byte, error) {
	if sec.NoData() {
		return nil, nil
	}
	var buf bytes.Buffer
	var err error
	switch sec.Question.Chart {
	case model.ChartBar:
		err = bar(sec, false).Render(&buf)
	case model.ChartHorizontalBar:
		err = bar(sec, true).Render(&buf)
	case model.ChartPie:
		err = pie(sec).Render(&buf)
	case model.ChartWordCloud:
		if len(sec.Words) == 0 {
			return nil, nil
		}
		err = wordCloud(sec).Render(&buf)
	case model.ChartNone:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart for %s: %w", sec.Question.Chart, sec.Question.ID(), err)
	}
	return buf.Bytes(), nil
}

func bar(sec results.Section, horizontal bool) *charts.Bar {
	counts := sec.Counts
	if horizontal {
		// Category axes draw bottom-up; keep the largest count on top.
		counts = slices.Clone(counts)
		slices.Reverse(counts)
	}
	labels := make([]string, 0, len(counts))
	data := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		labels = append(labels, c.Label)
		data = append(data, opts.BarData{Value: c.Count})
	}
	b := charts.NewBar()
	b.SetGlobalOptions(initOpts(sec.Question.ShortLabel))
	b.SetXAxis(labels).AddSeries("Count", data)
	if horizontal {
		b.XYReversal()
	}
	return b
}

func pie(sec results.Section) *charts.Pie {
	data := make([]opts.PieData, 0, len(sec.Counts))
	for _, c := range sec.Counts {
		data = append(data, opts.PieData{Name: c.Label, Value: c.Count})
	}
	p := charts.NewPie()
	p.SetGlobalOptions(initOpts(sec.Question.ShortLabel))
	p.AddSeries(sec.Question.ShortLabel, data)
	return p
}

func wordCloud(sec results.Section) *charts.WordCloud {
	data := make([]opts.WordCloudData, 0, len(sec.Words))
	for _, w := range sec.Words {
		data = append(data, opts.WordCloudData{Name: w.Label, Value: w.Count})
	}
	wc := charts.NewWordCloud()
	wc.SetGlobalOptions(initOpts(sec.Question.ShortLabel))
	wc.AddSeries(sec.Question.ShortLabel, data)
	return wc
}
