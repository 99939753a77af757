// Package monitor renders debug visualizations of connectivity analyses and
// generated trajectories: PNG plots via gonum/plot and standalone HTML
// scatter pages via go-echarts.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/meridian-synth/navroam/internal/nav"
)

// PlotTrajectoryPNG renders the plan's legs as a top-down XY trace with leg
// endpoints marked, saved to outputDir/trajectory_<planID>.png. Returns the
// written path.
func PlotTrajectoryPNG(plan *nav.TrajectoryPlan, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory %s (seed %d)", plan.ID, plan.Seed)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(len(plan.Legs))
	ends := make(plotter.XYs, 0, len(plan.Legs)+1)
	for i, leg := range plan.Legs {
		pts := make(plotter.XYs, 0, len(leg.Waypoints))
		for _, w := range leg.Waypoints {
			pts = append(pts, plotter.XY{X: w.Pos.X, Y: w.Pos.Y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("failed to build leg %d line: %w", i, err)
		}
		line.Width = vg.Points(1)
		line.Color = colors[i]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("leg %d", i), line)

		if i == 0 {
			ends = append(ends, plotter.XY{X: leg.Start.X, Y: leg.Start.Y})
		}
		ends = append(ends, plotter.XY{X: leg.End.X, Y: leg.End.Y})
	}

	marks, err := plotter.NewScatter(ends)
	if err != nil {
		return "", fmt.Errorf("failed to build endpoint markers: %w", err)
	}
	marks.Radius = vg.Points(3)
	marks.Color = color.RGBA{R: 220, A: 255}
	p.Add(marks)

	file := filepath.Join(outputDir, fmt.Sprintf("trajectory_%s.png", plan.ID))
	if err := p.Save(10*vg.Inch, 10*vg.Inch, file); err != nil {
		return "", fmt.Errorf("failed to save trajectory plot: %w", err)
	}
	return file, nil
}

// WriteConnectivityHTML renders the sampled points as an HTML scatter page,
// largest region highlighted against the remaining samples, saved to
// outputDir/connectivity_<mapID>.html. Returns the written path.
func WriteConnectivityHTML(mapID string, samples []nav.SamplePoint, region *nav.Region, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	inRegion := make(map[int]bool, len(region.Points))
	for _, sp := range region.Points {
		inRegion[sp.ID] = true
	}

	regionData := make([]opts.ScatterData, 0, len(region.Points))
	restData := make([]opts.ScatterData, 0, len(samples))
	for _, sp := range samples {
		d := opts.ScatterData{Value: []interface{}{sp.Pos.X, sp.Pos.Y, sp.Pos.Z}}
		if inRegion[sp.ID] {
			regionData = append(regionData, d)
		} else {
			restData = append(restData, d)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Surface Connectivity", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Surface Connectivity", Subtitle: fmt.Sprintf("map=%s samples=%d region=%d components=%d", mapID, len(samples), len(region.Points), len(region.ComponentSizes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("largest region", regionData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("other samples", restData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	file := filepath.Join(outputDir, fmt.Sprintf("connectivity_%s.html", sanitizeName(mapID)))
	f, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create connectivity page: %w", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return "", fmt.Errorf("failed to render connectivity page: %w", err)
	}
	return file, nil
}

// generateColors returns n distinct colors spread across a fixed palette.
func generateColors(n int) []color.Color {
	palette := []color.RGBA{
		{R: 31, G: 119, B: 180, A: 255},
		{R: 255, G: 127, B: 14, A: 255},
		{R: 44, G: 160, B: 44, A: 255},
		{R: 148, G: 103, B: 189, A: 255},
		{R: 140, G: 86, B: 75, A: 255},
		{R: 23, G: 190, B: 207, A: 255},
	}
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = palette[i%len(palette)]
	}
	return colors
}

// sanitizeName makes a map id safe for use in a filename.
func sanitizeName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '#', '|', '@':
			out[i] = '_'
		}
	}
	return string(out)
}
