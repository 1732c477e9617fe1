package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/motion.fusion/internal/db"
)

var axisColors = [3]color.RGBA{
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
}

// PlotRun draws raw, smoothed and estimated components of quantity as a
// PNG, one panel per axis stacked vertically.
func PlotRun(w io.Writer, ticks []db.TickRecord, quantity string) error {
	s, err := SeriesOf(ticks, quantity)
	if err != nil {
		return err
	}

	const width, panelHeight = 10 * vg.Inch, 3 * vg.Inch
	img := vgimg.NewWith(vgimg.UseWH(width, 3*panelHeight), vgimg.UseDPI(96))
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 3, Cols: 1, PadTop: vg.Points(4), PadBottom: vg.Points(4), PadLeft: vg.Points(4), PadRight: vg.Points(4)}

	for axis, label := range Axes {
		p, err := axisPlot(s, axis)
		if err != nil {
			return fmt.Errorf("%s %s: %w", quantity, label, err)
		}
		p.Draw(tiles.At(dc, 0, axis))
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func axisPlot(s Series, axis int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s", s.Quantity, Axes[axis])
	p.X.Label.Text = "Time (s)"
	p.Legend.Top = true
	p.Legend.Left = false

	lines := []struct {
		name   string
		values []*float64
		dashes []vg.Length
		width  vg.Length
	}{
		{"raw", s.Raw[axis], nil, vg.Points(0.75)},
		{"smoothed", s.Smoothed[axis], []vg.Length{vg.Points(4), vg.Points(2)}, vg.Points(1)},
		{"estimate", s.Estimate[axis], []vg.Length{vg.Points(1), vg.Points(2)}, vg.Points(1.5)},
	}
	for _, l := range lines {
		pts := points(s.Times, l.values)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = axisColors[axis]
		line.Width = l.width
		line.Dashes = l.dashes
		p.Add(line)
		p.Legend.Add(l.name, line)
	}
	return p, nil
}

// points drops absent samples.
func points(times []float64, values []*float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if v != nil {
			pts = append(pts, plotter.XY{X: times[i], Y: *v})
		}
	}
	return pts
}
