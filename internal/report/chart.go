package report

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RunStore is the read side of the run database.
type RunStore interface {
	Runs(limit int) ([]db.Run, error)
	Ticks(run uuid.UUID) ([]db.TickRecord, error)
}

// ChartHandler renders one run as an HTML page of line charts.
// Query params:
//   - run (optional; defaults to the newest run)
//   - quantity (optional; defaults to position)
//   - format=png renders the static PNG plot instead
func ChartHandler(store RunStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		q := r.URL.Query()

		run, err := resolveRun(store, q.Get("run"))
		if err != nil {
			if errors.Is(err, db.ErrRunNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.BadRequest(w, err.Error())
			return
		}
		quantity := q.Get("quantity")
		if quantity == "" {
			quantity = "position"
		}

		ticks, err := store.Ticks(run)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}

		var buf bytes.Buffer
		contentType := "text/html; charset=utf-8"
		if q.Get("format") == "png" {
			err = PlotRun(&buf, ticks, quantity)
			contentType = "image/png"
		} else {
			err = renderPage(&buf, run, ticks, quantity)
		}
		switch {
		case errors.Is(err, ErrNoTicks):
			httputil.NotFound(w, err.Error())
			return
		case err != nil:
			httputil.BadRequest(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(buf.Bytes())
	})
}

func resolveRun(store RunStore, param string) (uuid.UUID, error) {
	if param != "" {
		id, err := uuid.Parse(param)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid run id %q", param)
		}
		return id, nil
	}
	runs, err := store.Runs(1)
	if err != nil {
		return uuid.Nil, err
	}
	if len(runs) == 0 {
		return uuid.Nil, db.ErrRunNotFound
	}
	return runs[0].ID, nil
}

func renderPage(buf *bytes.Buffer, run uuid.UUID, ticks []db.TickRecord, quantity string) error {
	s, err := SeriesOf(ticks, quantity)
	if err != nil {
		return err
	}

	x := make([]string, len(s.Times))
	for i, t := range s.Times {
		x[i] = strconv.FormatFloat(t, 'f', 3, 64)
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.PageTitle = fmt.Sprintf("Run %s", run)

	for axis, label := range Axes {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s %s", quantity, label), Subtitle: fmt.Sprintf("run=%s ticks=%d", run, len(ticks))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		)
		line.SetXAxis(x)
		for _, series := range []struct {
			name   string
			values []*float64
			style  string
		}{
			{"raw", s.Raw[axis], "solid"},
			{"smoothed", s.Smoothed[axis], "dashed"},
			{"estimate", s.Estimate[axis], "dotted"},
		} {
			if !present(series.values) {
				continue
			}
			line.AddSeries(series.name, lineData(series.values),
				charts.WithLineStyleOpts(opts.LineStyle{Type: series.style}),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			)
		}
		page.AddCharts(line)
	}
	return page.Render(buf)
}

// lineData maps absent samples to "-", which echarts draws as a gap.
func lineData(values []*float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: *v}
	}
	return out
}
