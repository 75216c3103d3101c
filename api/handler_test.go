package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/market"
	"github.com/viktsys/stockplot/parser"
	"github.com/viktsys/stockplot/render"
	"github.com/viktsys/stockplot/service"
	"github.com/viktsys/stockplot/storage"
)

type fakePlotter struct {
	result  service.Result
	err     error
	files   map[string][]byte
	ticker  string
	start   time.Time
	end     time.Time
	command string
}

func (f *fakePlotter) PlotRange(_ context.Context, ticker string, start, end time.Time) (service.Result, error) {
	f.ticker, f.start, f.end = ticker, start, end
	return f.result, f.err
}

func (f *fakePlotter) PlotCommand(_ context.Context, command string) (service.Result, error) {
	f.command = command
	return f.result, f.err
}

func (f *fakePlotter) Artifact(_ context.Context, name string) (io.ReadCloser, int64, error) {
	data, ok := f.files[name]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(p *fakePlotter, db Pinger, dir string) http.Handler {
	return SetupRoutes(NewHandler(p, db, dir, zerolog.Nop()), zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPlotRangeEndpoint(t *testing.T) {
	p := &fakePlotter{result: service.Result{
		Message: "Plot created for MSFT from 2024-06-01 to 2024-09-30",
		PlotURL: "http://localhost:8000/plots/MSFT_time_series_20241001_143005.png",
	}}
	w := do(t, newRouter(p, nil, ""), http.MethodPost, "/plot",
		`{"ticker":"MSFT","start_date":"2024-06-01","end_date":"2024-09-30"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, p.result.Message, body["message"])
	assert.Equal(t, p.result.PlotURL, body["plot_url"])
	assert.Len(t, body, 2)

	assert.Equal(t, "MSFT", p.ticker)
	assert.Equal(t, intent.Date(2024, time.June, 1), p.start)
	assert.Equal(t, intent.Date(2024, time.September, 30), p.end)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPlotRangeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing ticker", `{"start_date":"2024-06-01","end_date":"2024-09-30"}`},
		{"bad start", `{"ticker":"MSFT","start_date":"06/01/2024","end_date":"2024-09-30"}`},
		{"bad end", `{"ticker":"MSFT","start_date":"2024-06-01","end_date":"2024-13-01"}`},
		{"not json", `ticker=MSFT`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newRouter(&fakePlotter{}, nil, ""), http.MethodPost, "/plot", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode(t, w)["detail"])
		})
	}
}

func TestPlotCommandEndpoint(t *testing.T) {
	p := &fakePlotter{result: service.Result{Message: "ok", PlotURL: "http://x/plots/a.png"}}
	w := do(t, newRouter(p, nil, ""), http.MethodPost, "/plot/command", `{"command":"Show a pie chart of the sector distribution"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Show a pie chart of the sector distribution", p.command)

	w = do(t, newRouter(p, nil, ""), http.MethodPost, "/plot/command", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlotCommandErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"parse", &parser.ParseError{Command: "hello", Reason: "no chart type, ticker or date found"}, http.StatusBadRequest},
		{"invalid", fmt.Errorf("%w: start after end", intent.ErrInvalid), http.StatusBadRequest},
		{"no data", &fetcher.NoDataError{Ticker: "IBM", Period: "in 2024"}, http.StatusNotFound},
		{"partial", &fetcher.PartialDataError{Missing: []string{"NVDA"}}, http.StatusNotFound},
		{"empty", &render.EmptyDatasetError{Variant: intent.VariantClosePrice}, http.StatusNotFound},
		{"data source", &market.DataSourceError{Op: "snapshot", Err: errors.New("dial tcp: refused")}, http.StatusBadGateway},
		{"wrapped data source", fmt.Errorf("resolve latest trading date: %w",
			&market.DataSourceError{Op: "latest date", Err: errors.New("timeout")}), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlotter{err: tt.err}
			w := do(t, newRouter(p, nil, ""), http.MethodPost, "/plot/command", `{"command":"anything"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, decode(t, w)["detail"])
		})
	}
}

func TestGetPlot(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")
	p := &fakePlotter{files: map[string][]byte{"MSFT_time_series_20241001_143005.png": png}}
	h := newRouter(p, nil, "")

	w := do(t, h, http.MethodGet, "/plots/MSFT_time_series_20241001_143005.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	w = do(t, h, http.MethodGet, "/plots/missing.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Plot not found", decode(t, w)["detail"])
}

func TestHealth(t *testing.T) {
	w := do(t, newRouter(&fakePlotter{}, fakePinger{}, t.TempDir()), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Contains(t, body, "output_dir_free_bytes")

	w = do(t, newRouter(&fakePlotter{}, fakePinger{err: errors.New("down")}, ""), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestRequestIDPropagates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	newRouter(&fakePlotter{}, nil, "").ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestSetupRoutesKeepsGinMode(t *testing.T) {
	newRouter(&fakePlotter{}, fakePinger{}, "")
	assert.Equal(t, gin.TestMode, gin.Mode())
}
