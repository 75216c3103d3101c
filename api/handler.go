package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/market"
	"github.com/viktsys/stockplot/parser"
	"github.com/viktsys/stockplot/render"
	"github.com/viktsys/stockplot/service"
	"github.com/viktsys/stockplot/storage"
)

// Plotter is the service behind the plot endpoints.
type Plotter interface {
	PlotRange(ctx context.Context, ticker string, start, end time.Time) (service.Result, error)
	PlotCommand(ctx context.Context, command string) (service.Result, error)
	Artifact(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PlotRequest struct {
	Ticker    string `json:"ticker" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

type Handler struct {
	plots Plotter
	db    Pinger
	// outputDir is reported on /health; empty for remote stores.
	outputDir string
	log       zerolog.Logger
}

func NewHandler(plots Plotter, db Pinger, outputDir string, log zerolog.Logger) *Handler {
	return &Handler{
		plots:     plots,
		db:        db,
		outputDir: outputDir,
		log:       logger.Component(log, "api"),
	}
}

func (h *Handler) PlotRange(c *gin.Context) {
	var req PlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid start_date format. Use YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid end_date format. Use YYYY-MM-DD"})
		return
	}

	res, err := h.plots.PlotRange(c.Request.Context(), req.Ticker, start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PlotCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	res, err := h.plots.PlotCommand(c.Request.Context(), req.Command)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPlot(c *gin.Context) {
	rc, size, err := h.plots.Artifact(c.Request.Context(), c.Param("filename"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, size, "image/png", rc, nil)
}

func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}

	if h.outputDir != "" {
		if usage, err := disk.UsageWithContext(c.Request.Context(), h.outputDir); err == nil {
			body["output_dir"] = h.outputDir
			body["output_dir_free_bytes"] = usage.Free
			body["output_dir_used_percent"] = usage.UsedPercent
		}
	}

	c.JSON(status, body)
}

// fail maps pipeline errors to HTTP statuses and writes {detail}.
func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	c.JSON(status, gin.H{"detail": detail(err)})
}

// StatusFor is the HTTP status for an error from the plot pipeline.
func StatusFor(err error) int {
	var (
		parseErr   *parser.ParseError
		noData     *fetcher.NoDataError
		partial    *fetcher.PartialDataError
		empty      *render.EmptyDatasetError
		dataSource *market.DataSourceError
	)
	switch {
	case errors.As(err, &parseErr), errors.Is(err, intent.ErrInvalid):
		return http.StatusBadRequest
	case errors.As(err, &noData), errors.As(err, &partial), errors.As(err, &empty),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &dataSource):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func detail(err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return "Plot not found"
	}
	msg := err.Error()
	if msg == "" {
		return http.StatusText(http.StatusInternalServerError)
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func SetupRoutes(h *Handler, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), gin.Recovery())

	// Health check endpoint
	r.GET("/health", h.Health)

	r.POST("/plot", h.PlotRange)
	r.POST("/plot/command", h.PlotCommand)
	r.GET("/plots/:filename", h.GetPlot)

	return r
}
