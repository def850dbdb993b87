// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"analyst/internal/config"
	"analyst/internal/loader"
	"analyst/internal/session"
)

// Runner is the engine surface the server needs; the orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, question string, files []loader.File) (*session.Result, error)
}

// Server serves the analysis API.
type Server struct {
	cfg     config.ServerConfig
	runner  Runner
	logger  *zap.Logger
	version string
	http    *http.Server
}

// New creates the server.
func New(cfg config.ServerConfig, runner Runner, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, runner: runner, logger: logger, version: version}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", s.handleHealth)
	router.POST("/analyze", s.handleAnalyze)
	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

type analyzeResponse struct {
	SessionID  string             `json:"session_id"`
	Answer     string             `json:"answer"`
	Rounds     int                `json:"rounds"`
	DurationMs int64              `json:"duration_ms"`
	Artifacts  []artifactResponse `json:"artifacts,omitempty"`
}

type artifactResponse struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64
}

// handleAnalyze accepts a multipart upload of data files plus question.txt
// and runs one analysis session.
func (s *Server) handleAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}

	var question string
	var files []loader.File
	for _, headers := range form.File {
		for _, header := range headers {
			if header.Size > s.cfg.MaxFileBytes {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("%s exceeds the %d byte limit", header.Filename, s.cfg.MaxFileBytes),
				})
				return
			}
			data, err := readUpload(header)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s: %v", header.Filename, err)})
				return
			}

			if header.Filename == loader.QuestionFile {
				question = strings.TrimSpace(string(data))
				continue
			}

			f, err := loader.New(header.Filename, data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			files = append(files, f)
		}
	}

	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("%s is required and must not be empty", loader.QuestionFile),
		})
		return
	}

	result, err := s.runner.Run(c.Request.Context(), question, files)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrRoundsExhausted) ||
			errors.Is(err, session.ErrParseFailures) ||
			errors.Is(err, session.ErrBudgetExceeded) {
			status = http.StatusUnprocessableEntity
		}
		s.logger.Warn("analysis failed", zap.Error(err))
		body := gin.H{"error": err.Error()}
		if result != nil {
			body["session_id"] = result.SessionID
			body["rounds"] = len(result.Rounds)
		}
		c.JSON(status, body)
		return
	}

	resp := analyzeResponse{
		SessionID:  result.SessionID,
		Answer:     result.Answer,
		Rounds:     len(result.Rounds),
		DurationMs: result.Duration.Milliseconds(),
	}
	for _, a := range result.Artifacts {
		resp.Artifacts = append(resp.Artifacts, artifactResponse{
			Name: a.Name,
			Data: base64.StdEncoding.EncodeToString(a.Data),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
