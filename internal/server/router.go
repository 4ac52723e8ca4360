package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tasklenslab/tasklens/internal/index"
	"go.uber.org/zap"
)

var (
	errMissingIndex    = errors.New("task index dependency required")
	errMissingAnalyzer = errors.New("digest provider dependency required")
)

// TaskIndex serves the filtered task queries behind the dashboard API.
type TaskIndex interface {
	Tasks(ctx context.Context, filter index.Filter) ([]index.TaskRow, error)
	Summary(ctx context.Context) ([]index.StatusCount, error)
}

// DigestProvider renders the current analysis digest.
type DigestProvider interface {
	CurrentDigest(ctx context.Context) (string, error)
}

// Dependencies wires the dashboard handler.
type Dependencies struct {
	Index         TaskIndex
	Digest        DigestProvider
	AnalysisDir   string
	ReportsDir    string
	AttachmentDir string
	Logger        *zap.Logger
}

// NewHTTPHandler builds the dashboard router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Index == nil {
		return nil, errMissingIndex
	}
	if deps.Digest == nil {
		return nil, errMissingAnalyzer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		taskIndex: deps.Index,
		digest:    deps.Digest,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.GET("/tasks", handler.handleTasks)
	api.GET("/summary", handler.handleSummary)
	api.GET("/digest", handler.handleDigest)

	mountStatic(router, "/analysis", deps.AnalysisDir)
	mountStatic(router, "/reports", deps.ReportsDir)
	mountStatic(router, "/attachments", deps.AttachmentDir)

	return router, nil
}

// mountStatic exposes a local directory read-only if it exists or can exist.
func mountStatic(router *gin.Engine, route, dir string) {
	if dir == "" {
		return
	}
	router.StaticFS(route, gin.Dir(filepath.Clean(dir), false))
}

type httpHandler struct {
	taskIndex TaskIndex
	digest    DigestProvider
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type taskPayload struct {
	UID       string   `json:"uid"`
	NID       *int64   `json:"nid,omitempty"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Due       string   `json:"due,omitempty"`
	Completed string   `json:"completed,omitempty"`
	ParentNID *int64   `json:"parent_nid,omitempty"`
	IsProject bool     `json:"is_project"`
	Tags      []string `json:"tags,omitempty"`
}

func (h *httpHandler) handleTasks(c *gin.Context) {
	filter := index.Filter{
		Status:  c.Query("status"),
		Tag:     c.Query("tag"),
		Overdue: c.Query("overdue") == "true",
		Now:     time.Now().UTC(),
	}

	rows, err := h.taskIndex.Tasks(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("task query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	payload := make([]taskPayload, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, taskPayload{
			UID:       row.UID,
			NID:       row.NID,
			Name:      row.Name,
			Status:    row.Status,
			Priority:  row.Priority,
			Due:       formatStamp(row.Due),
			Completed: formatStamp(row.Completed),
			ParentNID: row.ParentNID,
			IsProject: row.IsProject,
			Tags:      row.Tags(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": payload, "count": len(payload)})
}

func (h *httpHandler) handleSummary(c *gin.Context) {
	counts, err := h.taskIndex.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("summary query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": counts})
}

func (h *httpHandler) handleDigest(c *gin.Context) {
	digest, err := h.digest.CurrentDigest(c.Request.Context())
	if err != nil {
		h.logger.Error("digest generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest_failed"})
		return
	}
	c.String(http.StatusOK, digest)
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Serve runs the dashboard until ctx is cancelled.
func Serve(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{Addr: address, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", zap.String("address", address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
