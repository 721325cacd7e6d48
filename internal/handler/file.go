package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/meta"
	"github.com/CageChen/finderhub/internal/preview"
	"github.com/CageChen/finderhub/internal/session"
)

// FileHandler serves file previews and raw downloads for a session
type FileHandler struct {
	sessions *session.Manager
	renderer *preview.Renderer
	logger   *zap.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(sessions *session.Manager, renderer *preview.Renderer, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		sessions: sessions,
		renderer: renderer,
		logger:   logger.Named("file"),
	}
}

// Register mounts the file routes on g.
func (h *FileHandler) Register(g *gin.RouterGroup) {
	g.GET("/sessions/:id/preview", h.GetPreview)
	g.GET("/sessions/:id/raw", h.GetRaw)
	g.GET("/preview.css", h.GetStyle)
}

func (h *FileHandler) target(c *gin.Context) (*session.Session, string, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, "", false
	}
	path := c.Query("path")
	if path == "" {
		badRequest(c, "path is required")
		return nil, "", false
	}
	return s, path, true
}

// GetPreview returns the rendered preview of a file. A failed read answers
// with kind "readFailed" so the client can offer the raw download instead.
func (h *FileHandler) GetPreview(c *gin.Context) {
	s, path, ok := h.target(c)
	if !ok {
		return
	}
	res, err := h.renderer.Preview(c.Request.Context(), s, path)
	if err != nil {
		h.logger.Debug("preview failed", zap.String("path", path), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRaw returns the file content with a sniffed content type. With
// download=1 the browser is asked to save it.
func (h *FileHandler) GetRaw(c *gin.Context) {
	s, path, ok := h.target(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	item, err := s.Stat(ctx, path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if item.IsDir {
		abortWithError(c, fmt.Errorf("%s is a directory: %w", path, fs.ErrUnsupported))
		return
	}
	content, err := s.Read(ctx, path)
	if err != nil {
		abortWithError(c, err)
		return
	}

	disposition := "inline"
	if c.Query("download") != "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(item.Name)))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, meta.DetectMimeType(item.Name, content), content)
}

// GetStyle returns the stylesheet for highlighted code previews
func (h *FileHandler) GetStyle(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.renderer.WriteCSS(&buf); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", buf.Bytes())
}
