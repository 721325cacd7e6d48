// Package handler provides HTTP handlers for the FinderHub REST API.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/session"
	"github.com/CageChen/finderhub/internal/view"
)

// SessionHandler exposes browser sessions over HTTP. Every mutating call
// answers with the session's fresh view model.
type SessionHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.Named("session"),
		now:      time.Now,
	}
}

// Register mounts the session routes on g.
func (h *SessionHandler) Register(g *gin.RouterGroup) {
	g.POST("/sessions", h.Create)
	s := g.Group("/sessions/:id")
	s.GET("", h.Get)
	s.DELETE("", h.Delete)
	s.POST("/close", h.Delete)
	s.POST("/access", h.Access)
	s.POST("/navigate", h.Navigate)
	s.POST("/back", h.Back)
	s.POST("/forward", h.Forward)
	s.POST("/refresh", h.Refresh)
	s.POST("/search", h.Search)
	s.POST("/sort", h.Sort)
	s.POST("/select", h.Select)
	s.POST("/columns/select", h.SelectColumn)
	s.POST("/open", h.Open)
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) respond(c *gin.Context, s *session.Session) {
	c.JSON(http.StatusOK, s.View(h.now()))
}

// Create opens a new session
func (h *SessionHandler) Create(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.View(h.now()))
}

// Get returns the current view model
func (h *SessionHandler) Get(c *gin.Context) {
	if s, ok := h.session(c); ok {
		h.respond(c, s)
	}
}

// Delete closes a session. It is also mounted as POST /close for
// navigator.sendBeacon, which cannot send DELETE.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Access requests the root grant. A denial is reported in the view model
// with status 403 so the client can offer another attempt.
func (h *SessionHandler) Access(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.RequestAccess(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), s.View(h.now()))
		return
	}
	h.respond(c, s)
}

// PathRequest names one item or directory.
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// Navigate makes a directory current
func (h *SessionHandler) Navigate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	if err := s.Navigate(c.Request.Context(), req.Path); err != nil {
		abortWithError(c, err)
		return
	}
	h.respond(c, s)
}

// Back moves one step back in history
func (h *SessionHandler) Back(c *gin.Context) {
	if s, ok := h.session(c); ok {
		s.Back(c.Request.Context())
		h.respond(c, s)
	}
}

// Forward moves one step forward in history
func (h *SessionHandler) Forward(c *gin.Context) {
	if s, ok := h.session(c); ok {
		s.Forward(c.Request.Context())
		h.respond(c, s)
	}
}

// Refresh lists the current directory again
func (h *SessionHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	h.respond(c, s)
}

// SearchRequest sets the name filter. An empty query clears it.
type SearchRequest struct {
	Query string `json:"query"`
}

// Search sets the name filter
func (h *SessionHandler) Search(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid search request")
		return
	}
	s.SetSearchQuery(req.Query)
	h.respond(c, s)
}

// SortRequest picks a sort key.
type SortRequest struct {
	Key string `json:"key" binding:"required"`
}

// Sort applies a sort key: the same key flips the order
func (h *SessionHandler) Sort(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "key is required")
		return
	}
	key, err := view.ParseSortKey(req.Key)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	s.SetSort(key)
	h.respond(c, s)
}

// SelectRequest changes the selection. Clear empties it and ignores the
// other fields.
type SelectRequest struct {
	Path  string `json:"path"`
	Multi bool   `json:"multi"`
	Clear bool   `json:"clear"`
}

// Select changes the item selection
func (h *SessionHandler) Select(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid select request")
		return
	}
	switch {
	case req.Clear:
		s.ClearSelection()
	case req.Path == "":
		badRequest(c, "path is required")
		return
	default:
		s.SelectItem(req.Path, req.Multi)
	}
	h.respond(c, s)
}

// ColumnSelectRequest selects an item in one column.
type ColumnSelectRequest struct {
	Path   string `json:"path" binding:"required"`
	Column int    `json:"column" binding:"min=0"`
}

// SelectColumn selects an item in the column view without navigating
func (h *SessionHandler) SelectColumn(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req ColumnSelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path and column are required")
		return
	}
	if err := s.SelectColumnItem(c.Request.Context(), req.Path, req.Column); err != nil {
		abortWithError(c, err)
		return
	}
	h.respond(c, s)
}

// OpenResponse is the answer to Open: what happened, plus the new view.
type OpenResponse struct {
	session.OpenResult
	View session.View `json:"view"`
}

// Open navigates into a directory or describes a file for preview
func (h *SessionHandler) Open(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	res, err := s.Open(c.Request.Context(), req.Path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, OpenResponse{OpenResult: res, View: s.View(h.now())})
}
