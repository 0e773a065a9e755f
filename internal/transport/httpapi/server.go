package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

const defaultSummaryLimit = 3

// Server exposes the dashboard read API. Comment reads go to the cache first
// and fall back to durable storage; a window that cannot be served from
// either source degrades to an empty result rather than an error.
type Server struct {
	cache      ports.CommentCache
	repository ports.CommentRepository
	logger     *slog.Logger

	httpServer *http.Server
}

// NewServer builds the read API bound to addr.
func NewServer(addr string, cache ports.CommentCache, repository ports.CommentRepository, logger *slog.Logger) *Server {
	s := &Server{
		cache:      cache,
		repository: repository,
		logger:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/teams/:team/comments", s.getComments)
	api.GET("/teams/:team/summaries", s.getSummaries)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the router; used by tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("read api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) getComments(c *gin.Context) {
	team := c.Param("team")

	start, err := strconv.ParseInt(c.DefaultQuery("start", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	end, err := strconv.ParseInt(c.DefaultQuery("end", strconv.FormatInt(time.Now().Unix(), 10)), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return
	}
	if end < start {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end before start"})
		return
	}

	comments := s.windowFromCache(c.Request.Context(), team, start, end)
	if comments == nil {
		comments = s.windowFromStorage(c.Request.Context(), team, start, end)
	}
	if comments == nil {
		comments = []domain.ClassifiedComment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"team":     team,
		"count":    len(comments),
		"comments": comments,
	})
}

// windowFromCache returns nil when the cache cannot serve the window, which
// signals the storage fallback.
func (s *Server) windowFromCache(ctx context.Context, team string, start, end int64) []domain.ClassifiedComment {
	payloads, err := s.cache.RangeByScore(ctx, team, start, end)
	if err != nil {
		s.logger.Warn("cache window read failed, falling back to storage", "team", team, "error", err)
		return nil
	}

	comments := make([]domain.ClassifiedComment, 0, len(payloads))
	for _, payload := range payloads {
		var comment domain.ClassifiedComment
		if err := json.Unmarshal(payload, &comment); err != nil {
			s.logger.Warn("skipping undecodable cache member", "team", team, "error", err)
			continue
		}
		comments = append(comments, comment)
	}
	return comments
}

func (s *Server) windowFromStorage(ctx context.Context, team string, start, end int64) []domain.ClassifiedComment {
	comments, err := s.repository.QueryWindow(ctx, team, start, end)
	if err != nil {
		s.logger.Error("storage window read failed", "team", team, "error", err)
		return nil
	}
	return comments
}

func (s *Server) getSummaries(c *gin.Context) {
	team := c.Param("team")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultSummaryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	entries, err := s.cache.MostRecentSummaries(c.Request.Context(), team, limit)
	if err != nil {
		s.logger.Error("summary read failed", "team", team, "error", err)
		entries = nil
	}
	if entries == nil {
		entries = []domain.SummaryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"team":      team,
		"count":     len(entries),
		"summaries": entries,
	})
}
