package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
)

var searchOperators = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "=": true}

type searchRequest struct {
	Criteria []nutrition.Criterion `json:"criteria" binding:"required,min=1"`
}

// SearchHandler submits background food searches and reports the latest result
type SearchHandler struct {
	search  service.ISearchService
	limiter *middleware.RateLimiter
}

func NewSearchHandler(search service.ISearchService, limiter *middleware.RateLimiter) *SearchHandler {
	return &SearchHandler{search: search, limiter: limiter}
}

func (h *SearchHandler) RegisterRoutes(router *gin.RouterGroup) {
	submit := []gin.HandlerFunc{h.Submit}
	if h.limiter != nil {
		submit = append([]gin.HandlerFunc{h.limiter.Middleware()}, submit...)
	}
	router.POST("/search", submit...)
	router.GET("/search", h.Latest)
}

// Submit starts a search. A search still running is superseded.
func (h *SearchHandler) Submit(c *gin.Context) {
	const op = "search"
	var req searchRequest
	if !bindJSON(c, op, &req) {
		return
	}
	for _, cr := range req.Criteria {
		if !searchOperators[cr.Op] {
			_ = c.Error(nutrition.UserErrorf(op, "invalid operator %q", cr.Op))
			return
		}
	}

	seq := h.search.Submit(req.Criteria)
	c.JSON(http.StatusAccepted, gin.H{"seq": seq})
}

// Latest returns the most recent completed search
func (h *SearchHandler) Latest(c *gin.Context) {
	res, ok := h.search.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "no search has completed", Kind: "user"})
		return
	}
	if res.Err != nil {
		_ = c.Error(res.Err)
		return
	}
	c.JSON(http.StatusOK, res)
}
