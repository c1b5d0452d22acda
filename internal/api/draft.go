package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/service"
)

// DraftHandler parks the working meal in Redis and brings it back
type DraftHandler struct {
	meal   service.IMealService
	drafts service.IDraftService
}

func NewDraftHandler(meal service.IMealService, drafts service.IDraftService) *DraftHandler {
	return &DraftHandler{meal: meal, drafts: drafts}
}

func (h *DraftHandler) RegisterRoutes(router *gin.RouterGroup) {
	drafts := router.Group("/drafts")
	{
		drafts.POST("", h.SaveDraft)
		drafts.GET("/:id", h.GetDraft)
		drafts.DELETE("/:id", h.DeleteDraft)
		drafts.POST("/:id/restore", h.RestoreDraft)
	}
}

func (h *DraftHandler) SaveDraft(c *gin.Context) {
	draft := h.meal.Draft()
	if err := h.drafts.Save(c.Request.Context(), &draft); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// load fetches the draft named by :id, answering 404 itself when it is gone
func (h *DraftHandler) load(c *gin.Context) (*service.MealDraft, bool) {
	draft, err := h.drafts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: err.Error(), Kind: "user"})
		return nil, false
	}
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return draft, true
}

func (h *DraftHandler) GetDraft(c *gin.Context) {
	draft, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	if err := h.drafts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DraftHandler) RestoreDraft(c *gin.Context) {
	draft, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.meal.Restore(c.Request.Context(), *draft); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}
