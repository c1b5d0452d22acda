package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
)

const dateLayout = "2006-01-02"

type savePortionRequest struct {
	Name    string `json:"name" binding:"required"`
	Patient string `json:"patient"`
	// Date is YYYY-MM-DD, today when empty
	Date string `json:"date"`
}

type exportRequest struct {
	Title string `json:"title"`
}

// PortionHandler saves, lists, loads and exports meal snapshots
type PortionHandler struct {
	meal    service.IMealService
	catalog service.CatalogStore
	export  service.IExportService
}

func NewPortionHandler(meal service.IMealService, catalog service.CatalogStore, export service.IExportService) *PortionHandler {
	return &PortionHandler{
		meal:    meal,
		catalog: catalog,
		export:  export,
	}
}

func (h *PortionHandler) RegisterRoutes(router *gin.RouterGroup) {
	portions := router.Group("/portions")
	{
		portions.GET("", h.ListPortions)
		portions.POST("", h.SavePortion)
		portions.POST("/:id/load", h.LoadPortion)
		if h.export != nil {
			portions.POST("/:id/export", h.ExportPortion)
		}
	}
}

// ListPortions lists saved portions, newest first, optionally for ?patient=
func (h *PortionHandler) ListPortions(c *gin.Context) {
	portions, err := h.catalog.ListPortions(c.Request.Context(), c.Query("patient"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portions": portions})
}

func (h *PortionHandler) SavePortion(c *gin.Context) {
	const op = "save portion"
	var req savePortionRequest
	if !bindJSON(c, op, &req) {
		return
	}

	date := time.Now()
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			_ = c.Error(nutrition.UserErrorf(op, "invalid date %q, expected YYYY-MM-DD", req.Date))
			return
		}
		date = d
	}

	id, err := h.meal.SavePortion(c.Request.Context(), req.Name, req.Patient, date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *PortionHandler) LoadPortion(c *gin.Context) {
	if err := h.meal.LoadPortion(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

// ExportPortion loads the portion into the working meal and uploads its report
func (h *PortionHandler) ExportPortion(c *gin.Context) {
	id := c.Param("id")
	var req exportRequest
	// the body is optional
	if c.Request.ContentLength > 0 && !bindJSON(c, "export portion", &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.meal.LoadPortion(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}
	view, err := h.meal.View(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}

	title, patient := req.Title, ""
	if summary, ok := h.summary(c, id); ok {
		patient = summary.Patient
		if title == "" {
			title = summary.Name
		}
	}
	if title == "" {
		title = "Portion " + id
	}
	key := fmt.Sprintf("reports/%s.json", id)
	url, err := h.export.Upload(ctx, key, service.NewReport(title, patient, view))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "url": url})
}

func (h *PortionHandler) summary(c *gin.Context, id string) (nutrition.PortionSummary, bool) {
	portions, err := h.catalog.ListPortions(c.Request.Context(), "")
	if err != nil {
		return nutrition.PortionSummary{}, false
	}
	for _, p := range portions {
		if p.ID == id {
			return p, true
		}
	}
	return nutrition.PortionSummary{}, false
}
