package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/service"
)

// CatalogHandler serves read-only lookups into the food tables
type CatalogHandler struct {
	catalog service.CatalogStore
}

func NewCatalogHandler(catalog service.CatalogStore) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/nutrients", h.ListNutrients)
	router.GET("/families", h.ListFamilies)
	router.GET("/foods", h.ListFoods)
}

func (h *CatalogHandler) ListNutrients(c *gin.Context) {
	nutrients, err := h.catalog.GetNutrientCatalog(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nutrients": nutrients})
}

func (h *CatalogHandler) ListFamilies(c *gin.Context) {
	families, err := h.catalog.ListFamilies(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"families": families})
}

// ListFoods lists foods, optionally restricted to ?family=
func (h *CatalogHandler) ListFoods(c *gin.Context) {
	foods, err := h.catalog.ListFoods(c.Request.Context(), c.Query("family"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foods": foods})
}
