package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
)

// quantityText accepts a quantity given either as a JSON number or a string.
// Parsing is left to the meal service.
type quantityText string

func (q *quantityText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = quantityText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = quantityText(n.String())
	return nil
}

type addFoodRequest struct {
	Name     string       `json:"name" binding:"required"`
	Quantity quantityText `json:"quantity" binding:"required"`
	Add      bool         `json:"add"`
}

type removeFoodsRequest struct {
	Names           []string `json:"names" binding:"required,min=1"`
	DeleteFromStore bool     `json:"delete_from_store"`
}

type trackRequest struct {
	Codes []nutrition.NutrientCode `json:"codes"`
}

type pathologyRequest struct {
	Name string `json:"name" binding:"required"`
}

type daysRequest struct {
	Days int `json:"days"`
}

type groupRequest struct {
	Family string   `json:"family"`
	Name   string   `json:"name"`
	Foods  []string `json:"foods"`
}

// MealHandler exposes the working meal. Every mutation answers with the
// updated meal view.
type MealHandler struct {
	meal service.IMealService
}

func NewMealHandler(meal service.IMealService) *MealHandler {
	return &MealHandler{meal: meal}
}

func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	meal := router.Group("/meal")
	{
		meal.GET("", h.GetMeal)
		meal.DELETE("", h.ClearMeal)
		meal.POST("/foods", h.AddFood)
		meal.POST("/foods/remove", h.RemoveFoods)
		meal.PUT("/nutrients", h.TrackNutrients)
		meal.PUT("/pathology", h.TrackPathology)
		meal.PUT("/days", h.SetDays)
		meal.POST("/groups", h.GroupFoods)
		meal.DELETE("/groups/:name", h.UngroupFood)
	}
}

// requireInMeal rejects names that are not lines of the meal. The meal service
// treats those as a broken caller contract, HTTP clients get a 400.
func (h *MealHandler) requireInMeal(c *gin.Context, op string, names []string) bool {
	view, err := h.meal.View(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return false
	}
	lines := make(map[string]bool, len(view.Foods))
	for _, f := range view.Foods {
		lines[f.Name] = true
	}
	for _, name := range names {
		if !lines[name] {
			_ = c.Error(nutrition.UserErrorf(op, "%w: %s", nutrition.ErrFoodNotInMeal, name))
			return false
		}
	}
	return true
}

func (h *MealHandler) GetMeal(c *gin.Context) {
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) ClearMeal(c *gin.Context) {
	if err := h.meal.Clear(); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) AddFood(c *gin.Context) {
	var req addFoodRequest
	if !bindJSON(c, "add food", &req) {
		return
	}
	if err := h.meal.AddFood(c.Request.Context(), req.Name, string(req.Quantity), req.Add); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) RemoveFoods(c *gin.Context) {
	var req removeFoodsRequest
	if !bindJSON(c, "remove foods", &req) {
		return
	}
	if req.DeleteFromStore && len(req.Names) != 1 {
		_ = c.Error(nutrition.UserErrorf("remove foods", "exactly one food can be deleted from the store at a time"))
		return
	}
	if !h.requireInMeal(c, "remove foods", req.Names) {
		return
	}
	if err := h.meal.RemoveFoods(c.Request.Context(), req.Names, req.DeleteFromStore); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) TrackNutrients(c *gin.Context) {
	var req trackRequest
	if !bindJSON(c, "track nutrients", &req) {
		return
	}
	if err := h.meal.ChangeTrackedNutrients(c.Request.Context(), req.Codes); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) TrackPathology(c *gin.Context) {
	var req pathologyRequest
	if !bindJSON(c, "track pathology", &req) {
		return
	}
	if err := h.meal.TrackPathology(c.Request.Context(), req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) SetDays(c *gin.Context) {
	var req daysRequest
	if !bindJSON(c, "set days", &req) {
		return
	}
	if err := h.meal.SetDays(req.Days); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}

func (h *MealHandler) GroupFoods(c *gin.Context) {
	var req groupRequest
	if !bindJSON(c, "group foods", &req) {
		return
	}
	if !h.requireInMeal(c, "group foods", req.Foods) {
		return
	}
	if err := h.meal.GroupFoods(c.Request.Context(), req.Family, req.Name, req.Foods); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusCreated)
}

func (h *MealHandler) UngroupFood(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if !h.requireInMeal(c, "ungroup food", []string{name}) {
		return
	}
	if err := h.meal.UngroupFood(c.Request.Context(), name); err != nil {
		_ = c.Error(err)
		return
	}
	respondView(c, h.meal, http.StatusOK)
}
