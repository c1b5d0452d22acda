package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/nutrition"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var notFoundErrors = []error{
	nutrition.ErrFoodNotFound,
	nutrition.ErrPortionNotFound,
	nutrition.ErrPathologyNotFound,
}

var conflictErrors = []error{
	nutrition.ErrFoodExists,
	nutrition.ErrFoodReferenced,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// StatusFor maps an error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case nutrition.IsInternalError(err):
		return http.StatusInternalServerError
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case nutrition.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders the last error attached with c.Error as JSON
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := StatusFor(err)

		resp := ErrorResponse{Error: err.Error(), Kind: "user"}
		if status == http.StatusInternalServerError {
			log.Printf("Error: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			resp.Kind = "internal"
			if !nutrition.IsInternalError(err) {
				resp.Error = "Internal Server Error"
			}
		}
		c.JSON(status, resp)
	}
}
