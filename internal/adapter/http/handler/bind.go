package handler

import (
	"errors"
	"net/http"

	"taixiu-dealer/internal/adapter/http/dto"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes and validates the body into req, then sanitizes it. On
// failure it writes the error response and returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return false
		}
		response.Error(c, apperror.InvalidInput(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}
