package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plaza/internal/gateway"
	"plaza/internal/models"
	"plaza/internal/services"
)

type BasicResponse struct {
	Ok        bool      `json:"ok"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBasicResponse(ok bool, details string) BasicResponse {
	return BasicResponse{
		Ok:        ok,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// StatusFor 业务错误到 HTTP 状态码的映射
func StatusFor(err error) int {
	var (
		authErr    *services.AuthRequiredError
		validation *services.ValidationError
		notFound   *services.NotFoundError
		fetch      *services.FetchError
		mutation   *services.MutationError
		gwErr      *gateway.GatewayError
		schema     *models.SchemaError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &fetch), errors.As(err, &mutation), errors.As(err, &gwErr), errors.As(err, &schema):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RespondError 错误统一输出 BasicResponse，details 为原始错误信息
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), NewBasicResponse(false, err.Error()))
}

func badRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, NewBasicResponse(false, details))
}
