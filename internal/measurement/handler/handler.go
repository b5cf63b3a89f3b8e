package handler

import (
	"errors"
	"strconv"

	"github.com/construtiva/obratrack/internal/measurement/repository"
	"github.com/construtiva/obratrack/internal/measurement/service"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the measurement module's HTTP handlers.
type Handlers struct {
	Bulletin *BulletinHandler
}

func NewHandlers(bulletinSvc *service.BulletinService, accumSvc *service.AccumulationService) *Handlers {
	return &Handlers{
		Bulletin: NewBulletinHandler(bulletinSvc, accumSvc),
	}
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// FromError maps a service error to the response envelope. Storage errors
// end up as a generic 500 so no internal detail leaks to the caller.
func FromError(c *gin.Context, err error) {
	switch {
	case service.IsValidation(err):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPermission):
		Forbidden(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "bulletin not found")
	case errors.Is(err, service.ErrStateConflict):
		Conflict(c, err.Error())
	default:
		InternalError(c, "internal error")
	}
}

func GetTenantID(c *gin.Context) string {
	if v, ok := c.Get("tenant_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func GetUserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if v, ok := c.Get("role"); ok {
		if r, ok := v.(string); ok {
			return r
		}
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
