// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront/service-checkout/pkg/domain"
)

// Envelope is the response body shape.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Pagination `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Pagination is attached to list responses.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Coded is implemented by errors that carry their own machine readable code.
type Coded interface {
	error
	ErrorCode() string
	ErrorDetails() map[string]any
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes 200 with data and pagination metadata.
func Paginated(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Pagination{Page: page, Limit: limit, Total: total},
	})
}

// BadRequest writes 400 with message.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Code: "BAD_REQUEST", Message: message},
	})
}

// Unauthorized writes 401 with message.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Error: &ErrorBody{Code: "UNAUTHORIZED", Message: message},
	})
}

// Forbidden writes 403 with message.
func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Envelope{
		Error: &ErrorBody{Code: "FORBIDDEN", Message: message},
	})
}

// Error maps err onto a status code and writes it.
func Error(c *gin.Context, err error) {
	status, body := classify(err)
	c.AbortWithStatusJSON(status, Envelope{Error: body})
}

func classify(err error) (int, *ErrorBody) {
	body := &ErrorBody{Code: "INTERNAL", Message: "internal server error"}

	var coded Coded
	if errors.As(err, &coded) {
		body.Code = coded.ErrorCode()
		body.Message = coded.Error()
		body.Details = coded.ErrorDetails()
	} else {
		var domErr *domain.DomainError
		if errors.As(err, &domErr) {
			body.Message = domErr.Error()
			body.Details = domErr.Details
			if domErr.Code != "" {
				body.Code = domErr.Code
			}
		}
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		if body.Code == "INTERNAL" {
			body.Code = "VALIDATION_FAILED"
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrNotFound):
		if body.Code == "INTERNAL" {
			body.Code = "NOT_FOUND"
		}
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrInvalidState):
		if body.Code == "INTERNAL" {
			body.Code = "INVALID_TRANSITION"
		}
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrConflict):
		if body.Code == "INTERNAL" {
			body.Code = "CONFLICT"
		}
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrForbidden):
		if body.Code == "INTERNAL" {
			body.Code = "FORBIDDEN"
		}
		return http.StatusForbidden, body
	case errors.Is(err, domain.ErrUpstream):
		if body.Code == "INTERNAL" {
			body.Code = "UPSTREAM_FAILED"
		}
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, &ErrorBody{Code: "INTERNAL", Message: "internal server error"}
	}
}
