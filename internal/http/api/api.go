package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

type HandlerFunc func(ctx *gin.Context) (any, *Error)

func BadRequest(msg string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: http.StatusNotFound, Message: msg}
}

func Internal(msg string) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: msg}
}

// ResolveEndpoint adapts a HandlerFunc to gin, rendering errors as
// {"error": message} with the error's status code.
func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

// ParseID reads a uuid path parameter.
func ParseID(ctx *gin.Context, name string) (uuid.UUID, *Error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, BadRequest("invalid " + name)
	}
	return id, nil
}
