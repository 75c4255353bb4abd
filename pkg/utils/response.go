package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

func SendNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func SendSuccessWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func SendError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
	})
}

// SendAppError maps an error code to its HTTP status. Unrecognized codes fall
// through to 500 with a correlation id so callers can report it.
func SendAppError(c *gin.Context, err *AppError) {
	switch err.Code {
	case ErrCodeValidation:
		SendError(c, http.StatusUnprocessableEntity, err)
	case ErrCodeNotFound:
		SendError(c, http.StatusNotFound, err)
	case ErrCodeUnauthorized:
		SendError(c, http.StatusUnauthorized, err)
	case ErrCodeForbidden:
		SendError(c, http.StatusForbidden, err)
	case ErrCodeConflict:
		SendError(c, http.StatusConflict, err)
	case ErrCodeInvalidTransition, ErrCodeInvalidResult, ErrCodeIncompleteStage,
		ErrCodeAlreadyFinalized, ErrCodeUnknownScoringType:
		SendError(c, http.StatusBadRequest, err)
	default:
		if err.Details == "" {
			err.Details = "correlation_id=" + uuid.NewString()
		}
		SendError(c, http.StatusInternalServerError, err)
	}
}

func SendValidationError(c *gin.Context, message string, details string) {
	SendError(c, http.StatusUnprocessableEntity, NewAppError(ErrCodeValidation, message, details))
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, NewAppError(ErrCodeNotFound, message))
}

func SendUnauthorized(c *gin.Context, message string) {
	SendError(c, http.StatusUnauthorized, NewAppError(ErrCodeUnauthorized, message))
}

func SendForbidden(c *gin.Context, message string) {
	SendError(c, http.StatusForbidden, NewAppError(ErrCodeForbidden, message))
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError,
		NewAppError(ErrCodeInternal, message, "correlation_id="+uuid.NewString()))
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, NewAppError(ErrCodeConflict, message))
}
