package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gosi-lab/predict-service/internal/services"
	"github.com/gosi-lab/predict-service/internal/utils"
	"github.com/gosi-lab/predict-service/internal/validator"
)

// ErrorResponse is the uniform error body of the API.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// BaseHandler carries the shared handler dependencies.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string) {
	utils.GetLogger(c, h.logger).Info(msg, "path", c.Request.URL.Path)
}

func (h *BaseHandler) LogError(c *gin.Context, msg string, err error) {
	utils.GetLogger(c, h.logger).Error(msg, "path", c.Request.URL.Path, "error", err)
}

// handleServiceError maps service errors to HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	var validationErr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Resource not found"})
	case errors.Is(err, services.ErrNotRegistered):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Not registered for this exam"})
	case errors.Is(err, services.ErrExamNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Exam is not active"})
	case errors.Is(err, services.ErrSubmissionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submission window is closed"})
	case errors.Is(err, services.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Subject already confirmed"})
	case errors.Is(err, services.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Already registered for this exam"})
	case errors.Is(err, services.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Answer outside the exam option range"})
	case errors.Is(err, services.ErrAnswerCountMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Answer count does not match the subject"})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: validationErrs})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: validationErr.Message, Details: validationErr})
	default:
		h.LogError(c, "unhandled service error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

// examIDParam parses the :exam_id path parameter.
func examIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("exam_id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid exam id"})
		return 0, false
	}
	return uint(id), true
}
