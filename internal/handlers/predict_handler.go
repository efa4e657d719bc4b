package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gosi-lab/predict-service/internal/services"
	"github.com/gosi-lab/predict-service/internal/utils"
)

// PredictHandler serves the student-facing endpoints: registration, answer
// confirmation, and the result report.
type PredictHandler struct {
	BaseHandler
	students    services.StudentService
	submissions services.SubmissionService
	reports     services.ReportService
}

func NewPredictHandler(students services.StudentService, submissions services.SubmissionService, reports services.ReportService, logger utils.Logger) *PredictHandler {
	return &PredictHandler{
		BaseHandler: NewBaseHandler(logger),
		students:    students,
		submissions: submissions,
		reports:     reports,
	}
}

// Register enrolls the calling user as an exam participant.
// POST /predict/exams/:exam_id/register
func (h *PredictHandler) Register(c *gin.Context) {
	h.LogRequest(c, "Registering student")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}

	student, err := h.students.Register(c.Request.Context(), userID, examID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, student)
}

// SubmitAnswers confirms one whole subject sheet.
// POST /predict/exams/:exam_id/subjects/:code/answers
func (h *PredictHandler) SubmitAnswers(c *gin.Context) {
	h.LogRequest(c, "Confirming subject answers")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	subjectCode := c.Param("code")

	var req services.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.submissions.SubmitConfirmedAnswers(c.Request.Context(), userID, examID, subjectCode, req.Answers)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetConfirmedAnswers returns the stored sheet of one subject.
// GET /predict/exams/:exam_id/subjects/:code/answers
func (h *PredictHandler) GetConfirmedAnswers(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	subjectCode := c.Param("code")

	answers, err := h.submissions.GetConfirmedAnswers(c.Request.Context(), userID, examID, subjectCode)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	confirmed, err := h.submissions.IsSubjectConfirmed(c.Request.Context(), userID, examID, subjectCode)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject_code": subjectCode,
		"confirmed":    confirmed,
		"answers":      answers,
	})
}

// GetReport returns the assembled result report of the calling student.
// GET /predict/exams/:exam_id/report
func (h *PredictHandler) GetReport(c *gin.Context) {
	h.LogRequest(c, "Building student report")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	report, err := h.reports.GetStudentReport(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetMe returns the calling user's registration for the exam.
// GET /predict/exams/:exam_id/me
func (h *PredictHandler) GetMe(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	student, err := h.students.Get(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, student)
}
