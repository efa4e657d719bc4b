package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/gosi-lab/predict-service/internal/services"
	"github.com/gosi-lab/predict-service/internal/utils"
)

// answerKeyMaxSize caps uploaded answer key workbooks.
const answerKeyMaxSize = 4 << 20

// StaffHandler serves the staff endpoints: recompute orchestration, answer
// key upload, and xlsx exports.
type StaffHandler struct {
	BaseHandler
	recompute    services.RecomputeService
	importExport services.ImportExportService
}

func NewStaffHandler(recompute services.RecomputeService, importExport services.ImportExportService, logger utils.Logger) *StaffHandler {
	return &StaffHandler{
		BaseHandler:  NewBaseHandler(logger),
		recompute:    recompute,
		importExport: importExport,
	}
}

// Recompute runs the selected result pipeline steps for an exam.
// POST /staff/exams/:exam_id/recompute?scope=all
func (h *StaffHandler) Recompute(c *gin.Context) {
	h.LogRequest(c, "Running staff recompute")

	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	scope := services.RecomputeScope(c.DefaultQuery("scope", string(services.ScopeAll)))

	userID, _ := GetUserIDFromContext(c)
	report, err := h.recompute.Run(c.Request.Context(), examID, scope, "staff:"+userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// UploadAnswerKey ingests the official answer key workbook.
// POST /staff/exams/:exam_id/answer-key
func (h *StaffHandler) UploadAnswerKey(c *gin.Context) {
	h.LogRequest(c, "Uploading answer key")

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing answer key file"})
		return
	}
	if fileHeader.Size > answerKeyMaxSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "Answer key file too large"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable answer key file"})
		return
	}
	defer file.Close()

	result, err := h.importExport.UploadAnswerKey(c.Request.Context(), examID, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportStatistics streams the cohort statistics workbook.
// GET /staff/exams/:exam_id/export/statistics
func (h *StaffHandler) ExportStatistics(c *gin.Context) {
	h.LogRequest(c, "Exporting statistics")

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	f, err := h.importExport.ExportStatistics(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.writeWorkbook(c, f, fmt.Sprintf("exam-%d-statistics.xlsx", examID))
}

// ExportCatalog streams the participant roster workbook.
// GET /staff/exams/:exam_id/export/catalog
func (h *StaffHandler) ExportCatalog(c *gin.Context) {
	h.LogRequest(c, "Exporting participant catalog")

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	f, err := h.importExport.ExportCatalog(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.writeWorkbook(c, f, fmt.Sprintf("exam-%d-catalog.xlsx", examID))
}

func (h *StaffHandler) writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		h.LogError(c, "failed to stream workbook", err)
	}
}
