package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
)

type importExportService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	recompute RecomputeService
}

func NewImportExportService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, recompute RecomputeService) ImportExportService {
	return &importExportService{
		db:        db,
		repo:      repo,
		logger:    logger,
		recompute: recompute,
	}
}

// UploadAnswerKey parses a staff-uploaded xlsx answer key and applies it to
// the exam problems. Expected columns: subject code, problem number, answer.
// If anything changed, every derived result is recomputed.
func (s *importExportService) UploadAnswerKey(ctx context.Context, examID uint, file io.Reader) (*AnswerKeyUploadResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, NewValidationError("file", "not a readable xlsx file")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read answer key sheet: %w", err)
	}

	entries, err := parseAnswerKeyRows(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, NewValidationError("file", "answer key sheet has no entries")
	}

	outcome, err := s.recompute.UpdateOfficialAnswers(ctx, examID, entries)
	if err != nil {
		return nil, err
	}

	s.logger.Info("answer key uploaded",
		"exam_id", examID,
		"entries", len(entries),
		"created", outcome.Created,
		"updated", outcome.Updated)

	if outcome.Created > 0 || outcome.Updated > 0 {
		if _, err := s.recompute.Run(ctx, examID, ScopeAll, "answer_key"); err != nil {
			s.logger.Error("failed to recompute after answer key upload",
				"exam_id", examID, "error", err)
		}
	}

	return &AnswerKeyUploadResult{Created: outcome.Created, Updated: outcome.Updated}, nil
}

// parseAnswerKeyRows converts sheet rows into key entries, tolerating a
// header row and blank trailing rows.
func parseAnswerKeyRows(rows [][]string) ([]AnswerKeyEntry, error) {
	var entries []AnswerKeyEntry
	for i, row := range rows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < 3 {
			return nil, NewValidationError("file", fmt.Sprintf("row %d has fewer than 3 columns", i+1))
		}
		subject := strings.ToLower(strings.TrimSpace(row[0]))
		number, numErr := strconv.Atoi(strings.TrimSpace(row[1]))
		answer, ansErr := strconv.Atoi(strings.TrimSpace(row[2]))
		if numErr != nil || ansErr != nil {
			if i == 0 {
				continue // header row
			}
			return nil, NewValidationError("file", fmt.Sprintf("row %d has non-numeric number or answer", i+1))
		}
		if subject == "" || number < 1 || answer < 0 {
			return nil, NewValidationError("file", fmt.Sprintf("row %d is out of range", i+1))
		}
		entries = append(entries, AnswerKeyEntry{SubjectCode: subject, Number: number, Answer: answer})
	}
	return entries, nil
}

// ExportStatistics builds the staff statistics workbook: one sheet of cohort
// summaries and one of per-question answer distributions.
func (s *importExportService) ExportStatistics(ctx context.Context, examID uint) (*excelize.File, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plan := exam.Plan()

	stats, err := s.repo.Statistics().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	problems, err := s.repo.Problem().GetByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.AnswerCount().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	countsByProblem := make(map[uint][]*models.AnswerCount)
	for _, row := range counts {
		countsByProblem[row.ProblemID] = append(countsByProblem[row.ProblemID], row)
	}

	f := excelize.NewFile()
	statSheet := f.GetSheetName(0)
	f.SetSheetName(statSheet, "Statistics")
	writeRow(f, "Statistics", 1, []interface{}{"subject", "participants", "max", "top10%", "top25%", "top50%", "average"})
	rowIdx := 2
	for _, stat := range stats {
		writeRow(f, "Statistics", rowIdx, []interface{}{
			stat.SubjectCode, stat.Participants, stat.Max, stat.T10, stat.T25, stat.T50, stat.Avg,
		})
		rowIdx++
	}

	if _, err := f.NewSheet("Distribution"); err != nil {
		return nil, err
	}
	header := []interface{}{"subject", "number", "tier", "answer", "predict", "blank"}
	for opt := 1; opt <= plan.OptionCount; opt++ {
		header = append(header, fmt.Sprintf("option %d", opt))
	}
	header = append(header, "multiple", "total")
	writeRow(f, "Distribution", 1, header)
	rowIdx = 2
	for _, problem := range problems {
		for _, count := range countsByProblem[problem.ID] {
			row := []interface{}{problem.SubjectCode, problem.Number, string(count.Tier), problem.Answer, count.AnswerPredict}
			tally := count.Counts(plan.OptionCount)
			for opt := 0; opt <= plan.OptionCount; opt++ {
				row = append(row, tally.Picked[opt])
			}
			row = append(row, tally.Multiple, tally.Sum)
			writeRow(f, "Distribution", rowIdx, row)
			rowIdx++
		}
	}

	return f, nil
}

// ExportCatalog builds the staff roster workbook: every registered student
// with scores, ranks, and standing.
func (s *importExportService) ExportCatalog(ctx context.Context, examID uint) (*excelize.File, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plan := exam.Plan()

	students, _, err := s.repo.Student().ListByExam(ctx, examID, repositories.StudentFilters{})
	if err != nil {
		return nil, err
	}
	scores, err := s.repo.Score().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	ranks, err := s.repo.Rank().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	scoreByStudent := make(map[uint]*models.Score, len(scores))
	for _, sc := range scores {
		scoreByStudent[sc.StudentID] = sc
	}
	rankByStudent := make(map[uint]*models.Rank, len(ranks))
	for _, rk := range ranks {
		rankByStudent[rk.StudentID] = rk
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetSheetName(sheet, "Students")
	header := []interface{}{"serial", "name"}
	for _, subject := range plan.Subjects {
		header = append(header, subject.Name, subject.Name+" (predict)")
	}
	header = append(header, "total", "total (predict)", "rank", "participants")
	writeRow(f, "Students", 1, header)

	rowIdx := 2
	for _, student := range students {
		row := []interface{}{student.Serial, student.Name}
		sc := scoreByStudent[student.ID]
		var official, predict models.SubjectScores
		if sc != nil {
			official = sc.Subjects.Data()
			predict = sc.SubjectsPredict.Data()
		}
		for _, subject := range plan.Subjects {
			row = append(row, cellValue(official[subject.Code]), cellValue(predict[subject.Code]))
		}
		if sc != nil {
			row = append(row, cellValue(sc.Total), cellValue(sc.TotalPredict))
		} else {
			row = append(row, "", "")
		}
		if rk := rankByStudent[student.ID]; rk != nil {
			row = append(row, rk.Total, rk.Participants)
		} else {
			row = append(row, 0, 0)
		}
		writeRow(f, "Students", rowIdx, row)
		rowIdx++
	}

	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, cell, value)
	}
}

func cellValue(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
