package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/cache"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

// frequencyBinWidth is the fixed width of the total-score histogram bars.
const frequencyBinWidth = 5.0

type reportService struct {
	db           *gorm.DB
	repo         repositories.Repository
	logger       *slog.Logger
	cacheManager *cache.CacheManager
}

func NewReportService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, cacheManager *cache.CacheManager) ReportService {
	return &reportService{
		db:           db,
		repo:         repo,
		logger:       logger,
		cacheManager: cacheManager,
	}
}

// GetStudentReport assembles the full result report for one student: scores
// and standing per subject, cohort statistics, per-question answer analytics,
// and the total-score histogram. Before the official key opens every scored
// figure is the crowd-predicted one.
func (s *reportService) GetStudentReport(ctx context.Context, userID string, examID uint) (*StudentReport, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	student, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	var report StudentReport
	cacheKey := fmt.Sprintf("exam:%d:student:%d", examID, student.ID)
	err = s.cacheManager.Report.CacheOrExecute(ctx, cacheKey, &report, cache.ReportCacheConfig.TTL, func() (interface{}, error) {
		return s.buildReport(ctx, exam, student)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportService) buildReport(ctx context.Context, exam *models.Exam, student *models.Student) (*StudentReport, error) {
	plan := exam.Plan()
	officialOpen := exam.OfficialOpen(time.Now())

	score, err := s.repo.Score().GetByStudent(ctx, student.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load score: %w", err)
	}
	rank, err := s.repo.Rank().GetByStudent(ctx, student.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load rank: %w", err)
	}

	statRows, err := s.repo.Statistics().ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	statBySubject := make(map[string]scoring.Stat, len(statRows))
	for _, row := range statRows {
		statBySubject[row.SubjectCode] = row.Stat()
	}

	report := &StudentReport{
		Student:      student,
		OfficialOpen: officialOpen,
	}

	subjectScores := models.SubjectScores{}
	subjectScoresPredict := models.SubjectScores{}
	var total, totalPredict *float64
	if score != nil {
		subjectScores = score.Subjects.Data()
		subjectScoresPredict = score.SubjectsPredict.Data()
		total, totalPredict = score.Total, score.TotalPredict
	}
	subjectRanks := models.SubjectRanks{}
	totalRank, participants := 0, 0
	if rank != nil {
		subjectRanks = rank.Subjects.Data()
		totalRank, participants = rank.Total, rank.Participants
	}

	for _, subject := range plan.Subjects {
		report.Subjects = append(report.Subjects, SubjectReport{
			Code:         subject.Code,
			Name:         subject.Name,
			Score:        displayedValue(subjectScores[subject.Code], subjectScoresPredict[subject.Code], officialOpen),
			ScorePredict: subjectScoresPredict[subject.Code],
			Rank:         subjectRanks[subject.Code],
			Participants: statBySubject[subject.Code].Participants,
			Stat:         statBySubject[subject.Code],
		})
	}
	report.Total = SubjectReport{
		Code:         models.StatisticsSubjectTotal,
		Name:         "total",
		Score:        displayedValue(total, totalPredict, officialOpen),
		ScorePredict: totalPredict,
		Rank:         totalRank,
		Participants: participants,
		Stat:         statBySubject[models.StatisticsSubjectTotal],
	}

	if err := s.addProblemReports(ctx, exam, plan, student, officialOpen, report); err != nil {
		return nil, err
	}
	if err := s.addFrequency(ctx, exam, officialOpen, displayedValue(total, totalPredict, officialOpen), report); err != nil {
		return nil, err
	}

	return report, nil
}

// addProblemReports builds the per-question rows: the student's own answer
// against the displayed key, plus how each rank tier answered.
func (s *reportService) addProblemReports(ctx context.Context, exam *models.Exam, plan scoring.ExamPlan, student *models.Student, officialOpen bool, report *StudentReport) error {
	problems, err := s.repo.Problem().GetByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("failed to load problems: %w", err)
	}
	submissions, err := s.repo.Submission().ListByStudent(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("failed to load submissions: %w", err)
	}
	answerByProblem := make(map[uint]int, len(submissions))
	for _, sub := range submissions {
		answerByProblem[sub.ProblemID] = sub.Answer
	}
	countRows, err := s.repo.AnswerCount().ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("failed to load answer counts: %w", err)
	}
	countsByProblem := make(map[uint]map[scoring.Tier]*scoring.Counts, len(problems))
	predictByProblem := make(map[uint]int, len(problems))
	for _, row := range countRows {
		tallies, ok := countsByProblem[row.ProblemID]
		if !ok {
			tallies = make(map[scoring.Tier]*scoring.Counts, 4)
			countsByProblem[row.ProblemID] = tallies
		}
		tallies[row.Tier] = row.Counts(plan.OptionCount)
		if row.Tier == scoring.TierAll {
			predictByProblem[row.ProblemID] = row.AnswerPredict
		}
	}

	for _, problem := range problems {
		answer := answerByProblem[problem.ID]
		predicted := predictByProblem[problem.ID]

		// Grade against the official key once it opens, against the crowd
		// prediction before that.
		key := predicted
		official := 0
		if officialOpen {
			key = problem.Answer
			official = problem.Answer
		}

		row := ProblemReport{
			Number:         problem.Number,
			SubjectCode:    problem.SubjectCode,
			Answer:         answer,
			AnswerOfficial: official,
			AnswerPredict:  predicted,
			IsCorrect:      scoring.IsCorrect(key, answer, plan.OptionCount),
		}
		if tallies := countsByProblem[problem.ID]; tallies != nil {
			row.RateAll = correctRate(tallies[scoring.TierAll], key, plan.OptionCount)
			row.RateTop = correctRate(tallies[scoring.TierTop], key, plan.OptionCount)
			row.RateMid = correctRate(tallies[scoring.TierMid], key, plan.OptionCount)
			row.RateLow = correctRate(tallies[scoring.TierLow], key, plan.OptionCount)
			row.RateGap = scoring.Round1(row.RateTop - row.RateLow)
		}
		report.Problems = append(report.Problems, row)
	}
	return nil
}

// addFrequency builds the total-score histogram of the whole cohort in
// fixed-width bins and marks the bin holding the requesting student.
func (s *reportService) addFrequency(ctx context.Context, exam *models.Exam, officialOpen bool, ownTotal *float64, report *StudentReport) error {
	scores, err := s.repo.Score().ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("failed to load cohort scores: %w", err)
	}

	var totals []float64
	for _, sc := range scores {
		if t := displayedValue(sc.Total, sc.TotalPredict, officialOpen); t != nil {
			totals = append(totals, *t)
		}
	}
	if len(totals) == 0 {
		return nil
	}

	low, high := totals[0], totals[0]
	for _, t := range totals[1:] {
		if t < low {
			low = t
		}
		if t > high {
			high = t
		}
	}
	start := math.Floor(low/frequencyBinWidth) * frequencyBinWidth
	binCount := int((high-start)/frequencyBinWidth) + 1

	bins := make([]FrequencyBin, binCount)
	for i := range bins {
		bins[i].Low = start + float64(i)*frequencyBinWidth
		bins[i].High = bins[i].Low + frequencyBinWidth
	}
	for _, t := range totals {
		bins[int((t-start)/frequencyBinWidth)].Count++
	}
	if ownTotal != nil {
		idx := int((*ownTotal - start) / frequencyBinWidth)
		if idx >= 0 && idx < len(bins) {
			bins[idx].IsOwn = true
		}
	}
	report.Frequency = bins
	return nil
}

// displayedValue picks the official figure once the key opens, the predicted
// one before that.
func displayedValue(official, predict *float64, officialOpen bool) *float64 {
	if officialOpen {
		return official
	}
	return predict
}

// correctRate returns the percentage of the tier that answered correctly
// under the given key, rounded to one decimal. Multi-answer keys accept any
// of their options.
func correctRate(c *scoring.Counts, key, optionCount int) float64 {
	if c == nil || key == 0 {
		return 0
	}
	rate := 0.0
	for _, opt := range scoring.AcceptableOptions(key, optionCount) {
		rate += c.Rate(opt)
	}
	return scoring.Round1(rate)
}
