package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/cache"
	"github.com/gosi-lab/predict-service/internal/events"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

// recomputeService rebuilds stored results from the submissions of record.
// Every sub-step is diff-based: it computes fresh state, compares it
// field-by-field with the stored rows, and writes only what differs, so a
// rerun over unchanged submissions reports no change everywhere.
type recomputeService struct {
	db           *gorm.DB
	repo         repositories.Repository
	logger       *slog.Logger
	publisher    events.Publisher
	cacheManager *cache.CacheManager

	mu        sync.Mutex
	examLocks map[uint]*sync.Mutex
}

func NewRecomputeService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, publisher events.Publisher, cacheManager *cache.CacheManager) RecomputeService {
	return &recomputeService{
		db:           db,
		repo:         repo,
		logger:       logger,
		publisher:    publisher,
		cacheManager: cacheManager,
		examLocks:    make(map[uint]*sync.Mutex),
	}
}

// examLock returns the mutex serializing recomputes of one exam.
func (s *recomputeService) examLock(examID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.examLocks[examID]
	if !ok {
		lock = &sync.Mutex{}
		s.examLocks[examID] = lock
	}
	return lock
}

// examState is the full recompute input, loaded once per run.
type examState struct {
	exam        *models.Exam
	plan        scoring.ExamPlan
	problems    []*models.Problem
	submissions []*models.Submission

	problemsByID      map[uint]*models.Problem
	problemsBySubject map[string][]*models.Problem
	// byStudentSubject maps student → subject → problemID → answer
	byStudentSubject map[uint]map[string]map[uint]int

	officialOpen bool
}

func (s *recomputeService) loadState(ctx context.Context, examID uint) (*examState, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	problems, err := s.repo.Problem().GetByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.repo.Submission().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	st := &examState{
		exam:              exam,
		plan:              exam.Plan(),
		problems:          problems,
		submissions:       submissions,
		problemsByID:      make(map[uint]*models.Problem, len(problems)),
		problemsBySubject: make(map[string][]*models.Problem),
		byStudentSubject:  make(map[uint]map[string]map[uint]int),
		officialOpen:      exam.OfficialOpen(time.Now()),
	}
	for _, p := range problems {
		st.problemsByID[p.ID] = p
		st.problemsBySubject[p.SubjectCode] = append(st.problemsBySubject[p.SubjectCode], p)
	}
	for _, sub := range submissions {
		bySubject, ok := st.byStudentSubject[sub.StudentID]
		if !ok {
			bySubject = make(map[string]map[uint]int)
			st.byStudentSubject[sub.StudentID] = bySubject
		}
		byProblem, ok := bySubject[sub.SubjectCode]
		if !ok {
			byProblem = make(map[uint]int)
			bySubject[sub.SubjectCode] = byProblem
		}
		byProblem[sub.ProblemID] = sub.Answer
	}
	return st, nil
}

// Run executes the selected sub-steps in dependency order under the exam's
// recompute lock. A failing sub-step is reported and isolated; the remaining
// steps still run.
func (s *recomputeService) Run(ctx context.Context, examID uint, scope RecomputeScope, triggeredBy string) (*RecomputeReport, error) {
	lock := s.examLock(examID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.loadState(ctx, examID)
	if err != nil {
		return nil, err
	}

	type step struct {
		name string
		run  func(context.Context, *examState) StepOutcome
	}
	var steps []step
	addStep := func(name string, run func(context.Context, *examState) StepOutcome, scopes ...RecomputeScope) {
		for _, sc := range scopes {
			if sc == scope {
				steps = append(steps, step{name: name, run: run})
				return
			}
		}
	}
	addStep("score", s.updateScores, ScopeScore, ScopeResults, ScopeAll)
	addStep("rank", s.updateRanks, ScopeRank, ScopeResults, ScopeAll)
	addStep("statistics", s.updateStatistics, ScopeStatistics, ScopeResults, ScopeAll)
	addStep("answer_count", s.updateAnswerCounts, ScopeAnswerCount, ScopeAll)

	if len(steps) == 0 {
		return nil, NewValidationError("scope", fmt.Sprintf("unknown recompute scope %q", scope))
	}

	report := &RecomputeReport{
		ExamID:   examID,
		Scope:    scope,
		Outcomes: make(map[string]StepOutcome, len(steps)),
	}
	for _, step := range steps {
		outcome := step.run(ctx, st)
		report.Outcomes[step.name] = outcome
		s.logger.Info("recompute step finished",
			"exam_id", examID,
			"step", step.name,
			"status", outcome.Status,
			"created", outcome.Created,
			"updated", outcome.Updated,
			"errors", outcome.Errors)
	}

	if err := s.cacheManager.InvalidateExamResults(ctx, examID); err != nil {
		s.logger.Warn("failed to invalidate result caches", "exam_id", examID, "error", err)
	}

	outcomes := make(map[string]string, len(report.Outcomes))
	for name, o := range report.Outcomes {
		outcomes[name] = string(o.Status)
	}
	if err := s.publisher.PublishRecomputeCompleted(ctx, events.RecomputeCompletedEvent{
		ExamID:      examID,
		TriggeredBy: triggeredBy,
		Outcomes:    outcomes,
		OccurredAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish recompute event", "exam_id", examID, "error", err)
	}

	return report, nil
}

// UpdateOfficialAnswers applies a diff of the uploaded answer key: unseen
// problems are created, changed answers overwritten, identical rows left
// untouched.
func (s *recomputeService) UpdateOfficialAnswers(ctx context.Context, examID uint, entries []AnswerKeyEntry) (StepOutcome, error) {
	lock := s.examLock(examID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.loadState(ctx, examID)
	if err != nil {
		return StepOutcome{Status: StatusFailed, Message: err.Error()}, err
	}

	byKey := make(map[string]*models.Problem, len(st.problems))
	for _, p := range st.problems {
		byKey[fmt.Sprintf("%s:%d", p.SubjectCode, p.Number)] = p
	}

	var outcome StepOutcome
	for _, entry := range entries {
		subject, ok := st.plan.Subject(entry.SubjectCode)
		if !ok {
			return outcome, NewValidationError("subject_code", fmt.Sprintf("unknown subject %q", entry.SubjectCode))
		}
		if entry.Number < 1 || entry.Number > subject.ProblemCount {
			return outcome, NewValidationError("number", fmt.Sprintf("problem number %d out of range for %s", entry.Number, entry.SubjectCode))
		}

		existing, ok := byKey[fmt.Sprintf("%s:%d", entry.SubjectCode, entry.Number)]
		if !ok {
			problem := &models.Problem{
				ExamID:      examID,
				SubjectCode: entry.SubjectCode,
				Number:      entry.Number,
				Answer:      entry.Answer,
			}
			if err := s.repo.Problem().Create(ctx, problem); err != nil {
				s.logger.Error("failed to create problem from answer key",
					"exam_id", examID, "subject", entry.SubjectCode, "number", entry.Number, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Created++
			continue
		}
		if existing.Answer == entry.Answer {
			continue
		}
		existing.Answer = entry.Answer
		if err := s.repo.Problem().Update(ctx, existing); err != nil {
			s.logger.Error("failed to update problem answer",
				"exam_id", examID, "subject", entry.SubjectCode, "number", entry.Number, "error", err)
			outcome.Errors++
			continue
		}
		outcome.Updated++
	}

	outcome.Status = outcomeStatus(outcome)
	return outcome, nil
}

// ===== SUB-STEPS =====

// updateScores regrades every student from submissions: the official grading
// against the problem key, and the crowd grading against the stored predicted
// answers.
func (s *recomputeService) updateScores(ctx context.Context, st *examState) StepOutcome {
	predictAnswers := st.predictedAnswers()

	existing, err := s.repo.Score().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}
	byStudent := make(map[uint]*models.Score, len(existing))
	for _, sc := range existing {
		byStudent[sc.StudentID] = sc
	}

	var outcome StepOutcome
	for studentID, bySubject := range st.byStudentSubject {
		official := make(models.SubjectScores)
		predict := make(models.SubjectScores)
		for code, answers := range bySubject {
			subject, ok := st.plan.Subject(code)
			if !ok {
				continue
			}
			if st.officialOpen {
				official[code] = s.gradeSubject(st, subject, answers, func(p *models.Problem) int { return p.Answer })
			}
			predict[code] = s.gradeSubject(st, subject, answers, func(p *models.Problem) int { return predictAnswers[p.ID] })
		}

		row, ok := byStudent[studentID]
		if !ok {
			row = &models.Score{StudentID: studentID, ExamID: st.exam.ID}
		}
		changed := applyScore(row, official, predict)
		switch {
		case !ok:
			if err := s.repo.Score().Create(ctx, row); err != nil {
				s.logger.Error("failed to create score", "student_id", studentID, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Created++
		case changed:
			if err := s.repo.Score().Save(ctx, row); err != nil {
				s.logger.Error("failed to save score", "student_id", studentID, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Updated++
		}
	}

	outcome.Status = outcomeStatus(outcome)
	return outcome
}

// gradeSubject grades one confirmed subject against a key selector and
// returns the weighted points.
func (s *recomputeService) gradeSubject(st *examState, subject scoring.SubjectPlan, answers map[uint]int, key func(*models.Problem) int) *float64 {
	correct := 0
	for _, p := range st.problemsBySubject[subject.Code] {
		chosen, ok := answers[p.ID]
		if !ok {
			continue
		}
		if scoring.IsCorrect(key(p), chosen, st.plan.OptionCount) {
			correct++
		}
	}
	score := scoring.Round1(scoring.SubjectScore(correct, subject.Weight))
	return &score
}

// predictedAnswers derives the crowd-predicted answer per problem straight
// from the submissions, so the grading depends only on the input of record.
func (st *examState) predictedAnswers() map[uint]int {
	tallies := make(map[uint]*scoring.Counts, len(st.problems))
	for _, p := range st.problems {
		tallies[p.ID] = scoring.NewCounts(st.plan.OptionCount)
	}
	for _, sub := range st.submissions {
		if tally, ok := tallies[sub.ProblemID]; ok {
			tally.Add(sub.Answer)
		}
	}
	predicted := make(map[uint]int, len(tallies))
	for id, tally := range tallies {
		predicted[id] = tally.Predicted()
	}
	return predicted
}

// updateRanks rebuilds every student's standing from the stored scores.
func (s *recomputeService) updateRanks(ctx context.Context, st *examState) StepOutcome {
	scores, err := s.repo.Score().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}
	existing, err := s.repo.Rank().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}
	byStudent := make(map[uint]*models.Rank, len(existing))
	for _, r := range existing {
		byStudent[r.StudentID] = r
	}

	// Cohorts rank by the official grading once the key is open, by the
	// crowd grading before that.
	subjectCohorts := make(map[string]map[int64]float64)
	totalCohort := make(map[int64]float64)
	for _, sc := range scores {
		subjects, total := displayedScores(sc, st.officialOpen)
		for code, value := range subjects {
			if value == nil {
				continue
			}
			cohort, ok := subjectCohorts[code]
			if !ok {
				cohort = make(map[int64]float64)
				subjectCohorts[code] = cohort
			}
			cohort[int64(sc.StudentID)] = *value
		}
		if total != nil {
			totalCohort[int64(sc.StudentID)] = *total
		}
	}

	subjectRanks := make(map[string]map[int64]int, len(subjectCohorts))
	for code, cohort := range subjectCohorts {
		subjectRanks[code] = scoring.RankCohort(cohort, st.plan.Method)
	}
	totalRanks := scoring.RankCohort(totalCohort, st.plan.Method)
	participants := len(totalCohort)

	var outcome StepOutcome
	for _, sc := range scores {
		ranks := make(models.SubjectRanks)
		for code, cohortRanks := range subjectRanks {
			if rank, ok := cohortRanks[int64(sc.StudentID)]; ok {
				ranks[code] = rank
			}
		}
		total := totalRanks[int64(sc.StudentID)]

		row, ok := byStudent[sc.StudentID]
		if !ok {
			row = &models.Rank{StudentID: sc.StudentID, ExamID: st.exam.ID}
		}
		changed := applyRank(row, ranks, total, participants)
		switch {
		case !ok:
			if err := s.repo.Rank().Create(ctx, row); err != nil {
				s.logger.Error("failed to create rank", "student_id", sc.StudentID, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Created++
		case changed:
			if err := s.repo.Rank().Save(ctx, row); err != nil {
				s.logger.Error("failed to save rank", "student_id", sc.StudentID, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Updated++
		}
	}

	outcome.Status = outcomeStatus(outcome)
	return outcome
}

// updateStatistics rebuilds the cohort summary per subject and for the
// composite total. An empty cohort stores the zero summary.
func (s *recomputeService) updateStatistics(ctx context.Context, st *examState) StepOutcome {
	scores, err := s.repo.Score().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}

	cohorts := make(map[string][]float64)
	for _, code := range st.plan.SubjectCodes() {
		cohorts[code] = nil
	}
	cohorts[models.StatisticsSubjectTotal] = nil
	for _, sc := range scores {
		subjects, total := displayedScores(sc, st.officialOpen)
		for code, value := range subjects {
			if value != nil {
				cohorts[code] = append(cohorts[code], *value)
			}
		}
		if total != nil {
			cohorts[models.StatisticsSubjectTotal] = append(cohorts[models.StatisticsSubjectTotal], *total)
		}
	}

	var outcome StepOutcome
	for code, cohort := range cohorts {
		stat := scoring.Cohort(cohort)

		row, err := s.repo.Statistics().GetByExamSubject(ctx, st.exam.ID, code)
		if repositories.IsNotFoundError(err) {
			row = &models.Statistics{ExamID: st.exam.ID, SubjectCode: code}
			row.ApplyStat(stat)
			if err := s.repo.Statistics().Create(ctx, row); err != nil {
				s.logger.Error("failed to create statistics", "subject", code, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Created++
			continue
		}
		if err != nil {
			s.logger.Error("failed to load statistics", "subject", code, "error", err)
			outcome.Errors++
			continue
		}
		if row.ApplyStat(stat) {
			if err := s.repo.Statistics().Save(ctx, row); err != nil {
				s.logger.Error("failed to save statistics", "subject", code, "error", err)
				outcome.Errors++
				continue
			}
			outcome.Updated++
		}
	}

	outcome.Status = outcomeStatus(outcome)
	return outcome
}

// updateAnswerCounts rebuilds the per-problem answer distribution for every
// rank tier from scratch, replacing whatever the incremental bumps left.
func (s *recomputeService) updateAnswerCounts(ctx context.Context, st *examState) StepOutcome {
	ranks, err := s.repo.Rank().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}
	rankByStudent := make(map[uint]*models.Rank, len(ranks))
	for _, r := range ranks {
		rankByStudent[r.StudentID] = r
	}

	answersByProblem := make(map[uint][]scoring.RankedAnswer)
	for _, sub := range st.submissions {
		ranked := scoring.RankedAnswer{Answer: sub.Answer}
		if r, ok := rankByStudent[sub.StudentID]; ok {
			ranked.Rank = r.Total
			ranked.Participants = r.Participants
		}
		answersByProblem[sub.ProblemID] = append(answersByProblem[sub.ProblemID], ranked)
	}

	existing, err := s.repo.AnswerCount().ListByExam(ctx, st.exam.ID)
	if err != nil {
		return failedOutcome(err)
	}
	byProblemTier := make(map[uint]map[scoring.Tier]*models.AnswerCount)
	for _, c := range existing {
		if byProblemTier[c.ProblemID] == nil {
			byProblemTier[c.ProblemID] = make(map[scoring.Tier]*models.AnswerCount)
		}
		byProblemTier[c.ProblemID][c.Tier] = c
	}

	var outcome StepOutcome
	for _, problem := range st.problems {
		tallies := scoring.TallyByTier(answersByProblem[problem.ID], st.plan.OptionCount)
		for _, tier := range scoring.Tiers() {
			row := byProblemTier[problem.ID][tier]
			if row == nil {
				row = &models.AnswerCount{ProblemID: problem.ID, ExamID: st.exam.ID, Tier: tier}
				row.ApplyCounts(tallies[tier])
				if err := s.repo.AnswerCount().Create(ctx, row); err != nil {
					s.logger.Error("failed to create answer count",
						"problem_id", problem.ID, "tier", tier, "error", err)
					outcome.Errors++
					continue
				}
				outcome.Created++
				continue
			}
			if row.ApplyCounts(tallies[tier]) {
				if err := s.repo.AnswerCount().Save(ctx, row); err != nil {
					s.logger.Error("failed to save answer count",
						"problem_id", problem.ID, "tier", tier, "error", err)
					outcome.Errors++
					continue
				}
				outcome.Updated++
			}
		}
	}

	outcome.Status = outcomeStatus(outcome)
	return outcome
}

// ===== HELPERS =====

func failedOutcome(err error) StepOutcome {
	return StepOutcome{Status: StatusFailed, Errors: 1, Message: err.Error()}
}

func outcomeStatus(o StepOutcome) StepStatus {
	switch {
	case o.Created+o.Updated > 0:
		return StatusUpdated
	case o.Errors > 0:
		return StatusFailed
	default:
		return StatusNoChange
	}
}

// displayedScores picks the grading a cohort is currently judged by.
func displayedScores(sc *models.Score, officialOpen bool) (models.SubjectScores, *float64) {
	if officialOpen {
		return sc.Subjects.Data(), sc.Total
	}
	return sc.SubjectsPredict.Data(), sc.TotalPredict
}

// applyScore overwrites a score row from freshly computed gradings and
// reports whether anything changed.
func applyScore(row *models.Score, official, predict models.SubjectScores) bool {
	total := scoring.CompositeTotal(official)
	totalPredict := scoring.CompositeTotal(predict)

	changed := !equalSubjectScores(row.Subjects.Data(), official) ||
		!equalSubjectScores(row.SubjectsPredict.Data(), predict) ||
		!equalFloatPtr(row.Total, total) ||
		!equalFloatPtr(row.TotalPredict, totalPredict)
	if !changed {
		return false
	}

	row.Subjects = datatypes.NewJSONType(official)
	row.SubjectsPredict = datatypes.NewJSONType(predict)
	row.Total = total
	row.TotalPredict = totalPredict
	return true
}

// applyRank overwrites a rank row and reports whether anything changed.
func applyRank(row *models.Rank, subjects models.SubjectRanks, total, participants int) bool {
	changed := !equalSubjectRanks(row.Subjects.Data(), subjects) ||
		row.Total != total ||
		row.Participants != participants
	if !changed {
		return false
	}

	row.Subjects = datatypes.NewJSONType(subjects)
	row.Total = total
	row.Participants = participants
	return true
}

func equalSubjectScores(a, b models.SubjectScores) bool {
	if len(a) != len(b) {
		return false
	}
	for code, av := range a {
		bv, ok := b[code]
		if !ok || !equalFloatPtr(av, bv) {
			return false
		}
	}
	return true
}

func equalSubjectRanks(a, b models.SubjectRanks) bool {
	if len(a) != len(b) {
		return false
	}
	for code, av := range a {
		if bv, ok := b[code]; !ok || av != bv {
			return false
		}
	}
	return true
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
