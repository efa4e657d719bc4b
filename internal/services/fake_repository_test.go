package services

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/events"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

// fakeRepository is an in-memory Repository for service tests. Reads hand out
// copies so a forgotten Save shows up as stale data.
type fakeRepository struct {
	mu     sync.Mutex
	nextID uint

	exams        map[uint]*models.Exam
	problems     map[uint]*models.Problem
	students     map[uint]*models.Student
	submissions  map[uint]*models.Submission
	scores       map[uint]*models.Score
	ranks        map[uint]*models.Rank
	statistics   map[uint]*models.Statistics
	answerCounts map[uint]*models.AnswerCount
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		exams:        make(map[uint]*models.Exam),
		problems:     make(map[uint]*models.Problem),
		students:     make(map[uint]*models.Student),
		submissions:  make(map[uint]*models.Submission),
		scores:       make(map[uint]*models.Score),
		ranks:        make(map[uint]*models.Rank),
		statistics:   make(map[uint]*models.Statistics),
		answerCounts: make(map[uint]*models.AnswerCount),
	}
}

func (f *fakeRepository) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepository) Exam() repositories.ExamRepository               { return fakeExamRepo{f} }
func (f *fakeRepository) Problem() repositories.ProblemRepository         { return fakeProblemRepo{f} }
func (f *fakeRepository) Student() repositories.StudentRepository         { return fakeStudentRepo{f} }
func (f *fakeRepository) Submission() repositories.SubmissionRepository   { return fakeSubmissionRepo{f} }
func (f *fakeRepository) Score() repositories.ScoreRepository             { return fakeScoreRepo{f} }
func (f *fakeRepository) Rank() repositories.RankRepository               { return fakeRankRepo{f} }
func (f *fakeRepository) Statistics() repositories.StatisticsRepository   { return fakeStatisticsRepo{f} }
func (f *fakeRepository) AnswerCount() repositories.AnswerCountRepository { return fakeAnswerCountRepo{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ===== EXAMS =====

type fakeExamRepo struct{ f *fakeRepository }

func (r fakeExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam.ID = r.f.id()
	stored := *exam
	r.f.exams[exam.ID] = &stored
	return nil
}

func (r fakeExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *exam
	r.f.exams[exam.ID] = &stored
	return nil
}

func (r fakeExamRepo) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *exam
	copied.Subjects = append([]models.ExamSubject(nil), exam.Subjects...)
	return &copied, nil
}

func (r fakeExamRepo) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Exam
	for _, exam := range r.f.exams {
		if filters.Year != nil && exam.Year != *filters.Year {
			continue
		}
		if filters.IsActive != nil && exam.IsActive != *filters.IsActive {
			continue
		}
		copied := *exam
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r fakeExamRepo) CreateSubject(ctx context.Context, subject *models.ExamSubject) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[subject.ExamID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, s := range exam.Subjects {
		if s.Code == subject.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	subject.ID = r.f.id()
	exam.Subjects = append(exam.Subjects, *subject)
	return nil
}

// ===== PROBLEMS =====

type fakeProblemRepo struct{ f *fakeRepository }

func (r fakeProblemRepo) Create(ctx context.Context, problem *models.Problem) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, p := range r.f.problems {
		if p.ExamID == problem.ExamID && p.SubjectCode == problem.SubjectCode && p.Number == problem.Number {
			return gorm.ErrDuplicatedKey
		}
	}
	problem.ID = r.f.id()
	stored := *problem
	r.f.problems[problem.ID] = &stored
	return nil
}

func (r fakeProblemRepo) Update(ctx context.Context, problem *models.Problem) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.problems[problem.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *problem
	r.f.problems[problem.ID] = &stored
	return nil
}

func (r fakeProblemRepo) GetByExam(ctx context.Context, examID uint) ([]*models.Problem, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Problem
	for _, p := range r.f.problems {
		if p.ExamID == examID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectCode != out[j].SubjectCode {
			return out[i].SubjectCode < out[j].SubjectCode
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r fakeProblemRepo) GetByExamSubject(ctx context.Context, examID uint, subjectCode string) ([]*models.Problem, error) {
	all, err := r.GetByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	var out []*models.Problem
	for _, p := range all {
		if p.SubjectCode == subjectCode {
			out = append(out, p)
		}
	}
	return out, nil
}

// ===== STUDENTS =====

type fakeStudentRepo struct{ f *fakeRepository }

func (r fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.students {
		if s.ExamID == student.ExamID && s.UserID == student.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	student.ID = r.f.id()
	stored := *student
	r.f.students[student.ID] = &stored
	return nil
}

func (r fakeStudentRepo) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	student, ok := r.f.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *student
	return &copied, nil
}

func (r fakeStudentRepo) GetByExamAndUser(ctx context.Context, examID uint, userID string) (*models.Student, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.students {
		if s.ExamID == examID && s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeStudentRepo) ListByExam(ctx context.Context, examID uint, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Student
	for _, s := range r.f.students {
		if s.ExamID != examID {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r fakeStudentRepo) CountByExam(ctx context.Context, examID uint) (int64, error) {
	_, count, err := r.ListByExam(ctx, examID, repositories.StudentFilters{})
	return count, err
}

// ===== SUBMISSIONS =====

type fakeSubmissionRepo struct{ f *fakeRepository }

func (r fakeSubmissionRepo) BulkCreate(ctx context.Context, submissions []*models.Submission) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, sub := range submissions {
		for _, existing := range r.f.submissions {
			if existing.StudentID == sub.StudentID && existing.ProblemID == sub.ProblemID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	for _, sub := range submissions {
		sub.ID = r.f.id()
		stored := *sub
		r.f.submissions[sub.ID] = &stored
	}
	return nil
}

func (r fakeSubmissionRepo) CountByStudentSubject(ctx context.Context, studentID uint, subjectCode string) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var count int64
	for _, sub := range r.f.submissions {
		if sub.StudentID == studentID && sub.SubjectCode == subjectCode {
			count++
		}
	}
	return count, nil
}

func (r fakeSubmissionRepo) ListByStudent(ctx context.Context, studentID uint) ([]*models.Submission, error) {
	return r.list(func(sub *models.Submission) bool { return sub.StudentID == studentID })
}

func (r fakeSubmissionRepo) ListByStudentSubject(ctx context.Context, studentID uint, subjectCode string) ([]*models.Submission, error) {
	return r.list(func(sub *models.Submission) bool {
		return sub.StudentID == studentID && sub.SubjectCode == subjectCode
	})
}

func (r fakeSubmissionRepo) ListByExam(ctx context.Context, examID uint) ([]*models.Submission, error) {
	return r.list(func(sub *models.Submission) bool { return sub.ExamID == examID })
}

func (r fakeSubmissionRepo) list(match func(*models.Submission) bool) ([]*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Submission
	for _, sub := range r.f.submissions {
		if match(sub) {
			copied := *sub
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== SCORES =====

type fakeScoreRepo struct{ f *fakeRepository }

func (r fakeScoreRepo) Create(ctx context.Context, score *models.Score) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.scores {
		if s.StudentID == score.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	score.ID = r.f.id()
	stored := *score
	r.f.scores[score.ID] = &stored
	return nil
}

func (r fakeScoreRepo) Save(ctx context.Context, score *models.Score) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.scores[score.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *score
	r.f.scores[score.ID] = &stored
	return nil
}

func (r fakeScoreRepo) GetByStudent(ctx context.Context, studentID uint) (*models.Score, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.scores {
		if s.StudentID == studentID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeScoreRepo) ListByExam(ctx context.Context, examID uint) ([]*models.Score, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Score
	for _, s := range r.f.scores {
		if s.ExamID == examID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== RANKS =====

type fakeRankRepo struct{ f *fakeRepository }

func (r fakeRankRepo) Create(ctx context.Context, rank *models.Rank) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.ranks {
		if existing.StudentID == rank.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	rank.ID = r.f.id()
	stored := *rank
	r.f.ranks[rank.ID] = &stored
	return nil
}

func (r fakeRankRepo) Save(ctx context.Context, rank *models.Rank) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.ranks[rank.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *rank
	r.f.ranks[rank.ID] = &stored
	return nil
}

func (r fakeRankRepo) GetByStudent(ctx context.Context, studentID uint) (*models.Rank, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.ranks {
		if existing.StudentID == studentID {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeRankRepo) ListByExam(ctx context.Context, examID uint) ([]*models.Rank, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Rank
	for _, existing := range r.f.ranks {
		if existing.ExamID == examID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== STATISTICS =====

type fakeStatisticsRepo struct{ f *fakeRepository }

func (r fakeStatisticsRepo) Create(ctx context.Context, stats *models.Statistics) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.statistics {
		if existing.ExamID == stats.ExamID && existing.SubjectCode == stats.SubjectCode {
			return gorm.ErrDuplicatedKey
		}
	}
	stats.ID = r.f.id()
	stored := *stats
	r.f.statistics[stats.ID] = &stored
	return nil
}

func (r fakeStatisticsRepo) Save(ctx context.Context, stats *models.Statistics) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.statistics[stats.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *stats
	r.f.statistics[stats.ID] = &stored
	return nil
}

func (r fakeStatisticsRepo) GetByExamSubject(ctx context.Context, examID uint, subjectCode string) (*models.Statistics, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.statistics {
		if existing.ExamID == examID && existing.SubjectCode == subjectCode {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeStatisticsRepo) ListByExam(ctx context.Context, examID uint) ([]*models.Statistics, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Statistics
	for _, existing := range r.f.statistics {
		if existing.ExamID == examID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== ANSWER COUNTS =====

type fakeAnswerCountRepo struct{ f *fakeRepository }

func (r fakeAnswerCountRepo) Create(ctx context.Context, count *models.AnswerCount) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.answerCounts {
		if existing.ProblemID == count.ProblemID && existing.Tier == count.Tier {
			return gorm.ErrDuplicatedKey
		}
	}
	count.ID = r.f.id()
	stored := *count
	r.f.answerCounts[count.ID] = &stored
	return nil
}

func (r fakeAnswerCountRepo) Save(ctx context.Context, count *models.AnswerCount) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.answerCounts[count.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *count
	r.f.answerCounts[count.ID] = &stored
	return nil
}

func (r fakeAnswerCountRepo) GetByProblemTier(ctx context.Context, problemID uint, tier scoring.Tier) (*models.AnswerCount, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.answerCounts {
		if existing.ProblemID == problemID && existing.Tier == tier {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAnswerCountRepo) ListByExam(ctx context.Context, examID uint) ([]*models.AnswerCount, error) {
	return r.list(func(c *models.AnswerCount) bool { return c.ExamID == examID })
}

func (r fakeAnswerCountRepo) ListByProblem(ctx context.Context, problemID uint) ([]*models.AnswerCount, error) {
	return r.list(func(c *models.AnswerCount) bool { return c.ProblemID == problemID })
}

func (r fakeAnswerCountRepo) list(match func(*models.AnswerCount) bool) ([]*models.AnswerCount, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.AnswerCount
	for _, existing := range r.f.answerCounts {
		if match(existing) {
			copied := *existing
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeAnswerCountRepo) Increment(ctx context.Context, problemID uint, tiers []scoring.Tier, answer, optionCount int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, tier := range tiers {
		var row *models.AnswerCount
		for _, existing := range r.f.answerCounts {
			if existing.ProblemID == problemID && existing.Tier == tier {
				row = existing
				break
			}
		}
		if row == nil {
			return gorm.ErrRecordNotFound
		}
		cols := []*int{&row.Count0, &row.Count1, &row.Count2, &row.Count3, &row.Count4, &row.Count5}
		if answer >= 0 && answer <= optionCount && answer < len(cols) {
			*cols[answer]++
		} else {
			row.CountMultiple++
		}
		row.CountSum++
	}
	return nil
}

// ===== EVENT CAPTURE =====

// capturingPublisher records every published event for assertions.
type capturingPublisher struct {
	mu         sync.Mutex
	scores     []events.ScoreUpdatedEvent
	recomputes []events.RecomputeCompletedEvent
}

func (p *capturingPublisher) PublishScoreUpdated(ctx context.Context, event events.ScoreUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scores = append(p.scores, event)
	return nil
}

func (p *capturingPublisher) PublishRecomputeCompleted(ctx context.Context, event events.RecomputeCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recomputes = append(p.recomputes, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) scoreEvents() []events.ScoreUpdatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ScoreUpdatedEvent(nil), p.scores...)
}

func (p *capturingPublisher) recomputeEvents() []events.RecomputeCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.RecomputeCompletedEvent(nil), p.recomputes...)
}
