package services

import (
	"errors"
	"testing"
)

func TestGetStudentReportPredictPhase(t *testing.T) {
	fx := newFixture(t)
	fx.register("user-1", "Kim")
	fx.register("user-2", "Lee")
	fx.register("user-3", "Park")
	fx.confirm("user-1", "kor", []int{1, 2, 3})
	fx.confirm("user-2", "kor", []int{1, 2, 4})
	fx.confirm("user-3", "kor", []int{1, 3, 4})
	if _, err := fx.recompute.Run(fx.ctx, fx.exam.ID, ScopeAll, "test"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	report, err := fx.reports.GetStudentReport(fx.ctx, "user-2", fx.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if report.OfficialOpen {
		t.Error("official flag set while the key is closed")
	}
	if got := floatValue(t, report.Total.ScorePredict); got != 15 {
		t.Errorf("total predicted score = %v, want 15", got)
	}
	if got := floatValue(t, report.Total.Score); got != 15 {
		t.Errorf("displayed total = %v, want the predicted 15", got)
	}
	if report.Total.Rank != 1 || report.Total.Participants != 3 {
		t.Errorf("standing = %d/%d, want 1/3", report.Total.Rank, report.Total.Participants)
	}

	if len(report.Subjects) != 2 {
		t.Fatalf("subjects = %d, want 2", len(report.Subjects))
	}
	kor := report.Subjects[0]
	if kor.Code != "kor" || floatValue(t, kor.ScorePredict) != 15 || kor.Rank != 1 {
		t.Errorf("kor section = %+v, want predicted 15 rank 1", kor)
	}
	eng := report.Subjects[1]
	if eng.ScorePredict != nil || eng.Rank != 0 {
		t.Errorf("unconfirmed eng section = %+v, want empty", eng)
	}

	if len(report.Problems) != 3 {
		t.Fatalf("problem rows = %d, want 3", len(report.Problems))
	}
	p1 := report.Problems[0]
	if p1.AnswerPredict != 1 || !p1.IsCorrect || p1.RateAll != 100 {
		t.Errorf("problem 1 = %+v, want predict 1 correct rate 100", p1)
	}
	if p1.AnswerOfficial != 0 {
		t.Error("official answer exposed while the key is closed")
	}
	p3 := report.Problems[2]
	if p3.AnswerPredict != 4 || p3.RateAll != 66.7 {
		t.Errorf("problem 3 = %+v, want predict 4 rate 66.7", p3)
	}

	// Totals 10, 15, 10 in width-5 bins.
	if len(report.Frequency) != 2 {
		t.Fatalf("frequency bins = %d, want 2", len(report.Frequency))
	}
	if report.Frequency[0].Count != 2 || report.Frequency[1].Count != 1 {
		t.Errorf("bin counts = %d/%d, want 2/1", report.Frequency[0].Count, report.Frequency[1].Count)
	}
	if !report.Frequency[1].IsOwn || report.Frequency[0].IsOwn {
		t.Error("own bin not marked on the student's total")
	}
}

func TestGetStudentReportOfficialPhase(t *testing.T) {
	fx := newFixture(t)
	fx.register("user-1", "Kim")
	fx.register("user-3", "Park")
	fx.confirm("user-1", "kor", []int{1, 2, 3})
	fx.confirm("user-3", "kor", []int{1, 3, 4})

	if _, err := fx.recompute.UpdateOfficialAnswers(fx.ctx, fx.exam.ID, []AnswerKeyEntry{
		{SubjectCode: "kor", Number: 1, Answer: 1},
		{SubjectCode: "kor", Number: 2, Answer: 3},
		{SubjectCode: "kor", Number: 3, Answer: 4},
	}); err != nil {
		t.Fatalf("upload key: %v", err)
	}
	fx.openOfficial()
	if _, err := fx.recompute.Run(fx.ctx, fx.exam.ID, ScopeAll, "test"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	report, err := fx.reports.GetStudentReport(fx.ctx, "user-3", fx.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.OfficialOpen {
		t.Fatal("official flag not set")
	}
	if got := floatValue(t, report.Total.Score); got != 15 {
		t.Errorf("official total = %v, want 15", got)
	}
	if report.Problems[1].AnswerOfficial != 3 {
		t.Errorf("problem 2 official answer = %d, want 3", report.Problems[1].AnswerOfficial)
	}
	if !report.Problems[1].IsCorrect {
		t.Error("problem 2 graded wrong for the student matching the official key")
	}
}

func TestGetStudentReportErrors(t *testing.T) {
	fx := newFixture(t)

	if _, err := fx.reports.GetStudentReport(fx.ctx, "nobody", fx.exam.ID); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unregistered: got %v, want ErrNotRegistered", err)
	}
	if _, err := fx.reports.GetStudentReport(fx.ctx, "nobody", 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing exam: got %v, want ErrNotFound", err)
	}
}
