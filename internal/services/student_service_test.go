package services

import (
	"errors"
	"testing"

	"github.com/gosi-lab/predict-service/internal/models"
)

func TestRegisterCreatesResultRows(t *testing.T) {
	fx := newFixture(t)

	student, err := fx.students.Register(fx.ctx, "user-1", fx.exam.ID, RegisterRequest{Name: "Kim", Serial: "A-17"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if student.ID == 0 {
		t.Fatal("student ID not assigned")
	}

	// Registration provisions the empty score and rank rows.
	if _, err := fx.repo.Score().GetByStudent(fx.ctx, student.ID); err != nil {
		t.Errorf("score row missing: %v", err)
	}
	if _, err := fx.repo.Rank().GetByStudent(fx.ctx, student.ID); err != nil {
		t.Errorf("rank row missing: %v", err)
	}

	loaded, err := fx.students.Get(fx.ctx, "user-1", fx.exam.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != "Kim" || loaded.Serial != "A-17" {
		t.Errorf("loaded student = %q/%q, want Kim/A-17", loaded.Name, loaded.Serial)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	fx := newFixture(t)
	fx.register("user-1", "Kim")

	_, err := fx.students.Register(fx.ctx, "user-1", fx.exam.ID, RegisterRequest{Name: "Kim"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.students.Register(fx.ctx, "user-1", fx.exam.ID, RegisterRequest{Name: ""})
	if err == nil {
		t.Fatal("expected validation error for empty name")
	}
	if _, getErr := fx.students.Get(fx.ctx, "user-1", fx.exam.ID); !errors.Is(getErr, ErrNotRegistered) {
		t.Error("student created despite validation failure")
	}
}

func TestRegisterClosedExams(t *testing.T) {
	fx := newFixture(t)

	inactive := &models.Exam{Year: 2025, Round: 9, Name: "archived", OptionCount: 5, IsActive: false}
	if err := fx.repo.Exam().Create(fx.ctx, inactive); err != nil {
		t.Fatalf("seed inactive exam: %v", err)
	}
	if _, err := fx.students.Register(fx.ctx, "user-1", inactive.ID, RegisterRequest{Name: "Kim"}); !errors.Is(err, ErrExamNotActive) {
		t.Errorf("inactive exam: got %v, want ErrExamNotActive", err)
	}

	unopened := &models.Exam{Year: 2027, Round: 1, Name: "future", OptionCount: 5, IsActive: true}
	if err := fx.repo.Exam().Create(fx.ctx, unopened); err != nil {
		t.Fatalf("seed unopened exam: %v", err)
	}
	if _, err := fx.students.Register(fx.ctx, "user-1", unopened.ID, RegisterRequest{Name: "Kim"}); !errors.Is(err, ErrSubmissionClosed) {
		t.Errorf("unopened exam: got %v, want ErrSubmissionClosed", err)
	}

	if _, err := fx.students.Register(fx.ctx, "user-1", 9999, RegisterRequest{Name: "Kim"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing exam: got %v, want ErrNotFound", err)
	}
}
