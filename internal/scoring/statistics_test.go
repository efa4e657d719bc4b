package scoring

import "testing"

func TestCohort(t *testing.T) {
	t.Run("ten member cohort", func(t *testing.T) {
		scores := []float64{55, 60, 65, 70, 75, 80, 85, 90, 95, 100}
		got := Cohort(scores)
		want := Stat{Participants: 10, Max: 100, T10: 100, T25: 95, T50: 80, Avg: 77.5}
		if got != want {
			t.Errorf("Cohort = %+v, want %+v", got, want)
		}
	})

	t.Run("small cohort clamps thresholds to the top scorer", func(t *testing.T) {
		got := Cohort([]float64{70, 90, 80})
		want := Stat{Participants: 3, Max: 90, T10: 90, T25: 90, T50: 90, Avg: 80}
		if got != want {
			t.Errorf("Cohort = %+v, want %+v", got, want)
		}
	})

	t.Run("single member", func(t *testing.T) {
		got := Cohort([]float64{42})
		want := Stat{Participants: 1, Max: 42, T10: 42, T25: 42, T50: 42, Avg: 42}
		if got != want {
			t.Errorf("Cohort = %+v, want %+v", got, want)
		}
	})

	t.Run("empty cohort yields zero stat", func(t *testing.T) {
		if got := Cohort(nil); got != (Stat{}) {
			t.Errorf("Cohort(nil) = %+v, want zero", got)
		}
	})

	t.Run("values rounded to one decimal", func(t *testing.T) {
		got := Cohort([]float64{10.25, 10.25})
		if got.Avg != 10.3 || got.Max != 10.3 {
			t.Errorf("Cohort = %+v, want avg and max 10.3", got)
		}
	})
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{77.54, 77.5},
		{77.56, 77.6},
		{-1.25, -1.3},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); got != tt.want {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
