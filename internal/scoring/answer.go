package scoring

// Answer value conventions shared across the service:
//
//	0            unanswered (blank)
//	1..N         a single marked option, N = option count of the exam
//	multi-digit  an official key accepting several options, encoded by
//	             concatenating the option digits (13 accepts {1, 3})
//
// A student submission is never multi-digit; anything outside 0..N on the
// submission side is treated as a multiple-mark spoil.

// AcceptableOptions expands an official answer value into the set of options
// accepted as correct. A value of zero (key not yet entered) or a malformed
// encoding (any digit outside 1..optionCount) yields an empty set, so a
// broken key can never mark a submission correct.
func AcceptableOptions(answer, optionCount int) []int {
	if answer <= 0 || optionCount <= 0 {
		return nil
	}
	if answer <= optionCount {
		return []int{answer}
	}
	var opts []int
	seen := make(map[int]bool)
	for rest := answer; rest > 0; rest /= 10 {
		d := rest % 10
		if d < 1 || d > optionCount {
			return nil
		}
		if !seen[d] {
			seen[d] = true
			opts = append(opts, d)
		}
	}
	// digits were consumed least significant first
	for i, j := 0, len(opts)-1; i < j; i, j = i+1, j-1 {
		opts[i], opts[j] = opts[j], opts[i]
	}
	return opts
}

// IsCorrect reports whether a submitted option is accepted by the official
// answer. Blank and multiple-mark submissions are never correct.
func IsCorrect(official, chosen, optionCount int) bool {
	if chosen < 1 || chosen > optionCount {
		return false
	}
	for _, o := range AcceptableOptions(official, optionCount) {
		if o == chosen {
			return true
		}
	}
	return false
}

// CountCorrect pairs submissions with official answers by position and counts
// the correct ones. A length mismatch grades only the overlapping prefix.
func CountCorrect(chosen, official []int, optionCount int) int {
	n := len(chosen)
	if len(official) < n {
		n = len(official)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if IsCorrect(official[i], chosen[i], optionCount) {
			correct++
		}
	}
	return correct
}

// SubjectScore converts a correct-answer count into subject points.
func SubjectScore(correct int, weight float64) float64 {
	return float64(correct) * weight
}

// CompositeTotal sums the subject scores that are present. It returns nil
// only when every subject is absent, so a student graded in at least one
// subject always has a total.
func CompositeTotal(subjects map[string]*float64) *float64 {
	var total float64
	any := false
	for _, s := range subjects {
		if s != nil {
			total += *s
			any = true
		}
	}
	if !any {
		return nil
	}
	return &total
}
