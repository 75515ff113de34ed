package detect

import (
	"slices"

	"github.com/sha1n/dupefinder/internal/domain"
)

// Result holds the candidates found by a detection run, in order of first
// discovery. Each unordered pair appears once with all of its reasons.
type Result struct {
	candidates []domain.Candidate
	positions  map[domain.PairKey]int
}

func newResult() *Result {
	return &Result{positions: make(map[domain.PairKey]int)}
}

// add records a reason for the pair a < b. A reason already attached to
// the pair is not repeated.
func (r *Result) add(a, b, reason string) {
	key := domain.PairKey{ReferenceID: a, CandidateID: b}
	if pos, ok := r.positions[key]; ok {
		if !slices.Contains(r.candidates[pos].Reasons, reason) {
			r.candidates[pos].Reasons = append(r.candidates[pos].Reasons, reason)
		}
		return
	}
	r.positions[key] = len(r.candidates)
	r.candidates = append(r.candidates, domain.Candidate{
		ReferenceID: a,
		CandidateID: b,
		Reasons:     []string{reason},
	})
}

// Len returns the number of candidates.
func (r *Result) Len() int {
	return len(r.candidates)
}

// Candidates returns a copy of the candidates in discovery order.
func (r *Result) Candidates() []domain.Candidate {
	out := make([]domain.Candidate, len(r.candidates))
	for i, c := range r.candidates {
		c.Reasons = append([]string(nil), c.Reasons...)
		out[i] = c
	}
	return out
}

// Lookup returns the candidate for the unordered pair (a, b).
// Only tests call it; callers outside this package use Candidates.
func (r *Result) Lookup(a, b string) (domain.Candidate, bool) {
	pos, ok := r.positions[domain.NewPairKey(a, b)]
	if !ok {
		return domain.Candidate{}, false
	}
	return r.candidates[pos], true
}
