package domain

// PairKey identifies an unordered pair of records, stored in canonical
// order: ReferenceID < CandidateID.
type PairKey struct {
	ReferenceID string
	CandidateID string
}

// NewPairKey returns the canonical key for the pair (a, b).
// The caller must not pass a == b.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{ReferenceID: a, CandidateID: b}
}

// Candidate is a pair of records suspected to describe the same business,
// together with every reason found for it, in discovery order.
// The JSON form is the export format consumed downstream.
type Candidate struct {
	ReferenceID string   `json:"referenceId"`
	CandidateID string   `json:"candidateId"`
	Reasons     []string `json:"reasons"`
}

// Key returns the pair key of the candidate.
func (c Candidate) Key() PairKey {
	return PairKey{ReferenceID: c.ReferenceID, CandidateID: c.CandidateID}
}
