package domain

// StatusSummary is the normalized KYC status of one client.
//
// Invariants:
//   - TotalRequiredDocuments() is always 2
//   - IsVerified() == HasRequiredDocuments()
//   - VerifiedDocumentCount() >= 0
//
// The zero value is not valid; use ZeroSummary or NewStatusSummary.
type StatusSummary struct {
	verifiedDocumentCount  int
	totalRequiredDocuments int
	hasRequiredDocuments   bool
	lastVerifiedOn         *Date
}

// NewStatusSummary builds a summary, deriving IsVerified from hasRequired.
// Negative counts are clamped to zero. lastVerifiedOn is copied.
func NewStatusSummary(verifiedCount int, hasRequired bool, lastVerifiedOn *Date) StatusSummary {
	if verifiedCount < 0 {
		verifiedCount = 0
	}
	s := StatusSummary{
		verifiedDocumentCount:  verifiedCount,
		totalRequiredDocuments: TotalRequiredDocuments,
		hasRequiredDocuments:   hasRequired,
	}
	if lastVerifiedOn != nil {
		d := *lastVerifiedOn
		s.lastVerifiedOn = &d
	}
	return s
}

// ZeroSummary is the "nothing verified" summary used for absent records and failed lookups.
func ZeroSummary() StatusSummary {
	return NewStatusSummary(0, false, nil)
}

// IsVerified is defined as HasRequiredDocuments.
func (s StatusSummary) IsVerified() bool {
	return s.hasRequiredDocuments
}

// VerifiedDocumentCount counts verified documents of every kind.
func (s StatusSummary) VerifiedDocumentCount() int {
	return s.verifiedDocumentCount
}

// TotalRequiredDocuments is always 2.
func (s StatusSummary) TotalRequiredDocuments() int {
	return s.totalRequiredDocuments
}

// HasRequiredDocuments is true when PAN and Aadhaar are both verified.
func (s StatusSummary) HasRequiredDocuments() bool {
	return s.hasRequiredDocuments
}

// LastVerifiedOn returns the last verification date, if the upstream reported one.
func (s StatusSummary) LastVerifiedOn() (Date, bool) {
	if s.lastVerifiedOn == nil {
		return Date{}, false
	}
	return *s.lastVerifiedOn, true
}

// Equal reports whether both summaries carry the same values.
func (s StatusSummary) Equal(other StatusSummary) bool {
	if s.verifiedDocumentCount != other.verifiedDocumentCount ||
		s.totalRequiredDocuments != other.totalRequiredDocuments ||
		s.hasRequiredDocuments != other.hasRequiredDocuments {
		return false
	}
	a, aok := s.LastVerifiedOn()
	b, bok := other.LastVerifiedOn()
	return aok == bok && a == b
}

// Snapshot is a full copy of cached summaries keyed by client.
type Snapshot map[ClientID]StatusSummary

// Clone returns an independent copy. Summaries are values, so a shallow copy suffices.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, summary := range s {
		out[id] = summary
	}
	return out
}
