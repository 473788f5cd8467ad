package entity

// MatchKind names the signal that made two candidates look alike.
type MatchKind string

const (
	MatchNone  MatchKind = "none"
	MatchName  MatchKind = "name" // exact name only; ambiguous
	MatchPhone MatchKind = "phone"
	MatchEmail MatchKind = "email"
)

// DuplicateMatch is the outcome of a duplicate lookup.
type DuplicateMatch struct {
	Kind      MatchKind
	Candidate *Candidate
}

// Found reports whether any candidate matched, ambiguous or not.
func (m DuplicateMatch) Found() bool {
	return m.Kind != MatchNone && m.Kind != "" && m.Candidate != nil
}

// Ambiguous reports a name-only match with no secondary signal.
func (m DuplicateMatch) Ambiguous() bool {
	return m.Found() && m.Kind == MatchName
}

// DuplicateNotice is the payload stored in a duplicate task's error field.
type DuplicateNotice struct {
	Duplicate      bool      `json:"duplicate"`
	CandidateID    int64     `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	CandidatePhone *string   `json:"candidate_phone"`
	CandidateEmail *string   `json:"candidate_email"`
	Message        string    `json:"message"`
	MatchKind      MatchKind `json:"match_kind"`
	Ambiguous      bool      `json:"ambiguous"`
}
