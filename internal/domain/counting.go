package domain

// Baseline is the last accepted number and author. The zero value is unset.
type Baseline struct {
	Number    int64  `json:"number"`
	AuthorID  string `json:"author_id"`
	MessageID string `json:"message_id"`
	Set       bool   `json:"set"`
}

// Verdict is the classification of a processed submission.
type Verdict string

const (
	VerdictAccepted            Verdict = "accepted"
	VerdictAdopted             Verdict = "adopted"
	VerdictRejectedFormat      Verdict = "rejected_format"
	VerdictRejectedLeadingZero Verdict = "rejected_leading_zero"
	VerdictRejectedRate        Verdict = "rejected_rate"
	VerdictRejectedSequence    Verdict = "rejected_sequence"
	VerdictRejectedSameAuthor  Verdict = "rejected_same_author"
	VerdictDuplicate           Verdict = "duplicate"
)

// Rejected reports whether v is one of the rejection outcomes.
func (v Verdict) Rejected() bool {
	switch v {
	case VerdictRejectedFormat, VerdictRejectedLeadingZero, VerdictRejectedRate,
		VerdictRejectedSequence, VerdictRejectedSameAuthor:
		return true
	default:
		return false
	}
}

// CountEvent is what the achievement trigger sees after every processed
// submission.
type CountEvent struct {
	UserID  string
	Stats   UserStats
	Verdict Verdict
	// Number is the parsed submission; HasNumber is false for non-numeric input.
	Number    int64
	HasNumber bool
	// Previous is the baseline the submission was judged against.
	Previous Baseline
}
