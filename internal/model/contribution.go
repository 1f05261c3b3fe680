package model

import "time"

// ContributionKind classifies a community contribution.
type ContributionKind string

const (
	KindTafsir  ContributionKind = "tafsir"
	KindTheme   ContributionKind = "theme"
	KindGeneric ContributionKind = "generic"
)

// Valid reports whether k is a known kind.
func (k ContributionKind) Valid() bool {
	switch k {
	case KindTafsir, KindTheme, KindGeneric:
		return true
	}
	return false
}

// ContributionStatus is the moderation state of a contribution.
//
// pending is the only non-terminal state. The only transitions are
// pending → approved and pending → rejected.
type ContributionStatus string

const (
	StatusPending  ContributionStatus = "pending"
	StatusApproved ContributionStatus = "approved"
	StatusRejected ContributionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s ContributionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is a reviewer's verdict on a pending contribution.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status returns the terminal status a decision moves a contribution to.
// ok is false for an unknown decision.
func (d Decision) Status() (status ContributionStatus, ok bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// Contribution is a tafsir note, thematic link or generic annotation.
//
// Reference is an opaque coordinate string ("2:255:3" for a word,
// "2:255-257" for a range); the core only requires it to be non-empty.
// ReviewerID is empty until a reviewer decides; auto-approved
// contributions never get one.
type Contribution struct {
	ID         string             `json:"id"`
	AuthorID   string             `json:"authorId"`
	Kind       ContributionKind   `json:"kind"`
	Reference  string             `json:"reference"`
	Content    string             `json:"content"`
	Status     ContributionStatus `json:"status"`
	ReviewerID string             `json:"reviewerId,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	ReviewedAt *time.Time         `json:"reviewedAt,omitempty"`
}
