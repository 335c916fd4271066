package domain

import "time"

// AnswerStatus is the review state of a submitted answer.
type AnswerStatus string

const (
	StatusPending AnswerStatus = "pending"
	// StatusSubmitted is the legacy name for pending; both mean "awaiting review".
	StatusSubmitted AnswerStatus = "submitted"
	StatusApproved  AnswerStatus = "approved"
	StatusRejected  AnswerStatus = "rejected"
)

// IsPending reports whether the answer still awaits review.
func (s AnswerStatus) IsPending() bool {
	return s == StatusPending || s == StatusSubmitted
}

// IsTerminal reports whether a reviewer has already decided the answer.
func (s AnswerStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s AnswerStatus) Valid() bool {
	return s.IsPending() || s.IsTerminal()
}

// Answer is one attempt by a leader at a question within a drill session.
type Answer struct {
	ID            string       `json:"id"`
	LeaderID      string       `json:"leaderId"`
	SessionID     string       `json:"sessionId"`
	QuestionID    string       `json:"questionId"`
	Text          string       `json:"text"`
	Status        AnswerStatus `json:"status"`
	AttemptNumber int          `json:"attemptNumber"`
	SubmittedAt   time.Time    `json:"submittedAt"`
	ReviewedAt    *time.Time   `json:"reviewedAt,omitempty"`
	ReviewedBy    *string      `json:"reviewedBy,omitempty"`
	Feedback      *string      `json:"feedback,omitempty"`
}

// AnswerFilter narrows List results. Empty fields match everything.
type AnswerFilter struct {
	LeaderID  string
	SessionID string
	Status    AnswerStatus
}

// Matches reports whether a satisfies the filter.
func (f AnswerFilter) Matches(a Answer) bool {
	if f.LeaderID != "" && a.LeaderID != f.LeaderID {
		return false
	}
	if f.SessionID != "" && a.SessionID != f.SessionID {
		return false
	}
	if f.Status != "" {
		if f.Status.IsPending() {
			return a.Status.IsPending()
		}
		return a.Status == f.Status
	}
	return true
}

// AnswerPatch carries a partial update. Nil fields are left untouched.
//
// LeaderID, SessionID, QuestionID and AttemptNumber exist only so that callers
// trying to rewrite them get ErrImmutableField instead of a silent no-op.
type AnswerPatch struct {
	Text       *string
	Status     *AnswerStatus
	ReviewedAt *time.Time
	ReviewedBy *string
	Feedback   *string

	LeaderID      *string
	SessionID     *string
	QuestionID    *string
	AttemptNumber *int

	// ExpectPending makes the update conditional on the stored answer still
	// being pending; stores check it atomically with the write.
	ExpectPending bool
}

// Validate rejects patches touching immutable fields.
func (p AnswerPatch) Validate() error {
	switch {
	case p.LeaderID != nil:
		return immutable("leaderId")
	case p.SessionID != nil:
		return immutable("sessionId")
	case p.QuestionID != nil:
		return immutable("questionId")
	case p.AttemptNumber != nil:
		return immutable("attemptNumber")
	}
	if p.Status != nil && !p.Status.Valid() {
		return ValidationErrors{{Field: "status", Message: "must be one of: pending approved rejected", Value: string(*p.Status)}}
	}
	return nil
}

// Apply merges the patch into a. Call Validate first.
func (p AnswerPatch) Apply(a Answer) Answer {
	if p.Text != nil {
		a.Text = *p.Text
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		a.ReviewedAt = &t
	}
	if p.ReviewedBy != nil {
		v := *p.ReviewedBy
		a.ReviewedBy = &v
	}
	if p.Feedback != nil {
		v := *p.Feedback
		a.Feedback = &v
	}
	return a
}

// ChangeKind labels an answer lifecycle change.
type ChangeKind string

const (
	ChangeSubmitted ChangeKind = "answer.submitted"
	ChangeApproved  ChangeKind = "answer.approved"
	ChangeRejected  ChangeKind = "answer.rejected"
	ChangeDeleted   ChangeKind = "answer.deleted"
)

// AnswerChange describes a committed mutation of the answer store.
type AnswerChange struct {
	Kind   ChangeKind
	Answer Answer
	At     time.Time
}

// Role is the drill role of an actor.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleXcon       Role = "xcon"
	RoleLeader     Role = "leader"
)

// Reviewer identifies whoever approves or rejects an answer.
type Reviewer struct {
	ID   string
	Role Role
}

// Leader is a drill participant, reviewed by at most one X-CON.
type Leader struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Team           string `json:"team,omitempty"`
	AssignedXconID string `json:"assignedXconId,omitempty"`
}

// LeaderboardEntry is a leader's standing within one session.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	LeaderID string `json:"leaderId"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Answered int    `json:"answered"`
	Approved int    `json:"approved"`
	Score    int    `json:"score"`
}

// Leaderboard is the ordered standings of a session.
type Leaderboard struct {
	SessionID         string             `json:"sessionId"`
	PointsPerApproval int                `json:"pointsPerApproval"`
	Entries           []LeaderboardEntry `json:"entries"`
}
