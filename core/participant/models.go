package participant

import (
	"time"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
)

// Authorization roles, computed from the capability flags.
const (
	AuthMentor      = "mentor"
	AuthReader      = "reader"
	AuthSubmitter   = "submitter"
	AuthReviewer    = "reviewer"
	AuthParticipant = "participant"
)

// Participant is a user's identity binding within exactly one scope
// (assignment or course), carrying capability flags and a display
// handle unique within that scope.
type Participant struct {
	ID                int            `json:"id"`
	UserID            string         `json:"user_id"`
	Scope             academia.Scope `json:"scope"`
	Handle            string         `json:"handle"`
	CanSubmit         bool           `json:"can_submit"`
	CanReview         bool           `json:"can_review"`
	CanTakeQuiz       bool           `json:"can_take_quiz"`
	CanMentor         bool           `json:"can_mentor"`
	PermissionGranted bool           `json:"permission_granted"`
	CreatedAt         time.Time      `json:"created_at"` // UTC
	UpdatedAt         time.Time      `json:"updated_at"` // UTC
}

// Authorization maps the capability flags to the user-facing role.
// CanMentor wins outright; the remaining combinations are checked in
// a fixed priority order and anything unmatched is a plain participant.
func (p Participant) Authorization() string {
	switch {
	case p.CanMentor:
		return AuthMentor
	case !p.CanSubmit && p.CanReview && p.CanTakeQuiz:
		return AuthReader
	case p.CanSubmit && !p.CanReview && !p.CanTakeQuiz:
		return AuthSubmitter
	case !p.CanSubmit && p.CanReview && !p.CanTakeQuiz:
		return AuthReviewer
	default:
		return AuthParticipant
	}
}

// NewParticipant contains information needed to enroll a user into a scope.
type NewParticipant struct {
	UserID      string         `json:"user_id" validate:"required"`
	Scope       academia.Scope `json:"scope" validate:"required"`
	Handle      string         `json:"handle"`
	CanSubmit   bool           `json:"can_submit"`
	CanReview   bool           `json:"can_review"`
	CanTakeQuiz bool           `json:"can_take_quiz"`
	CanMentor   bool           `json:"can_mentor"`
}

func (np *NewParticipant) Validate() error {
	np.UserID = core.CleanString(np.UserID)
	np.Handle = core.CleanString(np.Handle)

	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	return np.Scope.Validate()
}

// ExportOptions selects the columns emitted per participant row.
type ExportOptions struct {
	PersonalDetails bool // username, full name, email
	Role            bool // computed authorization role
	Handle          bool
}
