package participant

import (
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/user"
)

var (
	// errors
	ErrNotFound              = errors.New("participant not found")
	ErrAlreadyEnrolled       = errors.New("user is already enrolled in this assignment or course")
	ErrDependentAssociations = errors.New("associations exist for this participant")
)

type (
	Repository interface {
		CreateParticipant(prt Participant) (Participant, error)
		GetParticipantByID(id int) (Participant, error)
		GetParticipantByUserAndScope(userID string, scope academia.Scope) (Participant, error)
		QueryParticipantsByScope(scope academia.Scope) ([]Participant, error)
		// HandleExists reports whether another participant in `scope` already
		// uses `handle`.
		HandleExists(scope academia.Scope, handle string, excluded ...Participant) (bool, error)
		UpdateParticipant(prt Participant) (Participant, error)
		DeleteParticipant(id int) error
		// HasResponseMaps reports whether the participant is a reviewer or
		// reviewee on any response map.
		HasResponseMaps(id int) (bool, error)
		DeleteResponseMapsFor(id int) error
		// IsTeamMember reports whether the participant is bound to any team.
		IsTeamMember(id int) (bool, error)
		DeleteMembershipsFor(id int) error
	}

	Service struct {
		repo    Repository
		usrRepo user.Repository
	}
)

func NewService(repo Repository, usrRepo user.Repository) *Service {
	return &Service{repo: repo, usrRepo: usrRepo}
}

// Enroll binds a user to a scope. A user holds at most one Participant
// per scope; enrolling twice is a validation error.
func (svc *Service) Enroll(np NewParticipant) (Participant, error) {
	if err := np.Validate(); err != nil {
		return Participant{}, err
	}

	usr, err := svc.usrRepo.GetUserByID(np.UserID)
	if err != nil {
		return Participant{}, err
	}

	if _, err = svc.repo.GetParticipantByUserAndScope(usr.ID, np.Scope); err == nil {
		return Participant{}, core.NewValidationError(
			ErrAlreadyEnrolled, core.FieldError{Field: "user_id", Error: ErrAlreadyEnrolled.Error()})
	} else if err != ErrNotFound {
		return Participant{}, err
	}

	now := time.Now().UTC()
	prt := Participant{
		UserID:            usr.ID,
		Scope:             np.Scope,
		Handle:            np.Handle,
		CanSubmit:         np.CanSubmit,
		CanReview:         np.CanReview,
		CanTakeQuiz:       np.CanTakeQuiz,
		CanMentor:         np.CanMentor,
		PermissionGranted: usr.MasterPermissionGranted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	prt, err = svc.repo.CreateParticipant(prt)
	if err != nil {
		return Participant{}, err
	}
	if prt.Handle != "" {
		// seeded handle (e.g. preserved on a cross-scope copy) is kept as-is
		return prt, nil
	}
	return svc.SetHandle(prt)
}

// GetOrEnroll returns the user's participant for `scope`, creating one
// when none exists. `handle` seeds the display alias of a new binding;
// collision resolution still applies.
func (svc *Service) GetOrEnroll(userID string, scope academia.Scope, handle ...string) (Participant, error) {
	prt, err := svc.repo.GetParticipantByUserAndScope(userID, scope)
	if err == nil {
		return prt, nil
	}
	if err != ErrNotFound {
		return Participant{}, err
	}

	np := NewParticipant{UserID: userID, Scope: scope}
	if len(handle) > 0 {
		np.Handle = handle[0]
	}
	return svc.Enroll(np)
}

// SetHandle computes and persists the participant's display handle:
// the user's personal handle when set and free within the scope, the
// user's full name otherwise. Calling it again without changing the
// underlying user data yields the same handle.
func (svc *Service) SetHandle(prt Participant) (Participant, error) {
	usr, err := svc.usrRepo.GetUserByID(prt.UserID)
	if err != nil {
		return Participant{}, pkgerrors.Wrap(err, "getting participant user")
	}

	handle := usr.Handle
	if core.CleanString(handle) == "" {
		handle = usr.Name
	} else {
		taken, err := svc.repo.HandleExists(prt.Scope, handle, prt)
		if err != nil {
			return Participant{}, pkgerrors.Wrap(err, "checking handle uniqueness")
		}
		if taken {
			handle = usr.Name
		}
	}

	if prt.Handle == handle {
		return prt, nil
	}
	prt.Handle = handle
	prt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateParticipant(prt)
}

func (svc *Service) GetByID(id int) (Participant, error) {
	return svc.repo.GetParticipantByID(id)
}

func (svc *Service) GetByUserAndScope(userID string, scope academia.Scope) (Participant, error) {
	return svc.repo.GetParticipantByUserAndScope(userID, scope)
}

func (svc *Service) QueryByScope(scope academia.Scope) ([]Participant, error) {
	return svc.repo.QueryParticipantsByScope(scope)
}

// Delete removes a participant. Unless forced, it refuses when response
// maps or a team membership still reference the participant; forcing
// cascades through them.
func (svc *Service) Delete(id int, force bool) error {
	prt, err := svc.repo.GetParticipantByID(id)
	if err != nil {
		return err
	}

	hasMaps, err := svc.repo.HasResponseMaps(prt.ID)
	if err != nil {
		return err
	}
	onTeam, err := svc.repo.IsTeamMember(prt.ID)
	if err != nil {
		return err
	}

	if !force && (hasMaps || onTeam) {
		return ErrDependentAssociations
	}

	if hasMaps {
		if err = svc.repo.DeleteResponseMapsFor(prt.ID); err != nil {
			return err
		}
	}
	if onTeam {
		if err = svc.repo.DeleteMembershipsFor(prt.ID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteParticipant(prt.ID)
}

// CopyToScope re-binds the participant's user into another scope,
// preserving the handle. Participant rows are never merged or moved
// across scopes; a new one is created as needed.
func (svc *Service) CopyToScope(prt Participant, scope academia.Scope) (Participant, error) {
	return svc.GetOrEnroll(prt.UserID, scope, prt.Handle)
}

// Export emits one row per participant in the scope, with columns
// selected by `opts`.
func (svc *Service) Export(scope academia.Scope, opts ExportOptions) ([][]string, error) {
	prts, err := svc.repo.QueryParticipantsByScope(scope)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(prts))
	for _, prt := range prts {
		usr, err := svc.usrRepo.GetUserByID(prt.UserID)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "getting user for participant %d", prt.ID)
		}

		var row []string
		if opts.PersonalDetails {
			row = append(row, usr.Username, usr.Name, usr.Email)
		}
		if opts.Role {
			row = append(row, prt.Authorization())
		}
		if opts.Handle {
			row = append(row, prt.Handle)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
