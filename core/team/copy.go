package team

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kundi/core/academia"
)

// CopyMembers duplicates the source team's membership onto the
// destination team, re-resolving (or creating) a participant bound to
// the destination scope for each underlying user, preserving handles.
// The source team is never mutated.
func (svc *Service) CopyMembers(src, dst Team) error {
	prts, err := svc.Participants(src)
	if err != nil {
		return err
	}

	for _, prt := range prts {
		if _, err = svc.parts.CopyToScope(prt, dst.Scope); err != nil {
			return pkgerrors.Wrapf(err, "re-binding participant %d to destination scope", prt.ID)
		}
		usr, err := svc.users.GetByID(prt.UserID)
		if err != nil {
			return pkgerrors.Wrapf(err, "resolving user for participant %d", prt.ID)
		}

		added, err := svc.AddMember(dst, usr)
		if err != nil {
			if pkgerrors.Cause(err) == ErrAlreadyMember {
				continue
			}
			return err
		}
		if !added {
			svc.log.Warn(fmt.Sprintf("destination team %d full; user %s not copied", dst.ID, usr.ID))
		}
	}
	return nil
}

// CopyToScope duplicates the team into another scope: a new team with
// the same name is created there (mentor-capable behavior follows the
// destination assignment's auto-mentor flag) and the membership is
// copied across. Fails when the destination scope does not exist.
func (svc *Service) CopyToScope(src Team, dst academia.Scope) (Team, error) {
	if err := academia.CheckScope(svc.acaRepo, dst); err != nil {
		return Team{}, err
	}

	newTeam, err := svc.CreateTeamAndNode(dst, src.Name)
	if err != nil {
		return Team{}, err
	}
	if err = svc.CopyMembers(src, newTeam); err != nil {
		return Team{}, err
	}
	return newTeam, nil
}
