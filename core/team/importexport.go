package team

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/user"
)

var shuffleFunc = rand.Shuffle // mockable

// GenerateTeamName produces the next free "<prefix>_<n>" name: the
// highest existing numeric suffix for the prefix plus one, starting
// at 1. The prefix defaults to "Team".
func (svc *Service) GenerateTeamName(prefix string) (string, error) {
	prefix = core.CleanString(prefix)
	if prefix == "" {
		prefix = "Team"
	}

	names, err := svc.repo.QueryTeamNamesByPrefix(prefix)
	if err != nil {
		return "", err
	}

	var max int
	for _, name := range names {
		suffix := strings.TrimPrefix(name, prefix+"_")
		if n, err := strconv.Atoi(suffix); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s_%d", prefix, max+1), nil
}

// ImportTeam resolves or creates the row's team within the scope and
// adds each named member. A name collision is handled per
// ImportOptions.DupHandling; any other policy value aborts the row.
// An unknown member username fails the whole row.
func (svc *Service) ImportTeam(scope academia.Scope, row Row, opts ImportOptions) error {
	scopeName, err := academia.ScopeName(svc.acaRepo, scope)
	if err != nil {
		return err
	}

	var name string
	if opts.HasTeamName {
		name = core.CleanString(row.TeamName)
		if name == "" || len(row.Members) == 0 {
			return core.NewValidationError(errors.New("not enough fields on this row"))
		}

		if existing, err := svc.repo.GetTeamByName(scope, name); err == nil {
			switch opts.DupHandling {
			case DupIgnore:
				return nil
			case DupRename:
				if name, err = svc.GenerateTeamName(scopeName); err != nil {
					return err
				}
			case DupReplace:
				if err = svc.Delete(existing); err != nil {
					return pkgerrors.Wrapf(err, "replacing team %q", existing.Name)
				}
			default:
				return core.NewValidationError(
					ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
			}
		} else if pkgerrors.Cause(err) != ErrNotFound {
			return err
		}
	} else {
		if name, err = svc.GenerateTeamName(scopeName); err != nil {
			return err
		}
	}

	t, err := svc.CreateTeamAndNode(scope, name)
	if err != nil {
		return err
	}
	return svc.importMembers(t, row.Members)
}

func (svc *Service) importMembers(t Team, members []string) error {
	for _, uname := range members {
		uname = core.CleanString(uname)
		if uname == "" {
			continue
		}

		usr, err := svc.users.GetByUsername(uname)
		if err != nil {
			if pkgerrors.Cause(err) == user.ErrNotFound {
				return core.NewValidationError(fmt.Errorf("the user %q was not found", uname))
			}
			return err
		}

		added, err := svc.AddMember(t, usr)
		if err != nil {
			if pkgerrors.Cause(err) == ErrAlreadyMember {
				continue
			}
			return pkgerrors.Wrapf(err, "adding %q to team %q", uname, t.Name)
		}
		if !added {
			svc.log.Warn(fmt.Sprintf("team %q full; user %q not imported", t.Name, uname))
		}
	}
	return nil
}

// ExportTeams emits one row per team in the scope: the team name plus,
// when configured, each member's username.
func (svc *Service) ExportTeams(scope academia.Scope, opts ExportOptions) ([]Row, error) {
	teams, err := svc.repo.QueryTeamsByScope(scope)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(teams))
	for _, t := range teams {
		row := Row{TeamName: t.Name}
		if opts.IncludeMembers {
			prts, err := svc.Participants(t)
			if err != nil {
				return nil, err
			}
			for _, prt := range prts {
				usr, err := svc.users.GetByID(prt.UserID)
				if err != nil {
					return nil, pkgerrors.Wrapf(err, "resolving user for participant %d", prt.ID)
				}
				row.Members = append(row.Members, usr.Username)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateRandomTeams balances the scope's unassigned, non-mentor
// participants into teams of at least minSize: existing under-sized
// teams are topped off first (largest first) from a shuffled pool,
// then the remainder is partitioned into new teams (the last one may
// be smaller).
func (svc *Service) CreateRandomTeams(scope academia.Scope, minSize int) error {
	if minSize < 1 {
		return core.NewValidationError(errors.New("minimum team size must be at least 1"))
	}

	prts, err := svc.parts.QueryByScope(scope)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(prts))
	for _, prt := range prts {
		ids = append(ids, prt.ID)
	}
	counts, err := svc.repo.CountScopeTeamMemberships(scope, ids)
	if err != nil {
		return err
	}

	pool := make([]user.User, 0, len(prts))
	for _, prt := range prts {
		if prt.CanMentor || counts[prt.ID] > 0 {
			continue
		}
		usr, err := svc.users.GetByID(prt.UserID)
		if err != nil {
			return pkgerrors.Wrapf(err, "resolving user for participant %d", prt.ID)
		}
		pool = append(pool, usr)
	}
	shuffleFunc(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	// top off existing under-sized teams, largest first
	teams, err := svc.repo.QueryTeamsByScope(scope)
	if err != nil {
		return err
	}
	type sizedTeam struct {
		team Team
		size int
	}
	under := make([]sizedTeam, 0, len(teams))
	for _, t := range teams {
		size, err := svc.Size(t)
		if err != nil {
			return err
		}
		if size < minSize {
			under = append(under, sizedTeam{t, size})
		}
	}
	sort.Slice(under, func(i, j int) bool { return under[i].size > under[j].size })

	for _, st := range under {
		for need := minSize - st.size; need > 0 && len(pool) > 0; need-- {
			if err = svc.addFromPool(st.team, &pool); err != nil {
				return err
			}
		}
		if len(pool) == 0 {
			return nil
		}
	}

	// partition the remainder into new teams
	for len(pool) > 0 {
		name, err := svc.GenerateTeamName("Team")
		if err != nil {
			return err
		}
		t, err := svc.CreateTeamAndNode(scope, name)
		if err != nil {
			return err
		}
		for i := 0; i < minSize && len(pool) > 0; i++ {
			if err = svc.addFromPool(t, &pool); err != nil {
				return err
			}
		}
	}
	return nil
}

func (svc *Service) addFromPool(t Team, pool *[]user.User) error {
	usr := (*pool)[0]
	*pool = (*pool)[1:]
	if _, err := svc.AddMember(t, usr); err != nil {
		return pkgerrors.Wrapf(err, "adding %q to team %q", usr.Username, t.Name)
	}
	return nil
}
