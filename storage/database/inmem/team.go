package inmemdb

import (
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/team"
)

var (
	teamPKCount       int
	membershipPKCount int
	nodePKCount       int
	reviewMapPKCount  int
	signupPKCount     int
)

type teamRepository struct {
	db *teamTable
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{db: db.team}
}

func (repo *teamRepository) CreateTeam(t team.Team) (team.Team, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	teamPKCount++
	t.ID = teamPKCount
	repo.db.table[t.ID] = &t

	nodePKCount++
	repo.db.nodes[nodePKCount] = &team.Node{
		ID:       nodePKCount,
		ParentID: t.Scope.ID,
		Kind:     team.NodeTeam,
		ObjectID: t.ID,
	}
	return t, nil
}

func (repo *teamRepository) GetTeamByID(id int) (team.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return team.Team{}, team.ErrNotFound
}

func (repo *teamRepository) GetTeamByName(scope academia.Scope, name string) (team.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.table {
		if t.Scope == scope && t.Name == name {
			return *t, nil
		}
	}
	return team.Team{}, team.ErrNotFound
}

func (repo *teamRepository) QueryTeamsByScope(scope academia.Scope) ([]team.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teams := make([]team.Team, 0)
	for _, t := range repo.db.table {
		if t.Scope == scope {
			teams = append(teams, *t)
		}
	}
	return teams, nil
}

func (repo *teamRepository) QueryTeamNamesByPrefix(prefix string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	names := make([]string, 0)
	for _, t := range repo.db.table {
		if strings.HasPrefix(t.Name, prefix+"_") {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

func (repo *teamRepository) UpdateTeam(t team.Team) (team.Team, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[t.ID]; !ok {
		return team.Team{}, team.ErrNotFound
	}
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *teamRepository) DeleteTeam(id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return team.ErrNotFound
	}
	delete(repo.db.table, id)

	for mID, m := range repo.db.memberships {
		if m.TeamID == id {
			delete(repo.db.memberships, mID)
			repo.deleteNode(team.NodeMember, mID)
		}
	}
	repo.deleteNode(team.NodeTeam, id)
	for sID, s := range repo.db.signups {
		if s.TeamID == id {
			delete(repo.db.signups, sID)
		}
	}
	for rmID, rm := range repo.db.reviewMaps {
		if rm.RevieweeTeamID == id || rm.Reviewer.TeamID == id {
			delete(repo.db.reviewMaps, rmID)
		}
	}
	return nil
}

func (repo *teamRepository) deleteNode(kind team.NodeKind, objectID int) {
	for nID, n := range repo.db.nodes {
		if n.Kind == kind && n.ObjectID == objectID {
			delete(repo.db.nodes, nID)
		}
	}
}

func (repo *teamRepository) NextDirectoryNum(scope academia.Scope) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	max := 0
	for _, t := range repo.db.table {
		if t.Scope == scope && t.DirectoryNum.Valid && t.DirectoryNum.Int >= max {
			max = t.DirectoryNum.Int + 1
		}
	}
	return max, nil
}

func (repo *teamRepository) CreateMembership(m team.Membership, capacity int) (team.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if capacity > 0 {
		size := 0
		for _, existing := range repo.db.memberships {
			if existing.TeamID == m.TeamID {
				size++
			}
		}
		if size >= capacity {
			return team.Membership{}, team.ErrTeamFull
		}
	}

	membershipPKCount++
	m.ID = membershipPKCount
	repo.db.memberships[m.ID] = &m

	nodePKCount++
	repo.db.nodes[nodePKCount] = &team.Node{
		ID:       nodePKCount,
		ParentID: m.TeamID,
		Kind:     team.NodeMember,
		ObjectID: m.ID,
	}
	return m, nil
}

func (repo *teamRepository) GetMembershipByID(id int) (team.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.memberships[id]; ok {
		return *m, nil
	}
	return team.Membership{}, team.ErrMembershipNotFound
}

func (repo *teamRepository) QueryMembershipsByTeam(teamID int) ([]team.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mships := make([]team.Membership, 0)
	for _, m := range repo.db.memberships {
		if m.TeamID == teamID {
			mships = append(mships, *m)
		}
	}
	return mships, nil
}

func (repo *teamRepository) QueryMembershipsByParticipant(participantID int) ([]team.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mships := make([]team.Membership, 0)
	for _, m := range repo.db.memberships {
		if m.ParticipantID == participantID {
			mships = append(mships, *m)
		}
	}
	return mships, nil
}

func (repo *teamRepository) UpdateMembershipDuty(id int, duty null.String) (team.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m, ok := repo.db.memberships[id]
	if !ok {
		return team.Membership{}, team.ErrMembershipNotFound
	}
	m.Duty = duty
	return *m, nil
}

func (repo *teamRepository) DeleteMemberships(teamID int, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		m, ok := repo.db.memberships[id]
		if !ok || m.TeamID != teamID {
			continue
		}
		delete(repo.db.memberships, id)
		repo.deleteNode(team.NodeMember, id)
	}
	return nil
}

func (repo *teamRepository) CountScopeTeamMemberships(scope academia.Scope, participantIDs []int) (map[int]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[int]int, len(participantIDs))
	for _, id := range participantIDs {
		counts[id] = 0
	}
	for _, m := range repo.db.memberships {
		if _, wanted := counts[m.ParticipantID]; !wanted {
			continue
		}
		if t, ok := repo.db.table[m.TeamID]; ok && t.Scope == scope {
			counts[m.ParticipantID]++
		}
	}
	return counts, nil
}

func (repo *teamRepository) GetTeamTopicID(teamID int) (null.Int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.signups {
		if s.TeamID == teamID {
			return null.IntFrom(s.TopicID), nil
		}
	}
	return null.Int{}, nil
}

func (repo *teamRepository) CreateReviewMap(rm team.ReviewMap) (team.ReviewMap, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	reviewMapPKCount++
	rm.ID = reviewMapPKCount
	repo.db.reviewMaps[rm.ID] = &rm
	return rm, nil
}
