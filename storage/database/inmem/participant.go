package inmemdb

import (
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
)

var prtPKCount int

type participantRepository struct {
	db *participantTable
	tm *teamTable
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *DB) participant.Repository {
	return &participantRepository{db: db.prt, tm: db.team}
}

func (repo *participantRepository) CreateParticipant(prt participant.Participant) (participant.Participant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prtPKCount++
	prt.ID = prtPKCount
	repo.db.table[prt.ID] = &prt
	return prt, nil
}

func (repo *participantRepository) GetParticipantByID(id int) (participant.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prt, ok := repo.db.table[id]; ok {
		return *prt, nil
	}
	return participant.Participant{}, participant.ErrNotFound
}

func (repo *participantRepository) GetParticipantByUserAndScope(userID string, scope academia.Scope) (participant.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, prt := range repo.db.table {
		if prt.UserID == userID && prt.Scope == scope {
			return *prt, nil
		}
	}
	return participant.Participant{}, participant.ErrNotFound
}

func (repo *participantRepository) QueryParticipantsByScope(scope academia.Scope) ([]participant.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prts := make([]participant.Participant, 0)
	for _, prt := range repo.db.table {
		if prt.Scope == scope {
			prts = append(prts, *prt)
		}
	}
	return prts, nil
}

func (repo *participantRepository) HandleExists(scope academia.Scope, handle string, excluded ...participant.Participant) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

outer:
	for _, prt := range repo.db.table {
		if prt.Scope != scope || prt.Handle != handle {
			continue
		}
		for _, excl := range excluded {
			if prt.ID == excl.ID {
				continue outer
			}
		}
		return true, nil
	}
	return false, nil
}

func (repo *participantRepository) UpdateParticipant(prt participant.Participant) (participant.Participant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[prt.ID]; !ok {
		return participant.Participant{}, participant.ErrNotFound
	}
	repo.db.table[prt.ID] = &prt
	return prt, nil
}

func (repo *participantRepository) DeleteParticipant(id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return participant.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *participantRepository) HasResponseMaps(id int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.responseMaps[id]) > 0, nil
}

func (repo *participantRepository) DeleteResponseMapsFor(id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.responseMaps, id)
	return nil
}

func (repo *participantRepository) IsTeamMember(id int) (bool, error) {
	repo.tm.mutex.RLock()
	defer repo.tm.mutex.RUnlock()

	for _, m := range repo.tm.memberships {
		if m.ParticipantID == id {
			return true, nil
		}
	}
	return false, nil
}

func (repo *participantRepository) DeleteMembershipsFor(id int) error {
	repo.tm.mutex.Lock()
	defer repo.tm.mutex.Unlock()

	for mID, m := range repo.tm.memberships {
		if m.ParticipantID == id {
			delete(repo.tm.memberships, mID)
			for nID, n := range repo.tm.nodes {
				if n.Kind == team.NodeMember && n.ObjectID == mID {
					delete(repo.tm.nodes, nID)
				}
			}
		}
	}
	return nil
}
