package inmemdb

import (
	"sync"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
)

type (
	DB struct {
		user     *userTable
		academia *academiaTable
		prt      *participantTable
		team     *teamTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	academiaTable struct {
		assignments map[int]*academia.Assignment
		courses     map[int]*academia.Course
		mutex       sync.RWMutex
	}

	participantTable struct {
		table        map[int]*participant.Participant
		responseMaps map[int][]int // participant id -> response map ids
		mutex        sync.RWMutex
	}

	teamTable struct {
		table       map[int]*team.Team
		memberships map[int]*team.Membership
		nodes       map[int]*team.Node
		signups     map[int]*team.TopicSignup
		reviewMaps  map[int]*team.ReviewMap
		mutex       sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		academia: &academiaTable{
			assignments: make(map[int]*academia.Assignment),
			courses:     make(map[int]*academia.Course),
		},
		prt: &participantTable{
			table:        make(map[int]*participant.Participant),
			responseMaps: make(map[int][]int),
		},
		team: &teamTable{
			table:       make(map[int]*team.Team),
			memberships: make(map[int]*team.Membership),
			nodes:       make(map[int]*team.Node),
			signups:     make(map[int]*team.TopicSignup),
			reviewMaps:  make(map[int]*team.ReviewMap),
		},
	}
	return db, nil
}

// SeedResponseMap links a response map to a participant. Test hook;
// response maps are otherwise managed outside this subsystem.
func (db *DB) SeedResponseMap(participantID, responseMapID int) {
	db.prt.mutex.Lock()
	defer db.prt.mutex.Unlock()
	db.prt.responseMaps[participantID] = append(db.prt.responseMaps[participantID], responseMapID)
}

// SeedTopicSignup records a topic signup for a team. Test hook.
func (db *DB) SeedTopicSignup(topicID, teamID int, waitlisted bool) {
	db.team.mutex.Lock()
	defer db.team.mutex.Unlock()

	signupPKCount++
	db.team.signups[signupPKCount] = &team.TopicSignup{
		ID:         signupPKCount,
		TopicID:    topicID,
		TeamID:     teamID,
		Waitlisted: waitlisted,
	}
}
