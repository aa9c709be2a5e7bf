package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/team"
)

type teamRow struct {
	ID                  int            `db:"id"`
	Name                string         `db:"name"`
	AssignmentID        null.Int       `db:"assignment_id"`
	CourseID            null.Int       `db:"course_id"`
	DirectoryNum        null.Int       `db:"directory_num"`
	SubmittedHyperlinks pq.StringArray `db:"submitted_hyperlinks"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r teamRow) toTeam() team.Team {
	return team.Team{
		ID:                  r.ID,
		Name:                r.Name,
		Scope:               scopeFromIDs(r.AssignmentID, r.CourseID),
		DirectoryNum:        r.DirectoryNum,
		SubmittedHyperlinks: r.SubmittedHyperlinks,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type membershipRow struct {
	ID            int         `db:"id"`
	TeamID        int         `db:"team_id"`
	ParticipantID int         `db:"participant_id"`
	Duty          null.String `db:"duty"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (r membershipRow) toMembership() team.Membership {
	return team.Membership(r)
}

type teamRepository struct {
	db *sqlx.DB
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *sqlx.DB) team.Repository {
	return &teamRepository{db: db}
}

func (repo *teamRepository) CreateTeam(t team.Team) (team.Team, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return team.Team{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	asmID, crsID := scopeIDs(t.Scope)
	q := `
		INSERT INTO teams (name, assignment_id, course_id, directory_num, submitted_hyperlinks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = tx.Get(&t.ID, q, t.Name, asmID, crsID, t.DirectoryNum, pq.StringArray(t.SubmittedHyperlinks), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "creating team")
	}

	q = `INSERT INTO nodes (parent_id, kind, object_id) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(q, t.Scope.ID, team.NodeTeam, t.ID); err != nil {
		return team.Team{}, errors.Wrap(err, "creating team node")
	}
	if err = tx.Commit(); err != nil {
		return team.Team{}, errors.Wrap(err, "committing")
	}
	return t, nil
}

func (repo *teamRepository) GetTeamByID(id int) (team.Team, error) {
	var r teamRow
	if err := repo.db.Get(&r, `SELECT * FROM teams WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return team.Team{}, team.ErrNotFound
		}
		return team.Team{}, errors.Wrap(err, "getting team")
	}
	return r.toTeam(), nil
}

func (repo *teamRepository) GetTeamByName(scope academia.Scope, name string) (team.Team, error) {
	var r teamRow
	q := `SELECT * FROM teams WHERE name = $1 AND ` + scopeCond(scope, "$2")
	if err := repo.db.Get(&r, q, name, scope.ID); err != nil {
		if err == sql.ErrNoRows {
			return team.Team{}, team.ErrNotFound
		}
		return team.Team{}, errors.Wrap(err, "getting team")
	}
	return r.toTeam(), nil
}

func (repo *teamRepository) QueryTeamsByScope(scope academia.Scope) ([]team.Team, error) {
	var rows []teamRow
	q := `SELECT * FROM teams WHERE ` + scopeCond(scope, "$1") + ` ORDER BY id`
	if err := repo.db.Select(&rows, q, scope.ID); err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	teams := make([]team.Team, 0, len(rows))
	for _, r := range rows {
		teams = append(teams, r.toTeam())
	}
	return teams, nil
}

func (repo *teamRepository) QueryTeamNamesByPrefix(prefix string) ([]string, error) {
	var names []string
	// underscore is escaped; it is a single-char wildcard in LIKE
	q := `SELECT name FROM teams WHERE name LIKE $1`
	if err := repo.db.Select(&names, q, prefix+`\_%`); err != nil {
		return nil, errors.Wrap(err, "querying team names")
	}
	return names, nil
}

func (repo *teamRepository) UpdateTeam(t team.Team) (team.Team, error) {
	q := `
		UPDATE teams
		SET name = $2, directory_num = $3, submitted_hyperlinks = $4, updated_at = $5
		WHERE id = $1`
	res, err := repo.db.Exec(q, t.ID, t.Name, t.DirectoryNum, pq.StringArray(t.SubmittedHyperlinks), t.UpdatedAt)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "updating team")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return team.Team{}, team.ErrNotFound
	}
	return t, nil
}

func (repo *teamRepository) DeleteTeam(id int) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		DELETE FROM nodes
		WHERE kind = $1 AND object_id IN (SELECT id FROM team_memberships WHERE team_id = $2)`
	if _, err = tx.Exec(q, team.NodeMember, id); err != nil {
		return errors.Wrap(err, "deleting member nodes")
	}
	if _, err = tx.Exec(`DELETE FROM nodes WHERE kind = $1 AND object_id = $2`, team.NodeTeam, id); err != nil {
		return errors.Wrap(err, "deleting team node")
	}

	// memberships, topic signups and review maps cascade
	res, err := tx.Exec(`DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting team")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return team.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (repo *teamRepository) NextDirectoryNum(scope academia.Scope) (int, error) {
	var next int
	q := `SELECT COALESCE(MAX(directory_num) + 1, 0) FROM teams WHERE ` + scopeCond(scope, "$1")
	if err := repo.db.Get(&next, q, scope.ID); err != nil {
		return 0, errors.Wrap(err, "getting next directory num")
	}
	return next, nil
}

func (repo *teamRepository) CreateMembership(m team.Membership, capacity int) (team.Membership, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return team.Membership{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if capacity > 0 {
		// serialize concurrent inserts on the same team so the size
		// check below cannot race
		if _, err = tx.Exec(`SELECT pg_advisory_xact_lock($1)`, m.TeamID); err != nil {
			return team.Membership{}, errors.Wrap(err, "locking team")
		}

		var size int
		if err = tx.Get(&size, `SELECT COUNT(*) FROM team_memberships WHERE team_id = $1`, m.TeamID); err != nil {
			return team.Membership{}, errors.Wrap(err, "counting members")
		}
		if size >= capacity {
			return team.Membership{}, team.ErrTeamFull
		}
	}

	q := `
		INSERT INTO team_memberships (team_id, participant_id, duty, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err = tx.Get(&m.ID, q, m.TeamID, m.ParticipantID, m.Duty, m.CreatedAt); err != nil {
		return team.Membership{}, errors.Wrap(err, "creating membership")
	}

	q = `INSERT INTO nodes (parent_id, kind, object_id) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(q, m.TeamID, team.NodeMember, m.ID); err != nil {
		return team.Membership{}, errors.Wrap(err, "creating member node")
	}
	if err = tx.Commit(); err != nil {
		return team.Membership{}, errors.Wrap(err, "committing")
	}
	return m, nil
}

func (repo *teamRepository) GetMembershipByID(id int) (team.Membership, error) {
	var r membershipRow
	if err := repo.db.Get(&r, `SELECT * FROM team_memberships WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return team.Membership{}, team.ErrMembershipNotFound
		}
		return team.Membership{}, errors.Wrap(err, "getting membership")
	}
	return r.toMembership(), nil
}

func (repo *teamRepository) queryMembershipsWhere(cond string, args ...interface{}) ([]team.Membership, error) {
	var rows []membershipRow
	q := `SELECT * FROM team_memberships WHERE ` + cond + ` ORDER BY id`
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	mships := make([]team.Membership, 0, len(rows))
	for _, r := range rows {
		mships = append(mships, r.toMembership())
	}
	return mships, nil
}

func (repo *teamRepository) QueryMembershipsByTeam(teamID int) ([]team.Membership, error) {
	return repo.queryMembershipsWhere(`team_id = $1`, teamID)
}

func (repo *teamRepository) QueryMembershipsByParticipant(participantID int) ([]team.Membership, error) {
	return repo.queryMembershipsWhere(`participant_id = $1`, participantID)
}

func (repo *teamRepository) UpdateMembershipDuty(id int, duty null.String) (team.Membership, error) {
	var r membershipRow
	q := `UPDATE team_memberships SET duty = $2 WHERE id = $1 RETURNING *`
	if err := repo.db.Get(&r, q, id, duty); err != nil {
		if err == sql.ErrNoRows {
			return team.Membership{}, team.ErrMembershipNotFound
		}
		return team.Membership{}, errors.Wrap(err, "updating membership duty")
	}
	return r.toMembership(), nil
}

func (repo *teamRepository) DeleteMemberships(teamID int, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	mIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		mIDs = append(mIDs, int64(id))
	}

	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		DELETE FROM nodes
		WHERE kind = $1 AND object_id IN (SELECT id FROM team_memberships WHERE team_id = $2 AND id = ANY($3))`
	if _, err = tx.Exec(q, team.NodeMember, teamID, pq.Array(mIDs)); err != nil {
		return errors.Wrap(err, "deleting member nodes")
	}
	if _, err = tx.Exec(`DELETE FROM team_memberships WHERE team_id = $1 AND id = ANY($2)`, teamID, pq.Array(mIDs)); err != nil {
		return errors.Wrap(err, "deleting memberships")
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (repo *teamRepository) CountScopeTeamMemberships(scope academia.Scope, participantIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(participantIDs))
	prtIDs := make([]int64, 0, len(participantIDs))
	for _, id := range participantIDs {
		counts[id] = 0
		prtIDs = append(prtIDs, int64(id))
	}

	q := `
		SELECT m.participant_id, COUNT(*)
		FROM team_memberships m
		JOIN teams t ON t.id = m.team_id
		WHERE m.participant_id = ANY($1) AND t.` + scopeCond(scope, "$2") + `
		GROUP BY m.participant_id`
	rows, err := repo.db.Query(q, pq.Array(prtIDs), scope.ID)
	if err != nil {
		return nil, errors.Wrap(err, "counting memberships")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var prtID, count int
		if err = rows.Scan(&prtID, &count); err != nil {
			return nil, errors.Wrap(err, "counting memberships")
		}
		counts[prtID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "counting memberships")
	}
	return counts, nil
}

func (repo *teamRepository) GetTeamTopicID(teamID int) (null.Int, error) {
	var topicID int
	q := `SELECT topic_id FROM topic_signups WHERE team_id = $1 LIMIT 1`
	if err := repo.db.Get(&topicID, q, teamID); err != nil {
		if err == sql.ErrNoRows {
			return null.Int{}, nil
		}
		return null.Int{}, errors.Wrap(err, "getting team topic")
	}
	return null.IntFrom(topicID), nil
}

func (repo *teamRepository) CreateReviewMap(rm team.ReviewMap) (team.ReviewMap, error) {
	var prtID, teamID null.Int
	if rm.Reviewer.Kind == team.ReviewerParticipant {
		prtID = null.IntFrom(rm.Reviewer.ParticipantID)
	} else {
		teamID = null.IntFrom(rm.Reviewer.TeamID)
	}

	q := `
		INSERT INTO review_maps (reviewer_kind, reviewer_participant_id, reviewer_team_id, reviewee_team_id, assignment_id, team_reviewing_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := repo.db.Get(&rm.ID, q, rm.Reviewer.Kind, prtID, teamID, rm.RevieweeTeamID, rm.AssignmentID, rm.TeamReviewingEnabled, rm.CreatedAt)
	if err != nil {
		return team.ReviewMap{}, errors.Wrap(err, "creating review map")
	}
	return rm, nil
}
