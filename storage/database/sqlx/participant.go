package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
)

type participantRow struct {
	ID                int       `db:"id"`
	UserID            string    `db:"user_id"`
	AssignmentID      null.Int  `db:"assignment_id"`
	CourseID          null.Int  `db:"course_id"`
	Handle            string    `db:"handle"`
	CanSubmit         bool      `db:"can_submit"`
	CanReview         bool      `db:"can_review"`
	CanTakeQuiz       bool      `db:"can_take_quiz"`
	CanMentor         bool      `db:"can_mentor"`
	PermissionGranted bool      `db:"permission_granted"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r participantRow) toParticipant() participant.Participant {
	return participant.Participant{
		ID:                r.ID,
		UserID:            r.UserID,
		Scope:             scopeFromIDs(r.AssignmentID, r.CourseID),
		Handle:            r.Handle,
		CanSubmit:         r.CanSubmit,
		CanReview:         r.CanReview,
		CanTakeQuiz:       r.CanTakeQuiz,
		CanMentor:         r.CanMentor,
		PermissionGranted: r.PermissionGranted,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type participantRepository struct {
	db *sqlx.DB
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *sqlx.DB) participant.Repository {
	return &participantRepository{db: db}
}

func (repo *participantRepository) CreateParticipant(prt participant.Participant) (participant.Participant, error) {
	asmID, crsID := scopeIDs(prt.Scope)
	q := `
		INSERT INTO participants (user_id, assignment_id, course_id, handle, can_submit, can_review, can_take_quiz, can_mentor, permission_granted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := repo.db.Get(
		&prt.ID, q, prt.UserID, asmID, crsID, prt.Handle, prt.CanSubmit, prt.CanReview,
		prt.CanTakeQuiz, prt.CanMentor, prt.PermissionGranted, prt.CreatedAt, prt.UpdatedAt,
	)
	if err != nil {
		return participant.Participant{}, errors.Wrap(err, "creating participant")
	}
	return prt, nil
}

func (repo *participantRepository) GetParticipantByID(id int) (participant.Participant, error) {
	var r participantRow
	if err := repo.db.Get(&r, `SELECT * FROM participants WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return participant.Participant{}, participant.ErrNotFound
		}
		return participant.Participant{}, errors.Wrap(err, "getting participant")
	}
	return r.toParticipant(), nil
}

func (repo *participantRepository) GetParticipantByUserAndScope(userID string, scope academia.Scope) (participant.Participant, error) {
	var r participantRow
	q := `SELECT * FROM participants WHERE user_id = $1 AND ` + scopeCond(scope, "$2")
	if err := repo.db.Get(&r, q, userID, scope.ID); err != nil {
		if err == sql.ErrNoRows {
			return participant.Participant{}, participant.ErrNotFound
		}
		return participant.Participant{}, errors.Wrap(err, "getting participant")
	}
	return r.toParticipant(), nil
}

func (repo *participantRepository) QueryParticipantsByScope(scope academia.Scope) ([]participant.Participant, error) {
	var rows []participantRow
	q := `SELECT * FROM participants WHERE ` + scopeCond(scope, "$1") + ` ORDER BY id`
	if err := repo.db.Select(&rows, q, scope.ID); err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	prts := make([]participant.Participant, 0, len(rows))
	for _, r := range rows {
		prts = append(prts, r.toParticipant())
	}
	return prts, nil
}

func (repo *participantRepository) HandleExists(scope academia.Scope, handle string, excluded ...participant.Participant) (bool, error) {
	exclIDs := make([]int64, 0, len(excluded))
	for _, prt := range excluded {
		exclIDs = append(exclIDs, int64(prt.ID))
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM participants WHERE handle = $1 AND NOT (id = ANY($2)) AND ` + scopeCond(scope, "$3") + `)`
	if err := repo.db.Get(&exists, q, handle, pq.Array(exclIDs), scope.ID); err != nil {
		return false, errors.Wrap(err, "checking handle")
	}
	return exists, nil
}

func (repo *participantRepository) UpdateParticipant(prt participant.Participant) (participant.Participant, error) {
	q := `
		UPDATE participants
		SET handle = $2, can_submit = $3, can_review = $4, can_take_quiz = $5, can_mentor = $6, permission_granted = $7, updated_at = $8
		WHERE id = $1`
	res, err := repo.db.Exec(
		q, prt.ID, prt.Handle, prt.CanSubmit, prt.CanReview, prt.CanTakeQuiz,
		prt.CanMentor, prt.PermissionGranted, prt.UpdatedAt,
	)
	if err != nil {
		return participant.Participant{}, errors.Wrap(err, "updating participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return participant.Participant{}, participant.ErrNotFound
	}
	return prt, nil
}

func (repo *participantRepository) DeleteParticipant(id int) error {
	res, err := repo.db.Exec(`DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return participant.ErrNotFound
	}
	return nil
}

func (repo *participantRepository) HasResponseMaps(id int) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM response_maps WHERE participant_id = $1)`
	if err := repo.db.Get(&exists, q, id); err != nil {
		return false, errors.Wrap(err, "checking response maps")
	}
	return exists, nil
}

func (repo *participantRepository) DeleteResponseMapsFor(id int) error {
	_, err := repo.db.Exec(`DELETE FROM response_maps WHERE participant_id = $1`, id)
	return errors.Wrap(err, "deleting response maps")
}

func (repo *participantRepository) IsTeamMember(id int) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM team_memberships WHERE participant_id = $1)`
	if err := repo.db.Get(&exists, q, id); err != nil {
		return false, errors.Wrap(err, "checking team membership")
	}
	return exists, nil
}

func (repo *participantRepository) DeleteMembershipsFor(id int) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		DELETE FROM nodes
		WHERE kind = $1 AND object_id IN (SELECT id FROM team_memberships WHERE participant_id = $2)`
	if _, err = tx.Exec(q, team.NodeMember, id); err != nil {
		return errors.Wrap(err, "deleting member nodes")
	}
	if _, err = tx.Exec(`DELETE FROM team_memberships WHERE participant_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting memberships")
	}
	return errors.Wrap(tx.Commit(), "committing")
}
