package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
)

type assignmentRow struct {
	ID                   int       `db:"id"`
	Name                 string    `db:"name"`
	CourseID             null.Int  `db:"course_id"`
	MaxTeamSize          int       `db:"max_team_size"`
	AutoAssignMentor     bool      `db:"auto_assign_mentor"`
	TeamReviewingEnabled bool      `db:"team_reviewing_enabled"`
	HasTopics            bool      `db:"has_topics"`
	DirectoryPath        string    `db:"directory_path"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r assignmentRow) toAssignment() academia.Assignment {
	return academia.Assignment(r)
}

type academiaRepository struct {
	db *sqlx.DB
}

var _ academia.Repository = (*academiaRepository)(nil) // interface compliance check

func NewAcademiaRepository(db *sqlx.DB) academia.Repository {
	return &academiaRepository{db: db}
}

func (repo *academiaRepository) CreateAssignment(asm academia.Assignment) (academia.Assignment, error) {
	q := `
		INSERT INTO assignments (name, course_id, max_team_size, auto_assign_mentor, team_reviewing_enabled, has_topics, directory_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := repo.db.Get(
		&asm.ID, q, asm.Name, asm.CourseID, asm.MaxTeamSize, asm.AutoAssignMentor,
		asm.TeamReviewingEnabled, asm.HasTopics, asm.DirectoryPath, asm.CreatedAt, asm.UpdatedAt,
	)
	if err != nil {
		return academia.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return asm, nil
}

func (repo *academiaRepository) GetAssignmentByID(id int) (academia.Assignment, error) {
	var r assignmentRow
	if err := repo.db.Get(&r, `SELECT * FROM assignments WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return academia.Assignment{}, academia.ErrAssignmentNotFound
		}
		return academia.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return r.toAssignment(), nil
}

func (repo *academiaRepository) UpdateAssignment(asm academia.Assignment) (academia.Assignment, error) {
	q := `
		UPDATE assignments
		SET name = $2, course_id = $3, max_team_size = $4, auto_assign_mentor = $5, team_reviewing_enabled = $6, has_topics = $7, directory_path = $8, updated_at = $9
		WHERE id = $1`
	res, err := repo.db.Exec(
		q, asm.ID, asm.Name, asm.CourseID, asm.MaxTeamSize, asm.AutoAssignMentor,
		asm.TeamReviewingEnabled, asm.HasTopics, asm.DirectoryPath, asm.UpdatedAt,
	)
	if err != nil {
		return academia.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academia.Assignment{}, academia.ErrAssignmentNotFound
	}
	return asm, nil
}

func (repo *academiaRepository) CreateCourse(crs academia.Course) (academia.Course, error) {
	q := `INSERT INTO courses (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`
	if err := repo.db.Get(&crs.ID, q, crs.Name, crs.CreatedAt, crs.UpdatedAt); err != nil {
		return academia.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo *academiaRepository) GetCourseByID(id int) (academia.Course, error) {
	var crs academia.Course
	q := `SELECT id, name, created_at, updated_at FROM courses WHERE id = $1`
	if err := repo.db.QueryRowx(q, id).Scan(&crs.ID, &crs.Name, &crs.CreatedAt, &crs.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return academia.Course{}, academia.ErrCourseNotFound
		}
		return academia.Course{}, errors.Wrap(err, "getting course")
	}
	return crs, nil
}
