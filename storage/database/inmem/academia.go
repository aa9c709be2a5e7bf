package inmemdb

import (
	"github.com/trezcool/kundi/core/academia"
)

var academiaPKCount int

type academiaRepository struct {
	db *academiaTable
}

var _ academia.Repository = (*academiaRepository)(nil) // interface compliance check

func NewAcademiaRepository(db *DB) academia.Repository {
	return &academiaRepository{db: db.academia}
}

func (repo *academiaRepository) CreateAssignment(asm academia.Assignment) (academia.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	academiaPKCount++
	asm.ID = academiaPKCount
	repo.db.assignments[asm.ID] = &asm
	return asm, nil
}

func (repo *academiaRepository) GetAssignmentByID(id int) (academia.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asm, ok := repo.db.assignments[id]; ok {
		return *asm, nil
	}
	return academia.Assignment{}, academia.ErrAssignmentNotFound
}

func (repo *academiaRepository) UpdateAssignment(asm academia.Assignment) (academia.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[asm.ID]; !ok {
		return academia.Assignment{}, academia.ErrAssignmentNotFound
	}
	repo.db.assignments[asm.ID] = &asm
	return asm, nil
}

func (repo *academiaRepository) CreateCourse(crs academia.Course) (academia.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	academiaPKCount++
	crs.ID = academiaPKCount
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *academiaRepository) GetCourseByID(id int) (academia.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return academia.Course{}, academia.ErrCourseNotFound
}
