package academia

import "errors"

var (
	// errors
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrCourseNotFound     = errors.New("course not found")
)

type (
	Repository interface {
		CreateAssignment(asm Assignment) (Assignment, error)
		GetAssignmentByID(id int) (Assignment, error)
		UpdateAssignment(asm Assignment) (Assignment, error)
		CreateCourse(crs Course) (Course, error)
		GetCourseByID(id int) (Course, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetAssignment(id int) (Assignment, error) {
	return svc.repo.GetAssignmentByID(id)
}

func (svc *Service) GetCourse(id int) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

// ScopeName resolves the display name of the assignment or course a
// scope points to.
func ScopeName(repo Repository, scope Scope) (string, error) {
	if scope.IsAssignment() {
		asm, err := repo.GetAssignmentByID(scope.ID)
		if err != nil {
			return "", err
		}
		return asm.Name, nil
	}
	crs, err := repo.GetCourseByID(scope.ID)
	if err != nil {
		return "", err
	}
	return crs.Name, nil
}

// CheckScope verifies that the assignment or course a scope points to
// exists.
func CheckScope(repo Repository, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	_, err := ScopeName(repo, scope)
	return err
}
