package academia

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core"
)

// ScopeKind discriminates the two enclosing scopes a participant or
// team may belong to.
type ScopeKind string

const (
	ScopeAssignment ScopeKind = "assignment"
	ScopeCourse     ScopeKind = "course"
)

// Scope identifies the assignment or course an entity is bound to.
// A valid Scope references exactly one of the two; this is the
// "context XOR" rule enforced on participants and teams.
type Scope struct {
	Kind ScopeKind `json:"kind" validate:"required,oneof=assignment course"`
	ID   int       `json:"id" validate:"required,min=1"`
}

func (s Scope) IsAssignment() bool { return s.Kind == ScopeAssignment }
func (s Scope) IsCourse() bool     { return s.Kind == ScopeCourse }
func (s Scope) IsZero() bool       { return s.Kind == "" && s.ID == 0 }

func (s Scope) Validate() error { return core.Validate.Struct(s) }

type Assignment struct {
	ID                   int       `json:"id"`
	Name                 string    `json:"name"`
	CourseID             null.Int  `json:"course_id"`
	MaxTeamSize          int       `json:"max_team_size"`
	AutoAssignMentor     bool      `json:"auto_assign_mentor"`
	TeamReviewingEnabled bool      `json:"team_reviewing_enabled"`
	HasTopics            bool      `json:"has_topics"`
	DirectoryPath        string    `json:"directory_path"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
}

func (a Assignment) Scope() Scope {
	return Scope{Kind: ScopeAssignment, ID: a.ID}
}

type Course struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (c Course) Scope() Scope {
	return Scope{Kind: ScopeCourse, ID: c.ID}
}
