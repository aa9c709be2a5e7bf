package team

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
)

// Team is a named group of participants scoped to one assignment or
// course. Assignment teams are capped by the assignment's max team
// size; course teams are uncapped.
type Team struct {
	ID                  int            `json:"id"`
	Name                string         `json:"name"`
	Scope               academia.Scope `json:"scope"`
	DirectoryNum        null.Int       `json:"directory_num"` // file storage slot; assignment teams only
	SubmittedHyperlinks []string       `json:"submitted_hyperlinks"`
	CreatedAt           time.Time      `json:"created_at"` // UTC
	UpdatedAt           time.Time      `json:"updated_at"` // UTC
}

// DisplayName renders the team name, anonymized when the current
// request has anonymized view enabled.
func (t Team) DisplayName(anonymized bool) string {
	if anonymized {
		return fmt.Sprintf("Anonymized_Team_%d", t.ID)
	}
	return t.Name
}

// Membership binds one participant to one team, optionally carrying a
// duty code. A participant belongs to at most one team per scope.
type Membership struct {
	ID            int         `json:"id"`
	TeamID        int         `json:"team_id"`
	ParticipantID int         `json:"participant_id"`
	Duty          null.String `json:"duty"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
}

// NodeKind discriminates tree node records.
type NodeKind string

const (
	NodeTeam   NodeKind = "team"   // scope -> team
	NodeMember NodeKind = "member" // team node -> membership
)

// Node is an auxiliary parent-pointer record mirroring team and
// membership creation, used for hierarchical listing. Team nodes hang
// off their scope, member nodes off their team's node.
type Node struct {
	ID       int      `json:"id"`
	ParentID int      `json:"parent_id"`
	Kind     NodeKind `json:"kind"`
	ObjectID int      `json:"object_id"` // team id or membership id
}

// TopicSignup records a team's (possibly waitlisted) signup for an
// assignment topic.
type TopicSignup struct {
	ID         int  `json:"id"`
	TopicID    int  `json:"topic_id"`
	TeamID     int  `json:"team_id"`
	Waitlisted bool `json:"waitlisted"`
}

// ReviewerKind discriminates the two reviewing actors.
type ReviewerKind string

const (
	ReviewerParticipant ReviewerKind = "participant"
	ReviewerTeam        ReviewerKind = "team"
)

// Reviewer is the reviewing actor for an assignment: an individual
// participant, or their whole team when the assignment has team
// reviewing enabled. It is selected once per assignment instead of
// being duck-typed onto both entities.
type Reviewer struct {
	Kind          ReviewerKind `json:"kind"`
	ParticipantID int          `json:"participant_id,omitempty"`
	TeamID        int          `json:"team_id,omitempty"`
}

// ReviewMap links a reviewer to the team under review for an assignment.
type ReviewMap struct {
	ID                   int       `json:"id"`
	Reviewer             Reviewer  `json:"reviewer"`
	RevieweeTeamID       int       `json:"reviewee_team_id"`
	AssignmentID         int       `json:"assignment_id"`
	TeamReviewingEnabled bool      `json:"team_reviewing_enabled"`
	CreatedAt            time.Time `json:"created_at"` // UTC
}

// Duplicate-team-name handling policies for imports.
const (
	DupIgnore  = "ignore"  // keep the existing team, skip member rows
	DupRename  = "rename"  // generate a fresh sequence-suffixed name
	DupReplace = "replace" // delete the existing team and reuse the name
)

// Row is one tabular import/export record: an optional team name and
// the member usernames. The surrounding column layout (CSV or
// otherwise) is a caller concern.
type Row struct {
	TeamName string
	Members  []string
}

type ImportOptions struct {
	HasTeamName bool
	DupHandling string // DupIgnore | DupRename | DupReplace; anything else aborts the row
}

type ExportOptions struct {
	IncludeMembers bool
}
