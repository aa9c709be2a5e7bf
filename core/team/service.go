package team

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("team not found")
	ErrMembershipNotFound = errors.New("team membership not found")
	ErrNameExists         = errors.New("a team with this name already exists")
	ErrAlreadyMember      = errors.New("user is already a member of this team")
	ErrParticipantMissing = errors.New("participant not found for user in this assignment or course")
	// ErrTeamFull reports a membership insert that lost the capacity
	// race under the team-scoped lock; AddMember translates it to a
	// plain "not added" result.
	ErrTeamFull = errors.New("team is at capacity")
)

type (
	Repository interface {
		// CreateTeam persists the team and its tree Node atomically.
		CreateTeam(t Team) (Team, error)
		GetTeamByID(id int) (Team, error)
		GetTeamByName(scope academia.Scope, name string) (Team, error)
		QueryTeamsByScope(scope academia.Scope) ([]Team, error)
		// QueryTeamNamesByPrefix returns all team names starting with
		// "<prefix>_", across scopes.
		QueryTeamNamesByPrefix(prefix string) ([]string, error)
		UpdateTeam(t Team) (Team, error)
		// DeleteTeam cascades memberships, tree nodes, review maps and
		// topic signups.
		DeleteTeam(id int) error
		NextDirectoryNum(scope academia.Scope) (int, error)

		// CreateMembership persists the membership and its member Node
		// atomically. A capacity > 0 is re-checked under a team-scoped
		// lock; ErrTeamFull reports a lost race. capacity <= 0 means
		// uncapped.
		CreateMembership(m Membership, capacity int) (Membership, error)
		GetMembershipByID(id int) (Membership, error)
		QueryMembershipsByTeam(teamID int) ([]Membership, error)
		QueryMembershipsByParticipant(participantID int) ([]Membership, error)
		UpdateMembershipDuty(id int, duty null.String) (Membership, error)
		DeleteMemberships(teamID int, ids ...int) error

		// CountScopeTeamMemberships returns, per given participant, the
		// number of teams in `scope` they belong to. Participants with
		// no membership map to 0.
		CountScopeTeamMemberships(scope academia.Scope, participantIDs []int) (map[int]int, error)
		GetTeamTopicID(teamID int) (null.Int, error)
		CreateReviewMap(rm ReviewMap) (ReviewMap, error)
	}

	Service struct {
		repo    Repository
		acaRepo academia.Repository
		parts   *participant.Service
		users   *user.Service
		mail    core.EmailService
		conf    *core.Config
		log     core.Logger
	}
)

func NewService(
	repo Repository,
	acaRepo academia.Repository,
	parts *participant.Service,
	users *user.Service,
	mail core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		acaRepo: acaRepo,
		parts:   parts,
		users:   users,
		mail:    mail,
		conf:    conf,
		log:     logger,
	}
}

func (svc *Service) GetByID(id int) (Team, error) {
	return svc.repo.GetTeamByID(id)
}

func (svc *Service) QueryByScope(scope academia.Scope) ([]Team, error) {
	return svc.repo.QueryTeamsByScope(scope)
}

func (svc *Service) GetMembership(id int) (Membership, error) {
	return svc.repo.GetMembershipByID(id)
}

func (svc *Service) Memberships(t Team) ([]Membership, error) {
	return svc.repo.QueryMembershipsByTeam(t.ID)
}

// Participants resolves the team's members.
func (svc *Service) Participants(t Team) ([]participant.Participant, error) {
	mships, err := svc.repo.QueryMembershipsByTeam(t.ID)
	if err != nil {
		return nil, err
	}
	prts := make([]participant.Participant, 0, len(mships))
	for _, m := range mships {
		prt, err := svc.parts.GetByID(m.ParticipantID)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "resolving participant %d", m.ParticipantID)
		}
		prts = append(prts, prt)
	}
	return prts, nil
}

// Size is the full membership count, mentors included.
func (svc *Service) Size(t Team) (int, error) {
	mships, err := svc.repo.QueryMembershipsByTeam(t.ID)
	if err != nil {
		return 0, err
	}
	return len(mships), nil
}

// MentorExclusiveSize is the membership count excluding mentor-flagged
// participants, so an assigned mentor neither signals fullness nor
// triggers further mentor assignment.
func (svc *Service) MentorExclusiveSize(t Team) (int, error) {
	prts, err := svc.Participants(t)
	if err != nil {
		return 0, err
	}
	var n int
	for _, prt := range prts {
		if !prt.CanMentor {
			n++
		}
	}
	return n, nil
}

// Capacity returns the team's max member count; 0 means uncapped
// (course teams).
func (svc *Service) Capacity(t Team) (int, error) {
	if t.Scope.IsCourse() {
		return 0, nil
	}
	asm, err := svc.acaRepo.GetAssignmentByID(t.Scope.ID)
	if err != nil {
		return 0, err
	}
	return asm.MaxTeamSize, nil
}

// effectiveCapacity is the cap handed to the membership insert: the
// assignment's max team size, widened by the mentors already on the
// team when the assignment auto-assigns mentors, so an assigned mentor
// never consumes a member slot. 0 means uncapped.
func (svc *Service) effectiveCapacity(t Team) (int, error) {
	if t.Scope.IsCourse() {
		return 0, nil
	}
	asm, err := svc.acaRepo.GetAssignmentByID(t.Scope.ID)
	if err != nil {
		return 0, err
	}
	if !asm.AutoAssignMentor {
		return asm.MaxTeamSize, nil
	}

	size, err := svc.Size(t)
	if err != nil {
		return 0, err
	}
	mentorExcl, err := svc.MentorExclusiveSize(t)
	if err != nil {
		return 0, err
	}
	return asm.MaxTeamSize + (size - mentorExcl), nil
}

// IsFull reports whether the team is at capacity. Course teams are
// never full. Teams under a mentor-assigning assignment measure their
// mentor-exclusive size.
func (svc *Service) IsFull(t Team) (bool, error) {
	if t.Scope.IsCourse() {
		return false, nil
	}
	asm, err := svc.acaRepo.GetAssignmentByID(t.Scope.ID)
	if err != nil {
		return false, err
	}

	var size int
	if asm.AutoAssignMentor {
		size, err = svc.MentorExclusiveSize(t)
	} else {
		size, err = svc.Size(t)
	}
	if err != nil {
		return false, err
	}
	return size >= asm.MaxTeamSize, nil
}

// HasMember reports whether the user is on the team.
func (svc *Service) HasMember(t Team, userID string) (bool, error) {
	prts, err := svc.Participants(t)
	if err != nil {
		return false, err
	}
	for _, prt := range prts {
		if prt.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// MemberNames renders the members' display names.
func (svc *Service) MemberNames(t Team, anonymized bool) ([]string, error) {
	prts, err := svc.Participants(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(prts))
	for _, prt := range prts {
		if anonymized {
			names = append(names, fmt.Sprintf("Anonymized_Student_%d", prt.ID))
			continue
		}
		usr, err := svc.users.GetByID(prt.UserID)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "resolving user for participant %d", prt.ID)
		}
		names = append(names, usr.Name)
	}
	return names, nil
}

// AddMember adds the user to the team.
// It fails with ErrAlreadyMember when the user is already on the team,
// reports (false, nil) when the team is at capacity, and fails with
// ErrParticipantMissing when the user holds no participant for the
// team's scope. The capacity check deliberately precedes participant
// resolution; callers must not rely on error precedence beyond that.
// The membership and its tree node are committed atomically by the
// repository under a team-scoped lock.
func (svc *Service) AddMember(t Team, usr user.User) (bool, error) {
	member, err := svc.HasMember(t, usr.ID)
	if err != nil {
		return false, err
	}
	if member {
		return false, ErrAlreadyMember
	}

	full, err := svc.IsFull(t)
	if err != nil {
		return false, err
	}
	if full {
		return false, nil
	}

	prt, err := svc.parts.GetByUserAndScope(usr.ID, t.Scope)
	if err != nil {
		if pkgerrors.Cause(err) == participant.ErrNotFound {
			return false, ErrParticipantMissing
		}
		return false, err
	}

	// defensive double-check on the resolved participant
	mships, err := svc.repo.QueryMembershipsByParticipant(prt.ID)
	if err != nil {
		return false, err
	}
	for _, m := range mships {
		if m.TeamID == t.ID {
			return false, ErrAlreadyMember
		}
	}

	capacity, err := svc.effectiveCapacity(t)
	if err != nil {
		return false, err
	}

	m := Membership{TeamID: t.ID, ParticipantID: prt.ID, CreatedAt: time.Now().UTC()}
	if _, err = svc.repo.CreateMembership(m, capacity); err != nil {
		if pkgerrors.Cause(err) == ErrTeamFull {
			return false, nil
		}
		return false, err
	}

	if err = svc.ensureCrossContextEnrollment(usr, t.Scope); err != nil {
		// membership is committed; enrollment bridging must not undo it
		svc.log.Warn(fmt.Sprintf("cross-context enrollment for user %s: %v", usr.ID, err), err)
	}

	svc.maybeAssignMentor(t)
	return true, nil
}

// ensureCrossContextEnrollment keeps the historical convenience of
// assignment-team membership implying course enrollment: joining a team
// under an assignment also binds the user to the assignment's course.
// Isolated here so it can be removed or changed independently.
func (svc *Service) ensureCrossContextEnrollment(usr user.User, scope academia.Scope) error {
	if !scope.IsAssignment() {
		return nil
	}
	asm, err := svc.acaRepo.GetAssignmentByID(scope.ID)
	if err != nil {
		return err
	}
	if !asm.CourseID.Valid {
		return nil
	}

	crsScope := academia.Scope{Kind: academia.ScopeCourse, ID: asm.CourseID.Int}
	_, err = svc.parts.GetOrEnroll(usr.ID, crsScope)
	return err
}

// UpdateDuty sets the duty code carried by a membership.
func (svc *Service) UpdateDuty(membershipID int, duty null.String) (Membership, error) {
	return svc.repo.UpdateMembershipDuty(membershipID, duty)
}

// DeleteMemberships removes the given memberships from the team.
// Unknown ids are ignored.
func (svc *Service) DeleteMemberships(t Team, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	return svc.repo.DeleteMemberships(t.ID, ids...)
}

// Delete tears the team down: memberships, tree nodes, review maps and
// topic signups cascade with it.
func (svc *Service) Delete(t Team) error {
	return svc.repo.DeleteTeam(t.ID)
}

// CreateTeamAndNode creates a team (and its tree node) under the given
// scope. An empty name is generated from the scope's display name.
// Assignment teams get the next free directory number.
func (svc *Service) CreateTeamAndNode(scope academia.Scope, name string) (Team, error) {
	scopeName, err := academia.ScopeName(svc.acaRepo, scope)
	if err != nil {
		return Team{}, err
	}

	name = core.CleanString(name)
	if name == "" {
		if name, err = svc.GenerateTeamName(scopeName); err != nil {
			return Team{}, err
		}
	}

	if _, err = svc.repo.GetTeamByName(scope, name); err == nil {
		return Team{}, core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	} else if pkgerrors.Cause(err) != ErrNotFound {
		return Team{}, err
	}

	now := time.Now().UTC()
	t, err := svc.repo.CreateTeam(Team{Name: name, Scope: scope, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return Team{}, err
	}

	if scope.IsAssignment() {
		if t, err = svc.AssignDirectoryNum(t); err != nil {
			return Team{}, err
		}
	}
	return t, nil
}

// AssignDirectoryNum allocates the team's file storage slot: the next
// unused integer within the scope, starting at 0. No-op when already
// assigned.
func (svc *Service) AssignDirectoryNum(t Team) (Team, error) {
	if t.DirectoryNum.Valid && t.DirectoryNum.Int >= 0 {
		return t, nil
	}
	n, err := svc.repo.NextDirectoryNum(t.Scope)
	if err != nil {
		return Team{}, err
	}
	t.DirectoryNum = null.IntFrom(n)
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeam(t)
}

// FindTeamForUser returns the team the user belongs to within a scope.
func (svc *Service) FindTeamForUser(scope academia.Scope, userID string) (Team, error) {
	prt, err := svc.parts.GetByUserAndScope(userID, scope)
	if err != nil {
		if pkgerrors.Cause(err) == participant.ErrNotFound {
			return Team{}, ErrNotFound
		}
		return Team{}, err
	}

	mships, err := svc.repo.QueryMembershipsByParticipant(prt.ID)
	if err != nil {
		return Team{}, err
	}
	for _, m := range mships {
		t, err := svc.repo.GetTeamByID(m.TeamID)
		if err != nil {
			return Team{}, err
		}
		if t.Scope == scope {
			return t, nil
		}
	}
	return Team{}, ErrNotFound
}

// SubmitHyperlink appends a submission hyperlink to the team's list.
func (svc *Service) SubmitHyperlink(t Team, link string) (Team, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return Team{}, core.NewValidationError(errors.New("the hyperlink cannot be empty"))
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = "http://" + link
	}
	if _, err := url.ParseRequestURI(link); err != nil {
		return Team{}, core.NewValidationError(errors.New("invalid hyperlink"))
	}

	t.SubmittedHyperlinks = append(t.SubmittedHyperlinks, link)
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeam(t)
}

// RemoveHyperlink drops a previously submitted hyperlink.
func (svc *Service) RemoveHyperlink(t Team, link string) (Team, error) {
	links := make([]string, 0, len(t.SubmittedHyperlinks))
	for _, l := range t.SubmittedHyperlinks {
		if l != link {
			links = append(links, l)
		}
	}
	t.SubmittedHyperlinks = links
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeam(t)
}

// ReviewerFor selects the reviewing actor once per assignment: the
// participant's team when team reviewing is enabled, the participant
// themselves otherwise.
func (svc *Service) ReviewerFor(asm academia.Assignment, prt participant.Participant) (Reviewer, error) {
	if !asm.TeamReviewingEnabled {
		return Reviewer{Kind: ReviewerParticipant, ParticipantID: prt.ID}, nil
	}
	t, err := svc.FindTeamForUser(asm.Scope(), prt.UserID)
	if err != nil {
		return Reviewer{}, err
	}
	return Reviewer{Kind: ReviewerTeam, TeamID: t.ID}, nil
}

// AssignReviewer maps a reviewer onto the team under review.
func (svc *Service) AssignReviewer(t Team, prt participant.Participant) (ReviewMap, error) {
	if !t.Scope.IsAssignment() {
		return ReviewMap{}, core.NewValidationError(errors.New("only assignment teams can be reviewed"))
	}
	asm, err := svc.acaRepo.GetAssignmentByID(t.Scope.ID)
	if err != nil {
		return ReviewMap{}, err
	}
	reviewer, err := svc.ReviewerFor(asm, prt)
	if err != nil {
		return ReviewMap{}, err
	}
	return svc.repo.CreateReviewMap(ReviewMap{
		Reviewer:             reviewer,
		RevieweeTeamID:       t.ID,
		AssignmentID:         asm.ID,
		TeamReviewingEnabled: asm.TeamReviewingEnabled,
		CreatedAt:            time.Now().UTC(),
	})
}
