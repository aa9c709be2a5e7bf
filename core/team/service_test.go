package team_test

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
	emailsvc "github.com/trezcool/kundi/services/email"
	inmemdb "github.com/trezcool/kundi/storage/database/inmem"
	testutil "github.com/trezcool/kundi/tests"
)

type testEnv struct {
	db      *inmemdb.DB
	usrRepo user.Repository
	acaRepo academia.Repository
	prtRepo participant.Repository
	repo    team.Repository
	usrSvc  *user.Service
	prtSvc  *participant.Service
	svc     *team.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	conf := testutil.NewConfig()
	usrRepo := inmemdb.NewUserRepository(db)
	acaRepo := inmemdb.NewAcademiaRepository(db)
	prtRepo := inmemdb.NewParticipantRepository(db)
	repo := inmemdb.NewTeamRepository(db)

	usrSvc := user.NewService(usrRepo)
	prtSvc := participant.NewService(prtRepo, usrRepo)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	return &testEnv{
		db:      db,
		usrRepo: usrRepo,
		acaRepo: acaRepo,
		prtRepo: prtRepo,
		repo:    repo,
		usrSvc:  usrSvc,
		prtSvc:  prtSvc,
		svc:     team.NewService(repo, acaRepo, prtSvc, usrSvc, mailSvc, conf, testutil.Logger{}),
	}
}

// enrollUser creates a user and its participant for the scope.
func (env *testEnv) enrollUser(t *testing.T, uname string, scope academia.Scope, flags testutil.ParticipantFlags) (user.User, participant.Participant) {
	t.Helper()
	usr := testutil.CreateUser(t, env.usrRepo, "U "+uname, uname, uname+"@test.cd", "", nil, true)
	prt := testutil.CreateParticipant(t, env.prtRepo, usr, scope, uname, flags)
	return usr, prt
}

func (env *testEnv) mustCreateTeam(t *testing.T, scope academia.Scope, name string) team.Team {
	t.Helper()
	tm, err := env.svc.CreateTeamAndNode(scope, name)
	if err != nil {
		t.Fatalf("CreateTeamAndNode(): %v", err)
	}
	return tm
}

func TestService_AddMember(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 2, false, false, false)
	scope := asm.Scope()

	u1, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	u2, _ := env.enrollUser(t, "u2", scope, testutil.DefaultFlags)
	u3, _ := env.enrollUser(t, "u3", scope, testutil.DefaultFlags)
	stranger := testutil.CreateUser(t, env.usrRepo, "Stranger", "stranger", "stranger@test.cd", "", nil, true)

	tm := env.mustCreateTeam(t, scope, "Alpha")

	added, err := env.svc.AddMember(tm, u1)
	if err != nil || !added {
		t.Fatalf("AddMember() = (%v, %v), want (true, nil)", added, err)
	}

	// adding the same user twice fails
	if _, err = env.svc.AddMember(tm, u1); errors.Cause(err) != team.ErrAlreadyMember {
		t.Errorf("AddMember() error = %v, want %v", err, team.ErrAlreadyMember)
	}

	if added, err = env.svc.AddMember(tm, u2); err != nil || !added {
		t.Fatalf("AddMember() = (%v, %v), want (true, nil)", added, err)
	}

	// team is now at capacity
	if added, err = env.svc.AddMember(tm, u3); err != nil || added {
		t.Errorf("AddMember() = (%v, %v), want (false, nil)", added, err)
	}

	// a user without a participant for the scope cannot join
	tm2 := env.mustCreateTeam(t, scope, "Beta")
	if _, err = env.svc.AddMember(tm2, stranger); errors.Cause(err) != team.ErrParticipantMissing {
		t.Errorf("AddMember() error = %v, want %v", err, team.ErrParticipantMissing)
	}

	size, err := env.svc.Size(tm)
	if err != nil {
		t.Fatalf("Size(): %v", err)
	}
	if size != 2 {
		t.Errorf("Size() = %d, want 2", size)
	}
}

func TestService_AddMember_courseTeamsAreUncapped(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	scope := crs.Scope()
	tm := env.mustCreateTeam(t, scope, "Gamma")

	for _, uname := range []string{"u1", "u2", "u3", "u4", "u5"} {
		usr, _ := env.enrollUser(t, uname, scope, testutil.DefaultFlags)
		added, err := env.svc.AddMember(tm, usr)
		if err != nil || !added {
			t.Fatalf("AddMember(%s) = (%v, %v), want (true, nil)", uname, added, err)
		}
	}

	full, err := env.svc.IsFull(tm)
	if err != nil {
		t.Fatalf("IsFull(): %v", err)
	}
	if full {
		t.Errorf("IsFull() = true for a course team")
	}
}

func TestService_AddMember_crossContextEnrollment(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, false, false, false, crs.ID)
	scope := asm.Scope()

	usr, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	tm := env.mustCreateTeam(t, scope, "Alpha")

	if added, err := env.svc.AddMember(tm, usr); err != nil || !added {
		t.Fatalf("AddMember() = (%v, %v), want (true, nil)", added, err)
	}

	// joining an assignment team enrolls the user in the parent course too
	if _, err := env.prtSvc.GetByUserAndScope(usr.ID, crs.Scope()); err != nil {
		t.Errorf("GetByUserAndScope(course) error = %v, want course enrollment", err)
	}
}

func TestService_CreateTeamAndNode(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, false, false, false)
	scope := asm.Scope()

	tm, err := env.svc.CreateTeamAndNode(scope, "Alpha")
	if err != nil {
		t.Fatalf("CreateTeamAndNode(): %v", err)
	}
	if tm.Name != "Alpha" {
		t.Errorf("name = %q, want %q", tm.Name, "Alpha")
	}
	if !tm.DirectoryNum.Valid || tm.DirectoryNum.Int != 0 {
		t.Errorf("directoryNum = %v, want 0", tm.DirectoryNum)
	}

	tm2, err := env.svc.CreateTeamAndNode(scope, "Beta")
	if err != nil {
		t.Fatalf("CreateTeamAndNode(): %v", err)
	}
	if !tm2.DirectoryNum.Valid || tm2.DirectoryNum.Int != 1 {
		t.Errorf("directoryNum = %v, want 1", tm2.DirectoryNum)
	}

	// duplicate name within the scope
	_, err = env.svc.CreateTeamAndNode(scope, "Alpha")
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("CreateTeamAndNode() error = %v, want *core.ValidationError", err)
	}

	// empty name is generated from the scope's display name
	tm3, err := env.svc.CreateTeamAndNode(scope, "")
	if err != nil {
		t.Fatalf("CreateTeamAndNode(): %v", err)
	}
	if tm3.Name != "OS Project_1" {
		t.Errorf("name = %q, want %q", tm3.Name, "OS Project_1")
	}

	// course teams carry no directory number
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	crsTeam, err := env.svc.CreateTeamAndNode(crs.Scope(), "Alpha")
	if err != nil {
		t.Fatalf("CreateTeamAndNode(): %v", err)
	}
	if crsTeam.DirectoryNum.Valid {
		t.Errorf("directoryNum = %v, want unset", crsTeam.DirectoryNum)
	}

	// unknown scope
	if _, err = env.svc.CreateTeamAndNode(academia.Scope{Kind: academia.ScopeAssignment, ID: 999}, "X"); err != academia.ErrAssignmentNotFound {
		t.Errorf("CreateTeamAndNode() error = %v, want %v", err, academia.ErrAssignmentNotFound)
	}
}

func TestService_UpdateDuty(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	scope := crs.Scope()
	usr, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	tm := env.mustCreateTeam(t, scope, "Alpha")
	if _, err := env.svc.AddMember(tm, usr); err != nil {
		t.Fatalf("AddMember(): %v", err)
	}

	mships, err := env.svc.Memberships(tm)
	if err != nil || len(mships) != 1 {
		t.Fatalf("Memberships() = (%v, %v), want a single membership", mships, err)
	}

	m, err := env.svc.UpdateDuty(mships[0].ID, null.StringFrom("scribe"))
	if err != nil {
		t.Fatalf("UpdateDuty(): %v", err)
	}
	if !m.Duty.Valid || m.Duty.String != "scribe" {
		t.Errorf("duty = %v, want scribe", m.Duty)
	}

	// duty can be cleared
	if m, err = env.svc.UpdateDuty(mships[0].ID, null.String{}); err != nil {
		t.Fatalf("UpdateDuty(): %v", err)
	}
	if m.Duty.Valid {
		t.Errorf("duty = %v, want unset", m.Duty)
	}

	if _, err = env.svc.UpdateDuty(9999, null.String{}); errors.Cause(err) != team.ErrMembershipNotFound {
		t.Errorf("UpdateDuty() error = %v, want %v", err, team.ErrMembershipNotFound)
	}
}

func TestService_DeleteMemberships(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	scope := crs.Scope()
	tm := env.mustCreateTeam(t, scope, "Alpha")

	u1, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	u2, _ := env.enrollUser(t, "u2", scope, testutil.DefaultFlags)
	for _, usr := range []user.User{u1, u2} {
		if _, err := env.svc.AddMember(tm, usr); err != nil {
			t.Fatalf("AddMember(): %v", err)
		}
	}

	mships, err := env.svc.Memberships(tm)
	if err != nil || len(mships) != 2 {
		t.Fatalf("Memberships() = (%v, %v), want 2 memberships", mships, err)
	}

	// no-op
	if err = env.svc.DeleteMemberships(tm); err != nil {
		t.Errorf("DeleteMemberships() with no ids: %v", err)
	}

	// unknown ids are ignored
	if err = env.svc.DeleteMemberships(tm, mships[0].ID, 9999); err != nil {
		t.Fatalf("DeleteMemberships(): %v", err)
	}

	size, err := env.svc.Size(tm)
	if err != nil {
		t.Fatalf("Size(): %v", err)
	}
	if size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}
}

func TestService_Delete(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	scope := crs.Scope()
	tm := env.mustCreateTeam(t, scope, "Alpha")
	usr, prt := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	if _, err := env.svc.AddMember(tm, usr); err != nil {
		t.Fatalf("AddMember(): %v", err)
	}

	if err := env.svc.Delete(tm); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, err := env.svc.GetByID(tm.ID); errors.Cause(err) != team.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, team.ErrNotFound)
	}

	// memberships cascade; the participant survives
	onTeam, err := env.prtRepo.IsTeamMember(prt.ID)
	if err != nil {
		t.Fatalf("IsTeamMember(): %v", err)
	}
	if onTeam {
		t.Errorf("membership survived the team delete")
	}
	if _, err = env.prtSvc.GetByID(prt.ID); err != nil {
		t.Errorf("GetByID() error = %v, want the participant kept", err)
	}
}

func TestService_FindTeamForUser(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, false, false, false)
	usr, _ := env.enrollUser(t, "u1", crs.Scope(), testutil.DefaultFlags)
	testutil.CreateParticipant(t, env.prtRepo, usr, asm.Scope(), "u1", testutil.DefaultFlags)

	tm := env.mustCreateTeam(t, crs.Scope(), "Alpha")
	if _, err := env.svc.AddMember(tm, usr); err != nil {
		t.Fatalf("AddMember(): %v", err)
	}

	found, err := env.svc.FindTeamForUser(crs.Scope(), usr.ID)
	if err != nil {
		t.Fatalf("FindTeamForUser(): %v", err)
	}
	if found.ID != tm.ID {
		t.Errorf("FindTeamForUser() = %d, want %d", found.ID, tm.ID)
	}

	// enrolled in the assignment but team-less there
	if _, err = env.svc.FindTeamForUser(asm.Scope(), usr.ID); errors.Cause(err) != team.ErrNotFound {
		t.Errorf("FindTeamForUser() error = %v, want %v", err, team.ErrNotFound)
	}

	// not enrolled at all
	stranger := testutil.CreateUser(t, env.usrRepo, "Stranger", "stranger", "stranger@test.cd", "", nil, true)
	if _, err = env.svc.FindTeamForUser(crs.Scope(), stranger.ID); errors.Cause(err) != team.ErrNotFound {
		t.Errorf("FindTeamForUser() error = %v, want %v", err, team.ErrNotFound)
	}
}

func TestService_Hyperlinks(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	tm := env.mustCreateTeam(t, crs.Scope(), "Alpha")

	tm, err := env.svc.SubmitHyperlink(tm, "github.com/acme/os-project")
	if err != nil {
		t.Fatalf("SubmitHyperlink(): %v", err)
	}
	if len(tm.SubmittedHyperlinks) != 1 || tm.SubmittedHyperlinks[0] != "http://github.com/acme/os-project" {
		t.Errorf("hyperlinks = %v, want the scheme prefixed", tm.SubmittedHyperlinks)
	}

	if tm, err = env.svc.SubmitHyperlink(tm, "https://acme.test/demo"); err != nil {
		t.Fatalf("SubmitHyperlink(): %v", err)
	}

	if _, err = env.svc.SubmitHyperlink(tm, "   "); err == nil {
		t.Errorf("SubmitHyperlink() accepted an empty link")
	}
	if _, err = env.svc.SubmitHyperlink(tm, "not a url"); err == nil {
		t.Errorf("SubmitHyperlink() accepted an invalid link")
	}

	if tm, err = env.svc.RemoveHyperlink(tm, "http://github.com/acme/os-project"); err != nil {
		t.Fatalf("RemoveHyperlink(): %v", err)
	}
	if len(tm.SubmittedHyperlinks) != 1 || tm.SubmittedHyperlinks[0] != "https://acme.test/demo" {
		t.Errorf("hyperlinks = %v, want only the demo link", tm.SubmittedHyperlinks)
	}
}

func TestService_ReviewerFor(t *testing.T) {
	env := setup(t)

	solo := testutil.CreateAssignment(t, env.acaRepo, "Solo Review", 3, false, false, false)
	teamed := testutil.CreateAssignment(t, env.acaRepo, "Team Review", 3, false, true, false)

	usr, prt := env.enrollUser(t, "u1", teamed.Scope(), testutil.DefaultFlags)
	soloPrt := testutil.CreateParticipant(t, env.prtRepo, usr, solo.Scope(), "u1", testutil.DefaultFlags)

	tm := env.mustCreateTeam(t, teamed.Scope(), "Alpha")
	if _, err := env.svc.AddMember(tm, usr); err != nil {
		t.Fatalf("AddMember(): %v", err)
	}

	r, err := env.svc.ReviewerFor(solo, soloPrt)
	if err != nil {
		t.Fatalf("ReviewerFor(): %v", err)
	}
	if r.Kind != team.ReviewerParticipant || r.ParticipantID != soloPrt.ID {
		t.Errorf("ReviewerFor() = %+v, want the participant", r)
	}

	if r, err = env.svc.ReviewerFor(teamed, prt); err != nil {
		t.Fatalf("ReviewerFor(): %v", err)
	}
	if r.Kind != team.ReviewerTeam || r.TeamID != tm.ID {
		t.Errorf("ReviewerFor() = %+v, want the team", r)
	}
}

func TestService_AssignReviewer(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, false, false, false)
	scope := asm.Scope()

	_, reviewer := env.enrollUser(t, "rev", scope, testutil.DefaultFlags)
	reviewee, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	tm := env.mustCreateTeam(t, scope, "Alpha")
	if _, err := env.svc.AddMember(tm, reviewee); err != nil {
		t.Fatalf("AddMember(): %v", err)
	}

	rm, err := env.svc.AssignReviewer(tm, reviewer)
	if err != nil {
		t.Fatalf("AssignReviewer(): %v", err)
	}
	if rm.Reviewer.Kind != team.ReviewerParticipant || rm.Reviewer.ParticipantID != reviewer.ID {
		t.Errorf("reviewer = %+v, want participant %d", rm.Reviewer, reviewer.ID)
	}
	if rm.RevieweeTeamID != tm.ID || rm.AssignmentID != asm.ID {
		t.Errorf("review map = %+v, want team %d and assignment %d", rm, tm.ID, asm.ID)
	}

	// course teams are not reviewable
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	crsTeam := env.mustCreateTeam(t, crs.Scope(), "Alpha")
	if _, err = env.svc.AssignReviewer(crsTeam, reviewer); err == nil {
		t.Errorf("AssignReviewer() accepted a course team")
	}
}

func TestService_MemberNames(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.acaRepo, "CSC 517")
	scope := crs.Scope()
	tm := env.mustCreateTeam(t, scope, "Alpha")

	u1, _ := env.enrollUser(t, "u1", scope, testutil.DefaultFlags)
	u2, _ := env.enrollUser(t, "u2", scope, testutil.DefaultFlags)
	for _, usr := range []user.User{u1, u2} {
		if _, err := env.svc.AddMember(tm, usr); err != nil {
			t.Fatalf("AddMember(): %v", err)
		}
	}

	names, err := env.svc.MemberNames(tm, false)
	if err != nil {
		t.Fatalf("MemberNames(): %v", err)
	}
	sort.Strings(names)
	if !(len(names) == 2 && names[0] == "U u1" && names[1] == "U u2") {
		t.Errorf("MemberNames() = %v, want the full names", names)
	}

	anon, err := env.svc.MemberNames(tm, true)
	if err != nil {
		t.Fatalf("MemberNames(): %v", err)
	}
	for _, name := range anon {
		if !strings.HasPrefix(name, "Anonymized_Student_") {
			t.Errorf("MemberNames(anonymized) = %v, want anonymized names", anon)
			break
		}
	}
	if got := tm.DisplayName(true); got != fmt.Sprintf("Anonymized_Team_%d", tm.ID) {
		t.Errorf("DisplayName(anonymized) = %q", got)
	}
}
