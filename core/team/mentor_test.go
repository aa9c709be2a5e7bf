package team_test

import (
	"testing"

	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
	emailsvc "github.com/trezcool/kundi/services/email"
	testutil "github.com/trezcool/kundi/tests"
)

var mentorFlags = testutil.ParticipantFlags{CanMentor: true}

func (env *testEnv) mustAddMember(t *testing.T, tm team.Team, usr user.User) {
	t.Helper()
	added, err := env.svc.AddMember(tm, usr)
	if err != nil || !added {
		t.Fatalf("AddMember(%s) = (%v, %v), want (true, nil)", usr.Username, added, err)
	}
}

func (env *testEnv) teamMentors(t *testing.T, tm team.Team) []participant.Participant {
	t.Helper()
	prts, err := env.svc.Participants(tm)
	if err != nil {
		t.Fatalf("Participants(): %v", err)
	}
	mentors := make([]participant.Participant, 0, 1)
	for _, prt := range prts {
		if prt.CanMentor {
			mentors = append(mentors, prt)
		}
	}
	return mentors
}

func TestService_autoMentorAssignment(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, true, false, false)
	scope := asm.Scope()

	s1, _ := env.enrollUser(t, "s1", scope, testutil.DefaultFlags)
	s2, _ := env.enrollUser(t, "s2", scope, testutil.DefaultFlags)
	s3, _ := env.enrollUser(t, "s3", scope, testutil.DefaultFlags)
	s4, _ := env.enrollUser(t, "s4", scope, testutil.DefaultFlags)
	s5, _ := env.enrollUser(t, "s5", scope, testutil.DefaultFlags)
	_, m1 := env.enrollUser(t, "m1", scope, mentorFlags)
	_, m2 := env.enrollUser(t, "m2", scope, mentorFlags)

	teamA := env.mustCreateTeam(t, scope, "Alpha")

	// below half capacity: no mentor yet
	env.mustAddMember(t, teamA, s1)
	if mentors := env.teamMentors(t, teamA); len(mentors) != 0 {
		t.Fatalf("mentors = %v, want none at size 1", mentors)
	}

	// crossing half capacity triggers the assignment; ties break on
	// the lowest participant id
	sentBefore := len(emailsvc.SentMessages)
	env.mustAddMember(t, teamA, s2)
	mentors := env.teamMentors(t, teamA)
	if len(mentors) != 1 || mentors[0].ID != m1.ID {
		t.Fatalf("mentors = %v, want participant %d", mentors, m1.ID)
	}

	// both the team and the mentor get notified
	if got := len(emailsvc.SentMessages) - sentBefore; got != 2 {
		t.Errorf("sent messages = %d, want 2", got)
	}

	// the assigned mentor does not consume a member slot
	env.mustAddMember(t, teamA, s3)
	size, err := env.svc.Size(teamA)
	if err != nil {
		t.Fatalf("Size(): %v", err)
	}
	if size != 4 {
		t.Errorf("Size() = %d, want 4 (3 students + mentor)", size)
	}
	if mentors = env.teamMentors(t, teamA); len(mentors) != 1 {
		t.Errorf("mentors = %v, want the existing one kept", mentors)
	}

	// the next team gets the least-loaded mentor
	teamB := env.mustCreateTeam(t, scope, "Beta")
	env.mustAddMember(t, teamB, s4)
	env.mustAddMember(t, teamB, s5)
	mentors = env.teamMentors(t, teamB)
	if len(mentors) != 1 || mentors[0].ID != m2.ID {
		t.Errorf("mentors = %v, want participant %d", mentors, m2.ID)
	}
}

func TestService_autoMentorAssignment_skipsTopicAssignments(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "Topic Project", 3, true, false, true)
	scope := asm.Scope()

	s1, _ := env.enrollUser(t, "s1", scope, testutil.DefaultFlags)
	s2, _ := env.enrollUser(t, "s2", scope, testutil.DefaultFlags)
	env.enrollUser(t, "m1", scope, mentorFlags)

	tm := env.mustCreateTeam(t, scope, "Alpha")
	env.mustAddMember(t, tm, s1)
	env.mustAddMember(t, tm, s2)

	if mentors := env.teamMentors(t, tm); len(mentors) != 0 {
		t.Errorf("mentors = %v, want none for a topic assignment", mentors)
	}
}

func TestService_autoMentorAssignment_skipsTeamsWithTopic(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, true, false, false)
	scope := asm.Scope()

	s1, _ := env.enrollUser(t, "s1", scope, testutil.DefaultFlags)
	s2, _ := env.enrollUser(t, "s2", scope, testutil.DefaultFlags)
	env.enrollUser(t, "m1", scope, mentorFlags)

	tm := env.mustCreateTeam(t, scope, "Alpha")
	env.db.SeedTopicSignup(7, tm.ID, false)

	env.mustAddMember(t, tm, s1)
	env.mustAddMember(t, tm, s2)

	if mentors := env.teamMentors(t, tm); len(mentors) != 0 {
		t.Errorf("mentors = %v, want none for a team holding a topic", mentors)
	}
}

func TestService_autoMentorAssignment_noMentorAvailable(t *testing.T) {
	env := setup(t)
	asm := testutil.CreateAssignment(t, env.acaRepo, "OS Project", 3, true, false, false)
	scope := asm.Scope()

	s1, _ := env.enrollUser(t, "s1", scope, testutil.DefaultFlags)
	s2, _ := env.enrollUser(t, "s2", scope, testutil.DefaultFlags)

	tm := env.mustCreateTeam(t, scope, "Alpha")
	env.mustAddMember(t, tm, s1)
	env.mustAddMember(t, tm, s2)

	size, err := env.svc.Size(tm)
	if err != nil {
		t.Fatalf("Size(): %v", err)
	}
	if size != 2 {
		t.Errorf("Size() = %d, want 2", size)
	}
}
