package team

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/user"
)

// maybeAssignMentor runs the auto-mentor policy after a successful
// member addition. Preconditions short-circuit in order: the
// assignment must auto-assign mentors, have no topic mechanism (and
// the team no topic yet), the team must be over half capacity by its
// mentor-exclusive size, and must not already have a mentor. Policy
// failures are logged, never surfaced: the membership that triggered
// the policy is already committed.
func (svc *Service) maybeAssignMentor(t Team) {
	if err := svc.assignMentor(t); err != nil {
		svc.log.Error(fmt.Sprintf("auto-assigning mentor to team %d: %v", t.ID, err), err)
	}
}

func (svc *Service) assignMentor(t Team) error {
	if !t.Scope.IsAssignment() {
		return nil
	}
	asm, err := svc.acaRepo.GetAssignmentByID(t.Scope.ID)
	if err != nil {
		return err
	}
	if !asm.AutoAssignMentor {
		return nil
	}

	if asm.HasTopics {
		return nil
	}
	topicID, err := svc.repo.GetTeamTopicID(t.ID)
	if err != nil {
		return err
	}
	if topicID.Valid {
		return nil
	}

	size, err := svc.MentorExclusiveSize(t)
	if err != nil {
		return err
	}
	if size*2 <= asm.MaxTeamSize {
		return nil
	}

	prts, err := svc.Participants(t)
	if err != nil {
		return err
	}
	for _, prt := range prts {
		if prt.CanMentor {
			return nil
		}
	}

	mentor, ok, err := svc.selectMentor(t.Scope)
	if err != nil || !ok {
		return err
	}

	usr, err := svc.users.GetByID(mentor.UserID)
	if err != nil {
		return pkgerrors.Wrap(err, "resolving mentor user")
	}
	added, err := svc.AddMember(t, usr)
	if err != nil {
		return pkgerrors.Wrap(err, "adding mentor to team")
	}
	if !added {
		return nil
	}

	// fire-and-forget; delivery failures never unwind the assignment
	svc.notifyTeamOfMentorAssignment(usr, t, asm.Name)
	svc.notifyMentorOfAssignment(usr, t, asm.Name)
	return nil
}

// selectMentor picks the least-loaded mentor-capable participant of
// the scope, using the number of scope teams each belongs to as a
// proxy for mentoring load. Ties are broken by lowest participant id.
func (svc *Service) selectMentor(scope academia.Scope) (participant.Participant, bool, error) {
	prts, err := svc.parts.QueryByScope(scope)
	if err != nil {
		return participant.Participant{}, false, err
	}

	mentors := make([]participant.Participant, 0, len(prts))
	ids := make([]int, 0, len(prts))
	for _, prt := range prts {
		if prt.CanMentor {
			mentors = append(mentors, prt)
			ids = append(ids, prt.ID)
		}
	}
	if len(mentors) == 0 {
		return participant.Participant{}, false, nil
	}

	counts, err := svc.repo.CountScopeTeamMemberships(scope, ids)
	if err != nil {
		return participant.Participant{}, false, err
	}

	sort.Slice(mentors, func(i, j int) bool {
		ci, cj := counts[mentors[i].ID], counts[mentors[j].ID]
		if ci != cj {
			return ci < cj
		}
		return mentors[i].ID < mentors[j].ID
	})
	return mentors[0], true, nil
}

func (svc *Service) memberAddresses(t Team) ([]mail.Address, []string, error) {
	prts, err := svc.Participants(t)
	if err != nil {
		return nil, nil, err
	}

	addrs := make([]mail.Address, 0, len(prts))
	infos := make([]string, 0, len(prts))
	for _, prt := range prts {
		usr, err := svc.users.GetByID(prt.UserID)
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, mail.Address{Name: usr.Name, Address: usr.Email})
		infos = append(infos, fmt.Sprintf("%s - %s", usr.Name, usr.Email))
	}
	return addrs, infos, nil
}

func (svc *Service) notifyTeamOfMentorAssignment(mentor user.User, t Team, assignmentName string) {
	addrs, infos, err := svc.memberAddresses(t)
	if err != nil {
		svc.log.Error(fmt.Sprintf("collecting member addresses for team %d: %v", t.ID, err), err)
		return
	}

	svc.mail.SendMessages(&core.EmailMessage{
		Bcc:     addrs,
		Subject: "New Mentor Assignment",
		BodyStr: fmt.Sprintf(
			"%s (%s) has been assigned as your mentor for assignment %s\nCurrent members:\n%s",
			mentor.Name, mentor.Email, assignmentName, strings.Join(infos, "\n"),
		),
	})
}

func (svc *Service) notifyMentorOfAssignment(mentor user.User, t Team, assignmentName string) {
	_, infos, err := svc.memberAddresses(t)
	if err != nil {
		svc.log.Error(fmt.Sprintf("collecting member addresses for team %d: %v", t.ID, err), err)
		return
	}

	svc.mail.SendMessages(&core.EmailMessage{
		Bcc:     []mail.Address{{Name: mentor.Name, Address: mentor.Email}},
		Subject: "You have been assigned as a Mentor",
		BodyStr: fmt.Sprintf(
			"You have been assigned as a mentor for the team working on assignment: %s.\nCurrent team members:\n%s",
			assignmentName, strings.Join(infos, "\n"),
		),
	})
}
