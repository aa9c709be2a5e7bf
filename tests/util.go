package testutil

import (
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/user"
	"github.com/volatiletech/null/v8"
)

// NewConfig returns a self-contained test configuration.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            false,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Kundi",
		SecretKey:        "secret",
		DefaultFromEmail: mail.Address{Name: "Kundi", Address: "noreply@test.cd"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

// Logger is a test core.Logger that drops everything.
type Logger struct{}

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo academia.Repository, name string) academia.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(academia.Course{Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateAssignment(
	t *testing.T,
	repo academia.Repository,
	name string,
	maxTeamSize int,
	autoAssignMentor, teamReviewingEnabled, hasTopics bool,
	courseID ...int,
) academia.Assignment {
	t.Helper()

	now := time.Now().UTC()
	asm := academia.Assignment{
		Name:                 name,
		MaxTeamSize:          maxTeamSize,
		AutoAssignMentor:     autoAssignMentor,
		TeamReviewingEnabled: teamReviewingEnabled,
		HasTopics:            hasTopics,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if len(courseID) > 0 {
		asm.CourseID = null.IntFrom(courseID[0])
	}
	asm, err := repo.CreateAssignment(asm)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asm
}

// ParticipantFlags selects the capability flags of a test participant.
type ParticipantFlags struct {
	CanSubmit   bool
	CanReview   bool
	CanTakeQuiz bool
	CanMentor   bool
}

// DefaultFlags is the default capability set of a fresh enrollment.
var DefaultFlags = ParticipantFlags{CanSubmit: true, CanReview: true, CanTakeQuiz: true}

func CreateParticipant(
	t *testing.T,
	repo participant.Repository,
	usr user.User,
	scope academia.Scope,
	handle string,
	flags ParticipantFlags,
) participant.Participant {
	t.Helper()

	now := time.Now().UTC()
	prt, err := repo.CreateParticipant(participant.Participant{
		UserID:      usr.ID,
		Scope:       scope,
		Handle:      handle,
		CanSubmit:   flags.CanSubmit,
		CanReview:   flags.CanReview,
		CanTakeQuiz: flags.CanTakeQuiz,
		CanMentor:   flags.CanMentor,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateParticipant() failed: %v", err)
	}
	return prt
}
