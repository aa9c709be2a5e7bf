package main

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/user"
	emailsvc "github.com/trezcool/kundi/services/email"
	inmemdb "github.com/trezcool/kundi/storage/database/inmem"
	testutil "github.com/trezcool/kundi/tests"

	"github.com/trezcool/kundi/core/team"
)

type cliEnv struct {
	cli     *commandLine
	db      *inmemdb.DB
	usrRepo user.Repository
	acaRepo academia.Repository
	prtRepo participant.Repository
	repo    team.Repository
}

func setup(t *testing.T) *cliEnv {
	t.Helper()
	logger = log.New(io.Discard, "", 0)

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	conf := testutil.NewConfig()
	usrRepo := inmemdb.NewUserRepository(db)
	acaRepo := inmemdb.NewAcademiaRepository(db)
	prtRepo := inmemdb.NewParticipantRepository(db)
	teamRepo := inmemdb.NewTeamRepository(db)

	usrSvc := user.NewService(usrRepo)
	prtSvc := participant.NewService(prtRepo, usrRepo)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	teamSvc := team.NewService(teamRepo, acaRepo, prtSvc, usrSvc, mailSvc, conf, testutil.Logger{})

	return &cliEnv{
		cli: &commandLine{
			usrRepo: usrRepo,
			usrSvc:  usrSvc,
			teamSvc: teamSvc,
		},
		db:      db,
		usrRepo: usrRepo,
		acaRepo: acaRepo,
		prtRepo: prtRepo,
		repo:    teamRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkCLIErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	if err != nil {
		if tt.wantErr != nil {
			if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		} else if tt.wantErrStr != "" {
			if err.Error() != tt.wantErrStr {
				t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
			}
		} else {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
	} else if tt.wantErr != nil || tt.wantErrStr != "" {
		t.Errorf("cli.run() error = nil, want %v%s", tt.wantErr, tt.wantErrStr)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "teams", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, env.cli.run(args))
		})
	}
}

func Test_commandLine_createUser(t *testing.T) {
	env := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createuser"}, wantErr: errHelp},
		{name: "missing email", args: []string{"createuser", "-username", "awe"}, wantErr: errHelp},
		{name: "no password", args: []string{"createuser", "-username", "awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "user created", args: []string{"createuser", "-username", "awe", "-email", "awe@test.cd"}, extra: extra{pwd: "mdr"}},
		{name: "admin created", args: []string{"createuser", "-username", "boss", "-email", "boss@test.cd", "-admin"}, extra: extra{pwd: "mdr"}},
		{name: "existing user updated", args: []string{"createuser", "-username", "awe", "-email", "awe@test.cd"}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, env.cli.run(args))
		})
	}

	usr, err := env.usrRepo.GetUserByUsernameOrEmail("awe")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail(): %v", err)
	}
	if err = usr.CheckPassword("lol"); err != nil {
		t.Errorf("CheckPassword() = %v, want the updated password", err)
	}

	boss, err := env.usrRepo.GetUserByUsernameOrEmail("boss")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail(): %v", err)
	}
	if !boss.IsAdmin() {
		t.Errorf("boss.Roles = %v, want admin roles", boss.Roles)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := env.cli.run(args)
			checkCLIErr(t, tt, err)
			if err != nil {
				return
			}

			refreshed, err := env.usrRepo.GetUserByID(usr.ID)
			if err != nil {
				t.Fatalf("GetUserByID(): %v", err)
			}
			if extra, ok := tt.extra.(extra); ok {
				if err = refreshed.CheckPassword(extra.pwd); err != nil {
					t.Errorf("CheckPassword() = %v, want the new password", err)
				}
			}
		})
	}
}

func Test_parseScope(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    academia.Scope
		wantErr bool
	}{
		{name: "assignment", arg: "assignment:42", want: academia.Scope{Kind: academia.ScopeAssignment, ID: 42}},
		{name: "course", arg: "course:7", want: academia.Scope{Kind: academia.ScopeCourse, ID: 7}},
		{name: "empty", arg: "", wantErr: true},
		{name: "no id", arg: "assignment", wantErr: true},
		{name: "bad id", arg: "assignment:lol", wantErr: true},
		{name: "bad kind", arg: "topic:1", wantErr: true},
		{name: "zero id", arg: "course:0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScope(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseScope() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("parseScope() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_commandLine_importTeams(t *testing.T) {
	env := setup(t)

	crs, err := env.acaRepo.CreateCourse(academia.Course{Name: "CSC 517"})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	scope := crs.Scope()
	for _, uname := range []string{"u1", "u2", "u3"} {
		usr := testutil.CreateUser(t, env.usrRepo, "U "+uname, uname, uname+"@test.cd", "", nil, true)
		testutil.CreateParticipant(t, env.prtRepo, usr, scope, uname, testutil.DefaultFlags)
	}

	path := filepath.Join(t.TempDir(), "teams.csv")
	if err := os.WriteFile(path, []byte("Alpha,u1,u2\nBeta,u3\n"), 0o600); err != nil {
		t.Fatalf("os.WriteFile(): %v", err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"importteams"}, wantErr: errHelp},
		{name: "missing file", args: []string{"importteams", "-scope", "course:1"}, wantErr: errHelp},
		{name: "bad scope", args: []string{"importteams", "-scope", "lol", "-file", path}, wantErr: errHelp},
		{name: "teams imported", args: []string{"importteams", "-scope", fmt.Sprintf("course:%d", crs.ID), "-file", path}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, env.cli.run(args))
		})
	}

	teams, err := env.repo.QueryTeamsByScope(scope)
	if err != nil {
		t.Fatalf("QueryTeamsByScope(): %v", err)
	}
	if len(teams) != 2 {
		t.Errorf("teams = %d, want 2", len(teams))
	}
}

func Test_commandLine_randomTeams(t *testing.T) {
	env := setup(t)

	crs, err := env.acaRepo.CreateCourse(academia.Course{Name: "CSC 517"})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	scope := crs.Scope()
	for _, uname := range []string{"u1", "u2", "u3", "u4"} {
		usr := testutil.CreateUser(t, env.usrRepo, "U "+uname, uname, uname+"@test.cd", "", nil, true)
		testutil.CreateParticipant(t, env.prtRepo, usr, scope, uname, testutil.DefaultFlags)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"randomteams"}, wantErr: errHelp},
		{name: "bad scope", args: []string{"randomteams", "-scope", "lol"}, wantErr: errHelp},
		{name: "teams created", args: []string{"randomteams", "-scope", fmt.Sprintf("course:%d", crs.ID), "-min-size", "2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkCLIErr(t, tt, env.cli.run(args))
		})
	}

	teams, err := env.repo.QueryTeamsByScope(scope)
	if err != nil {
		t.Fatalf("QueryTeamsByScope(): %v", err)
	}
	if len(teams) != 2 {
		t.Errorf("teams = %d, want 2", len(teams))
	}
}
