package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	usrSvc  *user.Service
	teamSvc *team.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up, down, status...)")
	fmt.Println("  createuser -username USERNAME -email EMAIL [-admin] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  importteams -scope KIND:ID -file FILE.csv [-dup ignore|rename|replace] [-no-team-name] - import teams from CSV")
	fmt.Println("  randomteams -scope KIND:ID -min-size N - partition unassigned participants into teams")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createUserCmd := flag.NewFlagSet("createuser", flag.ExitOnError)
	createUserUname := createUserCmd.String("username", "", "The user's username.")
	createUserEmail := createUserCmd.String("email", "", "The user's email.")
	createUserAdmin := createUserCmd.Bool("admin", false, "Grant all roles. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importTeamsCmd := flag.NewFlagSet("importteams", flag.ExitOnError)
	importTeamsScope := importTeamsCmd.String("scope", "", "The destination scope, e.g. assignment:42 or course:7.")
	importTeamsFile := importTeamsCmd.String("file", "", "The CSV file to import.")
	importTeamsDup := importTeamsCmd.String("dup", "", "Duplicate team name handling: ignore, rename or replace.")
	importTeamsNoName := importTeamsCmd.Bool("no-team-name", false, "Rows carry member usernames only; team names are generated.")

	randomTeamsCmd := flag.NewFlagSet("randomteams", flag.ExitOnError)
	randomTeamsScope := randomTeamsCmd.String("scope", "", "The scope, e.g. assignment:42 or course:7.")
	randomTeamsMinSize := randomTeamsCmd.Int("min-size", 2, "The minimum team size.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createuser":
		if err := createUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createUserUname == "" || *createUserEmail == "" {
			createUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			if err == errHelp {
				createUserCmd.Usage()
			}
			return err
		}
		return cli.addUser(*createUserUname, *createUserEmail, pwd, *createUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			if err == errHelp {
				resetPasswordCmd.Usage()
			}
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "importteams":
		if err := importTeamsCmd.Parse(args[2:]); err != nil {
			return err
		}
		scope, err := parseScope(*importTeamsScope)
		if err != nil || *importTeamsFile == "" {
			importTeamsCmd.Usage()
			return errHelp
		}
		return cli.importTeams(scope, *importTeamsFile, team.ImportOptions{
			HasTeamName: !*importTeamsNoName,
			DupHandling: *importTeamsDup,
		})
	case "randomteams":
		if err := randomTeamsCmd.Parse(args[2:]); err != nil {
			return err
		}
		scope, err := parseScope(*randomTeamsScope)
		if err != nil {
			randomTeamsCmd.Usage()
			return errHelp
		}
		return cli.teamSvc.CreateRandomTeams(scope, *randomTeamsMinSize)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}

// parseScope parses a "kind:id" value.
func parseScope(s string) (academia.Scope, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return academia.Scope{}, fmt.Errorf("invalid scope %q", s)
	}
	var id int
	if _, err := fmt.Sscanf(parts[1], "%d", &id); err != nil {
		return academia.Scope{}, fmt.Errorf("invalid scope %q", s)
	}
	scope := academia.Scope{Kind: academia.ScopeKind(parts[0]), ID: id}
	if err := scope.Validate(); err != nil {
		return academia.Scope{}, err
	}
	return scope, nil
}
