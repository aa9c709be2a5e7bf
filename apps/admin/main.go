package main

import (
	"log"
	"os"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
	emailsvc "github.com/trezcool/kundi/services/email"
	logsvc "github.com/trezcool/kundi/services/logger"
	"github.com/trezcool/kundi/storage/database"
	sqlxrepos "github.com/trezcool/kundi/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	dbx := sqlxrepos.Wrap(db)
	usrRepo := sqlxrepos.NewUserRepository(dbx)
	acaRepo := sqlxrepos.NewAcademiaRepository(dbx)
	prtRepo := sqlxrepos.NewParticipantRepository(dbx)
	teamRepo := sqlxrepos.NewTeamRepository(dbx)

	usrSvc := user.NewService(usrRepo)
	prtSvc := participant.NewService(prtRepo, usrRepo)
	teamSvc := team.NewService(
		teamRepo, acaRepo, prtSvc, usrSvc,
		emailsvc.NewConsoleService(conf), conf, svcLogger,
	)
	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		teamSvc: teamSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
