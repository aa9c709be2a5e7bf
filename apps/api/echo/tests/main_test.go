package tests

import (
	"os"
	"testing"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
	emailsvc "github.com/trezcool/kundi/services/email"
	inmemdb "github.com/trezcool/kundi/storage/database/inmem"
	testutil "github.com/trezcool/kundi/tests"

	echoapi "github.com/trezcool/kundi/apps/api/echo"
)

var (
	conf *core.Config
	app  *echoapi.Server
	db   *inmemdb.DB

	usrRepo  user.Repository
	acaRepo  academia.Repository
	prtRepo  participant.Repository
	teamRepo team.Repository

	prtSvc  *participant.Service
	teamSvc *team.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()

	// set up DB & repos
	var err error
	if db, err = inmemdb.Open(); err != nil {
		os.Exit(1)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	acaRepo = inmemdb.NewAcademiaRepository(db)
	prtRepo = inmemdb.NewParticipantRepository(db)
	teamRepo = inmemdb.NewTeamRepository(db)

	// set up services
	logger := testutil.Logger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo)
	acaSvc := academia.NewService(acaRepo)
	prtSvc = participant.NewService(prtRepo, usrRepo)
	teamSvc = team.NewService(teamRepo, acaRepo, prtSvc, usrSvc, mailSvc, conf, logger)

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		AcademiaSvc:    acaSvc,
		ParticipantSvc: prtSvc,
		TeamSvc:        teamSvc,
		DisableReqLogs: true,
	})

	os.Exit(m.Run())
}
