package echoapi

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core"
	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/participant"
	"github.com/trezcool/kundi/core/team"
	"github.com/trezcool/kundi/core/user"
)

type (
	DutyRequest struct {
		Duty string `json:"duty"`
	}

	AddMemberRequest struct {
		Username string `json:"username" validate:"required"`
	}

	DeleteMembersRequest struct {
		IDs []int `json:"ids"`
	}

	CopyTeamRequest struct {
		Scope academia.Scope `json:"scope"`
	}

	MemberResponse struct {
		MembershipID int         `json:"membership_id"`
		Participant  int         `json:"participant_id"`
		Name         string      `json:"name"`
		Handle       string      `json:"handle"`
		Role         string      `json:"role"`
		Duty         null.String `json:"duty"`
	}

	TeamParticipantsResponse struct {
		TeamID  int              `json:"team_id"`
		Name    string           `json:"name"`
		Scope   academia.Scope   `json:"scope"`
		Members []MemberResponse `json:"members"`
	}
)

func (r *AddMemberRequest) Validate() error {
	r.Username = core.CleanString(r.Username, true /* lower */)
	return core.Validate.Struct(r)
}

type (
	teamAPIDeps struct {
		svc    *team.Service
		prtSvc *participant.Service
		usrSvc *user.Service
		acaSvc *academia.Service
		conf   *core.Config
	}

	teamApi struct {
		teamAPIDeps
	}
)

func registerTeamAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps teamAPIDeps) {
	api := teamApi{teamAPIDeps: deps}

	// duty update is open to the membership's own student
	g.PUT("/teams-participants/:id/duty", api.updateDuty, jwt)

	tg := g.Group("/teams", jwt)
	tg.POST("/import", api.importTeams, staffMiddleware())
	tg.GET("/export", api.exportTeams, staffMiddleware())

	dg := tg.Group("/:id")
	dg.GET("/participants", api.listParticipants)
	dg.POST("/participants", api.addParticipant, staffMiddleware())
	dg.DELETE("/participants", api.removeParticipants, staffMiddleware())
	dg.POST("/copy", api.copyTeam, staffMiddleware())
}

// Handlers

func (api *teamApi) updateDuty(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data DutyRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DutyRequest")
	}

	mship, err := api.svc.GetMembership(id)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.IsTeacher) {
		prt, err := api.prtSvc.GetByID(mship.ParticipantID)
		if err != nil {
			return err
		}
		if prt.UserID != claims.Subject {
			return errHttpForbidden
		}
	}

	duty := null.String{}
	if data.Duty != "" {
		duty = null.StringFrom(core.CleanString(data.Duty))
	}
	mship, err = api.svc.UpdateDuty(mship.ID, duty)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mship)
}

func (api *teamApi) getTeam(ctx echo.Context) (team.Team, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return team.Team{}, errHttpNotFound
	}
	return api.svc.GetByID(id)
}

func (api *teamApi) listParticipants(ctx echo.Context) error {
	t, err := api.getTeam(ctx)
	if err != nil {
		return err
	}

	mships, err := api.svc.Memberships(t)
	if err != nil {
		return err
	}
	anonymized := api.conf.AnonymizedView

	members := make([]MemberResponse, 0, len(mships))
	names, err := api.svc.MemberNames(t, anonymized)
	if err != nil {
		return err
	}
	for i, m := range mships {
		prt, err := api.prtSvc.GetByID(m.ParticipantID)
		if err != nil {
			return err
		}
		handle := prt.Handle
		if anonymized {
			handle = names[i]
		}
		members = append(members, MemberResponse{
			MembershipID: m.ID,
			Participant:  prt.ID,
			Name:         names[i],
			Handle:       handle,
			Role:         prt.Authorization(),
			Duty:         m.Duty,
		})
	}

	return ctx.JSON(http.StatusOK, TeamParticipantsResponse{
		TeamID:  t.ID,
		Name:    t.DisplayName(anonymized),
		Scope:   t.Scope,
		Members: members,
	})
}

func (api *teamApi) addParticipant(ctx echo.Context) error {
	t, err := api.getTeam(ctx)
	if err != nil {
		return err
	}

	var data AddMemberRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	usr, err := api.usrSvc.GetByUsername(data.Username)
	if err != nil {
		return err
	}

	added, err := api.svc.AddMember(t, usr)
	if err != nil {
		if errors.Cause(err) == team.ErrAlreadyMember {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	if !added {
		return errTeamAtCapacity
	}
	return ctx.NoContent(http.StatusCreated)
}

func (api *teamApi) removeParticipants(ctx echo.Context) error {
	t, err := api.getTeam(ctx)
	if err != nil {
		return err
	}

	var data DeleteMembersRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteMembersRequest")
	}

	if err = api.svc.DeleteMemberships(t, data.IDs...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teamApi) copyTeam(ctx echo.Context) error {
	t, err := api.getTeam(ctx)
	if err != nil {
		return err
	}

	var data CopyTeamRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CopyTeamRequest")
	}
	if err = data.Scope.Validate(); err != nil {
		return err
	}

	newTeam, err := api.svc.CopyToScope(t, data.Scope)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newTeam)
}

// bindScope parses the scope out of query params.
func bindScope(ctx echo.Context) (academia.Scope, error) {
	id, err := strconv.Atoi(ctx.QueryParam("scope_id"))
	if err != nil {
		id = 0
	}
	scope := academia.Scope{Kind: academia.ScopeKind(ctx.QueryParam("scope_kind")), ID: id}
	if err = scope.Validate(); err != nil {
		return academia.Scope{}, err
	}
	return scope, nil
}

func (api *teamApi) importTeams(ctx echo.Context) error {
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}
	opts := team.ImportOptions{
		HasTeamName: ctx.QueryParam("has_team_name") != "false",
		DupHandling: ctx.QueryParam("dup_handling"),
	}

	r := csv.NewReader(ctx.Request().Body)
	r.FieldsPerRecord = -1 // ragged rows; row shape is validated downstream
	var count int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.NewValidationError(errors.Wrap(err, "malformed CSV"))
		}

		row := team.Row{Members: rec}
		if opts.HasTeamName && len(rec) > 0 {
			row = team.Row{TeamName: rec[0], Members: rec[1:]}
		}
		if err = api.svc.ImportTeam(scope, row, opts); err != nil {
			return err
		}
		count++
	}

	return ctx.JSON(http.StatusOK, echo.Map{"imported": count})
}

func (api *teamApi) exportTeams(ctx echo.Context) error {
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}
	opts := team.ExportOptions{IncludeMembers: ctx.QueryParam("include_members") != "false"}

	rows, err := api.svc.ExportTeams(scope, opts)
	if err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="teams.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	for _, row := range rows {
		rec := append([]string{row.TeamName}, row.Members...)
		if err = w.Write(rec); err != nil {
			return errors.Wrap(err, "writing CSV")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing CSV")
}
