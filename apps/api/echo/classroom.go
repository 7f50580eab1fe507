package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/classroom"
)

type classroomApi struct {
	opts *Options
}

func registerClassroomAPI(g *echo.Group, auth echo.MiddlewareFunc, opts *Options) {
	api := classroomApi{opts: opts}

	// all classroom endpoints require a session
	cg := g.Group("/classrooms", auth)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.POST("/join", api.join)
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/leave", api.leave)
	cg.POST("/:id/members", api.addMember)
	cg.DELETE("/:id/members/:accountID", api.removeMember)
	cg.DELETE("/:id", api.destroy)
}

func (api *classroomApi) create(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(api.opts.Validate, api.opts.ClassroomSvc); err != nil {
		return err
	}

	room, err := api.opts.ClassroomSvc.Create(ctx.Request().Context(), acct, data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return respond(ctx, http.StatusCreated, room, "classroom created")
}

func (api *classroomApi) query(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	rooms, err := api.opts.ClassroomSvc.QueryForAccount(ctx.Request().Context(), acct.ID)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if rooms == nil {
		rooms = []classroom.Classroom{}
	}
	return respond(ctx, http.StatusOK, rooms, "classrooms")
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	room, err := api.opts.ClassroomSvc.Get(ctx.Request().Context(), acct, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting classroom")
	}
	return respond(ctx, http.StatusOK, room, "classroom")
}

func (api *classroomApi) join(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data JoinClassroomRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinClassroomRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	room, err := api.opts.ClassroomSvc.Join(ctx.Request().Context(), acct, data.Code)
	if err != nil {
		return errors.Wrap(err, "joining classroom")
	}
	return respond(ctx, http.StatusOK, room, "joined classroom")
}

func (api *classroomApi) leave(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	if err := api.opts.ClassroomSvc.Leave(ctx.Request().Context(), acct, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "leaving classroom")
	}
	return respond(ctx, http.StatusOK, nil, "left classroom")
}

func (api *classroomApi) addMember(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data AddMemberRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	member, err := api.opts.AccountSvc.GetByEmail(ctx.Request().Context(), data.Email)
	if err != nil {
		return errors.Wrap(err, "resolving member account")
	}

	room, err := api.opts.ClassroomSvc.AddMember(ctx.Request().Context(), acct, ctx.Param("id"), member.ID)
	if err != nil {
		return errors.Wrap(err, "adding classroom member")
	}
	return respond(ctx, http.StatusOK, room, "member added")
}

func (api *classroomApi) removeMember(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	err = api.opts.ClassroomSvc.RemoveMember(ctx.Request().Context(), acct, ctx.Param("id"), ctx.Param("accountID"))
	if err != nil {
		return errors.Wrap(err, "removing classroom member")
	}
	return respond(ctx, http.StatusOK, nil, "member removed")
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	if err := api.opts.ClassroomSvc.Delete(ctx.Request().Context(), acct, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return respond(ctx, http.StatusOK, nil, "classroom deleted")
}

type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (ar *AddMemberRequest) Validate(validate *validator.Validate) error {
	ar.Email = core.CleanString(ar.Email, true /* lower */)
	return validate.Struct(ar)
}

type JoinClassroomRequest struct {
	Code string `json:"code" validate:"required,len=7,excludesall= "`
}

func (jr *JoinClassroomRequest) Validate(validate *validator.Validate) error {
	jr.Code = core.CleanString(jr.Code)
	return validate.Struct(jr)
}
