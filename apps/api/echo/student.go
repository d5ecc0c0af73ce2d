package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/enrollment"
	"github.com/trezcool/campus/core/user"
)

type studentApi struct {
	svc user.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.Service) {
	api := studentApi{svc: svc}

	sg := g.Group("/students", jwt, adminMiddleware())
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/documents/:slot", api.downloadDocument)
	sg.POST("/:id/approve", api.approve)
	sg.POST("/:id/reject", api.reject)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter user.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	filter.Clean()

	profiles, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if profiles == nil {
		profiles = []user.StudentProfile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	profile, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *studentApi) downloadDocument(ctx echo.Context) error {
	slot, err := enrollment.ParseSlot(ctx.Param("slot"))
	if err != nil {
		return err
	}

	r, err := api.svc.StudentDocument(ctx.Request().Context(), ctx.Param("id"), slot)
	if err != nil {
		return errors.Wrap(err, "getting student document")
	}
	defer func() { _ = r.Close() }()

	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading student document")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+string(slot)+`"`)
	return ctx.Blob(http.StatusOK, http.DetectContentType(content), content)
}

func (api *studentApi) approve(ctx echo.Context) error {
	reviewer, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	profile, err := api.svc.ApproveStudent(ctx.Request().Context(), ctx.Param("id"), reviewer)
	if err != nil {
		return errors.Wrap(err, "approving student")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *studentApi) reject(ctx echo.Context) error {
	var data RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	reviewer, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	profile, err := api.svc.RejectStudent(ctx.Request().Context(), ctx.Param("id"), reviewer, data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting student")
	}
	return ctx.JSON(http.StatusOK, profile)
}

type RejectRequest struct {
	Reason string `json:"reason"`
}
