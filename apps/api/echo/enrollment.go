package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/enrollment"
)

type enrollmentApi struct {
	ctrl        *enrollment.Controller
	auth        *Auth
	maxFileSize int64
}

func registerEnrollmentAPI(g *echo.Group, auth *Auth, ctrl *enrollment.Controller, maxFileSize int64) {
	if maxFileSize <= 0 {
		maxFileSize = enrollment.DefaultMaxFileSize
	}
	api := enrollmentApi{
		ctrl:        ctrl,
		auth:        auth,
		maxFileSize: maxFileSize,
	}

	eg := g.Group("/enrollments")
	eg.POST("", api.start)

	sg := eg.Group("/:id")
	sg.GET("", api.retrieve)
	sg.DELETE("", api.cancel)
	sg.PATCH("/draft", api.updateDraft)
	sg.PUT("/study-area", api.selectStudyArea)
	sg.PUT("/program", api.selectProgram)
	// oversized documents must reach the gate, which clears the slot
	sg.PUT("/files/:slot", api.attachFile, api.rejectOversized, middleware.BodyLimit(uploadBodyLimit(maxFileSize)))
	sg.DELETE("/files/:slot", api.detachFile)
	sg.POST("/next", api.next)
	sg.POST("/back", api.back)
}

// Handlers

func (api *enrollmentApi) start(ctx echo.Context) error {
	var prefill enrollment.Prefill
	if err := ctx.Bind(&prefill); err != nil {
		return errors.Wrap(err, "binding to Prefill")
	}

	st, err := api.ctrl.Start(ctx.Request().Context(), prefill, api.auth.hasValidToken(ctx))
	if err != nil {
		return errors.Wrap(err, "starting enrollment")
	}
	return ctx.JSON(http.StatusCreated, newStateResponse(st))
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	st, err := api.ctrl.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

func (api *enrollmentApi) cancel(ctx echo.Context) error {
	if err := api.ctrl.Cancel(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "canceling enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) updateDraft(ctx echo.Context) error {
	var patch enrollment.DraftPatch
	if err := ctx.Bind(&patch); err != nil {
		return errors.Wrap(err, "binding to DraftPatch")
	}

	st, err := api.ctrl.UpdateDraft(ctx.Request().Context(), ctx.Param("id"), patch)
	if err != nil {
		return errors.Wrap(err, "updating draft")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

func (api *enrollmentApi) selectStudyArea(ctx echo.Context) error {
	var data StudyAreaRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudyAreaRequest")
	}

	st, err := api.ctrl.SelectStudyArea(ctx.Request().Context(), ctx.Param("id"), data.StudyArea)
	if err != nil {
		return errors.Wrap(err, "selecting study area")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

func (api *enrollmentApi) selectProgram(ctx echo.Context) error {
	var data ProgramRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgramRequest")
	}

	st, err := api.ctrl.SelectProgram(ctx.Request().Context(), ctx.Param("id"), data.Program)
	if err != nil {
		return errors.Wrap(err, "selecting program")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

func (api *enrollmentApi) attachFile(ctx echo.Context) error {
	slot, err := enrollment.ParseSlot(ctx.Param("slot"))
	if err != nil {
		return err
	}
	up, closeFile, err := bindUpload(ctx, uploadField)
	if err != nil {
		return err
	}
	defer closeFile()

	st, err := api.ctrl.AttachFile(ctx.Request().Context(), ctx.Param("id"), slot, up)
	if err != nil {
		return errors.Wrap(err, "attaching file")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

// rejectOversized turns a request refused by the body limit into a rejection of the document by the gate.
func (api *enrollmentApi) rejectOversized(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		err := next(ctx)
		if err == nil || !errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return err
		}
		slot, perr := enrollment.ParseSlot(ctx.Param("slot"))
		if perr != nil {
			return perr
		}
		if _, err = api.ctrl.RejectFile(ctx.Request().Context(), ctx.Param("id"), slot); err != nil {
			return errors.Wrap(err, "rejecting file")
		}
		return nil
	}
}

func (api *enrollmentApi) detachFile(ctx echo.Context) error {
	slot, err := enrollment.ParseSlot(ctx.Param("slot"))
	if err != nil {
		return err
	}

	st, err := api.ctrl.DetachFile(ctx.Request().Context(), ctx.Param("id"), slot)
	if err != nil {
		return errors.Wrap(err, "detaching file")
	}
	return ctx.JSON(http.StatusOK, newStateResponse(st))
}

func (api *enrollmentApi) next(ctx echo.Context) error {
	tr, err := api.ctrl.Next(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "moving to the next step")
	}
	return ctx.JSON(http.StatusOK, newTransitionResponse(tr))
}

func (api *enrollmentApi) back(ctx echo.Context) error {
	tr, err := api.ctrl.Back(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "moving to the previous step")
	}
	return ctx.JSON(http.StatusOK, newTransitionResponse(tr))
}

type (
	StudyAreaRequest struct {
		StudyArea string `json:"study_area"`
	}

	ProgramRequest struct {
		Program string `json:"program"`
	}

	// StateResponse is an enrollment session, without the passwords.
	StateResponse struct {
		enrollment.State
	}

	TransitionResponse struct {
		State       StateResponse   `json:"state"`
		From        enrollment.Step `json:"from"`
		ResetScroll bool            `json:"reset_scroll"`
	}
)

func newStateResponse(st enrollment.State) StateResponse {
	st.Draft.Password = ""
	st.Draft.ConfirmPassword = ""
	return StateResponse{State: st}
}

func newTransitionResponse(tr enrollment.Transition) TransitionResponse {
	return TransitionResponse{
		State:       newStateResponse(tr.State),
		From:        tr.From,
		ResetScroll: tr.ResetScroll(),
	}
}
