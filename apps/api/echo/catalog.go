package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/catalog"
)

type catalogApi struct {
	catalog    *catalog.Catalog
	mailSvc    core.EmailService
	validate   *validator.Validate
	admissions mail.Address
}

func registerCatalogAPI(
	g *echo.Group,
	cat *catalog.Catalog,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := catalogApi{
		catalog:    cat,
		mailSvc:    mailSvc,
		validate:   validate,
		admissions: mail.Address{Name: conf.AppName + " Admissions", Address: conf.AdmissionsEmail},
	}

	cg := g.Group("/catalog")
	cg.GET("/areas", api.queryAreas)
	cg.GET("/areas/:area/programs", api.queryPrograms)
	cg.GET("/programs/:program", api.retrieveProgram)

	g.POST("/contact", api.contact)
}

// Handlers

func (api *catalogApi) queryAreas(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.catalog.Areas())
}

func (api *catalogApi) queryPrograms(ctx echo.Context) error {
	var filter catalog.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to catalog.QueryFilter")
	}
	filter.Degree = core.CleanString(filter.Degree, true /* lower */)
	filter.Modality = core.CleanString(filter.Modality, true /* lower */)

	programs, err := api.catalog.Programs(ctx.Param("area"), filter)
	if err != nil {
		return errors.Wrap(err, "querying programs")
	}
	return ctx.JSON(http.StatusOK, programs)
}

func (api *catalogApi) retrieveProgram(ctx echo.Context) error {
	program, err := api.catalog.Program(ctx.Param("program"))
	if err != nil {
		return errors.Wrap(err, "getting program")
	}
	return ctx.JSON(http.StatusOK, program)
}

func (api *catalogApi) contact(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	api.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{api.admissions},
		ReplyTo:      &mail.Address{Name: data.Name, Address: data.Email},
		Subject:      "Contact: " + data.Subject,
		TemplateName: "contact",
		TemplateData: data,
	})
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "Thank you, we will get back to you shortly."})
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Subject string `json:"subject" validate:"required,max=150"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (cr *ContactRequest) Validate(validate *validator.Validate) error {
	cr.Name = core.CleanString(cr.Name)
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	cr.Phone = core.CleanString(cr.Phone)
	cr.Subject = core.CleanString(cr.Subject)
	cr.Message = core.CleanString(cr.Message)
	return validate.Struct(cr)
}
