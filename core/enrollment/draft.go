// Package enrollment implements the student enrollment wizard: a four steps flow collecting
// personal data, the program selection and the required documents before registering the student.
package enrollment

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/catalog"
)

type DocumentType string

const (
	DocumentDNI      DocumentType = "DNI"
	DocumentPassport DocumentType = "PASSPORT"
)

func (dt DocumentType) IsValid() bool {
	return dt == DocumentDNI || dt == DocumentPassport
}

var (
	// errors
	ErrStudyAreaRequired = errors.New("select a study area first")
	ErrUnknownStudyArea  = errors.New("unknown study area")
	ErrProgramNotInArea  = errors.New("the selected program is not offered in this study area")
)

// ProgramCatalog is the subset of catalog.Catalog used to check the academic selection.
type ProgramCatalog interface {
	Area(slug string) (catalog.StudyArea, error)
	Program(slug string) (catalog.Program, error)
	HasProgram(area, program string) bool
}

type Phone struct {
	Type     string `json:"type"`
	Prefix   string `json:"prefix"`
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

// Draft is the registration record being filled in across the wizard steps.
type Draft struct {
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Email           string       `json:"email"`
	Password        string       `json:"password"`
	ConfirmPassword string       `json:"confirm_password"`
	Country         string       `json:"country"`
	DocumentType    DocumentType `json:"document_type"`
	DocumentNumber  string       `json:"document_number"`
	Nationality     string       `json:"nationality"`
	Phone           Phone        `json:"phone"`

	// academic selection
	StudyArea   string `json:"study_area"`
	Modality    string `json:"modality"`
	Program     string `json:"program"`
	StartPeriod string `json:"start_period"`

	Files Files `json:"files"`
}

// DraftPatch holds the fields to change; nil fields are left untouched.
// The study area and the program are changed with Draft.SelectStudyArea and Draft.SelectProgram.
type DraftPatch struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirm_password"`
	Country         *string `json:"country"`
	DocumentType    *string `json:"document_type"`
	DocumentNumber  *string `json:"document_number"`
	Nationality     *string `json:"nationality"`
	PhoneType       *string `json:"phone_type"`
	PhonePrefix     *string `json:"phone_prefix"`
	PhoneAreaCode   *string `json:"phone_area_code"`
	PhoneNumber     *string `json:"phone_number"`
	Modality        *string `json:"modality"`
	StartPeriod     *string `json:"start_period"`
}

// Prefill is the academic selection handed over by the page the user comes from (eg. a program page).
type Prefill struct {
	StudyArea string `json:"study_area" query:"study_area"`
	Program   string `json:"program" query:"program"`
}

func (d *Draft) Apply(p DraftPatch) {
	set := func(dst *string, src *string, lower ...bool) {
		if src != nil {
			*dst = core.CleanString(*src, lower...)
		}
	}
	set(&d.FirstName, p.FirstName)
	set(&d.LastName, p.LastName)
	set(&d.Email, p.Email, true /* lower */)
	set(&d.Country, p.Country)
	set(&d.DocumentNumber, p.DocumentNumber)
	set(&d.Nationality, p.Nationality)
	set(&d.Phone.Type, p.PhoneType)
	set(&d.Phone.Prefix, p.PhonePrefix)
	set(&d.Phone.AreaCode, p.PhoneAreaCode)
	set(&d.Phone.Number, p.PhoneNumber)
	set(&d.Modality, p.Modality)
	set(&d.StartPeriod, p.StartPeriod)

	// passwords are kept verbatim
	if p.Password != nil {
		d.Password = *p.Password
	}
	if p.ConfirmPassword != nil {
		d.ConfirmPassword = *p.ConfirmPassword
	}
	if p.DocumentType != nil {
		d.DocumentType = DocumentType(strings.ToUpper(core.CleanString(*p.DocumentType)))
	}
}

// SelectStudyArea sets the study area and always resets the program,
// even when the same area is selected again.
func (d *Draft) SelectStudyArea(area string, c ProgramCatalog) error {
	area = core.CleanString(area)
	if area != "" && c != nil {
		if _, err := c.Area(area); err != nil {
			return ErrUnknownStudyArea
		}
	}
	d.StudyArea = area
	d.Program = ""
	return nil
}

func (d *Draft) SelectProgram(program string, c ProgramCatalog) error {
	if d.StudyArea == "" {
		return ErrStudyAreaRequired
	}
	program = core.CleanString(program)
	if program != "" && c != nil && !c.HasProgram(d.StudyArea, program) {
		return ErrProgramNotInArea
	}
	d.Program = program
	return nil
}

// prefill applies the referrer's selection, silently ignoring anything the catalog does not know.
func (d *Draft) prefill(p Prefill, c ProgramCatalog) {
	if p.Program != "" && c != nil {
		prog, err := c.Program(p.Program)
		if err != nil || (p.StudyArea != "" && p.StudyArea != prog.Area) {
			return
		}
		d.StudyArea = prog.Area
		d.Program = prog.Slug
		return
	}
	if p.StudyArea != "" {
		_ = d.SelectStudyArea(p.StudyArea, c)
	}
}
