package enrollment

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// RoleStudent is the role requested for every enrollment.
const RoleStudent = "STUDENT"

// UndeclaredProgram is submitted when the draft carries no program.
const UndeclaredProgram = "undeclared"

// payload part names
const (
	FieldEmail          = "email"
	FieldPassword       = "password"
	FieldName           = "name"
	FieldLastName       = "lastName"
	FieldRole           = "role"
	FieldCountry        = "country"
	FieldDocumentType   = "documentType"
	FieldDocumentNumber = "documentNumber"
	FieldNationality    = "nationality"
	FieldPhoneType      = "phoneType"
	FieldPhonePrefix    = "phonePrefix"
	FieldPhoneArea      = "phoneArea"
	FieldPhoneNumber    = "phoneNumber"
	FieldStudyArea      = "studyArea"
	FieldModality       = "modality"
	FieldProgram        = "program"
	FieldStartPeriod    = "startPeriod"

	AttachmentIdentity = "dniUrl"
	AttachmentDegree   = "degreeUrl"
)

var ErrInvalidSubmission = errors.New("some of your details are invalid, please review them")

type (
	// Part is either a Field or an Attachment.
	Part interface {
		PartName() string
		isPart()
	}

	Field struct {
		Name  string
		Value string
	}

	Attachment struct {
		Name string
		File File
	}

	// Payload is the registration submitted at the end of the wizard.
	Payload struct {
		Parts []Part
	}
)

func (f Field) PartName() string      { return f.Name }
func (f Field) isPart()               {}
func (a Attachment) PartName() string { return a.Name }
func (a Attachment) isPart()          {}

func (p *Payload) AddField(name, value string) {
	p.Parts = append(p.Parts, Field{Name: name, Value: value})
}

// AddOptionalField only adds non-empty values.
func (p *Payload) AddOptionalField(name, value string) {
	if value != "" {
		p.AddField(name, value)
	}
}

func (p *Payload) AddAttachment(name string, file File) {
	p.Parts = append(p.Parts, Attachment{Name: name, File: file})
}

// Field returns the value of the first field named `name`.
func (p Payload) Field(name string) (string, bool) {
	for _, part := range p.Parts {
		if f, ok := part.(Field); ok && f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Attachment returns the file of the first attachment named `name`.
func (p Payload) Attachment(name string) (File, bool) {
	for _, part := range p.Parts {
		if a, ok := part.(Attachment); ok && a.Name == name {
			return a.File, true
		}
	}
	return File{}, false
}

func (p Payload) Fields() []Field {
	var fields []Field
	for _, part := range p.Parts {
		if f, ok := part.(Field); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func (p Payload) Attachments() []Attachment {
	var attachments []Attachment
	for _, part := range p.Parts {
		if a, ok := part.(Attachment); ok {
			attachments = append(attachments, a)
		}
	}
	return attachments
}

type submissionShape struct {
	FirstName       string `validate:"required"`
	LastName        string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	Program         string `validate:"required"`
}

// Assembler turns a completed draft into the registration payload.
type Assembler struct {
	validate *validator.Validate
}

func NewAssembler(validate *validator.Validate) *Assembler {
	return &Assembler{validate: validate}
}

func (a *Assembler) Assemble(d Draft) (Payload, error) {
	if !d.Files.Complete() {
		return Payload{}, ErrMissingDocuments
	}

	program := d.Program
	if program == "" {
		program = UndeclaredProgram
	}
	shape := submissionShape{
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Email:           d.Email,
		Password:        d.Password,
		ConfirmPassword: d.ConfirmPassword,
		Program:         program,
	}
	if err := a.validate.Struct(shape); err != nil {
		return Payload{}, ErrInvalidSubmission
	}

	var p Payload
	p.AddField(FieldEmail, d.Email)
	p.AddField(FieldPassword, d.Password)
	p.AddField(FieldName, d.FirstName)
	p.AddField(FieldLastName, d.LastName)
	p.AddField(FieldRole, RoleStudent)
	p.AddOptionalField(FieldCountry, d.Country)
	p.AddOptionalField(FieldDocumentType, string(d.DocumentType))
	p.AddOptionalField(FieldDocumentNumber, d.DocumentNumber)
	p.AddOptionalField(FieldNationality, d.Nationality)
	p.AddOptionalField(FieldPhoneType, d.Phone.Type)
	p.AddOptionalField(FieldPhonePrefix, d.Phone.Prefix)
	p.AddOptionalField(FieldPhoneArea, d.Phone.AreaCode)
	p.AddOptionalField(FieldPhoneNumber, d.Phone.Number)
	p.AddOptionalField(FieldStudyArea, d.StudyArea)
	p.AddOptionalField(FieldModality, d.Modality)
	p.AddField(FieldProgram, program)
	p.AddOptionalField(FieldStartPeriod, d.StartPeriod)
	p.AddAttachment(AttachmentIdentity, *d.Files.Identity)
	p.AddAttachment(AttachmentDegree, *d.Files.Degree)
	return p, nil
}
