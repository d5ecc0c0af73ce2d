package enrollment

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

var (
	ErrMissingFields    = errors.New("missing required fields")
	ErrInvalidEmail     = errors.New("enter a valid email address")
	ErrWeakPassword     = errors.New("password must be at least 8 characters long and contain at least one lowercase letter, one uppercase letter and one digit")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidDocType   = errors.New("document type must be DNI or PASSPORT")
	ErrInvalidDNI       = errors.New("DNI must be exactly 8 digits")
	ErrProgramRequired  = errors.New("select a study area and a program")
	ErrMissingDocuments = errors.New("missing required documents")
	ErrEmailRegistered  = errors.New("email already registered")

	// custom validation tags & texts
	passwordStrengthTag  = "pwdstrength"
	passwordStrengthText = ErrWeakPassword.Error()
	dniTag               = "dni"
	dniText              = ErrInvalidDNI.Error()
)

// EmailDomainError is returned when the email provider is not accepted.
type EmailDomainError struct {
	Allowed []string
}

func (e *EmailDomainError) Error() string {
	return fmt.Sprintf("only %s email addresses are accepted", strings.Join(e.Allowed, ", "))
}

// InitValidators registers the enrollment validation tags, with their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	RegisterValidations(validate)
	core.RegisterCustomTranslation(validate, translator, passwordStrengthTag, passwordStrengthText)
	core.RegisterCustomTranslation(validate, translator, dniTag, dniText)
}

// RegisterValidations registers the `pwdstrength` and `dni` tags.
func RegisterValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation(passwordStrengthTag, func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	_ = validate.RegisterValidation(dniTag, func(fl validator.FieldLevel) bool {
		return IsValidDNI(fl.Field().String())
	})
}

// IsStrongPassword reports whether pwd has at least 8 characters (no line breaks)
// including a lowercase letter, an uppercase letter and a digit.
func IsStrongPassword(pwd string) bool {
	var count int
	var lower, upper, digit bool
	for _, r := range pwd {
		switch {
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			return false
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
		count++
	}
	return count >= 8 && lower && upper && digit
}

// IsValidDNI reports whether s is exactly 8 ASCII digits.
func IsValidDNI(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

type personalData struct {
	FirstName       string `validate:"required"`
	LastName        string `validate:"required"`
	Email           string `validate:"required"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required"`
	Country         string `validate:"required"`
	DocumentType    string `validate:"required"`
	DocumentNumber  string `validate:"required"`
	Nationality     string `validate:"required"`
	PhonePrefix     string `validate:"required"`
	PhoneNumber     string `validate:"required"`
}

// Validator checks the draft before leaving each step.
// Checks are run in order and the first failure is returned.
type Validator struct {
	validate       *validator.Validate
	allowedDomains []string
}

func NewValidator(validate *validator.Validate, allowedDomains []string) *Validator {
	RegisterValidations(validate)

	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		if d = core.CleanString(d, true); d != "" {
			domains = append(domains, d)
		}
	}
	return &Validator{validate: validate, allowedDomains: domains}
}

// PersonalData validates step 1.
func (v *Validator) PersonalData(d Draft) error {
	checks := []func(Draft) error{
		v.checkPresence,
		v.checkEmail,
		v.checkPasswordStrength,
		v.checkPasswordConfirmation,
		v.checkDocument,
	}
	for _, check := range checks {
		if err := check(d); err != nil {
			return err
		}
	}
	return nil
}

// ProgramSelection validates step 2.
func (v *Validator) ProgramSelection(d Draft) error {
	if d.StudyArea == "" || d.Program == "" {
		return ErrProgramRequired
	}
	return nil
}

// Documents validates step 3.
func (v *Validator) Documents(d Draft) error {
	if !d.Files.Complete() {
		return ErrMissingDocuments
	}
	return nil
}

func (v *Validator) checkPresence(d Draft) error {
	data := personalData{
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Email:           d.Email,
		Password:        d.Password,
		ConfirmPassword: d.ConfirmPassword,
		Country:         d.Country,
		DocumentType:    string(d.DocumentType),
		DocumentNumber:  d.DocumentNumber,
		Nationality:     d.Nationality,
		PhonePrefix:     d.Phone.Prefix,
		PhoneNumber:     d.Phone.Number,
	}
	if err := v.validate.Struct(data); err != nil {
		return ErrMissingFields
	}
	return nil
}

func (v *Validator) checkEmail(d Draft) error {
	if err := v.validate.Var(d.Email, "email"); err != nil {
		return ErrInvalidEmail
	}
	if len(v.allowedDomains) == 0 {
		return nil
	}

	domain := strings.ToLower(d.Email[strings.LastIndex(d.Email, "@")+1:])
	for _, allowed := range v.allowedDomains {
		if domain == allowed {
			return nil
		}
	}
	return &EmailDomainError{Allowed: v.allowedDomains}
}

func (v *Validator) checkPasswordStrength(d Draft) error {
	if !IsStrongPassword(d.Password) {
		return ErrWeakPassword
	}
	return nil
}

func (v *Validator) checkPasswordConfirmation(d Draft) error {
	if d.Password != d.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

func (v *Validator) checkDocument(d Draft) error {
	if !d.DocumentType.IsValid() {
		return ErrInvalidDocType
	}
	if d.DocumentType == DocumentDNI && !IsValidDNI(d.DocumentNumber) {
		return ErrInvalidDNI
	}
	return nil
}
