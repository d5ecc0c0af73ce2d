package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/enrollment"
)

// registration is the server-side view of an enrollment payload.
type registration struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,pwdstrength"`
	FirstName      string `json:"name" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Role           string `json:"role" validate:"required,eq=STUDENT"`
	Country        string `json:"country"`
	DocumentType   string `json:"documentType" validate:"omitempty,oneof=DNI PASSPORT"`
	DocumentNumber string `json:"documentNumber"`
	Nationality    string `json:"nationality"`
	PhoneType      string `json:"phoneType"`
	PhonePrefix    string `json:"phonePrefix"`
	PhoneArea      string `json:"phoneArea"`
	PhoneNumber    string `json:"phoneNumber"`
	StudyArea      string `json:"studyArea"`
	Modality       string `json:"modality"`
	Program        string `json:"program" validate:"required"`
	StartPeriod    string `json:"startPeriod"`

	documents map[enrollment.Slot]string // slot: staged key
}

func newRegistration(p enrollment.Payload) registration {
	field := func(name string) string {
		v, _ := p.Field(name)
		return v
	}
	reg := registration{
		Email:          core.CleanString(field(enrollment.FieldEmail), true /* lower */),
		Password:       field(enrollment.FieldPassword),
		FirstName:      core.CleanString(field(enrollment.FieldName)),
		LastName:       core.CleanString(field(enrollment.FieldLastName)),
		Role:           field(enrollment.FieldRole),
		Country:        field(enrollment.FieldCountry),
		DocumentType:   strings.ToUpper(field(enrollment.FieldDocumentType)),
		DocumentNumber: field(enrollment.FieldDocumentNumber),
		Nationality:    field(enrollment.FieldNationality),
		PhoneType:      field(enrollment.FieldPhoneType),
		PhonePrefix:    field(enrollment.FieldPhonePrefix),
		PhoneArea:      field(enrollment.FieldPhoneArea),
		PhoneNumber:    field(enrollment.FieldPhoneNumber),
		StudyArea:      field(enrollment.FieldStudyArea),
		Modality:       field(enrollment.FieldModality),
		Program:        field(enrollment.FieldProgram),
		StartPeriod:    field(enrollment.FieldStartPeriod),
		documents:      make(map[enrollment.Slot]string, 2),
	}
	if f, ok := p.Attachment(enrollment.AttachmentIdentity); ok && f.Key != "" {
		reg.documents[enrollment.SlotIdentity] = f.Key
	}
	if f, ok := p.Attachment(enrollment.AttachmentDegree); ok && f.Key != "" {
		reg.documents[enrollment.SlotDegree] = f.Key
	}
	return reg
}

var errRegistrationFailed = core.NewValidationError(ErrRegistrationFailed)

var errEmailRegistered = core.NewValidationError(
	enrollment.ErrEmailRegistered,
	core.FieldError{Field: "email", Error: enrollment.ErrEmailRegistered.Error()},
)

// studentDocumentKey is where the documents of an enrolled student are kept.
func studentDocumentKey(userID string, slot enrollment.Slot) string {
	return fmt.Sprintf("students/%s/%s", userID, slot)
}

// Register creates an inactive student account, and its pending profile, from an enrollment payload.
// The staged documents are moved under the student's own keys.
// Its errors are shown to the registrant: internal failures are logged, then reported as ErrRegistrationFailed.
func (svc *service) Register(ctx context.Context, payload enrollment.Payload) (bool, error) {
	ok, err := svc.register(ctx, payload)
	if err != nil {
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			svc.logger.Error("registering student", err)
			return false, errRegistrationFailed
		}
	}
	return ok, err
}

func (svc *service) register(ctx context.Context, payload enrollment.Payload) (bool, error) {
	reg := newRegistration(payload)
	if err := svc.validate.Struct(reg); err != nil {
		return false, core.NewValidationError(ErrInvalidRegistration)
	}
	if len(reg.documents) != len(enrollment.Slots) {
		return false, core.NewValidationError(enrollment.ErrMissingDocuments)
	}
	for _, key := range reg.documents {
		ok, err := svc.blobs.Exists(ctx, key)
		if err != nil {
			return false, errors.Wrapf(err, "checking %s", key)
		}
		if !ok {
			return false, core.NewValidationError(enrollment.ErrMissingDocuments)
		}
	}

	now := NowFunc().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      reg.FirstName + " " + reg.LastName,
		Email:     reg.Email,
		IsActive:  false, // until approved
		Roles:     []string{RoleStudent},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(reg.Password); err != nil {
		return false, errors.Wrap(err, "setting password")
	}
	profile := StudentProfile{
		UserID:         usr.ID,
		Email:          usr.Email,
		FirstName:      reg.FirstName,
		LastName:       reg.LastName,
		Country:        reg.Country,
		DocumentType:   reg.DocumentType,
		DocumentNumber: reg.DocumentNumber,
		Nationality:    reg.Nationality,
		PhoneType:      reg.PhoneType,
		PhonePrefix:    reg.PhonePrefix,
		PhoneArea:      reg.PhoneArea,
		PhoneNumber:    reg.PhoneNumber,
		StudyArea:      reg.StudyArea,
		Modality:       reg.Modality,
		Program:        reg.Program,
		StartPeriod:    reg.StartPeriod,
		DNIKey:         studentDocumentKey(usr.ID, enrollment.SlotIdentity),
		DegreeKey:      studentDocumentKey(usr.ID, enrollment.SlotDegree),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	promoted, err := svc.promoteDocuments(ctx, reg.documents, usr.ID)
	if err != nil {
		svc.deleteDocuments(ctx, promoted)
		return false, errors.Wrap(err, "promoting documents")
	}

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		err := svc.repo.CheckUsernameUniqueness(ctx, "", usr.Email, "", exec)
		if err == nil {
			usr, err = svc.repo.CreateUser(ctx, usr, exec)
		}
		if err != nil {
			// the unique constraint also catches concurrent registrations
			if errors.Cause(err) == ErrEmailExists {
				return errEmailRegistered
			}
			return errors.Wrap(err, "creating student")
		}
		if profile, err = svc.students.CreateStudentProfile(ctx, profile, exec); err != nil {
			return errors.Wrap(err, "creating student profile")
		}
		return nil
	})
	if err != nil {
		svc.deleteDocuments(ctx, promoted)
		return false, err
	}

	staged := make([]string, 0, len(reg.documents))
	for _, key := range reg.documents {
		staged = append(staged, key)
	}
	svc.deleteDocuments(ctx, staged)

	svc.sendEnrollmentReceivedMail(usr, profile)
	return true, nil
}

// promoteDocuments copies the staged documents concurrently and returns the keys created.
func (svc *service) promoteDocuments(ctx context.Context, staged map[enrollment.Slot]string, userID string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	keys := make([]string, len(enrollment.Slots))
	for i, slot := range enrollment.Slots {
		i, src, dst := i, staged[slot], studentDocumentKey(userID, slot)
		g.Go(func() error {
			if err := svc.blobs.Copy(gctx, src, dst); err != nil {
				return errors.Wrapf(err, "copying %s", src)
			}
			keys[i] = dst
			return nil
		})
	}
	err := g.Wait()

	promoted := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			promoted = append(promoted, key)
		}
	}
	return promoted, err
}

// deleteDocuments is best effort.
func (svc *service) deleteDocuments(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := svc.blobs.Delete(ctx, key); err != nil {
			svc.logger.Warn("deleting document", err, map[string]interface{}{"key": key})
		}
	}
}

func (svc *service) sendEnrollmentReceivedMail(usr User, profile StudentProfile) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Enrollment Received",
		TemplateName: "enrollment_received",
		TemplateData: map[string]string{
			"FirstName":   profile.FirstName,
			"Program":     profile.Program,
			"StartPeriod": profile.StartPeriod,
		},
	})
}
