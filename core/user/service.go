package user

import (
	"context"
	"io"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/enrollment"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = errors.New("user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrUsernameExists      = errors.New("a user with this username already exists")
	ErrProfileNotFound     = errors.New("student profile not found")
	ErrAlreadyReviewed     = errors.New("this enrollment has already been reviewed")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidResetLink    = errors.New("the password reset link is invalid or has expired")
	ErrInvalidRegistration = errors.New("invalid registration data")
	ErrRegistrationFailed  = errors.New(enrollment.GenericSubmissionFailure)
)

type (
	// Repository persists users. Every method runs on exec when one is provided.
	Repository interface {
		// CheckUsernameUniqueness ignores empty values and the user identified by excludedID.
		CheckUsernameUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// UpdateUser saves the user's attributes; PasswordHash, Roles and LastLogin are only saved when set.
		UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	StudentRepository interface {
		CreateStudentProfile(ctx context.Context, profile StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		GetStudentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (StudentProfile, error)
		QueryStudentProfiles(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]StudentProfile, error)
		UpdateStudentProfile(ctx context.Context, profile StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		FindByEmail(ctx context.Context, email string) (bool, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error

		// Register creates the inactive student account described by an enrollment payload.
		Register(ctx context.Context, payload enrollment.Payload) (bool, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]StudentProfile, error)
		GetStudent(ctx context.Context, userID string) (StudentProfile, error)
		StudentDocument(ctx context.Context, userID string, slot enrollment.Slot) (io.ReadCloser, error)
		ApproveStudent(ctx context.Context, userID string, reviewer User) (StudentProfile, error)
		RejectStudent(ctx context.Context, userID string, reviewer User, reason string) (StudentProfile, error)
	}

	ServiceDeps struct {
		DB       core.DB // nil with in-memory repositories
		Repo     Repository
		Students StudentRepository
		Blobs    core.BlobStorage
		MailSvc  core.EmailService
		Validate *validator.Validate
		Logger   core.Logger
		Conf     *core.Config
	}

	service struct {
		db       core.DB
		repo     Repository
		students StudentRepository
		blobs    core.BlobStorage
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
		tokens   tokenGenerator
	}
)

var (
	_ Service               = (*service)(nil)
	_ enrollment.UserLookup = (Service)(nil)
	_ enrollment.Registrar  = (Service)(nil)
)

func NewService(deps ServiceDeps) Service {
	return newService(deps)
}

func newService(deps ServiceDeps) *service {
	return &service{
		db:       deps.DB,
		repo:     deps.Repo,
		students: deps.Students,
		blobs:    deps.Blobs,
		mailSvc:  deps.MailSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
		tokens:   newTokenGenerator(deps.Conf),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	return svc.checkUniqueness(ctx, uname, email, exclUsers)
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exclUsers []User, exec ...core.DBExecutor) error {
	var excludedID string
	if len(exclUsers) > 0 {
		excludedID = exclUsers[0].ID
	}
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, excludedID, exec...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.IsActive != nil {
		usr.IsActive = *nu.IsActive
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, orderings)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

// FindByEmail reports whether an account is registered with email.
func (svc *service) FindByEmail(ctx context.Context, email string) (bool, error) {
	if _, err := svc.GetByEmail(ctx, email); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding user by email")
	}
	return true, nil
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: NowFunc().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	usr.LastLogin = now
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrInvalidResetLink)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return errors.Wrap(err, "updating user")
}

func (svc *service) QueryStudents(ctx context.Context, filter StudentFilter) ([]StudentProfile, error) {
	return svc.students.QueryStudentProfiles(ctx, filter)
}

func (svc *service) GetStudent(ctx context.Context, userID string) (StudentProfile, error) {
	return svc.students.GetStudentProfile(ctx, userID)
}

func (svc *service) StudentDocument(ctx context.Context, userID string, slot enrollment.Slot) (io.ReadCloser, error) {
	profile, err := svc.students.GetStudentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	key := profile.DocumentKey(slot)
	if key == "" {
		return nil, ErrDocumentNotFound
	}
	r, err := svc.blobs.Download(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", key)
	}
	return r, nil
}

func (svc *service) ApproveStudent(ctx context.Context, userID string, reviewer User) (StudentProfile, error) {
	return svc.reviewStudent(ctx, userID, reviewer, StatusApproved, "")
}

func (svc *service) RejectStudent(ctx context.Context, userID string, reviewer User, reason string) (StudentProfile, error) {
	return svc.reviewStudent(ctx, userID, reviewer, StatusRejected, core.CleanString(reason))
}

// reviewStudent closes a pending enrollment. Approved students get their account activated.
func (svc *service) reviewStudent(ctx context.Context, userID string, reviewer User, status, note string) (StudentProfile, error) {
	var (
		profile StudentProfile
		usr     User
	)
	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		if profile, err = svc.students.GetStudentProfile(ctx, userID, exec); err != nil {
			return err
		}
		if !profile.IsPending() {
			return core.NewValidationError(ErrAlreadyReviewed)
		}

		now := NowFunc().UTC()
		profile.Status = status
		profile.ReviewedBy = reviewer.ID
		profile.ReviewedAt = now
		profile.ReviewNote = note
		profile.UpdatedAt = now
		if profile, err = svc.students.UpdateStudentProfile(ctx, profile, exec); err != nil {
			return errors.Wrap(err, "updating student profile")
		}

		if usr, err = svc.repo.GetUser(ctx, GetFilter{ID: userID}, exec); err != nil {
			return errors.Wrap(err, "finding student")
		}
		if status == StatusApproved {
			active := true
			usr.UpdatedAt = now
			if usr, err = svc.repo.UpdateUser(ctx, usr, &active, exec); err != nil {
				return errors.Wrap(err, "activating student")
			}
		}
		return nil
	})
	if err != nil {
		return StudentProfile{}, err
	}

	svc.sendEnrollmentReviewedMail(usr, profile)
	return profile, nil
}

func (svc *service) sendEnrollmentReviewedMail(usr User, profile StudentProfile) {
	subject := "Enrollment Approved"
	if profile.Status != StatusApproved {
		subject = "Enrollment Update"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: "enrollment_reviewed",
		TemplateData: map[string]interface{}{
			"FirstName": profile.FirstName,
			"Program":   profile.Program,
			"Approved":  profile.Status == StatusApproved,
			"Reason":    profile.ReviewNote,
		},
	})
}
