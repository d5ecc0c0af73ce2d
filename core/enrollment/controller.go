package enrollment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// GenericSubmissionFailure is shown when the registration fails without a message for the user.
const GenericSubmissionFailure = "we could not complete your enrollment, please try again"

// defaults
const (
	DefaultRedirectDelay = 5 * time.Second
	DefaultRedirectPath  = "/login"

	// SubmissionTimeout bounds a submission: past it, a session left submitting is editable again.
	SubmissionTimeout = 2 * time.Minute

	saveAttempts = 3
)

var (
	ErrAlreadyEnrolled      = errors.New("you are already enrolled")
	ErrSubmitted            = errors.New("this enrollment has already been submitted")
	ErrSubmissionInProgress = errors.New("submission already in progress")

	errRegistrationRejected = errors.New("registration rejected")

	// NowFunc returns the current time (mockable in tests).
	NowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// UserLookup tells whether an account already uses an email.
	UserLookup interface {
		FindByEmail(ctx context.Context, email string) (bool, error)
	}

	// Registrar registers the student described by the payload.
	// The message of a returned error is shown to the user as is: it must not leak internal details.
	Registrar interface {
		Register(ctx context.Context, payload Payload) (bool, error)
	}

	// Navigator performs the navigation scheduled after a successful submission.
	Navigator interface {
		Navigate(ctx context.Context, sessionID, path string) error
	}

	// Scheduler runs f once, after d.
	Scheduler interface {
		AfterFunc(d time.Duration, f func())
	}
)

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// StepError is a failure shown to the user on the current step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

func reject(step Step, err error) *StepError {
	return &StepError{Step: step, Err: err}
}

// Transition is the outcome of Next or Back.
type Transition struct {
	State State
	From  Step
}

// ResetScroll reports whether the view must be scrolled back to the top.
func (t Transition) ResetScroll() bool {
	return t.State.Step != t.From
}

type Options struct {
	Store     Store
	Lookup    UserLookup // optional: the uniqueness check is skipped without it
	Registrar Registrar
	Storage   core.BlobStorage
	Catalog   ProgramCatalog // optional
	Validator *Validator
	Assembler *Assembler
	Navigator Navigator // defaults to the controller itself
	Scheduler Scheduler // defaults to time.AfterFunc
	Logger    core.Logger
	Metrics   *Metrics // optional

	MaxFileSize   int64
	RedirectDelay time.Duration
	RedirectPath  string
}

// Controller drives the enrollment wizard sessions.
type Controller struct {
	store     Store
	lookup    UserLookup
	registrar Registrar
	storage   core.BlobStorage
	catalog   ProgramCatalog
	validator *Validator
	assembler *Assembler
	navigator Navigator
	scheduler Scheduler
	logger    core.Logger
	metrics   *Metrics
	gate      fileGate

	redirectDelay time.Duration
	redirectPath  string

	locks keyedMutex
}

var _ Navigator = (*Controller)(nil)

func NewController(opts Options) *Controller {
	c := &Controller{
		store:         opts.Store,
		lookup:        opts.Lookup,
		registrar:     opts.Registrar,
		storage:       opts.Storage,
		catalog:       opts.Catalog,
		validator:     opts.Validator,
		assembler:     opts.Assembler,
		navigator:     opts.Navigator,
		scheduler:     opts.Scheduler,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		gate:          fileGate{maxSize: opts.MaxFileSize},
		redirectDelay: opts.RedirectDelay,
		redirectPath:  opts.RedirectPath,
	}
	if c.navigator == nil {
		c.navigator = c
	}
	if c.scheduler == nil {
		c.scheduler = timeScheduler{}
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.gate.maxSize <= 0 {
		c.gate.maxSize = DefaultMaxFileSize
	}
	if c.redirectDelay <= 0 {
		c.redirectDelay = DefaultRedirectDelay
	}
	if c.redirectPath == "" {
		c.redirectPath = DefaultRedirectPath
	}
	return c
}

// Start opens a new session at the first step, prefilled with the referrer's academic selection.
// Authenticated users are already enrolled.
func (c *Controller) Start(ctx context.Context, prefill Prefill, authenticated bool) (State, error) {
	if authenticated {
		return State{}, ErrAlreadyEnrolled
	}

	st := NewState(uuid.New().String(), NowFunc())
	st.Draft.prefill(prefill, c.catalog)
	if err := c.store.Create(ctx, st); err != nil {
		return State{}, errors.Wrap(err, "creating enrollment session")
	}
	c.metrics.incrementStarted()
	return st, nil
}

func (c *Controller) Get(ctx context.Context, id string) (State, error) {
	return c.store.Get(ctx, id)
}

// Cancel deletes the session with its staged documents.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	unlock := c.locks.lock(id)
	defer unlock()

	st, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if st.Submitting {
		return ErrSubmissionInProgress
	}
	if !st.IsTerminal() {
		for _, slot := range Slots {
			c.discard(ctx, st.Draft.Files.Clear(slot))
		}
	}
	return errors.Wrap(c.store.Delete(ctx, id), "deleting enrollment session")
}

func (c *Controller) UpdateDraft(ctx context.Context, id string, patch DraftPatch) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		st.Draft.Apply(patch)
		return nil
	})
}

func (c *Controller) SelectStudyArea(ctx context.Context, id, area string) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		if err := st.Draft.SelectStudyArea(area, c.catalog); err != nil {
			return reject(st.Step, err)
		}
		return nil
	})
}

func (c *Controller) SelectProgram(ctx context.Context, id, program string) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		if err := st.Draft.SelectProgram(program, c.catalog); err != nil {
			return reject(st.Step, err)
		}
		return nil
	})
}

// AttachFile stages the uploaded document in the slot.
// An oversized document empties the slot.
func (c *Controller) AttachFile(ctx context.Context, id string, slot Slot, up Upload) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		if err := c.gate.check(slot, up.Size); err != nil {
			return c.rejectFile(ctx, st, slot, err)
		}

		key := stagingKey(st.ID, slot)
		if err := c.storage.Upload(ctx, key, up.Content, up.Size, up.ContentType); err != nil {
			return errors.Wrapf(err, "staging %s", slot.Label())
		}
		st.Draft.Files.set(slot, &File{
			Name:        up.Name,
			Size:        up.Size,
			ContentType: up.ContentType,
			Key:         key,
		})
		return nil
	})
}

// RejectFile empties the slot of a document known to exceed the maximum size before it is read.
func (c *Controller) RejectFile(ctx context.Context, id string, slot Slot) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		return c.rejectFile(ctx, st, slot, &FileSizeError{Slot: slot, MaxSize: c.gate.maxSize})
	})
}

func (c *Controller) rejectFile(ctx context.Context, st *State, slot Slot, err error) error {
	c.metrics.incrementRejectedFile(slot)
	c.discard(ctx, st.Draft.Files.Clear(slot))
	return reject(st.Step, err)
}

func (c *Controller) DetachFile(ctx context.Context, id string, slot Slot) (State, error) {
	return c.edit(ctx, id, func(st *State) error {
		c.discard(ctx, st.Draft.Files.Clear(slot))
		return nil
	})
}

// Next validates the current step and moves forward.
// Leaving the documents step submits the registration; the terminal step is left untouched.
func (c *Controller) Next(ctx context.Context, id string) (Transition, error) {
	tr, payload, err := c.prepareNext(ctx, id)
	if err != nil || payload == nil {
		return tr, err
	}
	return c.submit(ctx, id, *payload)
}

func (c *Controller) Back(ctx context.Context, id string) (Transition, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	st, err := c.store.Get(ctx, id)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{State: st, From: st.Step}
	if st.SubmissionPending(NowFunc()) {
		return tr, ErrSubmissionInProgress
	}
	if st.IsTerminal() {
		return tr, nil
	}

	st.Submitting = false
	st.back()
	st.Error = ""
	if err = c.save(ctx, &st); err != nil {
		return tr, err
	}
	tr.State = st
	return tr, nil
}

// Navigate marks the scheduled redirect as due.
func (c *Controller) Navigate(ctx context.Context, sessionID, path string) error {
	unlock := c.locks.lock(sessionID)
	defer unlock()

	st, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.Redirect == nil || st.Redirect.To != path || st.Redirect.Due {
		return nil
	}
	st.Redirect.Due = true
	return c.save(ctx, &st)
}

// edit applies fn to an editable session.
// a *StepError returned by fn becomes the visible error of the session.
func (c *Controller) edit(ctx context.Context, id string, fn func(st *State) error) (State, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	st, err := c.store.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	if st.IsTerminal() {
		return st, ErrSubmitted
	}
	if st.SubmissionPending(NowFunc()) {
		return st, ErrSubmissionInProgress
	}

	st.Submitting = false
	st.Error = ""
	if err = fn(&st); err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			return st, err
		}
		st.Error = stepErr.Error()
		if err = c.save(ctx, &st); err != nil {
			return st, err
		}
		return st, stepErr
	}
	return st, c.save(ctx, &st)
}

// prepareNext returns the payload to submit when leaving the documents step.
func (c *Controller) prepareNext(ctx context.Context, id string) (Transition, *Payload, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	st, err := c.store.Get(ctx, id)
	if err != nil {
		return Transition{}, nil, err
	}
	tr := Transition{State: st, From: st.Step}
	if st.IsTerminal() {
		return tr, nil, nil
	}
	if st.SubmissionPending(NowFunc()) {
		return tr, nil, ErrSubmissionInProgress
	}
	st.Submitting = false

	var payload *Payload
	var verr error
	switch st.Step {
	case StepPersonalData:
		if verr = c.validator.PersonalData(st.Draft); verr == nil {
			verr = c.checkEmailAvailable(ctx, st.Draft.Email)
		}
	case StepProgramSelection:
		verr = c.validator.ProgramSelection(st.Draft)
	case StepDocuments:
		if verr = c.validator.Documents(st.Draft); verr == nil {
			var p Payload
			if p, verr = c.assembler.Assemble(st.Draft); verr == nil {
				payload = &p
			}
		}
	}

	if verr != nil {
		c.metrics.incrementTransition(st.Step, verr)
		st.Error = verr.Error()
		if err = c.save(ctx, &st); err != nil {
			return tr, nil, err
		}
		tr.State = st
		return tr, nil, reject(st.Step, verr)
	}

	if payload != nil {
		// persisted, so that other instances refuse to submit the session again
		st.Error = ""
		st.Submitting = true
		st.SubmittingSince = NowFunc()
	} else {
		c.metrics.incrementTransition(st.Step, nil)
		st.advance()
	}
	if err = c.save(ctx, &st); err != nil {
		return tr, nil, err
	}
	tr.State = st
	return tr, payload, nil
}

// submit registers the student, then records the outcome on the session.
// The registration is not canceled along with ctx: its outcome is always recorded.
func (c *Controller) submit(ctx context.Context, id string, payload Payload) (Transition, error) {
	ctx = context.WithoutCancel(ctx)

	ok, err := c.registrar.Register(ctx, payload)
	if err == nil && !ok {
		err = errRegistrationRejected
	}
	c.metrics.incrementSubmission(err)
	c.metrics.incrementTransition(StepDocuments, err)

	unlock := c.locks.lock(id)
	defer unlock()

	st, gerr := c.store.Get(ctx, id)
	if gerr != nil {
		c.logger.Error("loading enrollment session after submission", gerr, map[string]interface{}{"session": id})
		return Transition{From: StepDocuments}, gerr
	}
	tr := Transition{From: st.Step}
	st.Submitting = false
	st.SubmittingSince = time.Time{}

	if err != nil {
		c.logger.Warn("enrollment submission failed", err, map[string]interface{}{"session": id})
		msg := submissionMessage(err)
		st.Error = msg
		if serr := c.saveOutcome(ctx, &st); serr != nil {
			c.logger.Error("saving failed enrollment submission", serr, map[string]interface{}{"session": id})
			return tr, serr
		}
		tr.State = st
		return tr, reject(st.Step, errors.New(msg))
	}

	d := st.Draft
	st.advance()
	st.Draft = Draft{}
	st.Confirmation = &Confirmation{
		Email:       d.Email,
		FirstName:   d.FirstName,
		StudyArea:   d.StudyArea,
		Program:     d.Program,
		StartPeriod: d.StartPeriod,
	}
	st.Redirect = &Redirect{To: c.redirectPath, After: c.redirectDelay, ScheduledAt: NowFunc()}
	if err = c.saveOutcome(ctx, &st); err != nil {
		c.logger.Error("saving submitted enrollment session", err, map[string]interface{}{"session": id})
		return tr, err
	}

	path := c.redirectPath
	c.scheduler.AfterFunc(c.redirectDelay, func() {
		if err := c.navigator.Navigate(context.Background(), id, path); err != nil {
			c.logger.Error("redirecting after enrollment", err, map[string]interface{}{"session": id})
		}
	})

	tr.State = st
	return tr, nil
}

// checkEmailAvailable fails open: the registration enforces the uniqueness anyway.
func (c *Controller) checkEmailAvailable(ctx context.Context, email string) error {
	if c.lookup == nil {
		return nil
	}
	found, err := c.lookup.FindByEmail(ctx, email)
	if err != nil {
		c.logger.Warn("email uniqueness check failed", err)
		c.metrics.incrementEmailCheckIndeterminate()
		return nil
	}
	if found {
		return ErrEmailRegistered
	}
	return nil
}

func (c *Controller) discard(ctx context.Context, f *File) {
	if f == nil || f.Key == "" {
		return
	}
	if err := c.storage.Delete(ctx, f.Key); err != nil {
		c.logger.Warn("deleting staged document", err, map[string]interface{}{"key": f.Key})
	}
}

func (c *Controller) save(ctx context.Context, st *State) error {
	st.UpdatedAt = NowFunc()
	return errors.Wrap(c.store.Save(ctx, *st), "saving enrollment session")
}

// saveOutcome retries the save of a submission outcome, which would otherwise leave the session submitting.
func (c *Controller) saveOutcome(ctx context.Context, st *State) (err error) {
	for i := 0; i < saveAttempts; i++ {
		if err = c.save(ctx, st); err == nil {
			return nil
		}
		c.logger.Warn("saving enrollment session", err, map[string]interface{}{"session": st.ID, "attempt": i + 1})
	}
	return err
}

// submissionMessage is the message of the registrar's error, or a generic one when it has none.
func submissionMessage(err error) string {
	if errors.Cause(err) == errRegistrationRejected {
		return GenericSubmissionFailure
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		if msg := strings.TrimSpace(vErr.Error()); msg != "" {
			return msg
		}
		return GenericSubmissionFailure
	}
	if msg := strings.TrimSpace(errors.Cause(err).Error()); msg != "" {
		return msg
	}
	return GenericSubmissionFailure
}
