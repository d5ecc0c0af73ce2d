package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/user"
	emailsvc "github.com/trezcool/campus/services/email"
	inmemblob "github.com/trezcool/campus/storage/blob/inmem"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	testutil "github.com/trezcool/campus/tests"
)

var (
	usrRepo     user.Repository
	studentRepo user.StudentRepository
)

func setup(t *testing.T) *commandLine {
	conf := testutil.Config()
	logger := testutil.Logger{T: t}

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	studentRepo = inmemdb.NewStudentRepository(db)

	// start CLI
	return &commandLine{
		usrRepo: usrRepo,
		usrSvc: user.NewServiceMock(user.ServiceDeps{
			Repo:     usrRepo,
			Students: studentRepo,
			Blobs:    inmemblob.NewStorage(),
			MailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
			Validate: validator.New(),
			Logger:   logger,
			Conf:     conf,
		}),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(context.Background(), args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	runCLITests(t, cli, tests)
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []struct {
		cliTest
		pwd string
	}{
		{cliTest: cliTest{name: "no command", wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown command", args: []string{"lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, wantErr: user.ErrNotFound}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with email", args: []string{"resetpassword", "-username", " AWE@test.cd"}}, pwd: "lmao"},
	}
	for _, tt := range tests {
		mockPassword(tt.pwd)
		runCLITests(t, cli, []cliTest{tt.cliTest})

		if tt.wantErr == nil {
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
			usr = refreshedUsr
		}
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Professor X", "profx1", "x@campus.edu", "", []string{user.RoleProfessor}, false)

	mockPassword("")
	runCLITests(t, cli, []cliTest{
		{name: "no username nor email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "admin1"}, wantErr: errHelp},
	})

	mockPassword("Sup3r-s3cret!")
	runCLITests(t, cli, []cliTest{
		{name: "create admin", args: []string{"adduser", "-username", "Admin1", "-email", "admin@campus.edu", "-name", "Admin", "-admin"}},
		{name: "update existing", args: []string{"adduser", "-email", "x@campus.edu"}},
	})

	admin, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "admin1"})
	require.NoError(t, err)
	assert.Equal(t, "Admin", admin.Name)
	assert.Equal(t, "admin@campus.edu", admin.Email)
	assert.True(t, admin.IsActive)
	assert.True(t, admin.IsAdmin())
	assert.NoError(t, admin.CheckPassword("Sup3r-s3cret!"))

	prof, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.True(t, prof.IsActive)
	assert.Equal(t, []string{user.RoleProfessor}, prof.Roles)
	assert.NoError(t, prof.CheckPassword("Sup3r-s3cret!"))
}

func Test_commandLine_approve(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@campus.edu", "", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, usrRepo, "Professor X", "profx1", "x@campus.edu", "", []string{user.RoleProfessor}, true)
	student := testutil.CreateUser(t, usrRepo, "Ana Pérez", "", "ana@gmail.com", "", []string{user.RoleStudent}, false)
	_, err := studentRepo.CreateStudentProfile(ctx, user.StudentProfile{
		UserID:    student.ID,
		FirstName: "Ana",
		LastName:  "Pérez",
		Program:   "software-engineering",
		Status:    user.StatusPending,
	})
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{
		{name: "no email", args: []string{"approve"}, wantErr: errHelp},
		{name: "unknown student", args: []string{"approve", "-email", "eva@gmail.com"}, wantErr: user.ErrNotFound},
		{name: "reviewer not admin", args: []string{"approve", "-email", "ana@gmail.com", "-reviewer", "profx1"}, wantErrStr: "profx1 is not an admin"},
		{name: "approve", args: []string{"approve", "-email", "ana@gmail.com", "-reviewer", "admin1"}},
		{name: "already approved", args: []string{"approve", "-email", "ana@gmail.com"}, wantErrStr: user.ErrAlreadyReviewed.Error()},
	})

	profile, err := studentRepo.GetStudentProfile(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusApproved, profile.Status)
	assert.Equal(t, admin.ID, profile.ReviewedBy)

	usr, err := usrRepo.GetUser(ctx, user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
}
