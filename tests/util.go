// Package testutil holds the helpers shared by the tests of several packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// Config returns a configuration suitable for tests: no external services, short delays.
func Config() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Campus",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		AdmissionsEmail:           "admissions@campus.edu",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Enrollment: core.EnrollmentConfig{
			SessionTTL:          time.Hour,
			RedirectDelay:       time.Hour,
			RedirectPath:        "/login",
			MaxFileSize:         1 << 10,
			AllowedEmailDomains: []string{"gmail.com", "outlook.com", "hotmail.com"},
		},
	}
}

// Logger writes to the test log.
type Logger struct{ T *testing.T }

var _ core.Logger = Logger{}

func (l Logger) log(level, msg string, args []interface{}) {
	l.T.Helper()
	l.T.Log(append([]interface{}{level, msg}, args...)...)
}

func (l Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) {
	l.T.Fatal(append([]interface{}{msg}, args...)...)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
