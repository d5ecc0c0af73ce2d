package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core/enrollment"
	"github.com/trezcool/campus/core/user"
	testutil "github.com/trezcool/campus/tests"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

// enroll goes through the enrollment wizard and returns the pending student.
func (app *testApp) enroll(t *testing.T, email string) user.User {
	t.Helper()
	id := app.start(t, "?program=software-engineering").ID

	rec := app.patchDraft(t, id, personalData(email))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for i := 0; i < 2; i++ {
		_, rec = app.next(t, id)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = app.upload(t, id, enrollment.SlotIdentity, "dni.png", "image/png", pngHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.upload(t, id, enrollment.SlotDegree, "degree.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tr, rec := app.next(t, id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, enrollment.StepConfirmation, tr.State.Step)

	usr, err := app.usrSvc.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return usr
}

func Test_studentApi(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@campus.edu", "", []string{user.RoleAdmin}, true)
	prof := testutil.CreateUser(t, app.usrRepo, "Professor X", "profx1", "x@campus.edu", "", []string{user.RoleProfessor}, true)
	adminToken := app.getToken(t, admin)

	ana := app.enroll(t, "ana@gmail.com")
	eva := app.enroll(t, "eva@hotmail.com")
	assert.False(t, ana.IsActive)
	assert.True(t, ana.IsStudent())

	// listing
	req, rec := newAuthRequest(http.MethodGet, "/v1/students?status=PENDING", adminToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profiles []user.StudentProfile
	decode(t, rec, &profiles)
	require.Len(t, profiles, 2)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+ana.ID, adminToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile user.StudentProfile
	decode(t, rec, &profile)
	assert.Equal(t, "ana@gmail.com", profile.Email)
	assert.Equal(t, "87654321", profile.DocumentNumber)
	assert.Equal(t, "software-engineering", profile.Program)
	assert.Equal(t, user.StatusPending, profile.Status)

	// documents are kept under the student's account
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+ana.ID+"/documents/dni", adminToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, pngHeader, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="dni"`, rec.Header().Get(echo.HeaderContentDisposition))

	tests := []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/students", token: app.getToken(t, prof), wantCode: http.StatusForbidden},
		{
			name: "unknown student", path: "/v1/students/unknown", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "student profile not found"}),
		},
		{
			name: "unknown slot", path: "/v1/students/" + ana.ID + "/documents/passport", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "unknown document slot"}),
		},
		{
			name: "reject", method: http.MethodPost, path: "/v1/students/" + eva.ID + "/reject", token: adminToken,
			body: marshalObj(t, echoapi.RejectRequest{Reason: " incomplete degree certificate "}), wantCode: http.StatusOK,
		},
		{
			name: "already reviewed", method: http.MethodPost, path: "/v1/students/" + eva.ID + "/approve", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "this enrollment has already been reviewed"}),
		},
		{name: "approve", method: http.MethodPost, path: "/v1/students/" + ana.ID + "/approve", token: adminToken, wantCode: http.StatusOK},
	}
	runHTTPTests(t, app, tests)

	rejected, err := app.usrSvc.GetStudent(context.Background(), eva.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StatusRejected, rejected.Status)
	assert.Equal(t, "incomplete degree certificate", rejected.ReviewNote)
	assert.Equal(t, admin.ID, rejected.ReviewedBy)

	usr, err := app.usrSvc.GetByID(context.Background(), eva.ID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)
	usr, err = app.usrSvc.GetByID(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.True(t, usr.IsActive)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students?status=approved", adminToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &profiles)
	require.Len(t, profiles, 1)
	assert.Equal(t, ana.ID, profiles[0].UserID)
}
