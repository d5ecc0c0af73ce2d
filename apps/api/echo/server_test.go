package echoapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/catalog"
	"github.com/trezcool/campus/core/enrollment"
	"github.com/trezcool/campus/core/user"
	appfs "github.com/trezcool/campus/fs"
	emailsvc "github.com/trezcool/campus/services/email"
	inmemblob "github.com/trezcool/campus/storage/blob/inmem"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	inmemsession "github.com/trezcool/campus/storage/session/inmem"
	testutil "github.com/trezcool/campus/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server  echoapi.Server
	auth    *echoapi.Auth
	usrSvc  user.Service
	usrRepo user.Repository
	blobs   *inmemblob.Storage
}

func setup(t *testing.T) *testApp {
	conf := testutil.Config()
	logger := testutil.Logger{T: t}
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cat, err := catalog.Load(appfs.FS)
	require.NoError(t, err)

	// set up DB & repos
	db := inmemdb.Open()
	app := &testApp{
		usrRepo: inmemdb.NewUserRepository(db),
		blobs:   inmemblob.NewStorage(),
	}

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	app.usrSvc = user.NewServiceMock(user.ServiceDeps{
		Repo:     app.usrRepo,
		Students: inmemdb.NewStudentRepository(db),
		Blobs:    app.blobs,
		MailSvc:  mailSvc,
		Validate: validate,
		Logger:   logger,
		Conf:     conf,
	})

	registry := prometheus.NewRegistry()
	ctrl := enrollment.NewController(enrollment.Options{
		Store:         inmemsession.NewStore(conf.Enrollment.SessionTTL),
		Lookup:        app.usrSvc,
		Registrar:     app.usrSvc,
		Storage:       app.blobs,
		Catalog:       cat,
		Validator:     enrollment.NewValidator(validate, conf.Enrollment.AllowedEmailDomains),
		Assembler:     enrollment.NewAssembler(validate),
		Logger:        logger,
		Metrics:       enrollment.NewMetrics(registry),
		MaxFileSize:   conf.Enrollment.MaxFileSize,
		RedirectDelay: conf.Enrollment.RedirectDelay,
		RedirectPath:  conf.Enrollment.RedirectPath,
	})

	// set up server
	app.auth = echoapi.NewAuth(conf)
	app.server = echoapi.NewServer(
		&echoapi.Options{DisableReqLogs: true},
		&echoapi.Deps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			UserSvc:     app.usrSvc,
			Enrollments: ctrl,
			Catalog:     cat,
			MailSvc:     mailSvc,
			Gatherer:    registry,
		},
	)
	return app
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := app.auth.GenerateToken(app.auth.GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type stepErr struct {
	Error string `json:"error"`
	Step  int    `json:"step"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newUploadRequest(t *testing.T, path, filename, contentType string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set(echo.HeaderContentType, contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.do(req, rec))
		})
	}
}

func TestServer_home(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Campus API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodPost, "/v1/enrollments")
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campus_enrollment_sessions_started_total 1")
}
