package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core/catalog"
	emailsvc "github.com/trezcool/campus/services/email"
)

func Test_catalogApi(t *testing.T) {
	app := setup(t)

	areas := []catalog.StudyArea{
		{Slug: "business", Name: "Business"},
		{Slug: "engineering", Name: "Engineering"},
		{Slug: "health", Name: "Health Sciences"},
	}
	swe := catalog.Program{
		Slug:         "software-engineering",
		Name:         "Software Engineering",
		Area:         "engineering",
		Degree:       "bachelor",
		Modalities:   []string{"on-campus", "online"},
		StartPeriods: []string{"2027-1", "2027-2"},
	}
	ds := catalog.Program{
		Slug:         "data-science",
		Name:         "Data Science",
		Area:         "engineering",
		Degree:       "master",
		Modalities:   []string{"online"},
		StartPeriods: []string{"2027-1", "2027-2"},
	}

	tests := []httpTest{
		{name: "areas", path: "/v1/catalog/areas", wantCode: http.StatusOK, wantData: marshalObj(t, areas)},
		{
			name: "programs: unknown area", path: "/v1/catalog/areas/magic/programs",
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "study area not found"}),
		},
		{
			name: "programs: online", path: "/v1/catalog/areas/engineering/programs?modality=ONLINE",
			wantCode: http.StatusOK, wantData: marshalObj(t, []catalog.Program{swe, ds}),
		},
		{
			name: "programs: online master", path: "/v1/catalog/areas/engineering/programs?modality=online&degree=master",
			wantCode: http.StatusOK, wantData: marshalObj(t, []catalog.Program{ds}),
		},
		{
			name: "programs: none", path: "/v1/catalog/areas/engineering/programs?degree=phd",
			wantCode: http.StatusOK, wantData: []byte("[]"),
		},
		{name: "program", path: "/v1/catalog/programs/software-engineering", wantCode: http.StatusOK, wantData: marshalObj(t, swe)},
		{
			name: "program: unknown", path: "/v1/catalog/programs/alchemy",
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "program not found"}),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_catalogApi_contact(t *testing.T) {
	app := setup(t)

	msg := echoapi.ContactRequest{
		Name:    " Ana Pérez ",
		Email:   "Ana@Gmail.com",
		Subject: "Scholarships",
		Message: "Do you offer scholarships for online programs?",
	}
	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/contact",
			body:     marshalObj(t, echoapi.ContactRequest{Email: "ana"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"name":    "this field is required",
				"email":   "email must be a valid email address",
				"subject": "this field is required",
				"message": "this field is required",
			}),
		},
		{
			name: "success", method: http.MethodPost, path: "/v1/contact", body: marshalObj(t, msg),
			wantCode: http.StatusAccepted,
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Thank you, we will get back to you shortly."}),
		},
	}
	runHTTPTests(t, app, tests)

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "admissions@campus.edu", sent[0].To[0].Address)
	require.NotNil(t, sent[0].ReplyTo)
	assert.Equal(t, "Ana Pérez", sent[0].ReplyTo.Name)
	assert.Equal(t, "ana@gmail.com", sent[0].ReplyTo.Address)
	assert.Equal(t, "contact", sent[0].TemplateName)
}
