package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	testutil "github.com/trezcool/campus/tests"
)

func newMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Ana", Address: "ana@gmail.com"}},
		ReplyTo:      &mail.Address{Address: "admissions@campus.edu"},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ana", "UID": "uid", "Token": "token"},
	}
}

func TestSendgridService_SendMessages(t *testing.T) {
	conf := testutil.Config()
	conf.SendgridApiKey = "sg-key"
	logger := testutil.Logger{T: t}
	core.ParseEmailTemplates(conf, logger)

	var (
		mu   sync.Mutex
		reqs []rest.Request
	)
	svc := NewSendgridService(conf, logger).(*sendgridService)
	svc.api = func(req rest.Request) (*rest.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		reqs = append(reqs, req)
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	svc.SendMessages(newMessage(), newMessage())
	svc.Wait()

	require.Len(t, reqs, 2)
	req := reqs[0]
	assert.Equal(t, rest.Method(http.MethodPost), req.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", req.BaseURL)
	assert.Equal(t, "Bearer sg-key", req.Headers["Authorization"])

	var body struct {
		Personalizations []struct {
			To      []struct{ Email string } `json:"to"`
			Subject string                   `json:"subject"`
		} `json:"personalizations"`
		ReplyTo struct{ Email string } `json:"reply_to"`
		Content []struct{ Type string } `json:"content"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "[Campus] Password Reset", body.Personalizations[0].Subject)
	assert.Equal(t, "ana@gmail.com", body.Personalizations[0].To[0].Email)
	assert.Equal(t, "admissions@campus.edu", body.ReplyTo.Email)
	require.Len(t, body.Content, 2)
	assert.Equal(t, "text/plain", body.Content[0].Type)
	assert.Equal(t, "text/html", body.Content[1].Type)
}

func TestSendgridService_send(t *testing.T) {
	conf := testutil.Config()
	svc := NewSendgridService(conf, testutil.Logger{T: t}).(*sendgridService)

	tests := []struct {
		name    string
		res     *rest.Response
		err     error
		wantErr string
	}{
		{name: "accepted", res: &rest.Response{StatusCode: http.StatusAccepted}},
		{name: "network error", err: errors.New("connection refused"), wantErr: "calling sendgrid: connection refused"},
		{
			name:    "rejected",
			res:     &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"},
			wantErr: "sendgrid status: 401 - body: bad key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.api = func(rest.Request) (*rest.Response, error) { return tt.res, tt.err }
			err := svc.send(core.EmailMessage{To: newMessage().To, Subject: "Hi", TextContent: "Hello"})
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestConsoleService_SendMessages(t *testing.T) {
	conf := testutil.Config()
	logger := testutil.Logger{T: t}
	core.ParseEmailTemplates(conf, logger)
	ClearSentMessages()

	svc := NewConsoleService(conf, logger).(*consoleService)
	svc.disableOutput = true

	noRecipient := newMessage()
	noRecipient.To = nil
	svc.SendMessages(newMessage(), noRecipient)
	svc.Wait()

	sent := SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Ana")
	assert.Contains(t, sent[0].HTMLContent, "token")
}
