package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

type stubChecker struct {
	valid bool
}

func (s stubChecker) CheckImage(context.Context, models.Media) (*analyzer.ImageCheck, error) {
	if s.valid {
		return &analyzer.ImageCheck{IsValid: true, Message: "ok"}, nil
	}
	return &analyzer.ImageCheck{IsValid: false, Message: "This looks like a selfie"}, nil
}

func newWizardRouter(svc *fakeService, checker analyzer.ImageChecker) *mux.Router {
	sessions := services.NewSessionStore(workflow.Deps{
		Checker:   checker,
		Analyzer:  svc,
		Submitter: svc,
	}, time.Hour)
	h := NewSubmissionHandler(sessions, 1<<20, 2, utils.NewNopLogger())

	r := mux.NewRouter()
	r.HandleFunc("/submissions", h.Create)
	r.HandleFunc("/submissions/{id}", h.Get)
	r.HandleFunc("/submissions/{id}/capture", h.Capture)
	r.HandleFunc("/submissions/{id}/edge-validate", h.EdgeValidate)
	r.HandleFunc("/submissions/{id}/analyze", h.Analyze)
	r.HandleFunc("/submissions/{id}/location", h.Location)
	r.HandleFunc("/submissions/{id}/edit", h.Edit)
	r.HandleFunc("/submissions/{id}/preview", h.Preview)
	r.HandleFunc("/submissions/{id}/back", h.Back)
	r.HandleFunc("/submissions/{id}/submit", h.Submit)
	return r
}

type wizardReply struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	ID         string               `json:"id"`
	Transition *workflow.Transition `json:"transition"`
	Submission workflow.View        `json:"submission"`
}

func call(t *testing.T, r http.Handler, method, path, body string) (int, wizardReply) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))

	var reply wizardReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	return rec.Code, reply
}

func TestSubmissionWizard_TextHappyPath(t *testing.T) {
	svc := &fakeService{}
	r := newWizardRouter(svc, stubChecker{valid: true})

	code, reply := call(t, r, http.MethodPost, "/submissions", `{"variant":"text","userId":"u1"}`)
	require.Equal(t, http.StatusCreated, code)
	id := reply.ID
	require.NotEmpty(t, id)
	assert.Equal(t, workflow.StateCapture, reply.Submission.State)
	assert.Equal(t, 1, reply.Submission.Step)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/capture", `{"text":"Streetlight broken near the bus stop"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, workflow.StateAnalyze, reply.Transition.To)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/analyze", ``)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, reply.Submission.Draft)

	code, _ = call(t, r, http.MethodPost, "/submissions/"+id+"/location", `{"skip":true}`)
	require.Equal(t, http.StatusOK, code)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/edit", `{"summary":"Broken streetlight at bus stop"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Broken streetlight at bus stop", reply.Submission.Draft.Summary)

	code, _ = call(t, r, http.MethodPost, "/submissions/"+id+"/preview", ``)
	require.Equal(t, http.StatusOK, code)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/submit", ``)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, workflow.StateComplete, reply.Submission.State)
	assert.Equal(t, "EBABC234", reply.Submission.ReferenceID)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/submit", ``)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, reply.Success)
	assert.Equal(t, workflow.StateComplete, reply.Submission.State)
}

func TestSubmissionWizard_Errors(t *testing.T) {
	r := newWizardRouter(&fakeService{}, stubChecker{valid: false})

	code, _ := call(t, r, http.MethodPost, "/submissions", `{"variant":"video"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodGet, "/submissions/missing", ``)
	assert.Equal(t, http.StatusNotFound, code)

	_, reply := call(t, r, http.MethodPost, "/submissions", `{"variant":"text"}`)
	id := reply.ID

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/preview", ``)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, workflow.StateCapture, reply.Submission.State)

	code, _ = call(t, r, http.MethodPost, "/submissions/"+id+"/capture", `{"text":"short"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodPost, "/submissions/"+id+"/capture", `{"text":"x","images":["not base64!"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubmissionWizard_EdgeValidationRollsBack(t *testing.T) {
	r := newWizardRouter(&fakeService{}, stubChecker{valid: false})

	_, reply := call(t, r, http.MethodPost, "/submissions", `{"variant":"image"}`)
	id := reply.ID

	code, reply := call(t, r, http.MethodPost, "/submissions/"+id+"/capture", `{"images":["`+utils.EncodeDataURI([]byte("jpeg"), "image/jpeg")+`"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, reply.Submission.ImageCount)

	code, reply = call(t, r, http.MethodPost, "/submissions/"+id+"/edge-validate", ``)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, reply.Transition)
	assert.Equal(t, workflow.StateCapture, reply.Transition.To)
	assert.Contains(t, reply.Transition.Actions, workflow.ActionClearImages)
	assert.Equal(t, 0, reply.Submission.ImageCount)
	assert.Equal(t, "This looks like a selfie", reply.Submission.Message)
}
