package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

// SubmissionHandler drives server-side submission wizards.
type SubmissionHandler struct {
	responder
	sessions      *services.SessionStore
	maxUploadSize int64
	maxImages     int
}

func NewSubmissionHandler(sessions *services.SessionStore, maxUploadSize int64, maxImages int, logger *utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		responder:     responder{logger: logger},
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
		maxImages:     maxImages,
	}
}

type createSubmissionRequest struct {
	Variant     workflow.Variant `json:"variant"`
	UserID      string           `json:"userId,omitempty"`
	IsAnonymous bool             `json:"isAnonymous,omitempty"`
}

type captureRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
	Voice  string   `json:"voice,omitempty"`
}

type locationRequest struct {
	models.Location
	Skip bool `json:"skip,omitempty"`
}

type stepResponse struct {
	Success    bool                 `json:"success"`
	ID         string               `json:"id"`
	Transition *workflow.Transition `json:"transition,omitempty"`
	Submission workflow.View        `json:"submission"`
}

func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		h.respondError(w, err)
		return
	}

	sess, err := h.sessions.Create(req.Variant)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var view workflow.View
	_ = sess.Do(func(m *workflow.Machine) error {
		err := m.SetOwner(req.UserID, req.IsAnonymous)
		view = m.View()
		return err
	})

	h.respondJSON(w, http.StatusCreated, stepResponse{Success: true, ID: sess.ID, Submission: view})
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, nil)
}

func (h *SubmissionHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeJSON(w, r, h.maxUploadSize, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if len(req.Images) > h.maxImages {
		h.respondError(w, utils.NewBadRequestError("Too many photos"))
		return
	}

	capture := workflow.Capture{Text: req.Text}
	for _, img := range req.Images {
		data, contentType, err := utils.DecodeDataURI(img)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("Photos must be base64 data URIs"))
			return
		}
		capture.Images = append(capture.Images, models.Media{Data: data, ContentType: contentType})
	}
	if req.Voice != "" {
		data, contentType, err := utils.DecodeDataURI(req.Voice)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("Voice recording must be a base64 data URI"))
			return
		}
		capture.Voice = &models.Media{Data: data, ContentType: contentType}
	}

	h.step(w, r, func(_ context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Capture(capture)
	})
}

func (h *SubmissionHandler) EdgeValidate(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.EdgeValidate(ctx)
	})
}

func (h *SubmissionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Analyze(ctx)
	})
}

func (h *SubmissionHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		h.respondError(w, err)
		return
	}

	h.step(w, r, func(ctx context.Context, m *workflow.Machine) (workflow.Transition, error) {
		if req.Skip {
			return m.SkipLocation()
		}
		return m.SetLocation(ctx, req.Location)
	})
}

func (h *SubmissionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var patch workflow.DraftPatch
	if err := decodeJSON(w, r, 1<<20, &patch); err != nil {
		h.respondError(w, err)
		return
	}

	h.step(w, r, func(_ context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Edit(patch)
	})
}

func (h *SubmissionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(_ context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Preview()
	})
}

func (h *SubmissionHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(_ context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Back()
	})
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, m *workflow.Machine) (workflow.Transition, error) {
		return m.Submit(ctx)
	})
}

// step runs fn against the session's machine and answers with the new view.
// A nil fn only reads the view.
func (h *SubmissionHandler) step(w http.ResponseWriter, r *http.Request, fn func(context.Context, *workflow.Machine) (workflow.Transition, error)) {
	id := mux.Vars(r)["id"]
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var (
		tr   *workflow.Transition
		view workflow.View
	)
	stepErr := sess.Do(func(m *workflow.Machine) error {
		defer func() { view = m.View() }()
		if fn == nil {
			return nil
		}
		t, err := fn(r.Context(), m)
		if err != nil {
			if t.To != "" {
				tr = &t
			}
			return err
		}
		tr = &t
		return nil
	})

	if stepErr != nil {
		status, body := h.errorBody(services.WorkflowError(stepErr))
		body["id"] = id
		body["submission"] = view
		if tr != nil {
			body["transition"] = tr
		}
		h.respondJSON(w, status, body)
		return
	}

	h.respondJSON(w, http.StatusOK, stepResponse{Success: true, ID: id, Transition: tr, Submission: view})
}
