package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/unitydesk-api/internal/middleware"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

type OfficerHandler struct {
	responder
	service services.ComplaintService
}

func NewOfficerHandler(service services.ComplaintService, logger *utils.Logger) *OfficerHandler {
	return &OfficerHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

func (h *OfficerHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ComplaintFilter{
		Status:     models.Status(q.Get("status")),
		Department: q.Get("department"),
		Priority:   models.Priority(q.Get("priority")),
		Ward:       q.Get("ward"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		h.respondError(w, utils.NewBadRequestError("limit must be an integer"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		h.respondError(w, utils.NewBadRequestError("offset must be an integer"))
		return
	}

	complaints, err := h.service.ListComplaints(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"complaints": complaints,
		"count":      len(complaints),
	})
}

func (h *OfficerHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	complaint, err := h.service.GetComplaint(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "complaint": complaint})
}

func (h *OfficerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var update models.StatusUpdate
	if err := decodeJSON(w, r, 1<<20, &update); err != nil {
		h.respondError(w, err)
		return
	}

	id := mux.Vars(r)["id"]
	complaint, err := h.service.UpdateStatus(r.Context(), id, update)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		h.logger.With("officer", claims.Subject, "officer_name", claims.Name).
			Info("Officer changed complaint status", "id", id, "status", complaint.Status)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "complaint": complaint})
}

func (h *OfficerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
