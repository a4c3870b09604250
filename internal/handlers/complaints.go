package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/normalize"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type ComplaintHandler struct {
	responder
	service       services.ComplaintService
	maxUploadSize int64
	maxImages     int
}

func NewComplaintHandler(service services.ComplaintService, maxUploadSize int64, maxImages int, logger *utils.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		responder:     responder{logger: logger},
		service:       service,
		maxUploadSize: maxUploadSize,
		maxImages:     maxImages,
	}
}

func (h *ComplaintHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *ComplaintHandler) AnalyzeComplaint(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeImagesRequest
	if err := decodeJSON(w, r, h.maxUploadSize, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if len(req.Images) == 0 {
		h.respondError(w, utils.NewBadRequestError("images must contain at least one image"))
		return
	}

	resp, err := h.service.AnalyzeImages(r.Context(), req.Images)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ComplaintHandler) ValidateImage(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateImageRequest
	if err := decodeJSON(w, r, h.maxUploadSize, &req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.ValidateImage(r.Context(), req.Image)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ComplaintHandler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeTextRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.AnalyzeText(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ComplaintHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateReportRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.GenerateReport(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// SubmitComplaint accepts a multipart form with optional text, voice and images.
func (h *ComplaintHandler) SubmitComplaint(w http.ResponseWriter, r *http.Request) {
	// Check Content-Length first so oversized uploads are refused before reading
	if r.ContentLength > h.maxUploadSize {
		h.respondError(w, h.tooLarge())
		return
	}
	// Chunked uploads carry no length; cap the body as it is read
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, h.tooLarge())
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}
	// Parts larger than multipartMemory were spooled to temp files
	defer r.MultipartForm.RemoveAll()

	req := &models.SubmissionRequest{
		Text:           r.FormValue("text"),
		Latitude:       r.FormValue("latitude"),
		Longitude:      r.FormValue("longitude"),
		ManualLocation: r.FormValue("manual_location"),
		Ward:           r.FormValue("ward"),
		UserID:         r.FormValue("user_id"),
	}
	if v := r.FormValue("is_anonymous"); v != "" {
		anonymous, err := strconv.ParseBool(v)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("is_anonymous must be true or false"))
			return
		}
		req.IsAnonymous = anonymous
	}

	// A saved text note may come in any encoding; it is decoded and appended
	// to the typed text
	if files := r.MultipartForm.File["text_file"]; len(files) > 0 {
		note, err := readPart(files[0], "text/")
		if err != nil {
			h.respondError(w, err)
			return
		}
		text, err := normalize.DecodeText(note.Data)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("Could not read the attached text file"))
			return
		}
		req.Text = strings.TrimSpace(strings.TrimSpace(req.Text) + "\n\n" + text)
	}

	if files := r.MultipartForm.File["voice"]; len(files) > 0 {
		voice, err := readPart(files[0], "audio/")
		if err != nil {
			h.respondError(w, err)
			return
		}
		req.Voice = voice
	}

	// Enforce the photo limit before reading any image into memory
	images := r.MultipartForm.File["images"]
	if len(images) > h.maxImages {
		h.respondError(w, utils.NewBadRequestError(fmt.Sprintf("At most %d photos can be attached", h.maxImages)))
		return
	}
	for _, fh := range images {
		img, err := readPart(fh, "image/")
		if err != nil {
			h.respondError(w, err)
			return
		}
		req.Images = append(req.Images, *img)
	}

	complaint, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.SubmissionResponse{
		Success:     true,
		ReferenceID: complaint.ReferenceID,
		Complaint:   complaint,
		Message:     "Complaint submitted successfully",
	})
}

func (h *ComplaintHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if strings.TrimSpace(ref) == "" {
		h.respondError(w, utils.NewBadRequestError("ref query parameter is required"))
		return
	}

	view, err := h.service.GetStatus(r.Context(), ref)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "complaint": view})
}

func (h *ComplaintHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		h.respondError(w, utils.NewBadRequestError("lat and lng must be numbers"))
		return
	}

	addr, err := h.service.ReverseGeocode(r.Context(), lat, lng)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "address": addr})
}

func (h *ComplaintHandler) tooLarge() error {
	return utils.NewBadRequestError(fmt.Sprintf("Upload exceeds %d MB limit", h.maxUploadSize>>20))
}

// readPart loads an uploaded file, checking its type against wantPrefix
// ("image/", "audio/" or "text/").
func readPart(fh *multipart.FileHeader, wantPrefix string) (*models.Media, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, utils.NewBadRequestError("Could not read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, utils.NewBadRequestError("Could not read uploaded file")
	}
	if len(data) == 0 {
		return nil, utils.NewBadRequestError(fmt.Sprintf("Uploaded file %q is empty", fh.Filename))
	}

	// Browsers often send a generic type; sniff the bytes instead
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !acceptedType(contentType, wantPrefix) {
		return nil, utils.NewBadRequestError(fmt.Sprintf("Unsupported file type %q for %s", contentType, fh.Filename))
	}

	return &models.Media{Data: data, ContentType: contentType, Filename: fh.Filename}, nil
}

func acceptedType(contentType, wantPrefix string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, wantPrefix) {
		return true
	}
	// browsers record voice notes as video/webm
	return wantPrefix == "audio/" && strings.HasPrefix(ct, "video/webm")
}
