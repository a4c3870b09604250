package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/geocode"
	"github.com/BerylCAtieno/unitydesk-api/internal/metrics"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/normalize"
	"github.com/BerylCAtieno/unitydesk-api/internal/pipeline"
	"github.com/BerylCAtieno/unitydesk-api/internal/refid"
	"github.com/BerylCAtieno/unitydesk-api/internal/report"
	"github.com/BerylCAtieno/unitydesk-api/internal/repository"
	"github.com/BerylCAtieno/unitydesk-api/internal/storage"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

// maxInsertAttempts bounds reference-ID regeneration after unique-constraint collisions.
const maxInsertAttempts = 5

// RejectedError is returned when the validation stage turns a complaint away.
type RejectedError struct {
	Validation pipeline.Validation
}

func (e *RejectedError) Error() string {
	if e.Validation.Message != "" {
		return e.Validation.Message
	}
	return "Complaint could not be accepted"
}

type ComplaintService interface {
	AnalyzeImages(ctx context.Context, images []string) (*models.AnalyzeImagesResponse, error)
	ValidateImage(ctx context.Context, image string) (*models.ValidateImageResponse, error)
	AnalyzeText(ctx context.Context, req *models.AnalyzeTextRequest) (*models.AnalyzeTextResponse, error)
	AnalyzeCapture(ctx context.Context, capture workflow.Capture, location models.Location) (*models.Draft, error)
	Submit(ctx context.Context, req *models.SubmissionRequest) (*models.Complaint, error)
	SubmitComplaint(ctx context.Context, complaint models.NewComplaint) (*models.Complaint, error)
	GetStatus(ctx context.Context, referenceID string) (*models.StatusView, error)
	ListComplaints(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) (*models.Complaint, error)
	Stats(ctx context.Context) (*models.ComplaintStats, error)
	GenerateReport(ctx context.Context, req *models.GenerateReportRequest) (*models.GenerateReportResponse, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*geocode.Address, error)
}

type Deps struct {
	Repo       repository.Repository
	Storage    storage.Storage
	Normalizer *normalize.Normalizer
	Pipeline   *pipeline.Pipeline
	Checker    analyzer.ImageChecker
	Reports    *report.Generator
	Geocoder   geocode.ReverseGeocoder
	MaxImages  int
}

type complaintService struct {
	Deps
	logger   *utils.Logger
	generate func(department string, existing []string) string
	now      func() time.Time
}

func NewComplaintService(deps Deps, logger *utils.Logger) ComplaintService {
	if deps.MaxImages <= 0 {
		deps.MaxImages = 5
	}
	return &complaintService{
		Deps:     deps,
		logger:   logger,
		generate: refid.Generate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *complaintService) AnalyzeImages(ctx context.Context, images []string) (*models.AnalyzeImagesResponse, error) {
	media, err := s.decodeImages(images)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, utils.NewBadRequestError("At least one image is required")
	}

	descriptions := s.Normalizer.DescribeImages(ctx, media)
	if len(descriptions) == 0 {
		s.logger.Error("Every image description failed", "image_count", len(media))
		return nil, utils.NewInternalError("Failed to analyze images")
	}

	in := &models.NormalizedInput{ImageDescriptions: descriptions}
	draft, err := s.analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	return &models.AnalyzeImagesResponse{
		Success:            true,
		Analysis:           draft,
		IndividualAnalyses: descriptions,
		ImageCount:         len(media),
	}, nil
}

func (s *complaintService) ValidateImage(ctx context.Context, image string) (*models.ValidateImageResponse, error) {
	if strings.TrimSpace(image) == "" {
		return nil, utils.NewBadRequestError("Image is required")
	}
	data, contentType, err := utils.DecodeDataURI(image)
	if err != nil {
		return nil, utils.NewBadRequestError("Image must be a base64 data URI")
	}

	check, err := s.Checker.CheckImage(ctx, models.Media{Data: data, ContentType: contentType})
	if err != nil {
		s.logger.Error("Image check failed", "error", err)
		return nil, utils.WrapInternalError("Failed to validate image", err)
	}

	return &models.ValidateImageResponse{
		Success: true,
		IsValid: check.IsValid,
		Message: check.Message,
	}, nil
}

func (s *complaintService) AnalyzeText(ctx context.Context, req *models.AnalyzeTextRequest) (*models.AnalyzeTextResponse, error) {
	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) < workflow.MinTextLength {
		return nil, utils.NewBadRequestError(workflow.ErrInputTooShort.Error())
	}

	in := s.Normalizer.Normalize(ctx, normalize.RawInput{
		Text:           text,
		Latitude:       formatCoord(req.Latitude),
		Longitude:      formatCoord(req.Longitude),
		ManualLocation: req.ManualLocation,
		Ward:           req.Ward,
	})

	draft, err := s.analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	return &models.AnalyzeTextResponse{Success: true, Analysis: draft}, nil
}

// AnalyzeCapture normalizes wizard input and runs the pipeline over it.
func (s *complaintService) AnalyzeCapture(ctx context.Context, capture workflow.Capture, location models.Location) (*models.Draft, error) {
	in := s.Normalizer.Normalize(ctx, normalize.RawInput{
		Text:           capture.Text,
		Audio:          capture.Voice,
		Images:         capture.Images,
		Latitude:       formatCoord(location.Latitude),
		Longitude:      formatCoord(location.Longitude),
		ManualLocation: location.ManualLocation,
		Ward:           location.Ward,
	})
	return s.analyze(ctx, in)
}

func (s *complaintService) analyze(ctx context.Context, in *models.NormalizedInput) (*models.Draft, error) {
	if !in.HasContent() {
		return nil, utils.NewBadRequestError("Nothing in this complaint could be read. Add a description or a clearer photo")
	}

	result, err := s.Pipeline.Process(ctx, in)
	if err != nil {
		s.logger.Error("Complaint analysis failed", "error", err)
		return nil, utils.WrapInternalError("Failed to analyze complaint", err)
	}
	if !result.Accepted() {
		s.logger.Info("Complaint rejected by validation",
			"is_spam", result.Validation.IsSpam,
			"is_government_issue", result.Validation.IsGovernmentIssue)
		return nil, &RejectedError{Validation: result.Validation}
	}

	draft := result.Analysis.Draft(in)
	return &draft, nil
}

func (s *complaintService) Submit(ctx context.Context, req *models.SubmissionRequest) (*models.Complaint, error) {
	text := strings.TrimSpace(req.Text)
	hasVoice := req.Voice != nil && len(req.Voice.Data) > 0
	images := nonEmptyMedia(req.Images)

	// Reject empty or too-short input before any model call
	switch {
	case text == "" && !hasVoice && len(images) == 0:
		return nil, utils.NewBadRequestError("Provide a description, a voice recording or at least one photo")
	case len(images) > s.MaxImages:
		return nil, utils.NewBadRequestError(fmt.Sprintf("At most %d photos can be attached", s.MaxImages))
	case !hasVoice && len(images) == 0 && utf8.RuneCountInString(text) < workflow.MinTextLength:
		return nil, utils.NewBadRequestError(workflow.ErrInputTooShort.Error())
	}

	raw := normalize.RawInput{
		Text:           text,
		Images:         images,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		ManualLocation: req.ManualLocation,
		Ward:           req.Ward,
	}
	if hasVoice {
		raw.Audio = req.Voice
	}
	// Transcribe and describe media, then run the stages
	in := s.Normalizer.Normalize(ctx, raw)

	draft, err := s.analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	// Prefer the parsed coordinates over the raw form strings
	loc := models.Location{ManualLocation: in.ManualLocation, Ward: in.Ward}
	if in.Location != nil {
		loc.Latitude = &in.Location.Lat
		loc.Longitude = &in.Location.Lng
	}

	return s.SubmitComplaint(ctx, models.NewComplaint{
		Draft:       *draft,
		Location:    loc,
		Voice:       raw.Audio,
		Images:      images,
		IsAnonymous: req.IsAnonymous,
		UserID:      req.UserID,
	})
}

// SubmitComplaint stores media, allocates a reference ID and inserts the row.
// Nothing is left behind when it fails.
func (s *complaintService) SubmitComplaint(ctx context.Context, nc models.NewComplaint) (*models.Complaint, error) {
	d := nc.Draft
	if strings.TrimSpace(d.Summary) == "" {
		return nil, utils.NewBadRequestError("Summary is required")
	}
	if !d.Priority.Valid() {
		return nil, utils.NewBadRequestError("Priority must be high, medium or low")
	}

	id := utils.GenerateID()
	now := s.now()

	// Track uploads so a later failure can remove them again
	var uploaded []string
	cleanup := func() {
		for _, key := range uploaded {
			// Attempt to cleanup S3 even if the request was cancelled
			if err := s.Storage.Delete(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Warn("Failed to delete orphaned media", "error", err, "key", key)
			}
		}
	}

	// Upload photos first, then the voice note
	imageURLs := make([]string, 0, len(nc.Images))
	for i, img := range nonEmptyMedia(nc.Images) {
		key := storage.MediaKey(id, "image", i, img.ContentType)
		if err := s.Storage.Upload(ctx, key, img.Data, img.ContentType); err != nil {
			s.logger.Error("Failed to upload image", "error", err, "key", key)
			cleanup()
			return nil, utils.WrapInternalError("Failed to store complaint media", err)
		}
		uploaded = append(uploaded, key)
		imageURLs = append(imageURLs, s.Storage.URL(key))
	}

	var voiceURL *string
	if nc.Voice != nil && len(nc.Voice.Data) > 0 {
		key := storage.MediaKey(id, "voice", 0, nc.Voice.ContentType)
		if err := s.Storage.Upload(ctx, key, nc.Voice.Data, nc.Voice.ContentType); err != nil {
			s.logger.Error("Failed to upload voice recording", "error", err, "key", key)
			cleanup()
			return nil, utils.WrapInternalError("Failed to store complaint media", err)
		}
		uploaded = append(uploaded, key)
		voiceURL = optional(s.Storage.URL(key))
	}

	c := &models.Complaint{
		ID:                  id,
		IsAnonymous:         nc.IsAnonymous,
		TextContent:         d.TextContent,
		VoiceURL:            voiceURL,
		VoiceTranscript:     optional(d.VoiceTranscript),
		ImageURLs:           imageURLs,
		Summary:             strings.TrimSpace(d.Summary),
		Keywords:            d.Keywords,
		Department:          d.Department,
		IssueType:           d.IssueType,
		SubCategory:         optional(d.SubCategory),
		Priority:            d.Priority,
		PriorityExplanation: d.PriorityExplanation,
		Severity:            d.Severity,
		Urgency:             d.Urgency,
		Confidence:          d.Confidence,
		Language:            d.Language,
		Latitude:            nc.Location.Latitude,
		Longitude:           nc.Location.Longitude,
		ManualLocation:      optional(nc.Location.ManualLocation),
		Ward:                optional(nc.Location.Ward),
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if !nc.IsAnonymous {
		c.UserID = optional(nc.UserID)
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}

	// Insert, regenerating the reference ID when it collides with an existing row
	var taken []string
	for attempt := 1; ; attempt++ {
		c.ReferenceID = s.generate(c.Department, taken)

		err := s.Repo.Create(ctx, c)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateReference) && attempt < maxInsertAttempts {
			s.logger.Warn("Reference ID collision, regenerating", "reference_id", c.ReferenceID, "attempt", attempt)
			taken = append(taken, c.ReferenceID)
			continue
		}

		s.logger.Error("Failed to save complaint", "error", err, "id", id, "attempts", attempt)
		// Row was not saved; drop its media
		cleanup()
		return nil, utils.WrapInternalError("Failed to save complaint", err)
	}

	metrics.ComplaintsCreated.WithLabelValues(c.Department, string(c.Priority)).Inc()
	s.logger.Info("Complaint submitted",
		"id", c.ID,
		"reference_id", c.ReferenceID,
		"department", c.Department,
		"priority", c.Priority,
		"images", len(imageURLs),
		"has_voice", voiceURL != nil)

	return c, nil
}

func (s *complaintService) GetStatus(ctx context.Context, referenceID string) (*models.StatusView, error) {
	code := refid.Normalize(referenceID)
	if !refid.IsValid(code) {
		return nil, utils.NewBadRequestError("Invalid reference ID")
	}

	c, err := s.Repo.GetByReference(ctx, code)
	if err != nil {
		s.logger.Error("Failed to look up complaint", "error", err, "reference_id", code)
		return nil, utils.WrapInternalError("Failed to retrieve complaint", err)
	}
	if c == nil {
		return nil, utils.NewNotFoundError("Complaint not found")
	}

	return &models.StatusView{
		ReferenceID:     c.ReferenceID,
		DisplayID:       refid.Format(c.ReferenceID),
		Summary:         c.Summary,
		Department:      c.Department,
		Priority:        c.Priority,
		Status:          c.Status,
		RejectionReason: c.RejectionReason,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		ResolvedAt:      c.ResolvedAt,
	}, nil
}

func (s *complaintService) ListComplaints(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, utils.NewBadRequestError(fmt.Sprintf("Unknown status %q", filter.Status))
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, utils.NewBadRequestError(fmt.Sprintf("Unknown priority %q", filter.Priority))
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, utils.NewBadRequestError("limit and offset must not be negative")
	}

	complaints, err := s.Repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list complaints", "error", err)
		return nil, utils.WrapInternalError("Failed to list complaints", err)
	}
	return complaints, nil
}

func (s *complaintService) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get complaint", "error", err, "id", id)
		return nil, utils.WrapInternalError("Failed to retrieve complaint", err)
	}
	if c == nil {
		return nil, utils.NewNotFoundError("Complaint not found")
	}
	return c, nil
}

// UpdateStatus applies an officer transition. A rejection must carry a reason and
// every other status clears it.
func (s *complaintService) UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) (*models.Complaint, error) {
	if !update.Status.Valid() {
		return nil, utils.NewBadRequestError(fmt.Sprintf("Unknown status %q", update.Status))
	}
	reason := strings.TrimSpace(update.RejectionReason)
	if update.Status == models.StatusRejected && reason == "" {
		return nil, utils.NewBadRequestError("A rejection reason is required")
	}

	c, err := s.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Status
	if !from.CanTransitionTo(update.Status) {
		return nil, utils.NewConflictError(fmt.Sprintf("Cannot change status from %s to %s", from, update.Status))
	}

	now := s.now()
	c.Status = update.Status
	c.UpdatedAt = now
	c.RejectionReason = nil
	if update.Status == models.StatusRejected {
		c.RejectionReason = &reason
	}
	if update.Status == models.StatusResolved {
		c.ResolvedAt = &now
	}

	if err := s.Repo.UpdateStatus(ctx, id, from, c); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, utils.NewConflictError("Complaint status changed in the meantime; reload and try again")
		}
		s.logger.Error("Failed to update complaint status", "error", err, "id", id)
		return nil, utils.WrapInternalError("Failed to update complaint", err)
	}

	s.logger.Info("Complaint status updated", "id", id, "reference_id", c.ReferenceID, "from", from, "to", c.Status)
	return c, nil
}

func (s *complaintService) Stats(ctx context.Context) (*models.ComplaintStats, error) {
	stats, err := s.Repo.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to compute stats", "error", err)
		return nil, utils.WrapInternalError("Failed to compute statistics", err)
	}
	return stats, nil
}

func (s *complaintService) GenerateReport(ctx context.Context, req *models.GenerateReportRequest) (*models.GenerateReportResponse, error) {
	if strings.TrimSpace(req.ReferenceID) == "" || strings.TrimSpace(req.Summary) == "" {
		return nil, utils.NewBadRequestError("referenceId and summary are required")
	}
	if !refid.IsValid(refid.Normalize(req.ReferenceID)) {
		return nil, utils.NewBadRequestError(fmt.Sprintf("%q is not a valid reference ID", req.ReferenceID))
	}

	createdAt := s.now()
	if req.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			return nil, utils.NewBadRequestError("createdAt must be an RFC 3339 timestamp")
		}
		createdAt = t
	}

	pdf, fileName, err := s.Reports.Generate(report.Data{
		ReferenceID: req.ReferenceID,
		Summary:     req.Summary,
		Department:  req.Department,
		Priority:    req.Priority,
		Status:      req.Status,
		IssueType:   req.IssueType,
		Location:    describeLocation(req.ManualLocation, req.Ward, req.Latitude, req.Longitude),
		CreatedAt:   createdAt,
	})
	if err != nil {
		s.logger.Error("Failed to generate report", "error", err, "reference_id", req.ReferenceID)
		return nil, utils.WrapInternalError("Failed to generate report", err)
	}

	return &models.GenerateReportResponse{
		Success:  true,
		PDF:      utils.EncodeDataURI(pdf, "application/pdf"),
		FileName: fileName,
	}, nil
}

func (s *complaintService) ReverseGeocode(ctx context.Context, lat, lng float64) (*geocode.Address, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, utils.NewBadRequestError("Coordinates out of range")
	}

	addr, err := s.Geocoder.Reverse(ctx, lat, lng)
	if errors.Is(err, geocode.ErrNotFound) {
		return nil, utils.NewNotFoundError("No address found for these coordinates")
	}
	if err != nil {
		s.logger.Warn("Reverse geocoding failed", "error", err, "lat", lat, "lng", lng)
		return nil, utils.WrapInternalError("Failed to look up address", err)
	}
	return addr, nil
}

func (s *complaintService) decodeImages(images []string) ([]models.Media, error) {
	if len(images) > s.MaxImages {
		return nil, utils.NewBadRequestError(fmt.Sprintf("At most %d images can be analyzed at once", s.MaxImages))
	}

	media := make([]models.Media, 0, len(images))
	for i, img := range images {
		if strings.TrimSpace(img) == "" {
			continue
		}
		data, contentType, err := utils.DecodeDataURI(img)
		if err != nil {
			return nil, utils.NewBadRequestError(fmt.Sprintf("Image %d is not a valid base64 image", i+1))
		}
		media = append(media, models.Media{Data: data, ContentType: contentType})
	}
	return media, nil
}

func describeLocation(manual, ward string, lat, lng *float64) string {
	var parts []string
	if manual = strings.TrimSpace(manual); manual != "" {
		parts = append(parts, manual)
	}
	if ward = strings.TrimSpace(ward); ward != "" {
		parts = append(parts, ward)
	}
	if len(parts) == 0 && lat != nil && lng != nil {
		return fmt.Sprintf("%.5f, %.5f", *lat, *lng)
	}
	return strings.Join(parts, ", ")
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonEmptyMedia(media []models.Media) []models.Media {
	out := make([]models.Media, 0, len(media))
	for _, m := range media {
		if len(m.Data) > 0 {
			out = append(out, m)
		}
	}
	return out
}
