package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/geocode"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/normalize"
	"github.com/BerylCAtieno/unitydesk-api/internal/pipeline"
	"github.com/BerylCAtieno/unitydesk-api/internal/report"
	"github.com/BerylCAtieno/unitydesk-api/internal/repository"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

type fakeRepo struct {
	mu         sync.Mutex
	byID       map[string]*models.Complaint
	creates    int
	createErr  error
	updateErr  error
	alwaysDupe bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*models.Complaint{}}
}

func (r *fakeRepo) Create(_ context.Context, c *models.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if r.alwaysDupe {
		return fmt.Errorf("%w: %s", repository.ErrDuplicateReference, c.ReferenceID)
	}
	for _, existing := range r.byID {
		if existing.ReferenceID == c.ReferenceID {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateReference, c.ReferenceID)
		}
	}
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) GetByReference(_ context.Context, ref string) (*models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.ReferenceID == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) List(_ context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Complaint
	for _, c := range r.byID {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, from models.Status, c *models.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.byID[id]
	if !ok || stored.Status != from {
		return repository.ErrStatusChanged
	}
	stored.Status = c.Status
	stored.RejectionReason = c.RejectionReason
	stored.ResolvedAt = c.ResolvedAt
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *fakeRepo) Stats(_ context.Context) (*models.ComplaintStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.ComplaintStats{ByStatus: map[string]int{}, ByDepartment: map[string]int{}, ByPriority: map[string]int{}}
	for _, c := range r.byID {
		stats.Total++
		stats.ByStatus[string(c.Status)]++
		stats.ByDepartment[c.Department]++
		stats.ByPriority[string(c.Priority)]++
	}
	return stats, nil
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	failAfter int // uploads that succeed before failing; negative means never fail
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, failAfter: -1}
}

func (s *fakeStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter == 0 {
		return errors.New("bucket unavailable")
	}
	if s.failAfter > 0 {
		s.failAfter--
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) URL(key string) string {
	return "http://media.test/" + key
}

// stageCompleter answers each pipeline stage by schema name through the real parser.
type stageCompleter struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   int
}

func newStageCompleter() *stageCompleter {
	return &stageCompleter{
		answers: map[string]string{
			pipeline.StageValidation:     `{"isValid": true, "isGovernmentIssue": true, "isUnderstandable": true, "isSpam": false, "needsClarification": false, "message": "ok"}`,
			pipeline.StageUnderstanding:  `{"extractedIssue": "Streetlight broken near market", "context": "market", "intent": "complaint", "language": "english"}`,
			pipeline.StageClassification: `{"department": "Electricity Board", "issueType": "Streetlight not working", "confidence": 0.9}`,
			pipeline.StageScoring:        `{"priority": "medium", "severity": 5, "urgency": 6, "explanation": "Safety risk at night"}`,
			pipeline.StageSummarization:  `{"summary": "Streetlight near the market is broken.", "keywords": ["streetlight", "market"]}`,
		},
		errs: map[string]error{},
	}
}

func (c *stageCompleter) reject(message string) {
	c.answers[pipeline.StageValidation] = fmt.Sprintf(
		`{"isValid": false, "isGovernmentIssue": false, "isUnderstandable": true, "isSpam": true, "needsClarification": false, "message": %q}`, message)
}

func (c *stageCompleter) CompleteJSON(_ context.Context, _ string, schema *analyzer.Schema, out any) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if err := c.errs[schema.Name()]; err != nil {
		return err
	}
	return analyzer.ParseStructured(c.answers[schema.Name()], schema, out)
}

type fakeDescriber struct {
	failOn map[string]bool
}

func (d *fakeDescriber) DescribeImage(_ context.Context, img models.Media) (string, error) {
	if d.failOn[string(img.Data)] {
		return "", errors.New("vision model timeout")
	}
	return "photo of " + string(img.Data), nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(context.Context, models.Media) (string, error) {
	return t.text, t.err
}

type fakeChecker struct {
	check *analyzer.ImageCheck
	err   error
}

func (c *fakeChecker) CheckImage(context.Context, models.Media) (*analyzer.ImageCheck, error) {
	return c.check, c.err
}

type fakeGeocoder struct {
	addr *geocode.Address
	err  error
}

func (g *fakeGeocoder) Reverse(context.Context, float64, float64) (*geocode.Address, error) {
	return g.addr, g.err
}

type harness struct {
	svc       *complaintService
	repo      *fakeRepo
	storage   *fakeStorage
	completer *stageCompleter
	describer *fakeDescriber
	checker   *fakeChecker
	geocoder  *fakeGeocoder
}

func newHarness() *harness {
	logger := utils.NewNopLogger()
	h := &harness{
		repo:      newFakeRepo(),
		storage:   newFakeStorage(),
		completer: newStageCompleter(),
		describer: &fakeDescriber{failOn: map[string]bool{}},
		checker:   &fakeChecker{check: &analyzer.ImageCheck{IsValid: true, Message: "Looks like a civic issue"}},
		geocoder:  &fakeGeocoder{addr: &geocode.Address{DisplayName: "Market Road, Ward 5", Ward: "Ward 5"}},
	}

	svc := NewComplaintService(Deps{
		Repo:       h.repo,
		Storage:    h.storage,
		Normalizer: normalize.NewNormalizer(&fakeTranscriber{text: "the light is out"}, h.describer, logger),
		Pipeline:   pipeline.New(h.completer, logger),
		Checker:    h.checker,
		Reports:    report.NewGenerator("http://localhost:3000"),
		Geocoder:   h.geocoder,
		MaxImages:  3,
	}, logger).(*complaintService)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	h.svc = svc
	return h
}

func dataURI(payload string) string {
	return utils.EncodeDataURI([]byte(payload), "image/jpeg")
}

func hasPrefix(keys []string, prefix string) bool {
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
