// Package workflow is the guided complaint submission wizard as an explicit
// finite-state machine. Forward moves are gated on the asynchronous step of the
// current state; failed checks roll the machine back to capture with its input
// cleared, so a later state never holds stale partial data.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/geocode"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
)

type Variant string

const (
	VariantImage Variant = "image"
	VariantText  Variant = "text"
)

func (v Variant) Valid() bool {
	return v == VariantImage || v == VariantText
}

type State string

const (
	StateCapture      State = "capture"
	StateEdgeValidate State = "edge_validate"
	StateAnalyze      State = "analyze"
	StateLocate       State = "locate"
	StateEdit         State = "edit"
	StatePreview      State = "preview"
	StateComplete     State = "complete"
)

var steps = map[Variant][]State{
	VariantImage: {StateCapture, StateEdgeValidate, StateAnalyze, StateLocate, StateEdit, StatePreview, StateComplete},
	VariantText:  {StateCapture, StateAnalyze, StateLocate, StateEdit, StatePreview, StateComplete},
}

// Action names a side effect a transition performed, for client feedback.
type Action string

const (
	ActionClearImages   Action = "clear_images"
	ActionClearText     Action = "clear_text"
	ActionClearVoice    Action = "clear_voice"
	ActionClearDraft    Action = "clear_draft"
	ActionClearLocation Action = "clear_location"
)

// MinTextLength is the shortest typed complaint accepted without photos or voice.
const MinTextLength = 10

var (
	ErrInvalidTransition = errors.New("transition not allowed from current step")
	ErrTerminal          = errors.New("submission already completed")
	ErrNoImages          = errors.New("at least one photo is required")
	ErrInputTooShort     = fmt.Errorf("complaint text is too short; please enter at least %d characters", MinTextLength)
	ErrImageRejected     = errors.New("photo does not appear to show a civic issue")
	ErrInvalidField      = errors.New("invalid field value")
)

// Transition is the outcome of one move: where the machine was, where it is now,
// and what it cleared on the way.
type Transition struct {
	From    State    `json:"from"`
	To      State    `json:"to"`
	Actions []Action `json:"actions,omitempty"`
}

type Capture struct {
	Images []models.Media
	Text   string
	Voice  *models.Media
}

// CaptureAnalyzer runs the full analysis over captured input.
type CaptureAnalyzer interface {
	AnalyzeCapture(ctx context.Context, capture Capture, location models.Location) (*models.Draft, error)
}

// Submitter persists the reviewed complaint.
type Submitter interface {
	SubmitComplaint(ctx context.Context, complaint models.NewComplaint) (*models.Complaint, error)
}

type Deps struct {
	Checker   analyzer.ImageChecker
	Analyzer  CaptureAnalyzer
	Submitter Submitter
	Geocoder  geocode.ReverseGeocoder
}

// Machine is one submission attempt. It is not safe for concurrent use.
type Machine struct {
	deps    Deps
	variant Variant
	state   State

	capture      Capture
	draft        *models.Draft
	location     models.Location
	editedFields []string
	isAnonymous  bool
	userID       string

	referenceID string
	message     string
}

func New(variant Variant, deps Deps) (*Machine, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("unknown workflow variant %q", variant)
	}
	return &Machine{deps: deps, variant: variant, state: StateCapture}, nil
}

func (m *Machine) State() State {
	return m.state
}

// Step is the 1-based position of the current state within the variant.
func (m *Machine) Step() int {
	for i, s := range steps[m.variant] {
		if s == m.state {
			return i + 1
		}
	}
	return 0
}

func (m *Machine) TotalSteps() int {
	return len(steps[m.variant])
}

func (m *Machine) Draft() *models.Draft {
	return m.draft
}

func (m *Machine) ReferenceID() string {
	return m.referenceID
}

func (m *Machine) require(state State) error {
	if m.state == StateComplete {
		return ErrTerminal
	}
	if m.state != state {
		return fmt.Errorf("%w: at %s, need %s", ErrInvalidTransition, m.state, state)
	}
	return nil
}

func (m *Machine) move(to State, actions ...Action) Transition {
	t := Transition{From: m.state, To: to, Actions: actions}
	m.state = to
	return t
}

// Capture records what the citizen captured. Input is checked locally; nothing
// leaves the process here.
func (m *Machine) Capture(c Capture) (Transition, error) {
	if err := m.require(StateCapture); err != nil {
		return Transition{}, err
	}

	images := nonEmpty(c.Images)
	text := strings.TrimSpace(c.Text)
	hasVoice := c.Voice != nil && len(c.Voice.Data) > 0

	switch m.variant {
	case VariantImage:
		if len(images) == 0 {
			return Transition{}, ErrNoImages
		}
	case VariantText:
		if !hasVoice && len([]rune(text)) < MinTextLength {
			return Transition{}, ErrInputTooShort
		}
	}

	m.capture = Capture{Images: images, Text: text}
	if hasVoice {
		m.capture.Voice = c.Voice
	}
	m.message = ""

	if m.variant == VariantImage {
		return m.move(StateEdgeValidate), nil
	}
	return m.move(StateAnalyze), nil
}

// EdgeValidate runs the quick photo check. A negative answer or a failed check
// returns to capture with the photos cleared.
func (m *Machine) EdgeValidate(ctx context.Context) (Transition, error) {
	if err := m.require(StateEdgeValidate); err != nil {
		return Transition{}, err
	}

	for _, img := range m.capture.Images {
		check, err := m.deps.Checker.CheckImage(ctx, img)
		if err != nil {
			m.message = "We could not check your photo. Please try again."
			return m.rollbackImages(), fmt.Errorf("edge validation: %w", err)
		}
		if !check.IsValid {
			m.message = check.Message
			return m.rollbackImages(), ErrImageRejected
		}
	}

	m.message = ""
	return m.move(StateAnalyze), nil
}

func (m *Machine) rollbackImages() Transition {
	m.capture.Images = nil
	return m.move(StateCapture, ActionClearImages)
}

// Analyze runs the full analysis. Any failure resets the machine to capture and
// clears everything captured so far.
func (m *Machine) Analyze(ctx context.Context) (Transition, error) {
	if err := m.require(StateAnalyze); err != nil {
		return Transition{}, err
	}

	draft, err := m.deps.Analyzer.AnalyzeCapture(ctx, m.capture, m.location)
	if err != nil {
		m.message = "We could not analyse your complaint. Please start again."
		return m.reset(), fmt.Errorf("analysis: %w", err)
	}

	m.draft = draft
	m.editedFields = nil
	m.message = ""
	return m.move(StateLocate), nil
}

func (m *Machine) reset() Transition {
	m.capture = Capture{}
	m.draft = nil
	m.location = models.Location{}
	m.editedFields = nil
	return m.move(StateCapture, ActionClearImages, ActionClearText, ActionClearVoice, ActionClearDraft, ActionClearLocation)
}

// SetLocation attaches a location and moves on to editing. When only coordinates
// are given the address is looked up; lookup failures are ignored.
func (m *Machine) SetLocation(ctx context.Context, loc models.Location) (Transition, error) {
	if err := m.require(StateLocate); err != nil {
		return Transition{}, err
	}
	if (loc.Latitude == nil) != (loc.Longitude == nil) {
		return Transition{}, fmt.Errorf("%w: latitude and longitude must be given together", ErrInvalidField)
	}

	if loc.Latitude != nil && loc.ManualLocation == "" && m.deps.Geocoder != nil {
		if addr, err := m.deps.Geocoder.Reverse(ctx, *loc.Latitude, *loc.Longitude); err == nil {
			loc.ManualLocation = addr.DisplayName
			if loc.Ward == "" {
				loc.Ward = addr.Ward
			}
		}
	}

	m.location = loc
	return m.move(StateEdit), nil
}

// SkipLocation proceeds without a location.
func (m *Machine) SkipLocation() (Transition, error) {
	if err := m.require(StateLocate); err != nil {
		return Transition{}, err
	}
	m.location = models.Location{}
	return m.move(StateEdit), nil
}

// DraftPatch overrides AI-derived fields; nil fields are left alone.
type DraftPatch struct {
	Summary             *string   `json:"summary,omitempty"`
	Keywords            *[]string `json:"keywords,omitempty"`
	Department          *string   `json:"department,omitempty"`
	IssueType           *string   `json:"issueType,omitempty"`
	SubCategory         *string   `json:"subCategory,omitempty"`
	Priority            *string   `json:"priority,omitempty"`
	PriorityExplanation *string   `json:"priorityExplanation,omitempty"`
	Severity            *int      `json:"severity,omitempty"`
	Urgency             *int      `json:"urgency,omitempty"`
	Language            *string   `json:"language,omitempty"`
	IsAnonymous         *bool     `json:"isAnonymous,omitempty"`
}

// Scores are on the same 1-10 scale the scoring stage uses.
const (
	MinScore = 1
	MaxScore = 10
)

var languages = map[string]bool{"english": true, "hindi": true, "mixed": true}

// Edit applies patch to the draft. The machine stays in edit.
func (m *Machine) Edit(patch DraftPatch) (Transition, error) {
	if err := m.require(StateEdit); err != nil {
		return Transition{}, err
	}

	if patch.Priority != nil && !models.Priority(*patch.Priority).Valid() {
		return Transition{}, fmt.Errorf("%w: priority must be high, medium or low", ErrInvalidField)
	}
	if patch.Summary != nil && strings.TrimSpace(*patch.Summary) == "" {
		return Transition{}, fmt.Errorf("%w: summary cannot be empty", ErrInvalidField)
	}
	if patch.Severity != nil && (*patch.Severity < MinScore || *patch.Severity > MaxScore) {
		return Transition{}, fmt.Errorf("%w: severity must be between %d and %d", ErrInvalidField, MinScore, MaxScore)
	}
	if patch.Urgency != nil && (*patch.Urgency < MinScore || *patch.Urgency > MaxScore) {
		return Transition{}, fmt.Errorf("%w: urgency must be between %d and %d", ErrInvalidField, MinScore, MaxScore)
	}
	if patch.Language != nil && !languages[*patch.Language] {
		return Transition{}, fmt.Errorf("%w: language must be english, hindi or mixed", ErrInvalidField)
	}

	d := m.draft
	if patch.Summary != nil && *patch.Summary != d.Summary {
		d.Summary = strings.TrimSpace(*patch.Summary)
		m.markEdited("summary")
	}
	if patch.Keywords != nil {
		d.Keywords = *patch.Keywords
		m.markEdited("keywords")
	}
	if patch.Department != nil && *patch.Department != d.Department {
		d.Department = *patch.Department
		m.markEdited("department")
	}
	if patch.IssueType != nil && *patch.IssueType != d.IssueType {
		d.IssueType = *patch.IssueType
		m.markEdited("issueType")
	}
	if patch.SubCategory != nil && *patch.SubCategory != d.SubCategory {
		d.SubCategory = *patch.SubCategory
		m.markEdited("subCategory")
	}
	if patch.Priority != nil && models.Priority(*patch.Priority) != d.Priority {
		d.Priority = models.Priority(*patch.Priority)
		m.markEdited("priority")
	}
	if patch.PriorityExplanation != nil && *patch.PriorityExplanation != d.PriorityExplanation {
		d.PriorityExplanation = *patch.PriorityExplanation
		m.markEdited("priorityExplanation")
	}
	if patch.Severity != nil && *patch.Severity != d.Severity {
		d.Severity = *patch.Severity
		m.markEdited("severity")
	}
	if patch.Urgency != nil && *patch.Urgency != d.Urgency {
		d.Urgency = *patch.Urgency
		m.markEdited("urgency")
	}
	if patch.Language != nil && *patch.Language != d.Language {
		d.Language = *patch.Language
		m.markEdited("language")
	}
	if patch.IsAnonymous != nil {
		m.isAnonymous = *patch.IsAnonymous
	}

	return Transition{From: StateEdit, To: StateEdit}, nil
}

func (m *Machine) markEdited(field string) {
	for _, f := range m.editedFields {
		if f == field {
			return
		}
	}
	m.editedFields = append(m.editedFields, field)
}

// SetOwner records who is submitting. Allowed any time before completion.
func (m *Machine) SetOwner(userID string, anonymous bool) error {
	if m.state == StateComplete {
		return ErrTerminal
	}
	m.userID = userID
	m.isAnonymous = anonymous
	return nil
}

func (m *Machine) Preview() (Transition, error) {
	if err := m.require(StateEdit); err != nil {
		return Transition{}, err
	}
	return m.move(StatePreview), nil
}

// Back is the only backward move: preview to edit.
func (m *Machine) Back() (Transition, error) {
	if err := m.require(StatePreview); err != nil {
		return Transition{}, err
	}
	return m.move(StateEdit), nil
}

// Submit persists the complaint. On failure the machine stays in preview so the
// citizen can retry.
func (m *Machine) Submit(ctx context.Context) (Transition, error) {
	if err := m.require(StatePreview); err != nil {
		return Transition{}, err
	}

	complaint, err := m.deps.Submitter.SubmitComplaint(ctx, models.NewComplaint{
		Draft:       *m.draft,
		Location:    m.location,
		Voice:       m.capture.Voice,
		Images:      m.capture.Images,
		IsAnonymous: m.isAnonymous,
		UserID:      m.userID,
	})
	if err != nil {
		m.message = "Submission failed. Please try again."
		return Transition{From: StatePreview, To: StatePreview}, fmt.Errorf("submit: %w", err)
	}

	m.referenceID = complaint.ReferenceID
	m.message = ""
	return m.move(StateComplete), nil
}

// View is the client-facing snapshot of the machine.
type View struct {
	Variant      Variant          `json:"variant"`
	State        State            `json:"state"`
	Step         int              `json:"step"`
	TotalSteps   int              `json:"totalSteps"`
	ImageCount   int              `json:"imageCount"`
	HasVoice     bool             `json:"hasVoice"`
	Text         string           `json:"text,omitempty"`
	Draft        *models.Draft    `json:"draft,omitempty"`
	Location     *models.Location `json:"location,omitempty"`
	EditedFields []string         `json:"editedFields,omitempty"`
	IsAnonymous  bool             `json:"isAnonymous"`
	ReferenceID  string           `json:"referenceId,omitempty"`
	Message      string           `json:"message,omitempty"`
}

func (m *Machine) View() View {
	v := View{
		Variant:      m.variant,
		State:        m.state,
		Step:         m.Step(),
		TotalSteps:   m.TotalSteps(),
		ImageCount:   len(m.capture.Images),
		HasVoice:     m.capture.Voice != nil,
		Text:         m.capture.Text,
		Draft:        m.draft,
		EditedFields: m.editedFields,
		IsAnonymous:  m.isAnonymous,
		ReferenceID:  m.referenceID,
		Message:      m.message,
	}
	if !m.location.Empty() {
		loc := m.location
		v.Location = &loc
	}
	return v
}

func nonEmpty(images []models.Media) []models.Media {
	var out []models.Media
	for _, img := range images {
		if len(img.Data) > 0 {
			out = append(out, img)
		}
	}
	return out
}
