package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/geocode"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	valid bool
	err   error
	calls int
}

func (f *fakeChecker) CheckImage(context.Context, models.Media) (*analyzer.ImageCheck, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	msg := "ok"
	if !f.valid {
		msg = "This looks like a selfie"
	}
	return &analyzer.ImageCheck{IsValid: f.valid, Message: msg}, nil
}

type fakeAnalyzer struct {
	err   error
	calls int
	got   Capture
}

func (f *fakeAnalyzer) AnalyzeCapture(_ context.Context, c Capture, _ models.Location) (*models.Draft, error) {
	f.calls++
	f.got = c
	if f.err != nil {
		return nil, f.err
	}
	return &models.Draft{
		Summary:    "Pothole on MG Road",
		Department: "Public Works Department",
		IssueType:  "Pothole",
		Priority:   models.PriorityMedium,
		Severity:   5,
		Urgency:    4,
		Language:   "english",
		Confidence: 0.8,
	}, nil
}

type fakeSubmitter struct {
	err   error
	calls int
	got   models.NewComplaint
}

func (f *fakeSubmitter) SubmitComplaint(_ context.Context, c models.NewComplaint) (*models.Complaint, error) {
	f.calls++
	f.got = c
	if f.err != nil {
		return nil, f.err
	}
	return &models.Complaint{ReferenceID: "PW7K3MZQ"}, nil
}

type fakeGeocoder struct {
	err error
}

func (f *fakeGeocoder) Reverse(context.Context, float64, float64) (*geocode.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &geocode.Address{DisplayName: "MG Road, Bengaluru", Ward: "Shanthala Nagar"}, nil
}

type fixture struct {
	checker   *fakeChecker
	analyzer  *fakeAnalyzer
	submitter *fakeSubmitter
	geocoder  *fakeGeocoder
}

func newFixture() *fixture {
	return &fixture{
		checker:   &fakeChecker{valid: true},
		analyzer:  &fakeAnalyzer{},
		submitter: &fakeSubmitter{},
		geocoder:  &fakeGeocoder{},
	}
}

func (f *fixture) machine(t *testing.T, v Variant) *Machine {
	t.Helper()
	m, err := New(v, Deps{Checker: f.checker, Analyzer: f.analyzer, Submitter: f.submitter, Geocoder: f.geocoder})
	require.NoError(t, err)
	return m
}

func photo(name string) models.Media {
	return models.Media{Data: []byte(name), ContentType: "image/jpeg"}
}

func ptr[T any](v T) *T { return &v }

func TestNew_UnknownVariant(t *testing.T) {
	_, err := New("fax", Deps{})
	assert.Error(t, err)
}

func TestImageVariant_HappyPath(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantImage)
	ctx := context.Background()

	assert.Equal(t, 1, m.Step())
	assert.Equal(t, 7, m.TotalSteps())

	tr, err := m.Capture(Capture{Images: []models.Media{photo("a"), photo("b")}})
	require.NoError(t, err)
	assert.Equal(t, Transition{From: StateCapture, To: StateEdgeValidate}, tr)
	assert.Equal(t, 2, m.Step())

	_, err = m.EdgeValidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAnalyze, m.State())
	assert.Equal(t, 2, f.checker.calls)

	_, err = m.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocate, m.State())
	assert.Equal(t, 4, m.Step())

	_, err = m.SetLocation(ctx, models.Location{Latitude: ptr(12.97), Longitude: ptr(77.59)})
	require.NoError(t, err)
	assert.Equal(t, StateEdit, m.State())
	assert.Equal(t, "MG Road, Bengaluru", m.View().Location.ManualLocation)
	assert.Equal(t, "Shanthala Nagar", m.View().Location.Ward)

	_, err = m.Edit(DraftPatch{Priority: ptr("high"), Summary: ptr("Pothole on MG Road")})
	require.NoError(t, err)
	assert.Equal(t, []string{"priority"}, m.View().EditedFields)

	_, err = m.Preview()
	require.NoError(t, err)
	assert.Equal(t, 6, m.Step())

	tr, err = m.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, tr.To)
	assert.Equal(t, 7, m.Step())
	assert.Equal(t, "PW7K3MZQ", m.ReferenceID())
	assert.Equal(t, models.PriorityHigh, f.submitter.got.Draft.Priority)
	assert.Len(t, f.submitter.got.Images, 2)
	require.NotNil(t, f.submitter.got.Location.Latitude)
}

func TestTextVariant_HappyPathWithoutLocation(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantText)
	ctx := context.Background()

	assert.Equal(t, 6, m.TotalSteps())

	_, err := m.Capture(Capture{Text: "Garbage not collected in Ward 12 for a week"})
	require.NoError(t, err)
	assert.Equal(t, StateAnalyze, m.State())
	assert.Equal(t, 2, m.Step())

	_, err = m.Analyze(ctx)
	require.NoError(t, err)

	_, err = m.SkipLocation()
	require.NoError(t, err)

	_, err = m.Preview()
	require.NoError(t, err)

	_, err = m.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, m.Step())
	assert.True(t, f.submitter.got.Location.Empty())
	assert.Zero(t, f.checker.calls)
}

func TestCapture_LocalRejections(t *testing.T) {
	f := newFixture()

	img := f.machine(t, VariantImage)
	_, err := img.Capture(Capture{Text: "lots of words but no photo", Images: []models.Media{{}}})
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Equal(t, StateCapture, img.State())

	txt := f.machine(t, VariantText)
	_, err = txt.Capture(Capture{Text: "  too short "})
	assert.ErrorIs(t, err, ErrInputTooShort)
	assert.Zero(t, f.analyzer.calls)
}

func TestCapture_TextLengthBoundary(t *testing.T) {
	f := newFixture()

	short := f.machine(t, VariantText)
	_, err := short.Capture(Capture{Text: "  123456789  "})
	assert.ErrorIs(t, err, ErrInputTooShort)
	assert.Equal(t, StateCapture, short.State())
	assert.Zero(t, f.analyzer.calls)

	exact := f.machine(t, VariantText)
	_, err = exact.Capture(Capture{Text: "1234567890"})
	assert.NoError(t, err)

	voice := f.machine(t, VariantText)
	_, err = voice.Capture(Capture{Voice: &models.Media{Data: []byte("audio")}})
	assert.NoError(t, err)
	assert.True(t, voice.View().HasVoice)
}

func TestEdgeValidate_NegativeRollsBack(t *testing.T) {
	f := newFixture()
	f.checker.valid = false
	m := f.machine(t, VariantImage)

	_, err := m.Capture(Capture{Images: []models.Media{photo("selfie")}})
	require.NoError(t, err)

	tr, err := m.EdgeValidate(context.Background())
	assert.ErrorIs(t, err, ErrImageRejected)
	assert.Equal(t, StateCapture, tr.To)
	assert.Equal(t, []Action{ActionClearImages}, tr.Actions)
	assert.Equal(t, 0, m.View().ImageCount)
	assert.Equal(t, "This looks like a selfie", m.View().Message)

	_, err = m.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.analyzer.calls)
}

func TestEdgeValidate_ErrorRollsBack(t *testing.T) {
	f := newFixture()
	f.checker.err = errors.New("vision down")
	m := f.machine(t, VariantImage)

	_, err := m.Capture(Capture{Images: []models.Media{photo("a")}})
	require.NoError(t, err)

	tr, err := m.EdgeValidate(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateCapture, tr.To)
	assert.Equal(t, 0, m.View().ImageCount)
}

func TestAnalyze_FailureResetsEverything(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("model unavailable")
	m := f.machine(t, VariantText)

	_, err := m.Capture(Capture{Text: "Water pipe burst near the temple", Voice: &models.Media{Data: []byte("a")}})
	require.NoError(t, err)

	tr, err := m.Analyze(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateCapture, tr.To)
	assert.Contains(t, tr.Actions, ActionClearText)
	assert.Contains(t, tr.Actions, ActionClearVoice)

	v := m.View()
	assert.Empty(t, v.Text)
	assert.False(t, v.HasVoice)
	assert.Nil(t, v.Draft)
	assert.Equal(t, 1, v.Step)
}

func TestForwardMovesAreGated(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantImage)
	ctx := context.Background()

	_, err := m.EdgeValidate(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Analyze(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.SkipLocation()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Edit(DraftPatch{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Preview()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Back()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Submit(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.submitter.calls)
}

func advanceToPreview(t *testing.T, m *Machine) {
	t.Helper()
	ctx := context.Background()
	_, err := m.Capture(Capture{Text: "Broken footpath outside the bus stop"})
	require.NoError(t, err)
	_, err = m.Analyze(ctx)
	require.NoError(t, err)
	_, err = m.SkipLocation()
	require.NoError(t, err)
	_, err = m.Preview()
	require.NoError(t, err)
}

func TestBackAndForthBetweenEditAndPreview(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantText)
	advanceToPreview(t, m)

	_, err := m.Edit(DraftPatch{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "preview is read-only")

	_, err = m.Back()
	require.NoError(t, err)
	assert.Equal(t, StateEdit, m.State())

	_, err = m.Edit(DraftPatch{Department: ptr("Municipal Corporation"), Keywords: &[]string{"footpath"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"department", "keywords"}, m.View().EditedFields)

	_, err = m.Preview()
	require.NoError(t, err)
}

func TestEdit_InvalidFields(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantText)
	advanceToPreview(t, m)
	_, err := m.Back()
	require.NoError(t, err)

	_, err = m.Edit(DraftPatch{Priority: ptr("urgent")})
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = m.Edit(DraftPatch{Summary: ptr("   ")})
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.Equal(t, models.PriorityMedium, m.Draft().Priority)
}

func TestEdit_ScoresAndLanguage(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantText)
	advanceToPreview(t, m)
	_, err := m.Back()
	require.NoError(t, err)

	var patch DraftPatch
	require.NoError(t, json.Unmarshal([]byte(`{"severity":9,"urgency":8,"language":"hindi"}`), &patch))

	_, err = m.Edit(patch)
	require.NoError(t, err)
	d := m.Draft()
	assert.Equal(t, 9, d.Severity)
	assert.Equal(t, 8, d.Urgency)
	assert.Equal(t, "hindi", d.Language)
	assert.ElementsMatch(t, []string{"severity", "urgency", "language"}, m.View().EditedFields)

	tests := []struct {
		name  string
		patch DraftPatch
	}{
		{"severity too low", DraftPatch{Severity: ptr(0)}},
		{"severity too high", DraftPatch{Severity: ptr(11)}},
		{"urgency out of range", DraftPatch{Urgency: ptr(-2)}},
		{"unknown language", DraftPatch{Language: ptr("tamil")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Edit(tt.patch)
			assert.ErrorIs(t, err, ErrInvalidField)
		})
	}
	assert.Equal(t, 9, m.Draft().Severity)
	assert.Equal(t, "hindi", m.Draft().Language)

	_, err = m.Preview()
	require.NoError(t, err)
	_, err = m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, f.submitter.got.Draft.Severity)
}

func TestSubmit_FailureStaysInPreview(t *testing.T) {
	f := newFixture()
	f.submitter.err = errors.New("db locked")
	m := f.machine(t, VariantText)
	advanceToPreview(t, m)

	tr, err := m.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatePreview, tr.To)
	assert.Equal(t, StatePreview, m.State())

	f.submitter.err = nil
	_, err = m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.submitter.calls)
}

func TestComplete_IsTerminal(t *testing.T) {
	f := newFixture()
	m := f.machine(t, VariantText)
	advanceToPreview(t, m)
	_, err := m.Submit(context.Background())
	require.NoError(t, err)

	_, err = m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = m.Back()
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = m.Capture(Capture{Text: "another complaint text"})
	assert.ErrorIs(t, err, ErrTerminal)
	assert.ErrorIs(t, m.SetOwner("u1", false), ErrTerminal)
	assert.Equal(t, 1, f.submitter.calls)
}

func TestSetLocation_GeocoderFailureIgnored(t *testing.T) {
	f := newFixture()
	f.geocoder.err = errors.New("geocoder down")
	m := f.machine(t, VariantText)
	ctx := context.Background()

	_, err := m.Capture(Capture{Text: "Tree fallen across the road"})
	require.NoError(t, err)
	_, err = m.Analyze(ctx)
	require.NoError(t, err)

	_, err = m.SetLocation(ctx, models.Location{Latitude: ptr(1.0)})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = m.SetLocation(ctx, models.Location{Latitude: ptr(1.0), Longitude: ptr(2.0), Ward: "Ward 3"})
	require.NoError(t, err)
	loc := m.View().Location
	require.NotNil(t, loc)
	assert.Empty(t, loc.ManualLocation)
	assert.Equal(t, "Ward 3", loc.Ward)
}
