// Package pipeline runs the five AI stages over a normalized complaint:
// validation, understanding, classification, scoring and summarization.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/metrics"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

const (
	StageValidation     = "validation"
	StageUnderstanding  = "understanding"
	StageClassification = "classification"
	StageScoring        = "scoring"
	StageSummarization  = "summarization"
)

const autoValidationMessage = "Complaint accepted (automatic validation)"

type Pipeline struct {
	completer analyzer.Completer
	logger    *utils.Logger
}

func New(completer analyzer.Completer, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		completer: completer,
		logger:    logger,
	}
}

// Process runs the stages in order. It stops after validation when the input is
// rejected; past validation only classification, scoring and summarization can fail.
func (p *Pipeline) Process(ctx context.Context, in *models.NormalizedInput) (*Result, error) {
	validation := p.Validate(ctx, in)
	if !validation.IsValid {
		metrics.PipelineResults.WithLabelValues("rejected").Inc()
		p.logger.Info("Complaint rejected by validation", "message", validation.Message, "spam", validation.IsSpam)
		return Rejected(validation), nil
	}

	understanding := p.Understand(ctx, in)

	classification, err := p.Classify(ctx, understanding)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("failed").Inc()
		return nil, err
	}

	scoring, err := p.Score(ctx, understanding, classification)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("failed").Inc()
		return nil, err
	}

	summarization, err := p.Summarize(ctx, understanding, in)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.PipelineResults.WithLabelValues("accepted").Inc()
	p.logger.Info("Complaint analysed",
		"department", classification.Department,
		"issue_type", classification.IssueType,
		"priority", scoring.Priority,
		"language", understanding.Language)

	return Accepted(validation, Analysis{
		Understanding:  understanding,
		Classification: classification,
		Scoring:        scoring,
		Summarization:  summarization,
	}), nil
}

// Validate fails open: any error yields a valid result.
func (p *Pipeline) Validate(ctx context.Context, in *models.NormalizedInput) Validation {
	var v Validation
	if err := p.run(ctx, StageValidation, validationPrompt(in), validationSchema, &v); err != nil {
		p.logger.Warn("Validation call failed, accepting complaint", "error", err)
		return Validation{
			IsValid:           true,
			IsGovernmentIssue: true,
			IsUnderstandable:  true,
			Message:           autoValidationMessage,
		}
	}
	return v
}

// Understand falls back to the raw text when the model call fails.
func (p *Pipeline) Understand(ctx context.Context, in *models.NormalizedInput) Understanding {
	var u Understanding
	if err := p.run(ctx, StageUnderstanding, understandingPrompt(in), understandingSchema, &u); err != nil {
		p.logger.Warn("Understanding call failed, using raw input", "error", err)
		return FallbackUnderstanding(in)
	}
	return u
}

// FallbackUnderstanding is the degraded result used when the understanding stage fails.
func FallbackUnderstanding(in *models.NormalizedInput) Understanding {
	issue := in.TextContent
	if issue == "" {
		issue = strings.Join(in.ImageDescriptions, " ")
	}
	return Understanding{
		ExtractedIssue: issue,
		Context:        "",
		Intent:         "complaint",
		Language:       LanguageEnglish,
	}
}

func (p *Pipeline) Classify(ctx context.Context, u Understanding) (Classification, error) {
	var c Classification
	if err := p.run(ctx, StageClassification, classificationPrompt(u), classificationSchema, &c); err != nil {
		return Classification{}, err
	}
	return c, nil
}

func (p *Pipeline) Score(ctx context.Context, u Understanding, c Classification) (Scoring, error) {
	var s Scoring
	if err := p.run(ctx, StageScoring, scoringPrompt(u, c), scoringSchema, &s); err != nil {
		return Scoring{}, err
	}
	return s, nil
}

func (p *Pipeline) Summarize(ctx context.Context, u Understanding, in *models.NormalizedInput) (Summarization, error) {
	var s Summarization
	if err := p.run(ctx, StageSummarization, summarizationPrompt(u, in), summarizationSchema, &s); err != nil {
		return Summarization{}, err
	}
	s.Keywords = cleanKeywords(s.Keywords)
	return s, nil
}

func (p *Pipeline) run(ctx context.Context, stage, prompt string, schema *analyzer.Schema, out any) error {
	start := time.Now()
	err := p.completer.CompleteJSON(ctx, prompt, schema, out)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailures.WithLabelValues(stage).Inc()
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	return nil
}

func cleanKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
