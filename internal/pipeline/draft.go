package pipeline

import (
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
)

// Draft maps an accepted analysis onto the editable fields a citizen reviews.
func (a *Analysis) Draft(in *models.NormalizedInput) models.Draft {
	return models.Draft{
		Summary:             a.Summarization.Summary,
		Keywords:            a.Summarization.Keywords,
		Department:          a.Classification.Department,
		IssueType:           a.Classification.IssueType,
		SubCategory:         a.Classification.SubCategory,
		Priority:            models.Priority(a.Scoring.Priority),
		PriorityExplanation: a.Scoring.Explanation,
		Severity:            a.Scoring.Severity,
		Urgency:             a.Scoring.Urgency,
		Confidence:          a.Classification.Confidence,
		Language:            string(a.Understanding.Language),
		VoiceTranscript:     in.VoiceTranscript,
		TextContent:         in.TextContent,
	}
}
