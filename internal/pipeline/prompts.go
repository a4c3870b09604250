package pipeline

import (
	"fmt"
	"strings"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
)

var validationSchema = analyzer.MustSchema("validation", `{
  "type": "object",
  "required": ["isValid", "isGovernmentIssue", "isUnderstandable", "isSpam", "needsClarification"],
  "properties": {
    "isValid": {"type": "boolean"},
    "isGovernmentIssue": {"type": "boolean"},
    "isUnderstandable": {"type": "boolean"},
    "isSpam": {"type": "boolean"},
    "needsClarification": {"type": "boolean"},
    "clarificationQuestions": {"type": ["array", "null"], "items": {"type": "string"}},
    "message": {"type": ["string", "null"]}
  }
}`)

var understandingSchema = analyzer.MustSchema("understanding", `{
  "type": "object",
  "required": ["extractedIssue", "context", "intent", "language"],
  "properties": {
    "extractedIssue": {"type": "string", "minLength": 1},
    "context": {"type": "string"},
    "intent": {"type": "string"},
    "language": {"type": "string", "enum": ["english", "hindi", "mixed"]}
  }
}`)

var classificationSchema = analyzer.MustSchema("classification", fmt.Sprintf(`{
  "type": "object",
  "required": ["department", "issueType", "confidence"],
  "properties": {
    "department": {"type": "string", "enum": %s},
    "issueType": {"type": "string", "minLength": 1},
    "subCategory": {"type": ["string", "null"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`, jsonStringList(models.DepartmentNames())))

var scoringSchema = analyzer.MustSchema("scoring", `{
  "type": "object",
  "required": ["priority", "severity", "urgency", "explanation"],
  "properties": {
    "priority": {"type": "string", "enum": ["high", "medium", "low"]},
    "severity": {"type": "integer", "minimum": 1, "maximum": 10},
    "urgency": {"type": "integer", "minimum": 1, "maximum": 10},
    "explanation": {"type": "string"}
  }
}`)

var summarizationSchema = analyzer.MustSchema("summarization", `{
  "type": "object",
  "required": ["summary", "keywords"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "keywords": {"type": "array", "items": {"type": "string"}}
  }
}`)

func jsonStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// contextBlock renders everything the citizen told us in one block.
func contextBlock(in *models.NormalizedInput) string {
	var b strings.Builder
	if in.TextContent != "" {
		fmt.Fprintf(&b, "Citizen text:\n%s\n\n", in.TextContent)
	}
	if len(in.ImageDescriptions) > 0 {
		b.WriteString("Photo descriptions:\n")
		for i, d := range in.ImageDescriptions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, d)
		}
		b.WriteString("\n")
	}
	if in.VoiceTranscript != "" {
		fmt.Fprintf(&b, "Voice transcript:\n%s\n\n", in.VoiceTranscript)
	}
	if loc := locationLine(in); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}
	if in.Ward != "" {
		fmt.Fprintf(&b, "Ward: %s\n", in.Ward)
	}
	return strings.TrimSpace(b.String())
}

// locationLine prefers the citizen's own words over raw coordinates.
func locationLine(in *models.NormalizedInput) string {
	if in.ManualLocation != "" {
		return in.ManualLocation
	}
	if in.Location != nil {
		return fmt.Sprintf("%.6f, %.6f", in.Location.Lat, in.Location.Lng)
	}
	return ""
}

func validationPrompt(in *models.NormalizedInput) string {
	return fmt.Sprintf(`Decide whether the following submission is a legitimate civic grievance for a local
government in India. It must concern a public service or public infrastructure, be understandable,
and must not be spam, abuse or a test message. If important details are missing, set
needsClarification and list short clarificationQuestions.

%s

Respond with JSON matching this schema:
%s`, contextBlock(in), validationSchema.Raw())
}

func understandingPrompt(in *models.NormalizedInput) string {
	return fmt.Sprintf(`Read the civic complaint below. Extract the core issue in one sentence, the situational
context (where, since when, who is affected), the citizen's intent (complaint, request, suggestion
or emergency) and the language the citizen used (english, hindi or mixed).

%s

Respond with JSON matching this schema:
%s`, contextBlock(in), understandingSchema.Raw())
}

func classificationPrompt(u Understanding) string {
	return fmt.Sprintf(`Route this civic issue to exactly one responsible department from this list:
%s

Issue: %s
Context: %s

Give a short issueType (for example "Pothole", "Streetlight not working", "Garbage not collected"),
an optional subCategory and your confidence between 0 and 1.

Respond with JSON matching this schema:
%s`, "- "+strings.Join(models.DepartmentNames(), "\n- "), u.ExtractedIssue, u.Context, classificationSchema.Raw())
}

func scoringPrompt(u Understanding, c Classification) string {
	return fmt.Sprintf(`Assign a priority to this civic issue.
high: risk to life or health, or essential services down for many people.
medium: significant inconvenience that should be fixed within days.
low: cosmetic or minor issues.
Also rate severity and urgency from 1 to 10 and explain the priority in one or two sentences.

Issue: %s
Department: %s
Issue type: %s

Respond with JSON matching this schema:
%s`, u.ExtractedIssue, c.Department, c.IssueType, scoringSchema.Raw())
}

func summarizationPrompt(u Understanding, in *models.NormalizedInput) string {
	loc := locationLine(in)
	if in.Ward != "" {
		if loc != "" {
			loc += ", "
		}
		loc += in.Ward
	}
	if loc == "" {
		loc = "not provided"
	}
	return fmt.Sprintf(`Write a short, neutral summary (at most two sentences) of this civic complaint that the
citizen will see on their tracking page, and up to six search keywords.

Issue: %s
Context: %s
Location: %s

Respond with JSON matching this schema:
%s`, u.ExtractedIssue, u.Context, loc, summarizationSchema.Raw())
}
