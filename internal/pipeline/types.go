package pipeline

type Validation struct {
	IsValid                bool     `json:"isValid"`
	IsGovernmentIssue      bool     `json:"isGovernmentIssue"`
	IsUnderstandable       bool     `json:"isUnderstandable"`
	IsSpam                 bool     `json:"isSpam"`
	NeedsClarification     bool     `json:"needsClarification"`
	ClarificationQuestions []string `json:"clarificationQuestions,omitempty"`
	Message                string   `json:"message,omitempty"`
}

type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageMixed   Language = "mixed"
)

type Understanding struct {
	ExtractedIssue string   `json:"extractedIssue"`
	Context        string   `json:"context"`
	Intent         string   `json:"intent"`
	Language       Language `json:"language"`
}

type Classification struct {
	Department  string  `json:"department"`
	IssueType   string  `json:"issueType"`
	SubCategory string  `json:"subCategory,omitempty"`
	Confidence  float64 `json:"confidence"`
}

type Scoring struct {
	Priority    string `json:"priority"`
	Severity    int    `json:"severity"`
	Urgency     int    `json:"urgency"`
	Explanation string `json:"explanation"`
}

type Summarization struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Analysis is only ever built with all four stages filled in.
type Analysis struct {
	Understanding  Understanding  `json:"understanding"`
	Classification Classification `json:"classification"`
	Scoring        Scoring        `json:"scoring"`
	Summarization  Summarization  `json:"summarization"`
}

// Result is either rejected (Analysis == nil) or accepted (Analysis != nil).
type Result struct {
	Validation Validation `json:"validation"`
	Analysis   *Analysis  `json:"analysis,omitempty"`
}

func Rejected(v Validation) *Result {
	return &Result{Validation: v}
}

func Accepted(v Validation, a Analysis) *Result {
	return &Result{Validation: v, Analysis: &a}
}

func (r *Result) Accepted() bool {
	return r.Analysis != nil
}
