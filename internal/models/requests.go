package models

// Media is a decoded upload (image or voice recording).
type Media struct {
	Data        []byte
	ContentType string
	Filename    string
}

// SubmissionRequest is a one-shot complaint submission.
type SubmissionRequest struct {
	Text           string
	Voice          *Media
	Images         []Media
	Latitude       string
	Longitude      string
	ManualLocation string
	Ward           string
	IsAnonymous    bool
	UserID         string
}

// Draft is the editable analysis a citizen reviews before submitting.
type Draft struct {
	Summary             string   `json:"summary"`
	Keywords            []string `json:"keywords"`
	Department          string   `json:"department"`
	IssueType           string   `json:"issueType"`
	SubCategory         string   `json:"subCategory,omitempty"`
	Priority            Priority `json:"priority"`
	PriorityExplanation string   `json:"priorityExplanation"`
	Severity            int      `json:"severity"`
	Urgency             int      `json:"urgency"`
	Confidence          float64  `json:"confidence"`
	Language            string   `json:"language"`
	VoiceTranscript     string   `json:"voiceTranscript,omitempty"`
	TextContent         string   `json:"textContent"`
}

// Location is the optional place attached to a complaint.
type Location struct {
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	ManualLocation string   `json:"manualLocation,omitempty"`
	Ward           string   `json:"ward,omitempty"`
}

func (l Location) Empty() bool {
	return l.Latitude == nil && l.Longitude == nil && l.ManualLocation == "" && l.Ward == ""
}

// NewComplaint bundles everything needed to persist a complaint.
type NewComplaint struct {
	Draft       Draft
	Location    Location
	Voice       *Media
	Images      []Media
	IsAnonymous bool
	UserID      string
}

type AnalyzeImagesRequest struct {
	Images []string `json:"images"`
}

type AnalyzeImagesResponse struct {
	Success            bool     `json:"success"`
	Analysis           *Draft   `json:"analysis,omitempty"`
	IndividualAnalyses []string `json:"individualAnalyses"`
	ImageCount         int      `json:"imageCount"`
	Message            string   `json:"message,omitempty"`
}

type AnalyzeTextRequest struct {
	Text           string   `json:"text"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	ManualLocation string   `json:"manualLocation,omitempty"`
	Ward           string   `json:"ward,omitempty"`
}

type AnalyzeTextResponse struct {
	Success  bool   `json:"success"`
	Analysis *Draft `json:"analysis,omitempty"`
	Message  string `json:"message,omitempty"`
}

type ValidateImageRequest struct {
	Image string `json:"image"`
}

type ValidateImageResponse struct {
	Success bool   `json:"success"`
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

type GenerateReportRequest struct {
	ReferenceID    string   `json:"referenceId"`
	Summary        string   `json:"summary"`
	Department     string   `json:"department"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status,omitempty"`
	IssueType      string   `json:"issueType,omitempty"`
	ManualLocation string   `json:"manualLocation,omitempty"`
	Ward           string   `json:"ward,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty"`
}

type GenerateReportResponse struct {
	Success  bool   `json:"success"`
	PDF      string `json:"pdf"`
	FileName string `json:"fileName"`
}

type SubmissionResponse struct {
	Success     bool       `json:"success"`
	ReferenceID string     `json:"referenceId,omitempty"`
	Complaint   *Complaint `json:"complaint,omitempty"`
	Message     string     `json:"message,omitempty"`
}
