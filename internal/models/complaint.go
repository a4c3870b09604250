package models

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether an officer may move a complaint from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusRejected
	case StatusInProgress:
		return next == StatusResolved
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type Complaint struct {
	ID                  string     `json:"id" db:"id"`
	ReferenceID         string     `json:"reference_id" db:"reference_id"`
	UserID              *string    `json:"user_id,omitempty" db:"user_id"`
	IsAnonymous         bool       `json:"is_anonymous" db:"is_anonymous"`
	TextContent         string     `json:"text_content,omitempty" db:"text_content"`
	VoiceURL            *string    `json:"voice_url,omitempty" db:"voice_url"`
	VoiceTranscript     *string    `json:"voice_transcript,omitempty" db:"voice_transcript"`
	ImageURLs           []string   `json:"image_urls" db:"-"`
	Summary             string     `json:"summary" db:"summary"`
	Keywords            []string   `json:"keywords" db:"-"`
	Department          string     `json:"department" db:"department"`
	IssueType           string     `json:"issue_type" db:"issue_type"`
	SubCategory         *string    `json:"sub_category,omitempty" db:"sub_category"`
	Priority            Priority   `json:"priority" db:"priority"`
	PriorityExplanation string     `json:"priority_explanation" db:"priority_explanation"`
	Severity            int        `json:"severity" db:"severity"`
	Urgency             int        `json:"urgency" db:"urgency"`
	Confidence          float64    `json:"confidence" db:"confidence"`
	Language            string     `json:"language" db:"language"`
	Latitude            *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude           *float64   `json:"longitude,omitempty" db:"longitude"`
	ManualLocation      *string    `json:"manual_location,omitempty" db:"manual_location"`
	Ward                *string    `json:"ward,omitempty" db:"ward"`
	Status              Status     `json:"status" db:"status"`
	RejectionReason     *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ComplaintFilter narrows officer listings. Zero values mean "any".
type ComplaintFilter struct {
	Status     Status
	Department string
	Priority   Priority
	Ward       string
	Limit      int
	Offset     int
}

type StatusUpdate struct {
	Status          Status `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// ComplaintStats is the officer dashboard aggregate.
type ComplaintStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	ByDepartment map[string]int `json:"byDepartment"`
	ByPriority   map[string]int `json:"byPriority"`
}

// StatusView is what citizens see when looking a complaint up by reference ID.
type StatusView struct {
	ReferenceID     string     `json:"referenceId"`
	DisplayID       string     `json:"displayId"`
	Summary         string     `json:"summary"`
	Department      string     `json:"department"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}
