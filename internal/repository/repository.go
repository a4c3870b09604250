package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var (
	// ErrDuplicateReference means the reference ID is already taken.
	ErrDuplicateReference = errors.New("duplicate reference id")
	// ErrStatusChanged means the row no longer had the expected status.
	ErrStatusChanged = errors.New("complaint status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, c *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	GetByReference(ctx context.Context, referenceID string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, id string, from models.Status, c *models.Complaint) error
	Stats(ctx context.Context) (*models.ComplaintStats, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// complaintRow carries the JSON-encoded list columns alongside the model.
type complaintRow struct {
	models.Complaint
	ImageURLsJSON string `db:"image_urls"`
	KeywordsJSON  string `db:"keywords"`
}

const complaintColumns = `id, reference_id, user_id, is_anonymous, text_content, voice_url, voice_transcript,
	image_urls, summary, keywords, department, issue_type, sub_category, priority, priority_explanation,
	severity, urgency, confidence, language, latitude, longitude, manual_location, ward, status,
	rejection_reason, created_at, updated_at, resolved_at`

func (r *repository) Create(ctx context.Context, c *models.Complaint) error {
	imageURLs, err := json.Marshal(nonNil(c.ImageURLs))
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(nonNil(c.Keywords))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.ReferenceID,
		c.UserID,
		c.IsAnonymous,
		c.TextContent,
		c.VoiceURL,
		c.VoiceTranscript,
		string(imageURLs),
		c.Summary,
		string(keywords),
		c.Department,
		c.IssueType,
		c.SubCategory,
		c.Priority,
		c.PriorityExplanation,
		c.Severity,
		c.Urgency,
		c.Confidence,
		c.Language,
		c.Latitude,
		c.Longitude,
		c.ManualLocation,
		c.Ward,
		c.Status,
		c.RejectionReason,
		c.CreatedAt,
		c.UpdatedAt,
		c.ResolvedAt,
	)
	if isUniqueViolation(err, "reference_id") {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, c.ReferenceID)
	}

	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	return r.getOne(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
}

func (r *repository) GetByReference(ctx context.Context, referenceID string) (*models.Complaint, error) {
	return r.getOne(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE reference_id = ?`, referenceID)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*models.Complaint, error) {
	var row complaintRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return row.decode()
}

func (r *repository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Department != "" {
		where = append(where, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Ward != "" {
		where = append(where, "ward = ?")
		args = append(args, filter.Ward)
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	var rows []complaintRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	complaints := make([]models.Complaint, 0, len(rows))
	for _, row := range rows {
		c, err := row.decode()
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, *c)
	}

	return complaints, nil
}

// UpdateStatus writes the status fields of c, provided the stored status is still from.
func (r *repository) UpdateStatus(ctx context.Context, id string, from models.Status, c *models.Complaint) error {
	query := `
		UPDATE complaints
		SET status = ?, rejection_reason = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query, c.Status, c.RejectionReason, c.ResolvedAt, c.UpdatedAt, id, from)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusChanged
	}

	return nil
}

func (r *repository) Stats(ctx context.Context) (*models.ComplaintStats, error) {
	stats := &models.ComplaintStats{
		ByStatus:     map[string]int{},
		ByDepartment: map[string]int{},
		ByPriority:   map[string]int{},
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"status", stats.ByStatus},
		{"department", stats.ByDepartment},
		{"priority", stats.ByPriority},
	}

	for _, g := range groups {
		var counts []struct {
			Name  string `db:"name"`
			Total int    `db:"total"`
		}
		query := fmt.Sprintf(`SELECT %s AS name, COUNT(*) AS total FROM complaints GROUP BY %s`, g.column, g.column)
		if err := r.db.SelectContext(ctx, &counts, query); err != nil {
			return nil, fmt.Errorf("count by %s: %w", g.column, err)
		}
		for _, c := range counts {
			g.into[c.Name] = c.Total
		}
	}

	for _, n := range stats.ByStatus {
		stats.Total += n
	}

	return stats, nil
}

func (row complaintRow) decode() (*models.Complaint, error) {
	c := row.Complaint
	if err := decodeList(row.ImageURLsJSON, &c.ImageURLs); err != nil {
		return nil, fmt.Errorf("decode image_urls for %s: %w", c.ID, err)
	}
	if err := decodeList(row.KeywordsJSON, &c.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords for %s: %w", c.ID, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if c.ResolvedAt != nil {
		t := c.ResolvedAt.UTC()
		c.ResolvedAt = &t
	}
	return &c, nil
}

func decodeList(raw string, out *[]string) error {
	*out = []string{}
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
