package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/approvalctl/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("event needs a type, entity type and entity id")
)

// journalStamp is fixed width so the text column sorts chronologically.
const journalStamp = "2006-01-02T15:04:05.000000000Z07:00"

const defaultJournalPage = 100

const selectEvents = `SELECT id, timestamp, type, entity_type, entity_id, payload_json, metadata_json FROM events`

// EventRepository is the activity journal shown by `approvalctl activity`.
type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// EventQuery narrows a journal read. Nil pointers leave a dimension open.
// Since is inclusive and Until exclusive. Cursor is the id of the last
// event of the previous page.
type EventQuery struct {
	Type       *models.EventType
	EntityType *models.EntityType
	EntityID   *string
	Since      *time.Time
	Until      *time.Time
	Cursor     string
	Limit      int
	Newest     bool
}

// EventPage holds one page and the cursor for the next, empty on the last.
type EventPage struct {
	Events     []*models.Event
	NextCursor string
}

// Append stores event, filling in a UUID and the current time if unset.
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	if event == nil || event.Type == "" || event.EntityType == "" || event.EntityID == "" {
		return ErrInvalidEvent
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Timestamp = event.Timestamp.UTC()

	var payload, metadata sql.NullString
	if len(event.Payload) > 0 {
		payload = sql.NullString{String: string(event.Payload), Valid: true}
	}
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, timestamp, type, entity_type, entity_id, payload_json, metadata_json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.Format(journalStamp), string(event.Type), string(event.EntityType), event.EntityID, payload, metadata,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Get loads a single journal entry.
func (r *EventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := r.decode(r.db.QueryRowContext(ctx, selectEvents+` WHERE id = ?`, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return event, err
}

// Query reads one page of the journal ordered by (timestamp, id).
func (r *EventRepository) Query(ctx context.Context, q EventQuery) (*EventPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultJournalPage
	}

	var where []string
	var args []any
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if q.Type != nil {
		add("type = ?", string(*q.Type))
	}
	if q.EntityType != nil {
		add("entity_type = ?", string(*q.EntityType))
	}
	if q.EntityID != nil {
		add("entity_id = ?", *q.EntityID)
	}
	if q.Since != nil {
		add("timestamp >= ?", q.Since.UTC().Format(journalStamp))
	}
	if q.Until != nil {
		add("timestamp < ?", q.Until.UTC().Format(journalStamp))
	}

	direction, after := "ASC", ">"
	if q.Newest {
		direction, after = "DESC", "<"
	}
	if q.Cursor != "" {
		add("(timestamp, id) "+after+" (SELECT timestamp, id FROM events WHERE id = ?)", q.Cursor)
	}

	stmt := selectEvents
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += fmt.Sprintf(" ORDER BY timestamp %[1]s, id %[1]s LIMIT ?", direction)
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	page := &EventPage{}
	for rows.Next() {
		event, err := r.decode(rows)
		if err != nil {
			return nil, err
		}
		page.Events = append(page.Events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	// One extra row was fetched to learn whether another page exists.
	if len(page.Events) > limit {
		page.Events = page.Events[:limit]
		page.NextCursor = page.Events[limit-1].ID
	}
	return page, nil
}

func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// DeleteExcess keeps the newest maxCount events and removes the rest.
func (r *EventRepository) DeleteExcess(ctx context.Context, maxCount int) (int64, error) {
	if maxCount <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM events WHERE id IN (
			SELECT id FROM events ORDER BY timestamp DESC, id DESC LIMIT -1 OFFSET ?
		)`, maxCount)
	if err != nil {
		return 0, fmt.Errorf("trim events: %w", err)
	}
	return res.RowsAffected()
}

func (r *EventRepository) decode(row interface{ Scan(...any) error }) (*models.Event, error) {
	var (
		event             models.Event
		stamp             string
		payload, metadata sql.NullString
	)
	if err := row.Scan(&event.ID, &stamp, &event.Type, &event.EntityType, &event.EntityID, &payload, &metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	event.Timestamp, _ = time.Parse(time.RFC3339Nano, stamp)
	if payload.Valid {
		event.Payload = json.RawMessage(payload.String)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
			r.db.logger.Warn().Err(err).Str("event_id", event.ID).Msg("unreadable event metadata")
		}
	}
	return &event, nil
}
