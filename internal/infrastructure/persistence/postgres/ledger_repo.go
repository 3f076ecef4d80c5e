package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	q Querier
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// Append records an event. A repeated event_id yields shared.ErrDuplicateEvent.
func (r *LedgerRepository) Append(ctx context.Context, event *ledger.Event) error {
	query := `
		INSERT INTO events (event_id, user_id, event_type, points_delta, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, recorded_at
	`

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if event.Payload == nil {
		payloadJSON = []byte("{}")
	}

	err = r.q.QueryRow(ctx, query,
		string(event.ID),
		event.UserID.String(),
		string(event.Type),
		event.PointsDelta,
		event.OccurredAt,
		payloadJSON,
	).Scan(&event.Seq, &event.RecordedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("ledger", "Append", shared.ErrAlreadyProcessed, "event already recorded", shared.ErrDuplicateEvent)
		}
		return mapError("ledger", "Append", err)
	}
	return nil
}

// GetByID returns an event by its idempotency key.
func (r *LedgerRepository) GetByID(ctx context.Context, id ledger.EventID) (*ledger.Event, error) {
	query := `
		SELECT seq, event_id, user_id, event_type, points_delta, occurred_at, payload, recorded_at
		FROM events
		WHERE event_id = $1
	`

	ev, err := r.scanEvent(r.q.QueryRow(ctx, query, string(id)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("ledger", "GetByID", shared.ErrNotFound, "event not found", shared.ErrEventNotFound)
		}
		return nil, mapError("ledger", "GetByID", err)
	}
	return ev, nil
}

// Exists reports whether an event has already been recorded.
func (r *LedgerRepository) Exists(ctx context.Context, id ledger.EventID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM events WHERE event_id = $1)", string(id)).Scan(&exists)
	if err != nil {
		return false, mapError("ledger", "Exists", err)
	}
	return exists, nil
}

// ListByUser returns a user's events in replay order.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*ledger.Event, error) {
	query := `
		SELECT seq, event_id, user_id, event_type, points_delta, occurred_at, payload, recorded_at
		FROM events
		WHERE user_id = $1
		ORDER BY occurred_at, event_id
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, mapError("ledger", "ListByUser", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListAll returns the whole ledger in replay order: occurred_at first,
// event_id as the deterministic tie-break.
func (r *LedgerRepository) ListAll(ctx context.Context) ([]*ledger.Event, error) {
	query := `
		SELECT seq, event_id, user_id, event_type, points_delta, occurred_at, payload, recorded_at
		FROM events
		ORDER BY occurred_at, event_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, mapError("ledger", "ListAll", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// CountByUserAndType counts a user's events of the given type
// (empty type counts all events).
func (r *LedgerRepository) CountByUserAndType(ctx context.Context, userID shared.UserID, eventType ledger.EventType) (int64, error) {
	var n int64
	var err error
	if eventType == "" {
		err = r.q.QueryRow(ctx, "SELECT count(*) FROM events WHERE user_id = $1", userID.String()).Scan(&n)
	} else {
		err = r.q.QueryRow(ctx, "SELECT count(*) FROM events WHERE user_id = $1 AND event_type = $2",
			userID.String(), string(eventType)).Scan(&n)
	}
	if err != nil {
		return 0, mapError("ledger", "CountByUserAndType", err)
	}
	return n, nil
}

// CountByUserSince counts a user's events at or after the given time.
func (r *LedgerRepository) CountByUserSince(ctx context.Context, userID shared.UserID, since time.Time) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, "SELECT count(*) FROM events WHERE user_id = $1 AND occurred_at >= $2",
		userID.String(), since).Scan(&n)
	if err != nil {
		return 0, mapError("ledger", "CountByUserSince", err)
	}
	return n, nil
}

// Summary aggregates a user's ledger activity.
func (r *LedgerRepository) Summary(ctx context.Context, userID shared.UserID) (ledger.ActivitySummary, error) {
	var summary ledger.ActivitySummary
	var lastEventAt *time.Time

	query := "SELECT count(*), max(occurred_at) FROM events WHERE user_id = $1"
	if err := r.q.QueryRow(ctx, query, userID.String()).Scan(&summary.TotalEvents, &lastEventAt); err != nil {
		return summary, mapError("ledger", "Summary", err)
	}
	if lastEventAt != nil {
		summary.LastEventAt = *lastEventAt
	}
	return summary, nil
}

// ScoresInRange sums positive deltas per user over the window. A non-empty
// category filters on payload->>'category'.
func (r *LedgerRepository) ScoresInRange(ctx context.Context, category string, rng shared.TimeRange) ([]ledger.UserScore, error) {
	query := `
		SELECT user_id, sum(points_delta) AS score
		FROM events
		WHERE points_delta > 0
		  AND occurred_at >= $1
		  AND ($2::timestamptz IS NULL OR occurred_at < $2)
		  AND ($3 = '' OR payload->>'category' = $3)
		GROUP BY user_id
		ORDER BY score DESC, user_id
	`

	var to *time.Time
	if rng.IsBounded() {
		to = &rng.To
	}

	rows, err := r.q.Query(ctx, query, rng.From, to, category)
	if err != nil {
		return nil, mapError("ledger", "ScoresInRange", err)
	}
	defer rows.Close()

	var scores []ledger.UserScore
	for rows.Next() {
		var rawID string
		var score int64
		if err := rows.Scan(&rawID, &score); err != nil {
			return nil, mapError("ledger", "ScoresInRange", err)
		}
		scores = append(scores, ledger.UserScore{UserID: shared.UserID(rawID), Score: score})
	}
	return scores, rows.Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// Scanning
// ──────────────────────────────────────────────────────────────────────────────

func (r *LedgerRepository) scanEvent(row pgx.Row) (*ledger.Event, error) {
	var (
		ev          ledger.Event
		rawID       string
		rawUserID   string
		rawType     string
		payloadJSON []byte
	)
	if err := row.Scan(&ev.Seq, &rawID, &rawUserID, &rawType, &ev.PointsDelta, &ev.OccurredAt, &payloadJSON, &ev.RecordedAt); err != nil {
		return nil, err
	}

	ev.ID = ledger.EventID(rawID)
	ev.UserID = shared.UserID(rawUserID)
	ev.Type = ledger.EventType(rawType)
	ev.OccurredAt = ev.OccurredAt.UTC()

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &ev, nil
}

func (r *LedgerRepository) scanEvents(rows pgx.Rows) ([]*ledger.Event, error) {
	var events []*ledger.Event
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, mapError("ledger", "scan", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
