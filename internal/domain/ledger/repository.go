package ledger

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт хранилища журнала событий. Журнал append-only: записи никогда
// не изменяются и не удаляются.
// ══════════════════════════════════════════════════════════════════════════════

// UserScore is one row of an aggregated ledger query.
type UserScore struct {
	UserID shared.UserID
	Score  int64
}

// ActivitySummary aggregates a user's ledger activity for the dashboard.
type ActivitySummary struct {
	TotalEvents int64
	LastEventAt time.Time
}

// Repository определяет операции над журналом событий.
type Repository interface {
	// Append записывает событие и назначает ему порядковый номер (Seq).
	// Возвращает shared.ErrDuplicateEvent, если event_id уже записан.
	Append(ctx context.Context, event *Event) error

	// GetByID возвращает событие по его ID.
	// Возвращает shared.ErrEventNotFound, если событие не найдено.
	GetByID(ctx context.Context, id EventID) (*Event, error)

	// Exists проверяет, записано ли событие с данным ID.
	Exists(ctx context.Context, id EventID) (bool, error)

	// ListByUser возвращает события пользователя в порядке replay.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Event, error)

	// ListAll возвращает весь журнал в порядке replay
	// (occurred_at по возрастанию, при равенстве - по event_id).
	ListAll(ctx context.Context) ([]*Event, error)

	// CountByUserAndType считает события пользователя данного типа.
	// Пустой тип означает все типы.
	CountByUserAndType(ctx context.Context, userID shared.UserID, eventType EventType) (int64, error)

	// CountByUserSince считает события пользователя начиная с указанного времени.
	CountByUserSince(ctx context.Context, userID shared.UserID, since time.Time) (int64, error)

	// Summary возвращает сводку активности пользователя.
	Summary(ctx context.Context, userID shared.UserID) (ActivitySummary, error)

	// ScoresInRange суммирует points_delta по пользователям для событий
	// внутри диапазона. Пустая категория означает все события; иначе
	// учитываются только события с payload.category == category.
	// Используется построителем лидерборда для оконных метрик.
	ScoresInRange(ctx context.Context, category string, rng shared.TimeRange) ([]UserScore, error)
}
