package challenge

import (
	"context"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища челленджей.
type Repository interface {
	// ListDefinitions возвращает все определения челленджей.
	ListDefinitions(ctx context.Context) ([]*Challenge, error)

	// ListActiveAt возвращает челленджи, чьё окно открыто в момент t.
	ListActiveAt(ctx context.Context, t time.Time) ([]*Challenge, error)

	// GetDefinition возвращает определение по ID.
	// Возвращает shared.ErrChallengeNotFound, если не найдено.
	GetDefinition(ctx context.Context, challengeID string) (*Challenge, error)

	// SaveDefinition создаёт или обновляет определение.
	SaveDefinition(ctx context.Context, c *Challenge) error

	// GetProgress возвращает прогресс пользователя по челленджу.
	// Возвращает shared.ErrNotFound, если записи ещё нет.
	GetProgress(ctx context.Context, userID shared.UserID, challengeID string) (*UserChallenge, error)

	// ListProgressByUser возвращает весь прогресс пользователя.
	ListProgressByUser(ctx context.Context, userID shared.UserID) ([]*UserChallenge, error)

	// CountCompleted считает завершённые челленджи пользователя.
	CountCompleted(ctx context.Context, userID shared.UserID) (int64, error)

	// SaveProgress создаёт или обновляет прогресс.
	SaveProgress(ctx context.Context, uc *UserChallenge) error

	// DeleteAllProgress очищает производное состояние (для replay).
	DeleteAllProgress(ctx context.Context) error
}
