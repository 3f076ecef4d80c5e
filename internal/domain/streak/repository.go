package streak

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища стриков.
type Repository interface {
	// Get возвращает стрик пользователя данного типа.
	// Возвращает shared.ErrStreakNotFound, если записи ещё нет.
	Get(ctx context.Context, userID shared.UserID, typeID string) (*UserStreak, error)

	// ListByUser возвращает все стрики пользователя.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*UserStreak, error)

	// Save создаёт или обновляет стрик.
	Save(ctx context.Context, s *UserStreak) error

	// DeleteAll очищает производное состояние (для replay).
	DeleteAll(ctx context.Context) error
}
