package points

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища баланса очков.
type Repository interface {
	// Get возвращает запись очков пользователя.
	// Возвращает shared.ErrPointsNotFound, если записи ещё нет.
	Get(ctx context.Context, userID shared.UserID) (*UserPoints, error)

	// Save создаёт или обновляет запись очков.
	Save(ctx context.Context, p *UserPoints) error

	// AllBalances возвращает балансы всех пользователей, отсортированные
	// по убыванию. Используется построителем лидерборда.
	AllBalances(ctx context.Context) ([]*UserPoints, error)

	// DeleteAll очищает производное состояние (для replay).
	DeleteAll(ctx context.Context) error
}
