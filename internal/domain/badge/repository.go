package badge

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища бейджей.
type Repository interface {
	// ListDefinitions возвращает каталог определений бейджей.
	ListDefinitions(ctx context.Context) ([]Badge, error)

	// GetDefinition возвращает определение по ID.
	// Возвращает shared.ErrBadgeNotFound, если определение не найдено.
	GetDefinition(ctx context.Context, badgeID string) (Badge, error)

	// ListByUser возвращает разблокированные бейджи пользователя,
	// отсортированные по времени разблокировки.
	ListByUser(ctx context.Context, userID shared.UserID) ([]UserBadge, error)

	// HasBadge проверяет, разблокирован ли бейдж у пользователя.
	HasBadge(ctx context.Context, userID shared.UserID, badgeID string) (bool, error)

	// CountUnlocks считает разблокировки бейджа у пользователя
	// (может быть больше одной для repeatable).
	CountUnlocks(ctx context.Context, userID shared.UserID, badgeID string) (int, error)

	// SaveUnlock записывает разблокировку.
	// Возвращает shared.ErrBadgeAlreadyOwned при повторной разблокировке
	// не-repeatable бейджа.
	SaveUnlock(ctx context.Context, unlock UserBadge) error

	// DeleteAllUnlocks очищает производное состояние (для replay).
	DeleteAllUnlocks(ctx context.Context) error
}
