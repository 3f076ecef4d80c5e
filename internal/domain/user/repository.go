package user

import (
	"context"

	"github.com/listora/gamification-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища профилей.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Create создаёт новый профиль.
	// Возвращает shared.ErrAlreadyExists, если профиль уже существует.
	Create(ctx context.Context, profile *Profile) error

	// GetByID возвращает профиль по ID.
	// Возвращает shared.ErrUnknownUser, если профиль не найден.
	GetByID(ctx context.Context, id shared.UserID) (*Profile, error)

	// Exists проверяет, известен ли пользователь движку.
	Exists(ctx context.Context, id shared.UserID) (bool, error)

	// Update обновляет профиль.
	Update(ctx context.Context, profile *Profile) error

	// ListIDs возвращает все известные ID (для перестроения и replay).
	ListIDs(ctx context.Context) ([]shared.UserID, error)
}
