package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища снапшотов.
// Реализация находится в infrastructure слое (PostgreSQL, Redis).
type Repository interface {
	// ReplaceSnapshot атомарно заменяет последний снапшот для пары
	// (scope, window): читатели видят либо старый, либо новый снапшот
	// целиком, никогда - частично построенный.
	ReplaceSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetLatest возвращает последний снапшот для (scope, window).
	// Возвращает shared.ErrSnapshotNotFound, если снапшота ещё нет.
	GetLatest(ctx context.Context, scope Scope, window Window) (*Snapshot, error)

	// ListMeta возвращает метаданные снапшотов за период.
	ListMeta(ctx context.Context, scope Scope, window Window, from, to time.Time) ([]SnapshotMeta, error)

	// PruneSnapshots удаляет старые снапшоты, оставляя keep последних
	// на каждую пару (scope, window). Возвращает количество удалённых.
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}
