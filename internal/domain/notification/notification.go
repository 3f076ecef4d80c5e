// Package notification определяет контракт исходящих уведомлений о
// достижениях: повышение уровня, разблокировка бейджа, завершение челленджа.
package notification

import "context"

// Kind классифицирует уведомление.
type Kind string

const (
	KindLevelUp            Kind = "level_up"
	KindBadgeUnlocked      Kind = "badge_unlocked"
	KindChallengeCompleted Kind = "challenge_completed"
)

// Notification - одно исходящее сообщение пользователю.
type Notification struct {
	// UserID - получатель.
	UserID string

	// Kind - тип достижения.
	Kind Kind

	// Title - короткий заголовок.
	Title string

	// Body - текст сообщения.
	Body string

	// Fields - детали достижения для каналов, которые их отображают.
	Fields map[string]any
}

// Sender доставляет уведомления. Доставка best-effort: производное
// состояние движка никогда от неё не зависит.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
