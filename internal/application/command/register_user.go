package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Заводит профиль пользователя в движке. Движок не принимает события от
// неизвестных пользователей, поэтому интеграция сначала регистрирует профиль,
// потом шлёт активность. Повторная регистрация обновляет имя и часовой пояс.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand содержит данные профиля.
type RegisterUserCommand struct {
	// UserID - внешний идентификатор пользователя.
	UserID string

	// DisplayName - имя для лидербордов и уведомлений.
	DisplayName string

	// TimeZone - IANA-пояс пользователя (пустой = пояс движка по умолчанию).
	// От него зависят границы дней для серий и окон лидербордов.
	TimeZone string
}

// RegisterUserResult описывает итог регистрации.
type RegisterUserResult struct {
	// UserID - нормализованный идентификатор.
	UserID string `json:"user_id"`

	// Created - true, если профиль создан, false, если обновлён существующий.
	Created bool `json:"created"`
}

// RegisterUserHandler обрабатывает команды регистрации профилей.
type RegisterUserHandler struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRegisterUserHandler создаёт новый обработчик регистрации.
func NewRegisterUserHandler(st store.Store, logger *slog.Logger) *RegisterUserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterUserHandler{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Handle выполняет команду.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	now := h.now()
	profile, err := user.NewProfile(user.NewProfileParams{
		ID:          cmd.UserID,
		DisplayName: cmd.DisplayName,
		TimeZone:    cmd.TimeZone,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}

	result := &RegisterUserResult{UserID: profile.ID.String()}

	err = h.store.Within(ctx, func(ctx context.Context, repos store.Repos) error {
		createErr := repos.Users().Create(ctx, profile)
		if createErr == nil {
			result.Created = true
			return nil
		}
		if !errors.Is(createErr, shared.ErrAlreadyExists) {
			return createErr
		}

		// Профиль уже есть: обновляем имя и пояс, CreatedAt не трогаем.
		existing, getErr := repos.Users().GetByID(ctx, profile.ID)
		if getErr != nil {
			return getErr
		}
		existing.DisplayName = profile.DisplayName
		if setErr := existing.SetTimeZone(cmd.TimeZone, now); setErr != nil {
			return setErr
		}
		return repos.Users().Update(ctx, existing)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("user registered",
		slog.String("user_id", result.UserID),
		slog.Bool("created", result.Created),
	)
	return result, nil
}
