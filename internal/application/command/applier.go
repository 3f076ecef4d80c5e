package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/listora/gamification-engine/internal/application/store"
	"github.com/listora/gamification-engine/internal/domain/badge"
	"github.com/listora/gamification-engine/internal/domain/challenge"
	"github.com/listora/gamification-engine/internal/domain/ledger"
	"github.com/listora/gamification-engine/internal/domain/points"
	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT APPLIER
// Применяет событие журнала ко всем производным состояниям: баллы, уровни,
// серии, челленджи и бейджи. Награды за челленджи и бейджи записываются
// как новые события журнала с детерминированными ID и применяются рекурсивно.
// Один и тот же код работает и на живом пути записи, и при переигрывании.
// ══════════════════════════════════════════════════════════════════════════════

// maxRewardDepth ограничивает глубину каскада наград (награда за награду).
const maxRewardDepth = 8

// applier инкапсулирует правила начисления, общие для SubmitEvent и Replay.
type applier struct {
	levels      points.LevelTable
	streakTypes []streak.Type
	defaultLoc  *time.Location
}

func newApplier(levels points.LevelTable, streakTypes []streak.Type, defaultLoc *time.Location) *applier {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &applier{
		levels:      levels,
		streakTypes: streakTypes,
		defaultLoc:  defaultLoc,
	}
}

// applyOutcome накапливает эффекты применения одного события (включая каскад наград).
type applyOutcome struct {
	// events - доменные события для публикации после коммита транзакции.
	events []shared.Event

	// unlockedBadges - ID бейджей, открытых этим событием.
	unlockedBadges []string

	// completedChallenges - ID челленджей, завершённых этим событием.
	completedChallenges []string

	// streaks - текущая длина серий, затронутых событием.
	streaks map[string]int

	// balance и tier - состояние пользователя после применения.
	balance     int64
	tier        int
	tierChanged bool

	// appliedDelta - фактическое изменение баланса (с учётом пола в нуле).
	appliedDelta int64
}

func newApplyOutcome() *applyOutcome {
	return &applyOutcome{streaks: make(map[string]int)}
}

func (o *applyOutcome) emit(ev shared.Event) {
	o.events = append(o.events, ev)
}

// apply применяет событие ко всем производным состояниям внутри текущей
// транзакции. Событие уже должно быть записано в журнал.
func (a *applier) apply(ctx context.Context, repos store.Repos, ev *ledger.Event, loc *time.Location, out *applyOutcome) error {
	return a.applyAtDepth(ctx, repos, ev, loc, out, 0)
}

func (a *applier) applyAtDepth(ctx context.Context, repos store.Repos, ev *ledger.Event, loc *time.Location, out *applyOutcome, depth int) error {
	if depth > maxRewardDepth {
		return shared.NewDomainError("ledger", "Apply", shared.ErrInvalidState,
			fmt.Sprintf("reward cascade exceeded depth %d for event %s", maxRewardDepth, ev.ID))
	}
	if loc == nil {
		loc = a.defaultLoc
	}

	defs, err := repos.Badges().ListDefinitions(ctx)
	if err != nil {
		return err
	}

	// Снимок метрик до применения: бейджи открываются только на переходе
	// критерия из "не выполнен" в "выполнен", иначе награда за бейдж
	// немедленно открывала бы следующий бейдж по тем же баллам.
	before, err := a.buildView(ctx, repos, ev.UserID, defs)
	if err != nil {
		return err
	}

	if err := a.applyPoints(ctx, repos, ev, out); err != nil {
		return err
	}
	if err := a.applyStreaks(ctx, repos, ev, loc, out); err != nil {
		return err
	}
	if err := a.applyChallenges(ctx, repos, ev, loc, out, depth); err != nil {
		return err
	}

	after, err := a.buildView(ctx, repos, ev.UserID, defs)
	if err != nil {
		return err
	}
	return a.applyBadges(ctx, repos, ev, defs, before, after, loc, out, depth)
}

// ──────────────────────────────────────────────────────────────────────────────
// Баллы и уровни
// ──────────────────────────────────────────────────────────────────────────────

func (a *applier) applyPoints(ctx context.Context, repos store.Repos, ev *ledger.Event, out *applyOutcome) error {
	up, err := repos.Points().Get(ctx, ev.UserID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return err
		}
		up = points.NewUserPoints(ev.UserID)
	}

	prevBalance := up.Balance
	prevTier, _ := a.levels.Resolve(prevBalance)

	applied := up.Apply(ev.PointsDelta, ev.OccurredAt)
	if err := repos.Points().Save(ctx, up); err != nil {
		return err
	}

	out.balance = up.Balance
	out.appliedDelta += applied

	newTier, _ := a.levels.Resolve(up.Balance)
	out.tier = newTier

	if applied != 0 {
		out.emit(shared.NewBalanceChangedEvent(ev.UserID.String(), applied, up.Balance, string(ev.ID), string(ev.Type)))
	}
	if newTier != prevTier {
		out.tierChanged = true
		out.emit(shared.NewLevelChangedEvent(ev.UserID.String(), prevTier, newTier, up.Balance))
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Серии
// ──────────────────────────────────────────────────────────────────────────────

func (a *applier) applyStreaks(ctx context.Context, repos store.Repos, ev *ledger.Event, loc *time.Location, out *applyOutcome) error {
	for _, st := range a.streakTypes {
		if !st.Qualifies(string(ev.Type)) {
			continue
		}

		us, err := repos.Streaks().Get(ctx, ev.UserID, st.ID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			us = streak.NewUserStreak(ev.UserID, st.ID)
		}

		res := us.RecordActivity(ev.OccurredAt, loc, st.Grace())
		out.streaks[st.ID] = us.CurrentLength
		if res.Outcome == streak.OutcomeUnchanged {
			continue
		}
		if err := repos.Streaks().Save(ctx, us); err != nil {
			return err
		}

		switch res.Outcome {
		case streak.OutcomeStarted, streak.OutcomeExtended:
			out.emit(shared.NewStreakExtendedEvent(ev.UserID.String(), st.ID, us.CurrentLength, us.LongestLength))
		case streak.OutcomeReset:
			out.emit(shared.NewStreakBrokenEvent(ev.UserID.String(), st.ID, res.PreviousLength, res.DaysMissed))
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Челленджи
// ──────────────────────────────────────────────────────────────────────────────

func (a *applier) applyChallenges(ctx context.Context, repos store.Repos, ev *ledger.Event, loc *time.Location, out *applyOutcome, depth int) error {
	active, err := repos.Challenges().ListActiveAt(ctx, ev.OccurredAt)
	if err != nil {
		return err
	}

	for _, ch := range active {
		contribution := ch.Contribution(string(ev.Type), ev.PointsDelta, ev.OccurredAt)
		if contribution == 0 {
			continue
		}

		uc, err := repos.Challenges().GetProgress(ctx, ev.UserID, ch.ID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			uc = challenge.NewUserChallenge(ev.UserID, ch.ID)
		}

		completedNow := uc.Advance(contribution, ch.Threshold, ev.OccurredAt)
		if err := repos.Challenges().SaveProgress(ctx, uc); err != nil {
			return err
		}
		if !completedNow {
			continue
		}

		out.completedChallenges = append(out.completedChallenges, ch.ID)
		out.emit(shared.NewChallengeCompletedEvent(ev.UserID.String(), ch.ID, uc.Progress, ch.RewardPoints))

		if ch.RewardPoints > 0 {
			reward := ledger.NewRewardEvent(ledger.NewRewardEventParams{
				ID:         ledger.DeterministicRewardID("challenge", ch.ID, ev.UserID.String()),
				UserID:     ev.UserID,
				Type:       ledger.TypeChallengeReward,
				Delta:      ch.RewardPoints,
				OccurredAt: ev.OccurredAt,
				Source:     ch.ID,
			})
			if err := a.appendAndApply(ctx, repos, reward, loc, out, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Бейджи
// ──────────────────────────────────────────────────────────────────────────────

func (a *applier) applyBadges(ctx context.Context, repos store.Repos, ev *ledger.Event, defs []badge.Badge, before, after badge.StateView, loc *time.Location, out *applyOutcome, depth int) error {
	for i := range defs {
		def := &defs[i]

		if def.Repeatable {
			if !def.Criteria.NewlySatisfied(before, after) {
				continue
			}
		} else {
			if !def.Criteria.Satisfied(after) {
				continue
			}
			owned, err := repos.Badges().HasBadge(ctx, ev.UserID, def.ID)
			if err != nil {
				return err
			}
			if owned {
				continue
			}
		}

		unlock := badge.UserBadge{UserID: ev.UserID, BadgeID: def.ID, UnlockedAt: ev.OccurredAt}
		if err := repos.Badges().SaveUnlock(ctx, unlock); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) || errors.Is(err, shared.ErrBadgeAlreadyOwned) {
				continue
			}
			return err
		}

		out.unlockedBadges = append(out.unlockedBadges, def.ID)
		out.emit(shared.NewBadgeUnlockedEvent(ev.UserID.String(), def.ID, string(def.Category), def.RewardPoints))

		if def.RewardPoints > 0 {
			rewardID := ledger.DeterministicRewardID("badge", def.ID, ev.UserID.String())
			if def.Repeatable {
				n, err := repos.Badges().CountUnlocks(ctx, ev.UserID, def.ID)
				if err != nil {
					return err
				}
				rewardID = ledger.RepeatableRewardID("badge", def.ID, ev.UserID.String(), n)
			}
			reward := ledger.NewRewardEvent(ledger.NewRewardEventParams{
				ID:         rewardID,
				UserID:     ev.UserID,
				Type:       ledger.TypeBadgeReward,
				Delta:      def.RewardPoints,
				OccurredAt: ev.OccurredAt,
				Source:     def.ID,
			})
			if err := a.appendAndApply(ctx, repos, reward, loc, out, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendAndApply записывает награду в журнал и применяет её каскадно.
// Если событие с таким ID уже есть (повторная обработка, переигрывание),
// награда молча пропускается: её эффект уже учтён или будет учтён
// отдельным проходом переигрывания.
func (a *applier) appendAndApply(ctx context.Context, repos store.Repos, reward *ledger.Event, loc *time.Location, out *applyOutcome, depth int) error {
	exists, err := repos.Ledger().Exists(ctx, reward.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := repos.Ledger().Append(ctx, reward); err != nil {
		if shared.IsDuplicateEvent(err) {
			return nil
		}
		return err
	}
	return a.applyAtDepth(ctx, repos, reward, loc, out, depth)
}

// ──────────────────────────────────────────────────────────────────────────────
// Снимок метрик для оценки критериев бейджей
// ──────────────────────────────────────────────────────────────────────────────

// buildView собирает текущие значения всех метрик, на которые ссылаются
// определения бейджей. Счётчики событий запрашиваются только для типов,
// реально используемых в критериях.
func (a *applier) buildView(ctx context.Context, repos store.Repos, userID shared.UserID, defs []badge.Badge) (badge.StateView, error) {
	view := badge.StateView{
		Streaks:     make(map[string]badge.StreakView),
		EventCounts: make(map[string]int64),
	}

	up, err := repos.Points().Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return view, err
		}
	} else {
		view.Balance = up.Balance
		view.LifetimeEarned = up.LifetimeEarned
	}
	tier, _ := a.levels.Resolve(view.Balance)
	view.Tier = int64(tier)

	streaks, err := repos.Streaks().ListByUser(ctx, userID)
	if err != nil {
		return view, err
	}
	for _, s := range streaks {
		view.Streaks[s.TypeID] = badge.StreakView{
			Current: int64(s.CurrentLength),
			Longest: int64(s.LongestLength),
		}
	}

	completed, err := repos.Challenges().CountCompleted(ctx, userID)
	if err != nil {
		return view, err
	}
	view.ChallengesCompleted = completed

	for i := range defs {
		def := &defs[i]
		if def.Criteria.Metric != badge.MetricEventsOfType {
			continue
		}
		if _, ok := view.EventCounts[def.Criteria.EventType]; ok {
			continue
		}
		n, err := repos.Ledger().CountByUserAndType(ctx, userID, ledger.EventType(def.Criteria.EventType))
		if err != nil {
			return view, err
		}
		view.EventCounts[def.Criteria.EventType] = n
	}
	return view, nil
}
