// Package postgres implements the PostgreSQL persistence layer.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create the event ledger and user profiles
-- Version: 001

-- Append-only ledger. The table of record: every derived table below can be
-- dropped and rebuilt from it.
CREATE TABLE IF NOT EXISTS events (
    seq BIGSERIAL PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL UNIQUE,
    user_id VARCHAR(64) NOT NULL,
    event_type VARCHAR(64) NOT NULL,
    points_delta BIGINT NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id);
CREATE INDEX IF NOT EXISTS idx_events_user_type ON events(user_id, event_type);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);

-- Replay order: occurred_at then event_id as the deterministic tie-break.
CREATE INDEX IF NOT EXISTS idx_events_replay ON events(occurred_at, event_id);

-- Window scoring reads only positive deltas.
CREATE INDEX IF NOT EXISTS idx_events_scoring ON events(occurred_at, user_id) WHERE points_delta > 0;

-- User profiles. Time zone drives the day boundaries of streaks.
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    time_zone VARCHAR(64) NOT NULL DEFAULT 'UTC',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS user_profiles;
DROP TABLE IF EXISTS events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE DERIVED STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create derived state tables (points, streaks, badges, challenges)
-- Version: 002

CREATE TABLE IF NOT EXISTS user_points (
    user_id VARCHAR(64) PRIMARY KEY REFERENCES user_profiles(user_id) ON DELETE CASCADE,
    balance BIGINT NOT NULL DEFAULT 0,
    lifetime_earned BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT balance_floor CHECK (balance >= 0),
    CONSTRAINT lifetime_floor CHECK (lifetime_earned >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_points_balance ON user_points(balance DESC);

CREATE TABLE IF NOT EXISTS user_streaks (
    user_id VARCHAR(64) NOT NULL REFERENCES user_profiles(user_id) ON DELETE CASCADE,
    streak_type VARCHAR(32) NOT NULL,
    current_length INTEGER NOT NULL DEFAULT 0,
    longest_length INTEGER NOT NULL DEFAULT 0,
    last_counted_date TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, streak_type),
    CONSTRAINT longest_covers_current CHECK (longest_length >= current_length)
);

CREATE TABLE IF NOT EXISTS user_badges (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_profiles(user_id) ON DELETE CASCADE,
    badge_id VARCHAR(64) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL
);

-- Uniqueness guard for non-repeatable badges: the repository inserts here
-- first and treats a conflict as already-owned. Repeatable badges skip it.
CREATE TABLE IF NOT EXISTS badge_unlock_guard (
    user_id VARCHAR(64) NOT NULL,
    badge_id VARCHAR(64) NOT NULL,
    PRIMARY KEY (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id);
CREATE INDEX IF NOT EXISTS idx_user_badges_badge ON user_badges(user_id, badge_id);

CREATE TABLE IF NOT EXISTS challenges (
    challenge_id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    metric VARCHAR(32) NOT NULL,
    threshold BIGINT NOT NULL,
    event_type VARCHAR(64) NOT NULL DEFAULT '',
    window_from TIMESTAMP WITH TIME ZONE NOT NULL,
    window_to TIMESTAMP WITH TIME ZONE NOT NULL,
    reward_points BIGINT NOT NULL DEFAULT 0,

    CONSTRAINT valid_window CHECK (window_to > window_from),
    CONSTRAINT valid_threshold CHECK (threshold > 0)
);

CREATE INDEX IF NOT EXISTS idx_challenges_window ON challenges(window_from, window_to);

CREATE TABLE IF NOT EXISTS user_challenges (
    user_id VARCHAR(64) NOT NULL REFERENCES user_profiles(user_id) ON DELETE CASCADE,
    challenge_id VARCHAR(64) NOT NULL REFERENCES challenges(challenge_id) ON DELETE CASCADE,
    progress BIGINT NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, challenge_id),
    CONSTRAINT progress_floor CHECK (progress >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_challenges_completed ON user_challenges(user_id) WHERE completed_at IS NOT NULL;
`

const migration002Down = `
DROP TABLE IF EXISTS user_challenges;
DROP TABLE IF EXISTS challenges;
DROP TABLE IF EXISTS badge_unlock_guard;
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS user_streaks;
DROP TABLE IF EXISTS user_points;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE LEADERBOARD SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create leaderboard snapshot tables
-- Version: 003

CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
    snapshot_id UUID PRIMARY KEY,
    scope VARCHAR(80) NOT NULL,
    board_window VARCHAR(16) NOT NULL,
    generated_at TIMESTAMP WITH TIME ZONE NOT NULL,
    entry_count INTEGER NOT NULL DEFAULT 0
);

-- Readers pick the newest snapshot per (scope, window); inserting a new one
-- and its entries in a single transaction makes the swap atomic.
CREATE INDEX IF NOT EXISTS idx_snapshots_latest ON leaderboard_snapshots(scope, board_window, generated_at DESC);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
    snapshot_id UUID NOT NULL REFERENCES leaderboard_snapshots(snapshot_id) ON DELETE CASCADE,
    user_id VARCHAR(64) NOT NULL,
    rank INTEGER NOT NULL,
    score BIGINT NOT NULL,

    PRIMARY KEY (snapshot_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_rank ON leaderboard_entries(snapshot_id, rank);
`

const migration003Down = `
DROP TABLE IF EXISTS leaderboard_entries;
DROP TABLE IF EXISTS leaderboard_snapshots;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_derived_state",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_leaderboards",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
