// Package user holds the minimal user registry the engine needs.
// Identity comes from the authentication collaborator; the engine only keeps
// what gamification rules depend on, chiefly the time zone for streak day
// boundaries.
package user

import (
	"strings"
	"time"

	"github.com/listora/gamification-engine/internal/domain/shared"
	"github.com/listora/gamification-engine/pkg/timeutil"
)

// Profile is the engine-side record of a known user.
type Profile struct {
	ID          shared.UserID
	DisplayName string

	// TimeZone is an IANA zone name, e.g. "Europe/Berlin".
	// Empty means the engine default applies.
	TimeZone string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfileParams contains parameters for creating a profile.
type NewProfileParams struct {
	ID          string
	DisplayName string
	TimeZone    string
	Now         time.Time
}

// NewProfile creates a validated profile.
func NewProfile(params NewProfileParams) (*Profile, error) {
	id, err := shared.NewUserID(params.ID)
	if err != nil {
		return nil, err
	}

	tz := strings.TrimSpace(params.TimeZone)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, shared.WrapError("user", "NewProfile", shared.ErrInvalidInput, "unknown time zone", err)
		}
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &Profile{
		ID:          id,
		DisplayName: strings.TrimSpace(params.DisplayName),
		TimeZone:    tz,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Location resolves the profile's zone, falling back to the engine default.
func (p *Profile) Location() *time.Location {
	return timeutil.LocationOrDefault(p.TimeZone)
}

// SetTimeZone updates the configured zone after validating it.
func (p *Profile) SetTimeZone(tz string, now time.Time) error {
	tz = strings.TrimSpace(tz)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return shared.WrapError("user", "SetTimeZone", shared.ErrInvalidInput, "unknown time zone", err)
		}
	}
	p.TimeZone = tz
	p.UpdatedAt = now
	return nil
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
