package rules

import (
	"errors"

	"silverline-hq/portcullis/pkg/clock"
)

// GroupMode selects how a group's members draw from quota.
type GroupMode string

const (
	// ModeShared pools all members onto one group counter.
	ModeShared GroupMode = "shared"

	// ModeIndividual gives each member their own counter.
	ModeIndividual GroupMode = "individual"
)

// Valid reports whether the mode is one of the known values.
func (m GroupMode) Valid() bool {
	return m == ModeShared || m == ModeIndividual
}

// LimitOverride is a per-user or per-group limit. Overrides keep their
// insertion order so index-based admin commands stay stable.
type LimitOverride struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

// ModeOverride is a per-group accounting mode setting.
type ModeOverride struct {
	GroupID string    `json:"group_id"`
	Mode    GroupMode `json:"mode"`
}

// TimePeriodRule is a daily recurring window with its own limit. Rules are
// kept in configured order; the first enabled rule containing the current
// time wins, including when enabled rules overlap.
type TimePeriodRule struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Limit   int    `json:"limit"`
	Enabled bool   `json:"enabled"`

	window clock.Window
	valid  bool
}

// Window returns the parsed window and whether the rule parsed cleanly.
// A malformed rule is never active.
func (r TimePeriodRule) Window() (clock.Window, bool) {
	return r.window, r.valid
}

// Sentinel errors reported by rule operations.
var (
	// ErrNotFound is returned when a referenced rule does not exist, e.g.
	// removing a time-period index that was never configured.
	ErrNotFound = errors.New("rule not found")

	// ErrInvalidArgument is returned for malformed admin input such as a
	// negative limit or an unknown group mode.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Snapshot is the full rule state, used for seeding and listing.
type Snapshot struct {
	Exempt      []string         `json:"exempt"`
	UserLimits  []LimitOverride  `json:"user_limits"`
	GroupLimits []LimitOverride  `json:"group_limits"`
	GroupModes  []ModeOverride   `json:"group_modes"`
	Periods     []TimePeriodRule `json:"periods"`
	ResetTime   string           `json:"reset_time"`
}
