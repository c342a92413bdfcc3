// Package admin exposes the administrative surface of the admission
// engine as typed operations: rule management, counter resets, abuse
// controls, usage queries, and a health snapshot. The host's command
// layer and the HTTP API both drive this facade.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/engine"
	"silverline-hq/portcullis/pkg/history"
	"silverline-hq/portcullis/pkg/rules"
	"silverline-hq/portcullis/pkg/store"
)

// Status is a point-in-time health snapshot.
type Status struct {
	// Healthy is true when the shared store is reachable.
	Healthy bool `json:"healthy"`

	// StoreOK reports shared-store reachability.
	StoreOK bool `json:"store_ok"`

	// StoreError carries the ping failure, if any.
	StoreError string `json:"store_error,omitempty"`

	// AbuseDetection reports whether the detector is enabled.
	AbuseDetection bool `json:"abuse_detection"`

	// ResetTime is the configured logical-day boundary.
	ResetTime string `json:"reset_time"`

	// BlockedUsers is the number of currently blocked users.
	BlockedUsers int `json:"blocked_users"`

	// ArchivedRecords is the usage-record archive size, -1 when the
	// archive is disabled.
	ArchivedRecords int64 `json:"archived_records"`

	// Uptime is how long the service has been running.
	Uptime time.Duration `json:"uptime"`
}

// SecuritySettings is the abuse-detector configuration as shown to
// admins.
type SecuritySettings struct {
	Enabled              bool          `json:"enabled"`
	FastWindow           time.Duration `json:"fast_window"`
	FastThreshold        int           `json:"fast_threshold"`
	SustainedWindow      time.Duration `json:"sustained_window"`
	SustainedThreshold   int           `json:"sustained_threshold"`
	BlockDuration        time.Duration `json:"block_duration"`
	NotificationCooldown time.Duration `json:"notification_cooldown"`
}

// Service is the administrative facade.
type Service struct {
	rules     *rules.Store
	ledger    *engine.Ledger
	detector  *engine.Detector
	queries   *history.Service
	archive   history.Storage
	backend   store.Backend
	logger    *slog.Logger
	startedAt time.Time

	// defaultResetTime is what "resettime reset" restores.
	defaultResetTime clock.TimeOfDay
}

// New creates the administrative service. queries and archive may be nil
// when the usage archive is disabled.
func New(ruleStore *rules.Store, ledger *engine.Ledger, detector *engine.Detector,
	queries *history.Service, archive history.Storage, backend store.Backend,
	defaultResetTime clock.TimeOfDay) *Service {
	return &Service{
		rules:            ruleStore,
		ledger:           ledger,
		detector:         detector,
		queries:          queries,
		archive:          archive,
		backend:          backend,
		logger:           slog.Default().With("component", "admin"),
		startedAt:        time.Now(),
		defaultResetTime: defaultResetTime,
	}
}

// ============================================================================
// Limits
// ============================================================================

// SetUserLimit sets a per-user limit override.
func (s *Service) SetUserLimit(ctx context.Context, userID string, limit int) (prev int, existed bool, err error) {
	prev, existed, err = s.rules.SetUserLimit(ctx, userID, limit)
	if err == nil {
		s.logger.Info("user limit set", "user_id", userID, "limit", limit)
	}
	return prev, existed, err
}

// RemoveUserLimit removes a per-user limit override.
func (s *Service) RemoveUserLimit(ctx context.Context, userID string) (int, error) {
	return s.rules.RemoveUserLimit(ctx, userID)
}

// UserLimit returns a user's override, if any.
func (s *Service) UserLimit(ctx context.Context, userID string) (int, bool) {
	return s.rules.UserLimit(ctx, userID)
}

// UserLimits lists all per-user overrides.
func (s *Service) UserLimits(ctx context.Context) []rules.LimitOverride {
	return s.rules.UserLimits(ctx)
}

// SetGroupLimit sets a per-group limit override.
func (s *Service) SetGroupLimit(ctx context.Context, groupID string, limit int) (prev int, existed bool, err error) {
	prev, existed, err = s.rules.SetGroupLimit(ctx, groupID, limit)
	if err == nil {
		s.logger.Info("group limit set", "group_id", groupID, "limit", limit)
	}
	return prev, existed, err
}

// RemoveGroupLimit removes a per-group limit override.
func (s *Service) RemoveGroupLimit(ctx context.Context, groupID string) (int, error) {
	return s.rules.RemoveGroupLimit(ctx, groupID)
}

// GroupLimit returns a group's override, if any.
func (s *Service) GroupLimit(ctx context.Context, groupID string) (int, bool) {
	return s.rules.GroupLimit(ctx, groupID)
}

// GroupLimits lists all per-group overrides.
func (s *Service) GroupLimits(ctx context.Context) []rules.LimitOverride {
	return s.rules.GroupLimits(ctx)
}

// SetGroupMode sets a group's accounting mode.
func (s *Service) SetGroupMode(ctx context.Context, groupID string, mode rules.GroupMode) (rules.GroupMode, error) {
	return s.rules.SetGroupMode(ctx, groupID, mode)
}

// GroupMode returns a group's accounting mode.
func (s *Service) GroupMode(ctx context.Context, groupID string) rules.GroupMode {
	return s.rules.GroupModeFor(ctx, groupID)
}

// ============================================================================
// Exemptions
// ============================================================================

// ExemptAdd adds a user to the exemption set.
func (s *Service) ExemptAdd(ctx context.Context, userID string) (bool, error) {
	return s.rules.ExemptAdd(ctx, userID)
}

// ExemptRemove removes a user from the exemption set.
func (s *Service) ExemptRemove(ctx context.Context, userID string) (bool, error) {
	return s.rules.ExemptRemove(ctx, userID)
}

// ExemptList lists exempt users.
func (s *Service) ExemptList(ctx context.Context) []string {
	return s.rules.ExemptList(ctx)
}

// ============================================================================
// Time Periods
// ============================================================================

// AddPeriod appends a time-period rule, returning its index.
func (s *Service) AddPeriod(ctx context.Context, rule rules.TimePeriodRule) (int, error) {
	return s.rules.AddPeriod(ctx, rule)
}

// RemovePeriod removes the rule at index.
func (s *Service) RemovePeriod(ctx context.Context, index int) (rules.TimePeriodRule, error) {
	return s.rules.RemovePeriod(ctx, index)
}

// SetPeriodEnabled enables or disables the rule at index.
func (s *Service) SetPeriodEnabled(ctx context.Context, index int, enabled bool) error {
	return s.rules.SetPeriodEnabled(ctx, index, enabled)
}

// Periods lists time-period rules in configured order.
func (s *Service) Periods(ctx context.Context) []rules.TimePeriodRule {
	return s.rules.Periods(ctx)
}

// ============================================================================
// Counter Resets
// ============================================================================

// ResetUser clears a user's counters, returning how many were cleared.
func (s *Service) ResetUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: empty user id", rules.ErrInvalidArgument)
	}
	return s.ledger.ResetUser(ctx, userID)
}

// ResetGroup clears a group's counters.
func (s *Service) ResetGroup(ctx context.Context, groupID string) (int, error) {
	if groupID == "" {
		return 0, fmt.Errorf("%w: empty group id", rules.ErrInvalidArgument)
	}
	return s.ledger.ResetGroup(ctx, groupID)
}

// ResetAll clears every usage counter.
func (s *Service) ResetAll(ctx context.Context) (int, error) {
	s.logger.Warn("global counter reset requested")
	return s.ledger.ResetAll(ctx)
}

// ============================================================================
// Reset Time
// ============================================================================

// ResetTime returns the logical-day boundary.
func (s *Service) ResetTime(ctx context.Context) clock.TimeOfDay {
	return s.rules.ResetTime(ctx)
}

// SetResetTime changes the logical-day boundary. Counters already
// charged keep their original day buckets.
func (s *Service) SetResetTime(ctx context.Context, value string) (clock.TimeOfDay, error) {
	t, err := clock.ParseTimeOfDay(value)
	if err != nil {
		return clock.TimeOfDay{}, fmt.Errorf("%w: %v", rules.ErrInvalidArgument, err)
	}
	prev, err := s.rules.SetResetTime(ctx, t)
	if err == nil {
		s.logger.Info("reset time changed", "from", prev.String(), "to", t.String())
	}
	return prev, err
}

// RestoreResetTime restores the configured default boundary.
func (s *Service) RestoreResetTime(ctx context.Context) (clock.TimeOfDay, error) {
	return s.rules.SetResetTime(ctx, s.defaultResetTime)
}

// ============================================================================
// Security
// ============================================================================

// SetAbuseDetection toggles the abuse detector.
func (s *Service) SetAbuseDetection(enabled bool) {
	s.detector.SetEnabled(enabled)
}

// Unblock clears a user's block state and abuse window.
func (s *Service) Unblock(ctx context.Context, userID string) (bool, error) {
	return s.detector.Unblock(ctx, userID)
}

// Blocklist lists currently blocked users.
func (s *Service) Blocklist(ctx context.Context) ([]engine.BlockState, error) {
	return s.detector.Blocklist(ctx)
}

// UserSecurity is a point-in-time snapshot of a user's abuse state.
type UserSecurity struct {
	UserID         string
	Blocked        bool
	BlockedUntil   time.Time
	TriggeredBy    string
	FastCount      int64
	SustainedCount int64
}

// InspectUser reports a user's block state and current request-window
// counts, for admins investigating a report.
func (s *Service) InspectUser(ctx context.Context, userID string) (UserSecurity, error) {
	if userID == "" {
		return UserSecurity{}, fmt.Errorf("%w: empty user id", rules.ErrInvalidArgument)
	}

	now := time.Now()
	state, active, err := s.detector.Block(ctx, userID, now)
	if err != nil {
		return UserSecurity{}, err
	}
	fast, sustained, err := s.detector.Activity(ctx, userID, now)
	if err != nil {
		return UserSecurity{}, err
	}

	out := UserSecurity{
		UserID:         userID,
		Blocked:        active,
		FastCount:      fast,
		SustainedCount: sustained,
	}
	if active {
		out.BlockedUntil = state.BlockedUntil
		out.TriggeredBy = state.TriggeredBy
	}
	return out, nil
}

// SecurityConfig returns the abuse-detector settings.
func (s *Service) SecurityConfig() SecuritySettings {
	cfg := s.detector.Config()
	return SecuritySettings{
		Enabled:              cfg.Enabled,
		FastWindow:           cfg.FastWindow,
		FastThreshold:        cfg.FastThreshold,
		SustainedWindow:      cfg.SustainedWindow,
		SustainedThreshold:   cfg.SustainedThreshold,
		BlockDuration:        cfg.BlockDuration,
		NotificationCooldown: cfg.NotificationCooldown,
	}
}

// ============================================================================
// Usage Queries
// ============================================================================

// ErrArchiveDisabled is returned by usage queries when no archive is
// configured.
var ErrArchiveDisabled = fmt.Errorf("usage archive is disabled")

// UserHistory returns a user's records over the last N days.
func (s *Service) UserHistory(ctx context.Context, userID string, days int) ([]engine.UsageRecord, error) {
	if s.queries == nil {
		return nil, ErrArchiveDisabled
	}
	return s.queries.UserHistory(ctx, userID, days)
}

// Analytics summarizes usage over the last N days.
func (s *Service) Analytics(ctx context.Context, days int) (history.Analytics, error) {
	if s.queries == nil {
		return history.Analytics{}, ErrArchiveDisabled
	}
	return s.queries.Analytics(ctx, days)
}

// TopUsers returns the heaviest users over the last N days.
func (s *Service) TopUsers(ctx context.Context, days, n int) ([]history.TopEntry, error) {
	if s.queries == nil {
		return nil, ErrArchiveDisabled
	}
	return s.queries.TopUsers(ctx, days, n)
}

// TopGroups returns the heaviest groups over the last N days.
func (s *Service) TopGroups(ctx context.Context, days, n int) ([]history.TopEntry, error) {
	if s.queries == nil {
		return nil, ErrArchiveDisabled
	}
	return s.queries.TopGroups(ctx, days, n)
}

// Trends aggregates usage over the last N days by the given granularity.
func (s *Service) Trends(ctx context.Context, days int, granularity history.TrendGranularity) ([]history.TrendPoint, error) {
	if s.queries == nil {
		return nil, ErrArchiveDisabled
	}
	return s.queries.Trends(ctx, days, granularity)
}

// ============================================================================
// Status
// ============================================================================

// Status returns a health snapshot.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{
		AbuseDetection:  s.detector.Enabled(),
		ResetTime:       s.rules.ResetTime(ctx).String(),
		ArchivedRecords: -1,
		Uptime:          time.Since(s.startedAt),
	}

	if err := s.backend.Ping(ctx); err != nil {
		status.StoreError = err.Error()
	} else {
		status.StoreOK = true
	}
	status.Healthy = status.StoreOK

	if blocked, err := s.detector.Blocklist(ctx); err == nil {
		status.BlockedUsers = len(blocked)
	}
	if s.archive != nil {
		if n, err := s.archive.Count(ctx); err == nil {
			status.ArchivedRecords = n
		}
	}

	return status
}
