package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"silverline-hq/portcullis/pkg/clock"
	"silverline-hq/portcullis/pkg/store"
)

// Well-known store keys for rule entities.
const (
	keyExempt      = "rules:exempt"
	keyUserLimits  = "rules:user_limits"
	keyGroupLimits = "rules:group_limits"
	keyGroupModes  = "rules:group_modes"
	keyPeriods     = "rules:periods"
	keyResetTime   = "rules:reset_time"
)

// Config contains configuration for the rule store.
type Config struct {
	// CacheTTL is how long cached rules are served before re-reading the
	// backend. Default: 5 seconds. Admission reads never block on a
	// refresh; a stale rule may apply to requests in flight.
	CacheTTL time.Duration

	// DefaultResetTime is the logical-day boundary used when none is
	// stored. Default: 00:00.
	DefaultResetTime clock.TimeOfDay
}

// Store holds the exemption set, limit overrides, group accounting modes,
// time-period rules, and the daily reset time, persisted in the shared
// backend under fixed keys and cached locally with a short validity window.
//
// All list operations return deterministic order: insertion order for
// overrides and the exemption set, configured order for time periods.
type Store struct {
	backend  store.Backend
	logger   *slog.Logger
	cacheTTL time.Duration

	mu          sync.RWMutex
	exempt      []string
	userLimits  []LimitOverride
	groupLimits []LimitOverride
	groupModes  []ModeOverride
	periods     []TimePeriodRule
	resetTime   clock.TimeOfDay
	loadedAt    time.Time
}

// NewStore creates a rule store backed by the given backend. The initial
// state is loaded eagerly; a load failure leaves the store empty but usable
// (defaults apply until the backend recovers).
func NewStore(backend store.Backend, cfg Config) *Store {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}

	s := &Store{
		backend:   backend,
		logger:    slog.Default().With("component", "rules"),
		cacheTTL:  cacheTTL,
		resetTime: cfg.DefaultResetTime,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.reload(ctx); err != nil {
		s.logger.Warn("initial rule load failed, starting with defaults", "error", err)
	}

	return s
}

// Seed merges config-declared rules into the store, keeping anything already
// persisted. Used at startup so a fresh deployment picks up its configured
// overrides without an admin replaying them.
func (s *Store) Seed(ctx context.Context, seed Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range seed.Exempt {
		if indexOf(s.exempt, id) < 0 {
			s.exempt = append(s.exempt, id)
		}
	}
	for _, o := range seed.UserLimits {
		if findOverride(s.userLimits, o.ID) < 0 {
			s.userLimits = append(s.userLimits, o)
		}
	}
	for _, o := range seed.GroupLimits {
		if findOverride(s.groupLimits, o.ID) < 0 {
			s.groupLimits = append(s.groupLimits, o)
		}
	}
	for _, m := range seed.GroupModes {
		if findMode(s.groupModes, m.GroupID) < 0 && m.Mode.Valid() {
			s.groupModes = append(s.groupModes, m)
		}
	}
	if len(s.periods) == 0 && len(seed.Periods) > 0 {
		s.periods = parsePeriods(seed.Periods, s.logger)
	}
	if seed.ResetTime != "" {
		if t, err := clock.ParseTimeOfDay(seed.ResetTime); err == nil {
			s.resetTime = t
		} else {
			s.logger.Warn("invalid seeded reset time, keeping default", "value", seed.ResetTime, "error", err)
		}
	}

	return s.persistAllLocked(ctx)
}

// ============================================================================
// Exemptions
// ============================================================================

// ExemptAdd adds a user to the exemption set. Returns false if the user was
// already exempt. Idempotent.
func (s *Store) ExemptAdd(ctx context.Context, userID string) (added bool, err error) {
	if userID == "" {
		return false, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.exempt, userID) >= 0 {
		return false, nil
	}
	s.exempt = append(s.exempt, userID)
	return true, s.persistLocked(ctx, keyExempt, s.exempt)
}

// ExemptRemove removes a user from the exemption set. Returns false if the
// user was not exempt.
func (s *Store) ExemptRemove(ctx context.Context, userID string) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.exempt, userID)
	if i < 0 {
		return false, nil
	}
	s.exempt = append(s.exempt[:i], s.exempt[i+1:]...)
	return true, s.persistLocked(ctx, keyExempt, s.exempt)
}

// ExemptList returns the exemption set in insertion order.
func (s *Store) ExemptList(ctx context.Context) []string {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.exempt))
	copy(out, s.exempt)
	return out
}

// IsExempt reports whether the user is in the exemption set.
func (s *Store) IsExempt(ctx context.Context, userID string) bool {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.exempt, userID) >= 0
}

// ============================================================================
// Limit Overrides
// ============================================================================

// SetUserLimit sets a per-user limit, returning the prior value when one
// existed. Last write wins.
func (s *Store) SetUserLimit(ctx context.Context, userID string, limit int) (prev int, existed bool, err error) {
	return s.setOverride(ctx, keyUserLimits, &s.userLimits, userID, limit)
}

// RemoveUserLimit deletes a per-user limit, returning the removed value.
// Returns ErrNotFound when no override exists.
func (s *Store) RemoveUserLimit(ctx context.Context, userID string) (prev int, err error) {
	return s.removeOverride(ctx, keyUserLimits, &s.userLimits, userID)
}

// UserLimit returns the per-user override for userID, if any.
func (s *Store) UserLimit(ctx context.Context, userID string) (int, bool) {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findOverride(s.userLimits, userID); i >= 0 {
		return s.userLimits[i].Limit, true
	}
	return 0, false
}

// UserLimits returns all per-user overrides in insertion order.
func (s *Store) UserLimits(ctx context.Context) []LimitOverride {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LimitOverride, len(s.userLimits))
	copy(out, s.userLimits)
	return out
}

// SetGroupLimit sets a per-group limit, returning the prior value when one
// existed.
func (s *Store) SetGroupLimit(ctx context.Context, groupID string, limit int) (prev int, existed bool, err error) {
	return s.setOverride(ctx, keyGroupLimits, &s.groupLimits, groupID, limit)
}

// RemoveGroupLimit deletes a per-group limit. Returns ErrNotFound when no
// override exists.
func (s *Store) RemoveGroupLimit(ctx context.Context, groupID string) (prev int, err error) {
	return s.removeOverride(ctx, keyGroupLimits, &s.groupLimits, groupID)
}

// GroupLimit returns the per-group override for groupID, if any.
func (s *Store) GroupLimit(ctx context.Context, groupID string) (int, bool) {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findOverride(s.groupLimits, groupID); i >= 0 {
		return s.groupLimits[i].Limit, true
	}
	return 0, false
}

// GroupLimits returns all per-group overrides in insertion order.
func (s *Store) GroupLimits(ctx context.Context) []LimitOverride {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LimitOverride, len(s.groupLimits))
	copy(out, s.groupLimits)
	return out
}

func (s *Store) setOverride(ctx context.Context, key string, list *[]LimitOverride, id string, limit int) (int, bool, error) {
	if id == "" {
		return 0, false, fmt.Errorf("%w: empty id", ErrInvalidArgument)
	}
	if limit < 0 {
		return 0, false, fmt.Errorf("%w: limit must be >= 0", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := findOverride(*list, id); i >= 0 {
		prev := (*list)[i].Limit
		(*list)[i].Limit = limit
		return prev, true, s.persistLocked(ctx, key, *list)
	}
	*list = append(*list, LimitOverride{ID: id, Limit: limit})
	return 0, false, s.persistLocked(ctx, key, *list)
}

func (s *Store) removeOverride(ctx context.Context, key string, list *[]LimitOverride, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := findOverride(*list, id)
	if i < 0 {
		return 0, fmt.Errorf("%w: no override for %q", ErrNotFound, id)
	}
	prev := (*list)[i].Limit
	*list = append((*list)[:i], (*list)[i+1:]...)
	return prev, s.persistLocked(ctx, key, *list)
}

// ============================================================================
// Group Modes
// ============================================================================

// SetGroupMode sets a group's accounting mode, returning the prior mode (the
// shared default when none was stored).
func (s *Store) SetGroupMode(ctx context.Context, groupID string, mode GroupMode) (prev GroupMode, err error) {
	if groupID == "" {
		return "", fmt.Errorf("%w: empty group id", ErrInvalidArgument)
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown group mode %q", ErrInvalidArgument, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := findMode(s.groupModes, groupID); i >= 0 {
		prev = s.groupModes[i].Mode
		s.groupModes[i].Mode = mode
		return prev, s.persistLocked(ctx, keyGroupModes, s.groupModes)
	}
	s.groupModes = append(s.groupModes, ModeOverride{GroupID: groupID, Mode: mode})
	return ModeShared, s.persistLocked(ctx, keyGroupModes, s.groupModes)
}

// GroupModeFor returns the group's accounting mode, defaulting to shared.
func (s *Store) GroupModeFor(ctx context.Context, groupID string) GroupMode {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findMode(s.groupModes, groupID); i >= 0 {
		return s.groupModes[i].Mode
	}
	return ModeShared
}

// GroupModes returns all explicit mode settings in insertion order.
func (s *Store) GroupModes(ctx context.Context) []ModeOverride {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModeOverride, len(s.groupModes))
	copy(out, s.groupModes)
	return out
}

// ============================================================================
// Time Periods
// ============================================================================

// AddPeriod appends a time-period rule. The rule is validated here; a rule
// that does not parse is rejected rather than stored disabled.
func (s *Store) AddPeriod(ctx context.Context, rule TimePeriodRule) (index int, err error) {
	w, perr := clock.ParseWindow(rule.Start, rule.End)
	if perr != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, perr)
	}
	if rule.Limit < 0 {
		return 0, fmt.Errorf("%w: limit must be >= 0", ErrInvalidArgument)
	}
	rule.window = w
	rule.valid = true

	s.mu.Lock()
	defer s.mu.Unlock()

	s.periods = append(s.periods, rule)
	return len(s.periods) - 1, s.persistLocked(ctx, keyPeriods, s.periods)
}

// RemovePeriod deletes the rule at index, returning it. Later rules shift
// down one position.
func (s *Store) RemovePeriod(ctx context.Context, index int) (TimePeriodRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.periods) {
		return TimePeriodRule{}, fmt.Errorf("%w: no time period at index %d", ErrNotFound, index)
	}
	removed := s.periods[index]
	s.periods = append(s.periods[:index], s.periods[index+1:]...)
	return removed, s.persistLocked(ctx, keyPeriods, s.periods)
}

// SetPeriodEnabled enables or disables the rule at index.
func (s *Store) SetPeriodEnabled(ctx context.Context, index int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.periods) {
		return fmt.Errorf("%w: no time period at index %d", ErrNotFound, index)
	}
	s.periods[index].Enabled = enabled
	return s.persistLocked(ctx, keyPeriods, s.periods)
}

// Periods returns all time-period rules in configured order.
func (s *Store) Periods(ctx context.Context) []TimePeriodRule {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TimePeriodRule, len(s.periods))
	copy(out, s.periods)
	return out
}

// ActivePeriod returns the first enabled rule whose window contains ts,
// along with its index. Configuration order is the tie-break for
// overlapping rules.
func (s *Store) ActivePeriod(ctx context.Context, ts time.Time) (int, TimePeriodRule, bool) {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, rule := range s.periods {
		if !rule.Enabled || !rule.valid {
			continue
		}
		if rule.window.Contains(ts) {
			return i, rule, true
		}
	}
	return 0, TimePeriodRule{}, false
}

// ============================================================================
// Reset Time
// ============================================================================

// SetResetTime sets the logical-day boundary, returning the prior value.
func (s *Store) SetResetTime(ctx context.Context, t clock.TimeOfDay) (prev clock.TimeOfDay, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.resetTime
	s.resetTime = t
	return prev, s.persistLocked(ctx, keyResetTime, t.String())
}

// ResetTime returns the configured logical-day boundary.
func (s *Store) ResetTime(ctx context.Context) clock.TimeOfDay {
	s.maybeRefresh(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resetTime
}

// ============================================================================
// Persistence and Cache
// ============================================================================

// maybeRefresh reloads rules from the backend when the cache is stale. It
// never blocks the caller on backend failure: a failed refresh keeps the
// cached rules and resets the timer so the backend is not hammered.
func (s *Store) maybeRefresh(ctx context.Context) {
	s.mu.RLock()
	stale := time.Since(s.loadedAt) > s.cacheTTL
	s.mu.RUnlock()
	if !stale {
		return
	}

	if err := s.reload(ctx); err != nil {
		s.logger.Warn("rule refresh failed, serving cached rules", "error", err)
		s.mu.Lock()
		s.loadedAt = time.Now()
		s.mu.Unlock()
	}
}

// reload replaces the cached state with the backend's.
func (s *Store) reload(ctx context.Context) error {
	var (
		exempt      []string
		userLimits  []LimitOverride
		groupLimits []LimitOverride
		groupModes  []ModeOverride
		rawPeriods  []TimePeriodRule
	)

	if err := s.loadJSON(ctx, keyExempt, &exempt); err != nil {
		return err
	}
	if err := s.loadJSON(ctx, keyUserLimits, &userLimits); err != nil {
		return err
	}
	if err := s.loadJSON(ctx, keyGroupLimits, &groupLimits); err != nil {
		return err
	}
	if err := s.loadJSON(ctx, keyGroupModes, &groupModes); err != nil {
		return err
	}
	if err := s.loadJSON(ctx, keyPeriods, &rawPeriods); err != nil {
		return err
	}

	resetRaw, ok, err := s.backend.Get(ctx, keyResetTime)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.exempt = exempt
	s.userLimits = userLimits
	s.groupLimits = groupLimits
	s.groupModes = groupModes
	s.periods = parsePeriods(rawPeriods, s.logger)
	if ok {
		if t, perr := clock.ParseTimeOfDay(resetRaw); perr == nil {
			s.resetTime = t
		} else {
			s.logger.Warn("stored reset time is malformed, keeping current", "value", resetRaw)
		}
	}
	s.loadedAt = time.Now()
	return nil
}

func (s *Store) loadJSON(ctx context.Context, key string, dest interface{}) error {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.Warn("stored rule entity is malformed, ignoring", "key", key, "error", err)
	}
	return nil
}

// persistLocked writes one rule entity. Caller holds the write lock. The
// cache timestamp is bumped so the write is not immediately overwritten by
// a refresh racing the backend.
func (s *Store) persistLocked(ctx context.Context, key string, value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		raw = string(data)
	}

	s.loadedAt = time.Now()
	if err := s.backend.Set(ctx, key, raw, 0); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) persistAllLocked(ctx context.Context) error {
	if err := s.persistLocked(ctx, keyExempt, s.exempt); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, keyUserLimits, s.userLimits); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, keyGroupLimits, s.groupLimits); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, keyGroupModes, s.groupModes); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, keyPeriods, s.periods); err != nil {
		return err
	}
	return s.persistLocked(ctx, keyResetTime, s.resetTime.String())
}

func parsePeriods(raw []TimePeriodRule, logger *slog.Logger) []TimePeriodRule {
	out := make([]TimePeriodRule, 0, len(raw))
	for i, rule := range raw {
		w, err := clock.ParseWindow(rule.Start, rule.End)
		if err != nil {
			// A malformed period rule is disabled, never a crash.
			logger.Warn("malformed time period rule, treating as disabled",
				"index", i, "start", rule.Start, "end", rule.End, "error", err)
			rule.valid = false
			rule.Enabled = false
			out = append(out, rule)
			continue
		}
		rule.window = w
		rule.valid = true
		out = append(out, rule)
	}
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func findOverride(list []LimitOverride, id string) int {
	for i, o := range list {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func findMode(list []ModeOverride, id string) int {
	for i, m := range list {
		if m.GroupID == id {
			return i
		}
	}
	return -1
}
