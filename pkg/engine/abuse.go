package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"silverline-hq/portcullis/pkg/notify"
	"silverline-hq/portcullis/pkg/store"
)

// AbuseConfig contains sliding-window abuse detection settings.
type AbuseConfig struct {
	// Enabled is the initial detector state; it can be toggled at
	// runtime.
	Enabled bool

	// FastWindow and FastThreshold define burst detection: more than
	// FastThreshold requests inside FastWindow triggers a block.
	FastWindow    time.Duration
	FastThreshold int

	// SustainedWindow and SustainedThreshold define sustained-rate
	// detection.
	SustainedWindow    time.Duration
	SustainedThreshold int

	// BlockDuration is how long an auto-block lasts.
	BlockDuration time.Duration

	// NotificationCooldown is the minimum interval between admin
	// notifications for the same user.
	NotificationCooldown time.Duration
}

// BlockState is the per-user block record kept in the shared store.
type BlockState struct {
	// UserID is the blocked user.
	UserID string `json:"user_id"`

	// BlockedUntil is when the block expires.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastNotifiedAt is when admins were last notified about this user,
	// used to suppress duplicate notifications.
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`

	// TriggeredBy records which threshold fired: "fast" or "sustained".
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// Detector maintains per-user sliding-window request logs in the shared
// store and drives the auto-block state machine.
//
// Every counted request is appended to the user's timestamp window and the
// window is pruned and evaluated in the same store round trip, so
// concurrent requests cannot race the threshold evaluation apart. Block
// records are written with a guarded compare-and-set keyed on the record
// the caller last read: when several engine instances cross a threshold
// together, exactly one installs the block and sends the notification, and
// the rest enforce the winner's record.
type Detector struct {
	backend  store.Backend
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      AbuseConfig
	enabled  atomic.Bool
}

// NewDetector creates a detector. notifier may be nil to disable admin
// notifications.
func NewDetector(backend store.Backend, cfg AbuseConfig, notifier notify.Notifier) *Detector {
	d := &Detector{
		backend:  backend,
		notifier: notifier,
		logger:   slog.Default().With("component", "abuse"),
		cfg:      cfg,
	}
	d.enabled.Store(cfg.Enabled)
	return d
}

// Enabled reports whether detection is active.
func (d *Detector) Enabled() bool {
	return d.enabled.Load()
}

// SetEnabled toggles detection at runtime. Disabling makes every check a
// pass-through: existing blocks are preserved in the store but no longer
// enforced or created until detection is re-enabled.
func (d *Detector) SetEnabled(enabled bool) {
	prev := d.enabled.Swap(enabled)
	if prev != enabled {
		d.logger.Info("abuse detection toggled", "enabled", enabled)
	}
}

// Config returns the detector's threshold configuration.
func (d *Detector) Config() AbuseConfig {
	cfg := d.cfg
	cfg.Enabled = d.enabled.Load()
	return cfg
}

// Check records the request in the user's sliding window and evaluates the
// block state machine. Returns the active block, if any: an already
// blocked user is rejected without touching the window, and a request that
// crosses a threshold is itself rejected as the first blocked request.
func (d *Detector) Check(ctx context.Context, userID string, at time.Time) (BlockState, bool, error) {
	if !d.enabled.Load() {
		return BlockState{}, false, nil
	}

	state, prevRaw, found, err := d.loadBlock(ctx, userID)
	if err != nil {
		return BlockState{}, false, err
	}
	if found && at.Before(state.BlockedUntil) {
		return state, true, nil
	}

	keep := d.cfg.FastWindow
	if d.cfg.SustainedWindow > keep {
		keep = d.cfg.SustainedWindow
	}
	counts, err := d.backend.WindowAdd(ctx, abuseKey(userID), at, keep,
		at.Add(-d.cfg.FastWindow), at.Add(-d.cfg.SustainedWindow))
	if err != nil {
		return BlockState{}, false, fmt.Errorf("abuse window %s: %w", userID, err)
	}

	trigger := ""
	switch {
	case counts[0] > int64(d.cfg.FastThreshold):
		trigger = "fast"
	case counts[1] > int64(d.cfg.SustainedThreshold):
		trigger = "sustained"
	default:
		return BlockState{}, false, nil
	}

	newState := BlockState{
		UserID:       userID,
		BlockedUntil: at.Add(d.cfg.BlockDuration),
		TriggeredBy:  trigger,
	}
	if found {
		// Carry the notification timestamp across re-blocks so a user
		// who trips the threshold repeatedly does not spam admins.
		newState.LastNotifiedAt = state.LastNotifiedAt
	}

	notifying := d.shouldNotify(newState, at)
	if notifying {
		notifiedAt := at
		newState.LastNotifiedAt = &notifiedAt
	}

	// The write is guarded on the record we read at the top: if another
	// instance installed a block in between, ours loses and we enforce
	// theirs instead of clobbering it or double-notifying.
	swapped, current, err := d.saveBlock(ctx, prevRaw, newState, at)
	if err != nil {
		return BlockState{}, false, err
	}
	if !swapped {
		if other, ok := decodeBlock(current); ok {
			return other, true, nil
		}
		// Record vanished under us: a concurrent unblock. Admit.
		return BlockState{}, false, nil
	}

	if notifying {
		d.emitBlockEvent(ctx, newState, counts, at)
	}

	d.logger.Warn("user auto-blocked",
		"user_id", userID,
		"trigger", trigger,
		"fast_count", counts[0],
		"sustained_count", counts[1],
		"blocked_until", newState.BlockedUntil)

	return newState, true, nil
}

// Unblock clears a user's block state and abuse window. Returns false when
// the user was not blocked. The window is cleared too: an unblock is an
// admin vouching for the user, not an invitation to re-block them on
// their next request.
func (d *Detector) Unblock(ctx context.Context, userID string) (bool, error) {
	_, _, found, err := d.loadBlock(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := d.backend.Delete(ctx, blockKey(userID), abuseKey(userID)); err != nil {
		return false, fmt.Errorf("unblock %s: %w", userID, err)
	}
	if found {
		d.logger.Info("user unblocked", "user_id", userID)
	}
	return found, nil
}

// Block returns a user's stored block record and whether it is active at
// the given time.
func (d *Detector) Block(ctx context.Context, userID string, at time.Time) (BlockState, bool, error) {
	state, _, found, err := d.loadBlock(ctx, userID)
	if err != nil {
		return BlockState{}, false, err
	}
	if !found {
		return BlockState{}, false, nil
	}
	return state, at.Before(state.BlockedUntil), nil
}

// Activity returns the user's current fast- and sustained-window request
// counts without recording a request. Used for admin inspection.
func (d *Detector) Activity(ctx context.Context, userID string, at time.Time) (fast, sustained int64, err error) {
	fast, err = d.backend.WindowCount(ctx, abuseKey(userID), at.Add(-d.cfg.FastWindow))
	if err != nil {
		return 0, 0, fmt.Errorf("abuse activity %s: %w", userID, err)
	}
	sustained, err = d.backend.WindowCount(ctx, abuseKey(userID), at.Add(-d.cfg.SustainedWindow))
	if err != nil {
		return 0, 0, fmt.Errorf("abuse activity %s: %w", userID, err)
	}
	return fast, sustained, nil
}

// Blocklist returns all users with an active block.
func (d *Detector) Blocklist(ctx context.Context) ([]BlockState, error) {
	keys, err := d.backend.Keys(ctx, "block:*")
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	now := time.Now()
	var out []BlockState
	for _, key := range keys {
		raw, ok, err := d.backend.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var state BlockState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			d.logger.Warn("malformed block state, skipping", "key", key, "error", err)
			continue
		}
		if now.Before(state.BlockedUntil) {
			out = append(out, state)
		}
	}
	return out, nil
}

func (d *Detector) shouldNotify(state BlockState, at time.Time) bool {
	if d.notifier == nil {
		return false
	}
	if state.LastNotifiedAt == nil {
		return true
	}
	return at.Sub(*state.LastNotifiedAt) > d.cfg.NotificationCooldown
}

func (d *Detector) emitBlockEvent(ctx context.Context, state BlockState, counts []int64, at time.Time) {
	d.notifier.Notify(ctx, notify.Event{
		Type: notify.EventAbuseBlock,
		At:   at,
		Fields: map[string]string{
			"user_id":         state.UserID,
			"trigger":         state.TriggeredBy,
			"fast_count":      strconv.FormatInt(counts[0], 10),
			"sustained_count": strconv.FormatInt(counts[1], 10),
			"blocked_until":   state.BlockedUntil.Format(time.RFC3339),
		},
	})
}

// loadBlock returns the stored block state. prevRaw is the raw record for
// the guarded write, kept even when the payload is malformed so a fresh
// block can overwrite the garbage atomically.
func (d *Detector) loadBlock(ctx context.Context, userID string) (state BlockState, prevRaw string, found bool, err error) {
	raw, ok, err := d.backend.Get(ctx, blockKey(userID))
	if err != nil {
		return BlockState{}, "", false, fmt.Errorf("load block %s: %w", userID, err)
	}
	if !ok {
		return BlockState{}, "", false, nil
	}
	state, ok = decodeBlock(raw)
	if !ok {
		d.logger.Warn("malformed block state, treating as unblocked", "user_id", userID)
		return BlockState{}, raw, false, nil
	}
	return state, raw, true, nil
}

// saveBlock installs the block record, guarded on the record the caller
// read. Reports whether the write won and the record now at the key.
func (d *Detector) saveBlock(ctx context.Context, prevRaw string, state BlockState, at time.Time) (bool, string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return false, "", fmt.Errorf("marshal block state: %w", err)
	}
	// The key outlives the block itself when the notification cooldown is
	// longer, so de-dup state survives back-to-back blocks.
	ttl := state.BlockedUntil.Sub(at)
	if d.cfg.NotificationCooldown > ttl {
		ttl = d.cfg.NotificationCooldown
	}
	swapped, current, err := d.backend.CompareAndSet(ctx, blockKey(state.UserID), prevRaw, string(data), ttl)
	if err != nil {
		return false, "", fmt.Errorf("save block %s: %w", state.UserID, err)
	}
	return swapped, current, nil
}

func decodeBlock(raw string) (BlockState, bool) {
	if raw == "" {
		return BlockState{}, false
	}
	var state BlockState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return BlockState{}, false
	}
	return state, true
}

func blockKey(userID string) string { return "block:" + userID }
func abuseKey(userID string) string { return "abuse:" + userID }
