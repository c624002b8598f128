package mitigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/guard/scoring"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
	"go.uber.org/zap"
)

const testCommunity = snowflake.ID(42)

var errNoPermission = errors.New("missing permissions")

type fakeModerator struct {
	mu        sync.Mutex
	lockdowns int
	lifted    int
	kicked    []snowflake.ID
	banned    []snowflake.ID
	contained []snowflake.ID
	slowmodes int
	failFor   map[snowflake.ID]bool
}

func (f *fakeModerator) Lockdown(context.Context, snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockdowns++
	return nil
}

func (f *fakeModerator) LiftLockdown(context.Context, snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lifted++
	return nil
}

func (f *fakeModerator) Kick(_ context.Context, _ snowflake.ID, memberID snowflake.ID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[memberID] {
		return errNoPermission
	}
	f.kicked = append(f.kicked, memberID)
	return nil
}

func (f *fakeModerator) Ban(_ context.Context, _ snowflake.ID, memberID snowflake.ID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[memberID] {
		return errNoPermission
	}
	f.banned = append(f.banned, memberID)
	return nil
}

func (f *fakeModerator) Quarantine(_ context.Context, _ snowflake.ID, memberID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[memberID] {
		return errNoPermission
	}
	f.contained = append(f.contained, memberID)
	return nil
}

func (f *fakeModerator) Slowmode(context.Context, snowflake.ID, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slowmodes++
	return nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	raids       int
	kicked      int
	banned      int
	lockdowns   int
	dismissals  int
	lastLevel   string
	lastScore   int
	lastUserCnt int
}

func (f *fakeRecorder) RaidDetected(_ context.Context, _ snowflake.ID, _ string, level string, score int, _ []string, affected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raids++
	f.lastLevel = level
	f.lastScore = score
	f.lastUserCnt = affected
}

func (f *fakeRecorder) MembersKicked(_ context.Context, _ snowflake.ID, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked += count
}

func (f *fakeRecorder) MembersBanned(_ context.Context, _ snowflake.ID, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned += count
}

func (f *fakeRecorder) LockdownStarted(context.Context, snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockdowns++
}

func (f *fakeRecorder) FalsePositiveDismissed(context.Context, snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissals++
}

func newTestController(t *testing.T) (*Controller, *fakeModerator, *fakeRecorder, *window.Store) {
	t.Helper()

	cfg := config.Default()
	store := window.NewStore(cfg.Protection.Retention(), zap.NewNop())
	moderator := &fakeModerator{failFor: make(map[snowflake.ID]bool)}
	recorder := &fakeRecorder{}
	controller := NewController(store, moderator, recorder, &cfg.Protection, zap.NewNop())

	return controller, moderator, recorder, store
}

func criticalResult(affected ...snowflake.ID) scoring.Result {
	return scoring.Result{
		IsRaid:     true,
		Category:   scoring.CategoryBotRaid,
		Score:      95,
		Indicators: []string{"test indicator"},
		Level:      scoring.LevelCritical,
		Affected:   affected,
	}
}

func TestHandleDetectionCritical(t *testing.T) {
	t.Parallel()

	controller, moderator, recorder, store := newTestController(t)
	dispatch := controller.HandleDetection(context.Background(), testCommunity, criticalResult(1, 2, 3))

	assert.False(t, dispatch.Skipped)
	assert.True(t, dispatch.Lockdown)
	assert.Equal(t, 3, dispatch.Banned)
	assert.Equal(t, 1, moderator.lockdowns)
	assert.Len(t, moderator.banned, 3)
	assert.Empty(t, moderator.kicked)
	assert.Equal(t, 1, recorder.raids)
	assert.Equal(t, 3, recorder.banned)
	assert.True(t, store.Lockdown(testCommunity))
	assert.Len(t, store.Flagged(testCommunity), 3)
}

func TestHandleDetectionHighKicks(t *testing.T) {
	t.Parallel()

	controller, moderator, _, _ := newTestController(t)

	result := criticalResult(1, 2)
	result.Level = scoring.LevelHigh
	result.Score = 65

	dispatch := controller.HandleDetection(context.Background(), testCommunity, result)

	assert.True(t, dispatch.Lockdown)
	assert.Equal(t, 2, dispatch.Kicked)
	assert.Empty(t, moderator.banned)
}

func TestHandleDetectionMediumQuarantines(t *testing.T) {
	t.Parallel()

	controller, moderator, _, store := newTestController(t)

	result := criticalResult(1, 2)
	result.Level = scoring.LevelMedium
	result.Score = 45

	dispatch := controller.HandleDetection(context.Background(), testCommunity, result)

	assert.Equal(t, 2, dispatch.Quarantined)
	assert.True(t, dispatch.Slowmode)
	assert.Equal(t, 1, moderator.slowmodes)
	assert.False(t, store.Lockdown(testCommunity))
}

func TestHandleDetectionLowRecordsOnly(t *testing.T) {
	t.Parallel()

	controller, moderator, recorder, _ := newTestController(t)

	result := criticalResult(1)
	result.Level = scoring.LevelLow
	result.IsRaid = true
	result.Score = 41

	dispatch := controller.HandleDetection(context.Background(), testCommunity, result)

	assert.False(t, dispatch.Skipped)
	assert.Zero(t, dispatch.Kicked+dispatch.Banned+dispatch.Quarantined)
	assert.Zero(t, moderator.lockdowns)
	assert.Equal(t, 1, recorder.raids)
}

func TestHandleDetectionCooldownIdempotence(t *testing.T) {
	t.Parallel()

	controller, moderator, recorder, _ := newTestController(t)

	current := time.Unix(1_700_000_000, 0)
	controller.now = func() time.Time { return current }

	first := controller.HandleDetection(context.Background(), testCommunity, criticalResult(1, 2))
	require.False(t, first.Skipped)

	// Second qualifying detection inside the cooldown window must not
	// dispatch again or double-count the raid.
	current = current.Add(time.Minute)
	second := controller.HandleDetection(context.Background(), testCommunity, criticalResult(3, 4))

	assert.True(t, second.Skipped)
	assert.Equal(t, 1, recorder.raids)
	assert.Equal(t, 1, moderator.lockdowns)
	assert.Len(t, moderator.banned, 2)

	// After the cooldown expires a new wave is handled again
	current = current.Add(10 * time.Minute)
	third := controller.HandleDetection(context.Background(), testCommunity, criticalResult(5))

	assert.False(t, third.Skipped)
	assert.Equal(t, 2, recorder.raids)
}

func TestHandleDetectionPartialFailure(t *testing.T) {
	t.Parallel()

	controller, moderator, recorder, _ := newTestController(t)
	moderator.failFor[2] = true

	dispatch := controller.HandleDetection(context.Background(), testCommunity, criticalResult(1, 2, 3))

	// The failing member is skipped, the batch continues, and the count
	// reflects members actually acted upon.
	assert.Equal(t, 2, dispatch.Banned)
	assert.Len(t, moderator.banned, 2)
	assert.Equal(t, 2, recorder.banned)
}

func TestManualOverrides(t *testing.T) {
	t.Parallel()

	controller, moderator, _, store := newTestController(t)
	now := time.Now()

	for i := 1; i <= 5; i++ {
		store.RecordJoin(testCommunity, window.JoinEvent{
			MemberID:  snowflake.ID(i),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	assert.Equal(t, 3, controller.KickRecent(context.Background(), testCommunity, 3))
	assert.Equal(t, []snowflake.ID{5, 4, 3}, moderator.kicked)

	assert.Equal(t, 2, controller.BanRecent(context.Background(), testCommunity, 2))

	assert.True(t, controller.ManualLockdown(context.Background(), testCommunity))
	// Repeating the request is a no-op against the same lockdown
	assert.True(t, controller.ManualLockdown(context.Background(), testCommunity))
	assert.Equal(t, 1, moderator.lockdowns)

	assert.True(t, controller.LiftLockdown(context.Background(), testCommunity))
	assert.False(t, controller.LiftLockdown(context.Background(), testCommunity))
	assert.Equal(t, 1, moderator.lifted)
}

func TestDismissIdempotent(t *testing.T) {
	t.Parallel()

	controller, _, recorder, store := newTestController(t)

	store.Flag(testCommunity, 1, 2)
	store.SetLockdown(testCommunity, true)

	assert.True(t, controller.Dismiss(context.Background(), testCommunity))
	assert.Empty(t, store.Flagged(testCommunity))
	assert.False(t, store.Lockdown(testCommunity))
	assert.Equal(t, 1, recorder.dismissals)

	// Dismissing again has nothing left to dismiss
	assert.False(t, controller.Dismiss(context.Background(), testCommunity))
	assert.Equal(t, 1, recorder.dismissals)
}

func TestHandleDetectionDisabledResponses(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Protection.BanEnabled = false
	cfg.Protection.LockdownEnabled = false

	store := window.NewStore(cfg.Protection.Retention(), zap.NewNop())
	moderator := &fakeModerator{failFor: make(map[snowflake.ID]bool)}
	recorder := &fakeRecorder{}
	controller := NewController(store, moderator, recorder, &cfg.Protection, zap.NewNop())

	dispatch := controller.HandleDetection(context.Background(), testCommunity, criticalResult(1, 2))

	assert.False(t, dispatch.Lockdown)
	assert.Zero(t, dispatch.Banned)
	assert.Zero(t, moderator.lockdowns)
	// The detection is still recorded for statistics
	assert.Equal(t, 1, recorder.raids)
}
