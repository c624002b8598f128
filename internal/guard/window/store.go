package window

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Snapshot is a point-in-time copy of a community's analysis windows.
// Evaluations operate on snapshots so later mutation of the store cannot
// change a result mid-computation.
type Snapshot struct {
	CommunityID snowflake.ID
	Joins       []JoinEvent
	Messages    []MessageEvent
}

// communityState holds the windowed events and protection state for one
// community. Created lazily on first event, evicted when empty and not
// locked down.
type communityState struct {
	joins    []JoinEvent
	messages []MessageEvent
	flagged  map[snowflake.ID]struct{}
	lockdown bool
	lastRaid time.Time
}

func (s *communityState) empty() bool {
	return len(s.joins) == 0 && len(s.messages) == 0 && len(s.flagged) == 0
}

// Store keeps bounded, time-pruned event windows per community. All access
// goes through its methods; callers never reach the internal maps.
type Store struct {
	mu        sync.Mutex
	states    map[snowflake.ID]*communityState
	retention time.Duration
	logger    *zap.Logger
}

// NewStore creates an event window store retaining events for the given
// duration.
func NewStore(retention time.Duration, logger *zap.Logger) *Store {
	return &Store{
		states:    make(map[snowflake.ID]*communityState),
		retention: retention,
		logger:    logger.Named("window"),
	}
}

// RecordJoin appends a join event to the community's window and
// opportunistically prunes expired events for that community.
func (s *Store) RecordJoin(communityID snowflake.ID, event JoinEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(communityID)
	state.joins = append(state.joins, event)
	s.pruneStateLocked(state, event.Timestamp)
}

// RecordMessage appends a message event to the community's window and
// opportunistically prunes expired events for that community.
func (s *Store) RecordMessage(communityID snowflake.ID, event MessageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(communityID)
	state.messages = append(state.messages, event)
	s.pruneStateLocked(state, event.Timestamp)
}

// Snapshot returns copies of the community's join and message events that
// fall inside the given analysis windows. Returns an empty snapshot when the
// community has no state.
func (s *Store) Snapshot(communityID snowflake.ID, joinWindow, messageWindow time.Duration, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{CommunityID: communityID}

	state, ok := s.states[communityID]
	if !ok {
		return snapshot
	}

	joinCutoff := now.Add(-joinWindow)
	for _, event := range state.joins {
		if event.Timestamp.After(joinCutoff) {
			snapshot.Joins = append(snapshot.Joins, event)
		}
	}

	messageCutoff := now.Add(-messageWindow)
	for _, event := range state.messages {
		if event.Timestamp.After(messageCutoff) {
			snapshot.Messages = append(snapshot.Messages, event)
		}
	}

	return snapshot
}

// Prune removes events older than the retention window from every community
// and evicts communities that are empty and not locked down.
func (s *Store) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for communityID, state := range s.states {
		s.pruneStateLocked(state, now)

		if state.empty() && !state.lockdown {
			delete(s.states, communityID)
			s.logger.Debug("Evicted idle community state",
				zap.Uint64("community_id", uint64(communityID)))
		}
	}
}

// Flag marks members as affected by a detection so later mitigation and
// manual review can find them.
func (s *Store) Flag(communityID snowflake.ID, memberIDs ...snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(communityID)
	for _, id := range memberIDs {
		state.flagged[id] = struct{}{}
	}
}

// Flagged returns the currently flagged member IDs for a community.
func (s *Store) Flagged(communityID snowflake.ID) []snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[communityID]
	if !ok {
		return nil
	}

	ids := make([]snowflake.ID, 0, len(state.flagged))
	for id := range state.flagged {
		ids = append(ids, id)
	}

	return ids
}

// ClearFlags removes all flagged members for a community.
func (s *Store) ClearFlags(communityID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[communityID]; ok {
		state.flagged = make(map[snowflake.ID]struct{})
	}
}

// SetLockdown records whether a community is currently locked down.
// A locked community is never evicted even when its windows drain.
func (s *Store) SetLockdown(communityID snowflake.ID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(communityID).lockdown = active
}

// Lockdown reports whether a community is currently locked down.
func (s *Store) Lockdown(communityID snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[communityID]

	return ok && state.lockdown
}

// ClaimRaid attempts to claim the mitigation slot for a community. It
// returns false while a previous claim is still within the cooldown, and
// otherwise records the claim and returns true. The check and the update
// happen under one lock hold, so concurrent detections of the same wave
// resolve to exactly one claim.
func (s *Store) ClaimRaid(communityID snowflake.ID, now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.stateLocked(communityID)
	if !state.lastRaid.IsZero() && now.Sub(state.lastRaid) < cooldown {
		return false
	}

	state.lastRaid = now

	return true
}

// RecentJoiners returns the member IDs of up to n most recent joins still in
// the retention window, newest first. Used by manual kick/ban overrides.
func (s *Store) RecentJoiners(communityID snowflake.ID, n int) []snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[communityID]
	if !ok {
		return nil
	}

	ids := make([]snowflake.ID, 0, n)
	for i := len(state.joins) - 1; i >= 0 && len(ids) < n; i-- {
		ids = append(ids, state.joins[i].MemberID)
	}

	return ids
}

// stateLocked returns the community's state, creating it when absent.
// Callers must hold the store mutex.
func (s *Store) stateLocked(communityID snowflake.ID) *communityState {
	state, ok := s.states[communityID]
	if !ok {
		state = &communityState{flagged: make(map[snowflake.ID]struct{})}
		s.states[communityID] = state
	}

	return state
}

// pruneStateLocked drops events older than the retention window.
// Callers must hold the store mutex.
func (s *Store) pruneStateLocked(state *communityState, now time.Time) {
	cutoff := now.Add(-s.retention)

	joins := state.joins[:0]
	for _, event := range state.joins {
		if event.Timestamp.After(cutoff) {
			joins = append(joins, event)
		}
	}

	state.joins = joins

	messages := state.messages[:0]
	for _, event := range state.messages {
		if event.Timestamp.After(cutoff) {
			messages = append(messages, event)
		}
	}

	state.messages = messages
}
