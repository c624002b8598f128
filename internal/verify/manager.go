package verify

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/internal/verify/challenge"
	"go.uber.org/zap"
)

// Gate throttles challenge issuance independent of session state.
type Gate interface {
	// Allow reports whether a member may be issued a new challenge.
	// The returned reason is informational, for logging only.
	Allow(ctx context.Context, communityID, memberID snowflake.ID) (bool, string)
	// Record counts one issued challenge against the member's limits.
	// Called once per created session, so duplicate join events racing
	// the Allow check cannot consume extra slots.
	Record(ctx context.Context, communityID, memberID snowflake.ID)
	// MarkExhausted temporarily blocks a member who used up all attempts.
	MarkExhausted(ctx context.Context, communityID, memberID snowflake.ID)
}

// Granter applies the outcome of a verification session to the member.
type Granter interface {
	Grant(ctx context.Context, communityID, memberID snowflake.ID) error
	Deny(ctx context.Context, communityID, memberID snowflake.ID) error
}

// Recorder receives verification lifecycle events for statistics.
type Recorder interface {
	SessionStarted(ctx context.Context, communityID, memberID snowflake.ID)
	SessionSucceeded(ctx context.Context, communityID, memberID snowflake.ID, elapsed time.Duration)
	SessionExhausted(ctx context.Context, communityID, memberID snowflake.ID)
	SessionExpired(ctx context.Context, communityID, memberID snowflake.ID)
	SuspiciousAttempt(ctx context.Context, communityID, memberID snowflake.ID)
}

// Outcome classifies the result of an answer submission.
type Outcome int

const (
	// OutcomeSuccess means the answer matched and the member is verified.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry means the answer was wrong but attempts remain.
	OutcomeRetry
	// OutcomeExhausted means the wrong answer used the last attempt.
	OutcomeExhausted
	// OutcomeExpired means the session outlived its deadline.
	OutcomeExpired
	// OutcomeNotFound means no such session exists (already finalized).
	OutcomeNotFound
	// OutcomeRejected means the acting member does not own the session.
	OutcomeRejected
)

// SubmitResult reports the outcome of a submission and, on retry, how
// many attempts remain.
type SubmitResult struct {
	Outcome      Outcome
	AttemptsLeft int
}

// Manager creates, tracks, and finalizes verification sessions. Removal
// from the session map is the single finalization point: once a session
// is absent, every other path treats the submission as already handled.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	byMember  map[memberKey]string
	generator *challenge.Generator
	gate      Gate
	granter   Granter
	recorder  Recorder
	cfg       *config.Verification
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a verification session manager.
func NewManager(
	generator *challenge.Generator, gate Gate, granter Granter, recorder Recorder,
	cfg *config.Verification, logger *zap.Logger,
) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		byMember:  make(map[memberKey]string),
		generator: generator,
		gate:      gate,
		granter:   granter,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger.Named("verify"),
		now:       time.Now,
	}
}

// Begin issues a challenge session for a member who just joined. It is
// idempotent against duplicate join events: an existing pending session
// is returned unchanged. A rate-limited, capped, or temporarily banned
// member is skipped with a nil session rather than an error.
func (m *Manager) Begin(ctx context.Context, communityID, memberID snowflake.ID) *Session {
	key := memberKey{communityID: communityID, memberID: memberID}

	m.mu.Lock()
	if id, ok := m.byMember[key]; ok {
		session := m.sessions[id]
		m.mu.Unlock()

		return session
	}
	m.mu.Unlock()

	allowed, reason := m.gate.Allow(ctx, communityID, memberID)
	if !allowed {
		m.logger.Debug("Skipping challenge issuance",
			zap.Uint64("communityID", uint64(communityID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.String("reason", reason))

		return nil
	}

	c := m.generator.Generate(challenge.Kind(m.cfg.Kind), challenge.Difficulty(m.cfg.Difficulty))

	m.mu.Lock()
	// Another join event may have created the session while the gate
	// check was in flight.
	if id, ok := m.byMember[key]; ok {
		session := m.sessions[id]
		m.mu.Unlock()

		return session
	}

	now := m.now()
	session := &Session{
		ID:            newSessionID(communityID, memberID, now),
		CommunityID:   communityID,
		MemberID:      memberID,
		Challenge:     c,
		SecurityToken: newSecurityToken(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.cfg.Timeout()),
	}
	m.sessions[session.ID] = session
	m.byMember[key] = session.ID
	m.mu.Unlock()

	m.gate.Record(ctx, communityID, memberID)
	m.recorder.SessionStarted(ctx, communityID, memberID)
	m.logger.Info("Verification session started",
		zap.String("sessionID", session.ID),
		zap.Uint64("communityID", uint64(communityID)),
		zap.Uint64("memberID", uint64(memberID)),
		zap.String("kind", string(c.Kind)))

	return session
}

// Submit checks an answer against a pending session. The acting member
// must own the session; a mismatch is logged as a suspicious attempt and
// rejected without mutating the session.
func (m *Manager) Submit(ctx context.Context, sessionID, answer string, actingMemberID snowflake.ID) SubmitResult {
	m.mu.Lock()

	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()

		return SubmitResult{Outcome: OutcomeNotFound}
	}

	if session.MemberID != actingMemberID {
		communityID, memberID := session.CommunityID, session.MemberID
		m.mu.Unlock()

		m.recorder.SuspiciousAttempt(ctx, communityID, actingMemberID)
		m.logger.Warn("Rejected answer from non-owner",
			zap.String("sessionID", sessionID),
			zap.Uint64("ownerID", uint64(memberID)),
			zap.Uint64("actingMemberID", uint64(actingMemberID)))

		return SubmitResult{Outcome: OutcomeRejected}
	}

	if m.now().After(session.ExpiresAt) {
		m.removeLocked(session)
		m.mu.Unlock()

		m.recorder.SessionExpired(ctx, session.CommunityID, session.MemberID)
		m.logger.Info("Verification session expired on submit",
			zap.String("sessionID", sessionID))

		return SubmitResult{Outcome: OutcomeExpired}
	}

	if answerMatches(session.Challenge, answer) {
		m.removeLocked(session)
		elapsed := m.now().Sub(session.CreatedAt)
		m.mu.Unlock()

		if err := m.granter.Grant(ctx, session.CommunityID, session.MemberID); err != nil {
			m.logger.Error("Failed to grant verified state",
				zap.Uint64("memberID", uint64(session.MemberID)),
				zap.Error(err))
		}

		m.recorder.SessionSucceeded(ctx, session.CommunityID, session.MemberID, elapsed)
		m.logger.Info("Verification succeeded",
			zap.String("sessionID", sessionID),
			zap.Duration("elapsed", elapsed))

		return SubmitResult{Outcome: OutcomeSuccess}
	}

	session.AttemptsMade++
	if session.AttemptsMade >= m.cfg.MaxAttempts {
		m.removeLocked(session)
		m.mu.Unlock()

		m.gate.MarkExhausted(ctx, session.CommunityID, session.MemberID)

		if err := m.granter.Deny(ctx, session.CommunityID, session.MemberID); err != nil {
			m.logger.Error("Failed to apply denied state",
				zap.Uint64("memberID", uint64(session.MemberID)),
				zap.Error(err))
		}

		m.recorder.SessionExhausted(ctx, session.CommunityID, session.MemberID)
		m.logger.Info("Verification attempts exhausted",
			zap.String("sessionID", sessionID),
			zap.Int("attempts", session.AttemptsMade))

		return SubmitResult{Outcome: OutcomeExhausted}
	}

	remaining := m.cfg.MaxAttempts - session.AttemptsMade
	m.mu.Unlock()

	return SubmitResult{Outcome: OutcomeRetry, AttemptsLeft: remaining}
}

// Sweep removes sessions whose deadline has passed and counts them as
// failed. A session finalized by a concurrent submission is simply
// absent, which makes the sweep a safe no-op for it.
func (m *Manager) Sweep(ctx context.Context, now time.Time) {
	m.mu.Lock()

	var expired []*Session
	for _, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, session)
		}
	}

	for _, session := range expired {
		m.removeLocked(session)
	}
	m.mu.Unlock()

	for _, session := range expired {
		m.recorder.SessionExpired(ctx, session.CommunityID, session.MemberID)
		m.logger.Info("Verification session expired",
			zap.String("sessionID", session.ID),
			zap.Uint64("memberID", uint64(session.MemberID)))
	}
}

// Pending returns the pending session for a member, or nil.
func (m *Manager) Pending(communityID, memberID snowflake.ID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byMember[memberKey{communityID: communityID, memberID: memberID}]
	if !ok {
		return nil
	}

	return m.sessions[id]
}

// PendingCount returns the number of in-flight sessions.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

func (m *Manager) removeLocked(session *Session) {
	delete(m.sessions, session.ID)
	delete(m.byMember, memberKey{communityID: session.CommunityID, memberID: session.MemberID})
}

// answerMatches compares a submitted answer against the expected one.
// Math answers must match exactly after normalization. Image answers
// tolerate a minor transcription error: at most one differing position
// when the lengths differ by at most one.
func answerMatches(c challenge.Challenge, answer string) bool {
	submitted := challenge.Normalize(answer)
	if submitted == c.Answer {
		return true
	}

	if c.Kind != challenge.KindImage {
		return false
	}

	return answerDistance(submitted, c.Answer) <= 1
}

// answerDistance counts positional character mismatches plus the length
// difference. Unlike an edit distance, a missing character misaligns the
// remainder: "ab39" is two mismatches away from "ab3d9", not one.
func answerDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	distance := len(rb) - len(ra)
	for i := range ra {
		if ra[i] != rb[i] {
			distance++
		}
	}

	return distance
}
