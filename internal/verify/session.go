package verify

import (
	cryptoRand "crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/verify/challenge"
)

// Session tracks one member's in-progress verification challenge.
type Session struct {
	ID            string
	CommunityID   snowflake.ID
	MemberID      snowflake.ID
	Challenge     challenge.Challenge
	SecurityToken string
	AttemptsMade  int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// memberKey identifies the one pending session a member may hold per
// community.
type memberKey struct {
	communityID snowflake.ID
	memberID    snowflake.ID
}

// newSessionID builds a unique session identifier from the member, the
// creation time, and a random suffix.
func newSessionID(communityID, memberID snowflake.ID, createdAt time.Time) string {
	suffix := make([]byte, 4)
	_, _ = cryptoRand.Read(suffix)

	return fmt.Sprintf("%d-%d-%d-%s", communityID, memberID, createdAt.UnixNano(), hex.EncodeToString(suffix))
}

// newSecurityToken generates an unguessable token bound to the session.
func newSecurityToken() string {
	b := make([]byte, 16)
	if _, err := cryptoRand.Read(b); err != nil {
		panic(err) // This should never happen
	}

	return hex.EncodeToString(b)
}
