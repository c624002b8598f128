package window

import (
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// JoinEvent captures a single member join. Immutable once recorded.
type JoinEvent struct {
	MemberID   snowflake.ID
	Timestamp  time.Time
	AccountAge time.Duration
	Username   string
	IsBot      bool
	HasAvatar  bool
}

// MessageEvent captures a single posted message. Content is stored in
// normalized form. Immutable once recorded.
type MessageEvent struct {
	AuthorID  snowflake.ID
	ChannelID snowflake.ID
	Content   string
	Timestamp time.Time
}

// NormalizeContent lowercases and trims message content so duplicate
// detection compares byte-identical strings.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
