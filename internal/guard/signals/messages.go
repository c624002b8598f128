package signals

import (
	"fmt"
	"regexp"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
)

var (
	linkPattern   = regexp.MustCompile(`https?://([^/\s]+)`)
	digitsPattern = regexp.MustCompile(`\d`)
)

const (
	// Distinct authors posting identical content before duplication fires.
	duplicateAuthorMin = 3
	// Channel spread treated as "the same small set of channels".
	floodChannelMax = 2
	// Messages in a single channel that always count as a flood.
	floodPerChannel = 5
	// Messages from one author within the burst sub-window.
	burstMessageMin = 4
	burstWindow     = 5 * time.Second
	// Cluster size for scripted-generation patterns.
	botPatternMin = 3
)

// MessageVolume fires when the raw message count in the window reaches the
// configured threshold.
func MessageVolume(messages []window.MessageEvent, cfg *config.Protection) Signal {
	if len(messages) < cfg.MessageThreshold {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.MessageVolume,
		Indicators: []string{fmt.Sprintf("%d messages within the analysis window", len(messages))},
	}
}

// DuplicateContent fires when groups of distinct users post byte-identical
// normalized content within the window.
func DuplicateContent(messages []window.MessageEvent, cfg *config.Protection) Signal {
	authorsByContent := make(map[string]map[snowflake.ID]struct{})

	for _, message := range messages {
		if message.Content == "" {
			continue
		}

		authors, ok := authorsByContent[message.Content]
		if !ok {
			authors = make(map[snowflake.ID]struct{})
			authorsByContent[message.Content] = authors
		}

		authors[message.AuthorID] = struct{}{}
	}

	groups := 0
	largest := 0

	for _, authors := range authorsByContent {
		if len(authors) >= duplicateAuthorMin {
			groups++

			if len(authors) > largest {
				largest = len(authors)
			}
		}
	}

	if groups == 0 {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.DuplicateContent,
		Indicators: []string{fmt.Sprintf("%d users posted identical content", largest)},
	}
}

// ChannelFlood fires when the window's messages concentrate in a small set
// of channels, or a single channel takes a burst on its own.
func ChannelFlood(messages []window.MessageEvent, cfg *config.Protection) Signal {
	if len(messages) == 0 {
		return Signal{}
	}

	perChannel := make(map[snowflake.ID]int)
	for _, message := range messages {
		perChannel[message.ChannelID]++
	}

	flooded := len(messages) >= cfg.MessageThreshold && len(perChannel) <= floodChannelMax

	for _, count := range perChannel {
		if count >= floodPerChannel {
			flooded = true
			break
		}
	}

	if !flooded {
		return Signal{}
	}

	return Signal{
		Score: cfg.Weights.ChannelFlood,
		Indicators: []string{
			fmt.Sprintf("%d messages concentrated in %d channels", len(messages), len(perChannel)),
		},
	}
}

// UserBurst fires when any single author posts a rapid run of messages
// within a short sub-window.
func UserBurst(messages []window.MessageEvent, cfg *config.Protection) Signal {
	byAuthor := make(map[snowflake.ID][]time.Time)
	for _, message := range messages {
		byAuthor[message.AuthorID] = append(byAuthor[message.AuthorID], message.Timestamp)
	}

	for authorID, times := range byAuthor {
		if len(times) < burstMessageMin {
			continue
		}

		// Timestamps are in arrival order; slide a window over them
		for i := 0; i+burstMessageMin-1 < len(times); i++ {
			if times[i+burstMessageMin-1].Sub(times[i]) > burstWindow {
				continue
			}

			// Extend the run to the full count posted inside the window
			run := burstMessageMin
			for i+run < len(times) && times[i+run].Sub(times[i]) <= burstWindow {
				run++
			}

			return Signal{
				Score: cfg.Weights.UserBurst,
				Indicators: []string{
					fmt.Sprintf("user %d posted %d messages in under %s", authorID, run, burstWindow),
				},
			}
		}
	}

	return Signal{}
}

// BotPattern fires on traits of scripted generation: messages clustered on
// the same posting second, identical message lengths, or content identical
// once digits are masked.
func BotPattern(messages []window.MessageEvent, cfg *config.Protection) Signal {
	if len(messages) < botPatternMin {
		return Signal{}
	}

	bySecond := make(map[int64]int)
	byLength := make(map[int]int)
	byMasked := make(map[string]int)

	for _, message := range messages {
		bySecond[message.Timestamp.Unix()]++

		if message.Content != "" {
			byLength[len(message.Content)]++
			byMasked[digitsPattern.ReplaceAllString(message.Content, "#")]++
		}
	}

	for second, count := range bySecond {
		if count >= botPatternMin {
			return Signal{
				Score: cfg.Weights.BotPattern,
				Indicators: []string{
					fmt.Sprintf("%d messages posted in the same second (%d)", count, second),
				},
			}
		}
	}

	for _, count := range byLength {
		if count >= botPatternMin {
			return Signal{
				Score:      cfg.Weights.BotPattern,
				Indicators: []string{fmt.Sprintf("%d messages with identical length", count)},
			}
		}
	}

	for _, count := range byMasked {
		if count >= botPatternMin {
			return Signal{
				Score:      cfg.Weights.BotPattern,
				Indicators: []string{fmt.Sprintf("%d templated messages differing only in digits", count)},
			}
		}
	}

	return Signal{}
}

// LinkSpam fires when multiple users post links, with an extra contribution
// when they share a target domain.
func LinkSpam(messages []window.MessageEvent, cfg *config.Protection) Signal {
	linkAuthors := make(map[snowflake.ID]struct{})
	domainAuthors := make(map[string]map[snowflake.ID]struct{})

	for _, message := range messages {
		matches := linkPattern.FindAllStringSubmatch(message.Content, -1)
		if len(matches) == 0 {
			continue
		}

		linkAuthors[message.AuthorID] = struct{}{}

		for _, match := range matches {
			domain := match[1]

			authors, ok := domainAuthors[domain]
			if !ok {
				authors = make(map[snowflake.ID]struct{})
				domainAuthors[domain] = authors
			}

			authors[message.AuthorID] = struct{}{}
		}
	}

	var signal Signal

	if len(linkAuthors) >= 2 {
		signal.Score += cfg.Weights.LinkSpam
		signal.Indicators = append(signal.Indicators,
			fmt.Sprintf("%d users posted links", len(linkAuthors)))
	}

	for domain, authors := range domainAuthors {
		if len(authors) >= 2 {
			signal.Score += cfg.Weights.SharedDomain
			signal.Indicators = append(signal.Indicators,
				fmt.Sprintf("%d users linked the same domain (%s)", len(authors), domain))

			break
		}
	}

	return signal
}
