package signals

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/wardenhq/warden/internal/guard/window"
	"github.com/wardenhq/warden/internal/setup/config"
)

// Signal is the contribution of one extractor: an additive sub-score and
// human-readable indicator strings explaining why it fired.
type Signal struct {
	Score      int
	Indicators []string
}

// Triggered reports whether the extractor contributed to the total score.
func (s Signal) Triggered() bool {
	return s.Score > 0
}

var (
	// Usernames ending in a long numeric suffix (user1234, raider0001).
	trailingDigitsPattern = regexp.MustCompile(`\d{2,}$`)
	// Long random-looking alphanumeric usernames (xk7f9q2mzp4w).
	randomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{12,}$`)
)

const (
	// Gap between consecutive joins treated as a sequential burst.
	sequentialJoinGap = 2 * time.Second
	// Minimum consecutive short gaps before the timing signal fires.
	sequentialJoinMin = 3
	// Creation-age spread below which a cluster of accounts looks
	// batch-registered, and the cluster size required to fire.
	creationSpreadMin  = time.Minute
	creationClusterMin = 3
	// Username similarity above which two names count as a matching pair.
	nameSimilarityFloor = 0.6

	// Absolute count thresholds. Appending a join to a window can only
	// raise these counts, so firing on counts keeps the total score from
	// dropping when another member arrives.
	veryNewAccountMin    = 3
	suspiciousAccountMin = 2
	namePatternMin       = 2
	defaultAvatarMin     = 4
)

// JoinVolume fires when the raw join count in the window reaches the
// configured threshold.
func JoinVolume(joins []window.JoinEvent, cfg *config.Protection) Signal {
	if len(joins) < cfg.JoinThreshold {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.Volume,
		Indicators: []string{fmt.Sprintf("%d joins within the analysis window", len(joins))},
	}
}

// AccountAges scores the distribution of account ages: enough very-new or
// suspicious accounts, and a low average age, escalate the sub-score. The
// average is taken over non-automated accounts only so that an automated
// join cannot move it.
func AccountAges(joins []window.JoinEvent, cfg *config.Protection) Signal {
	if len(joins) == 0 {
		return Signal{}
	}

	var (
		signal     Signal
		suspicious int
		veryNew    int
		humans     int
		humanAge   time.Duration
	)

	for _, join := range joins {
		if join.AccountAge < cfg.VeryNewAge() {
			veryNew++
		}

		if join.AccountAge < cfg.SuspiciousAge() {
			suspicious++
		}

		if !join.IsBot {
			humans++
			humanAge += join.AccountAge
		}
	}

	switch {
	case veryNew >= veryNewAccountMin:
		signal.Score += cfg.Weights.VeryNewAccounts
		signal.Indicators = append(signal.Indicators,
			fmt.Sprintf("%d accounts created in the last 24 hours", veryNew))
	case suspicious >= suspiciousAccountMin:
		signal.Score += cfg.Weights.SuspiciousAccounts
		signal.Indicators = append(signal.Indicators,
			fmt.Sprintf("%d recently created accounts", suspicious))
	}

	if humans > 0 {
		avgAge := humanAge / time.Duration(humans)

		switch {
		case avgAge < 24*time.Hour:
			signal.Score += cfg.Weights.AvgAgeDay
			signal.Indicators = append(signal.Indicators, "average account age below one day")
		case avgAge < 7*24*time.Hour:
			signal.Score += cfg.Weights.AvgAgeWeek
			signal.Indicators = append(signal.Indicators, "average account age below one week")
		}
	}

	return signal
}

// BotAccounts fires on automated accounts joining together. Coordinated
// automated joins are the strongest raid signal and carry roughly twice the
// weight of the generic volume signal.
func BotAccounts(joins []window.JoinEvent, cfg *config.Protection) Signal {
	bots := CountBots(joins)

	switch {
	case bots >= 2:
		return Signal{
			Score:      cfg.Weights.BotAccounts,
			Indicators: []string{fmt.Sprintf("%d automated accounts joined together", bots)},
		}
	case bots == 1:
		return Signal{
			Score:      cfg.Weights.SingleBot,
			Indicators: []string{"automated account joined during burst"},
		}
	default:
		return Signal{}
	}
}

// CountBots returns the number of automated accounts in the window.
func CountBots(joins []window.JoinEvent) int {
	count := 0

	for _, join := range joins {
		if join.IsBot {
			count++
		}
	}

	return count
}

// NameSimilarity clusters usernames by edit-distance similarity; each
// qualifying pair counts once, regardless of how many members share it.
func NameSimilarity(joins []window.JoinEvent, cfg *config.Protection) Signal {
	pairs := 0

	for i := range joins {
		for j := i + 1; j < len(joins); j++ {
			if Similarity(joins[i].Username, joins[j].Username) > nameSimilarityFloor {
				pairs++
			}
		}
	}

	if pairs == 0 {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.NameSimilarity,
		Indicators: []string{fmt.Sprintf("%d similar username pairs", pairs)},
	}
}

// NamePatterns fires when enough usernames match known raid naming
// patterns (trailing numeric suffixes, random alphanumerics).
func NamePatterns(joins []window.JoinEvent, cfg *config.Protection) Signal {
	matched := 0

	for _, join := range joins {
		if trailingDigitsPattern.MatchString(join.Username) || randomNamePattern.MatchString(join.Username) {
			matched++
		}
	}

	if matched < namePatternMin {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.NamePattern,
		Indicators: []string{fmt.Sprintf("%d patterned usernames", matched)},
	}
}

// DefaultAvatars fires when enough joining accounts have no custom avatar.
func DefaultAvatars(joins []window.JoinEvent, cfg *config.Protection) Signal {
	plain := 0

	for _, join := range joins {
		if !join.HasAvatar {
			plain++
		}
	}

	if plain < defaultAvatarMin {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.DefaultAvatars,
		Indicators: []string{fmt.Sprintf("%d accounts without custom avatars", plain)},
	}
}

// SequentialTiming fires on bursts of consecutive joins under two seconds
// apart. Events arrive in order, so consecutive gaps are enough.
func SequentialTiming(joins []window.JoinEvent, cfg *config.Protection) Signal {
	shortGaps := 0

	for i := 1; i < len(joins); i++ {
		if joins[i].Timestamp.Sub(joins[i-1].Timestamp) < sequentialJoinGap {
			shortGaps++
		}
	}

	if shortGaps < sequentialJoinMin {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.SequentialJoins,
		Indicators: []string{fmt.Sprintf("%d sequential joins under 2s apart", shortGaps)},
	}
}

// CreationVariance fires when a cluster of joining accounts was created
// within moments of each other, which implies they were registered in one
// automated batch. Clustering instead of whole-window spread means later,
// unrelated joins cannot dissolve an existing cluster. Like the
// bot-account signal, it outweighs generic volume roughly twofold.
func CreationVariance(joins []window.JoinEvent, cfg *config.Protection) Signal {
	if len(joins) < creationClusterMin {
		return Signal{}
	}

	ages := make([]time.Duration, len(joins))
	for i, join := range joins {
		ages[i] = join.AccountAge
	}

	slices.Sort(ages)

	clustered := false

	for i := 0; i+creationClusterMin <= len(ages); i++ {
		if ages[i+creationClusterMin-1]-ages[i] < creationSpreadMin {
			clustered = true
			break
		}
	}

	if !clustered {
		return Signal{}
	}

	return Signal{
		Score:      cfg.Weights.CreationVariance,
		Indicators: []string{"near-identical account creation times"},
	}
}
