package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version      int          `koanf:"version"`
	Debug        Debug        `koanf:"debug"`
	PostgreSQL   PostgreSQL   `koanf:"postgresql"`
	Redis        Redis        `koanf:"redis"`
	Bot          Bot          `koanf:"bot"`
	Protection   Protection   `koanf:"protection"`
	Verification Verification `koanf:"verification"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle connection timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Bot contains Discord bot configuration.
type Bot struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
}

// Protection contains raid detection and mitigation configuration.
// All durations are in milliseconds.
type Protection struct {
	// Enable raid protection.
	Enabled bool `koanf:"enabled"`
	// How long events are retained in the window store.
	RetentionWindowMS int `koanf:"retention_window_ms"`
	// Analysis window applied to join events at evaluation time.
	JoinWindowMS int `koanf:"join_window_ms"`
	// Analysis window applied to message events at evaluation time.
	MessageWindowMS int `koanf:"message_window_ms"`
	// Minimum joins in the analysis window before join evaluation scores.
	JoinThreshold int `koanf:"join_threshold"`
	// Minimum messages in the analysis window before message evaluation scores.
	MessageThreshold int `koanf:"message_threshold"`
	// Total score at or above which a raid is detected.
	DetectionFloor int `koanf:"detection_floor"`
	// Score at or above which the threat level is high.
	HighScore int `koanf:"high_score"`
	// Score at or above which the threat level is critical.
	CriticalScore int `koanf:"critical_score"`
	// Minimum time between two automated mitigation dispatches per community.
	CooldownMS int `koanf:"cooldown_ms"`
	// Account age below which an account is considered suspicious.
	SuspiciousAgeMS int `koanf:"suspicious_age_ms"`
	// Account age below which an account is considered very new.
	VeryNewAgeMS int `koanf:"very_new_age_ms"`
	// Slow mode applied to text channels during medium-threat mitigation.
	SlowmodeSeconds int `koanf:"slowmode_seconds"`
	// Automated response toggles.
	LockdownEnabled   bool `koanf:"lockdown_enabled"`
	KickEnabled       bool `koanf:"kick_enabled"`
	BanEnabled        bool `koanf:"ban_enabled"`
	QuarantineEnabled bool `koanf:"quarantine_enabled"`
	SlowmodeEnabled   bool `koanf:"slowmode_enabled"`
	// Signal weights.
	Weights Weights `koanf:"weights"`
}

// Weights contains the additive score contribution of each signal.
// Automated-account and synchronized-creation signals carry roughly twice
// the weight of generic volume signals.
type Weights struct {
	Volume             int `koanf:"volume"`
	SuspiciousAccounts int `koanf:"suspicious_accounts"`
	VeryNewAccounts    int `koanf:"very_new_accounts"`
	AvgAgeDay          int `koanf:"avg_age_day"`
	AvgAgeWeek         int `koanf:"avg_age_week"`
	SingleBot          int `koanf:"single_bot"`
	BotAccounts        int `koanf:"bot_accounts"`
	NameSimilarity     int `koanf:"name_similarity"`
	NamePattern        int `koanf:"name_pattern"`
	DefaultAvatars     int `koanf:"default_avatars"`
	SequentialJoins    int `koanf:"sequential_joins"`
	CreationVariance   int `koanf:"creation_variance"`
	MessageVolume      int `koanf:"message_volume"`
	DuplicateContent   int `koanf:"duplicate_content"`
	ChannelFlood       int `koanf:"channel_flood"`
	UserBurst          int `koanf:"user_burst"`
	BotPattern         int `koanf:"bot_pattern"`
	LinkSpam           int `koanf:"link_spam"`
	SharedDomain       int `koanf:"shared_domain"`
}

// Verification contains challenge verification configuration.
type Verification struct {
	// Enable verification challenges on member join.
	Enabled bool `koanf:"enabled"`
	// Preferred challenge kind (image or math).
	Kind string `koanf:"kind"`
	// Challenge difficulty (easy, medium, hard).
	Difficulty string `koanf:"difficulty"`
	// Session lifetime in milliseconds.
	TimeoutMS int `koanf:"timeout_ms"`
	// Maximum answer attempts per session.
	MaxAttempts int `koanf:"max_attempts"`
	// Rolling window for challenge-request rate limiting in milliseconds.
	RateLimitWindowMS int `koanf:"rate_limit_window_ms"`
	// Maximum challenge requests per member within the rolling window.
	RateLimitMax int `koanf:"rate_limit_max"`
	// Maximum verification attempts per member per day.
	DailyAttemptCap int `koanf:"daily_attempt_cap"`
	// Temporary ban duration after exhausting attempts, in milliseconds.
	TempBanMS int `koanf:"temp_ban_ms"`
	// Name of the role granted on successful verification.
	VerifiedRoleName string `koanf:"verified_role_name"`
	// Name of the restricted role applied while unverified or quarantined.
	QuarantineRoleName string `koanf:"quarantine_role_name"`
}

// Retention returns the event retention window as a duration.
func (p *Protection) Retention() time.Duration {
	return time.Duration(p.RetentionWindowMS) * time.Millisecond
}

// JoinWindow returns the join analysis window as a duration.
func (p *Protection) JoinWindow() time.Duration {
	return time.Duration(p.JoinWindowMS) * time.Millisecond
}

// MessageWindow returns the message analysis window as a duration.
func (p *Protection) MessageWindow() time.Duration {
	return time.Duration(p.MessageWindowMS) * time.Millisecond
}

// Cooldown returns the mitigation cooldown as a duration.
func (p *Protection) Cooldown() time.Duration {
	return time.Duration(p.CooldownMS) * time.Millisecond
}

// SuspiciousAge returns the suspicious account age cutoff as a duration.
func (p *Protection) SuspiciousAge() time.Duration {
	return time.Duration(p.SuspiciousAgeMS) * time.Millisecond
}

// VeryNewAge returns the very-new account age cutoff as a duration.
func (p *Protection) VeryNewAge() time.Duration {
	return time.Duration(p.VeryNewAgeMS) * time.Millisecond
}

// Timeout returns the session lifetime as a duration.
func (v *Verification) Timeout() time.Duration {
	return time.Duration(v.TimeoutMS) * time.Millisecond
}

// RateLimitWindow returns the rolling rate-limit window as a duration.
func (v *Verification) RateLimitWindow() time.Duration {
	return time.Duration(v.RateLimitWindowMS) * time.Millisecond
}

// TempBan returns the post-exhaustion temporary ban duration.
func (v *Verification) TempBan() time.Duration {
	return time.Duration(v.TempBanMS) * time.Millisecond
}

// Default returns a fully populated configuration with default values.
// Values loaded from the config file override these.
func Default() *Config {
	return &Config{
		// Version is deliberately left zero so the config file must carry it.
		Debug: Debug{
			LogLevel:      "info",
			MaxLogsToKeep: 10,
		},
		PostgreSQL: PostgreSQL{
			Host:         "127.0.0.1",
			Port:         5432,
			User:         "warden",
			DBName:       "warden",
			MaxOpenConns: 8,
			MaxIdleConns: 4,
			MaxLifetime:  10,
			MaxIdleTime:  5,
		},
		Redis: Redis{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Protection: Protection{
			Enabled:           true,
			RetentionWindowMS: 300_000,
			JoinWindowMS:      20_000,
			MessageWindowMS:   10_000,
			JoinThreshold:     5,
			MessageThreshold:  4,
			DetectionFloor:    40,
			HighScore:         60,
			CriticalScore:     80,
			CooldownMS:        180_000,
			SuspiciousAgeMS:   604_800_000,
			VeryNewAgeMS:      86_400_000,
			SlowmodeSeconds:   30,
			LockdownEnabled:   true,
			KickEnabled:       true,
			BanEnabled:        true,
			QuarantineEnabled: true,
			SlowmodeEnabled:   true,
			Weights: Weights{
				Volume:             20,
				SuspiciousAccounts: 10,
				VeryNewAccounts:    25,
				AvgAgeDay:          15,
				AvgAgeWeek:         8,
				SingleBot:          15,
				BotAccounts:        40,
				NameSimilarity:     15,
				NamePattern:        10,
				DefaultAvatars:     10,
				SequentialJoins:    15,
				CreationVariance:   40,
				MessageVolume:      15,
				DuplicateContent:   25,
				ChannelFlood:       20,
				UserBurst:          20,
				BotPattern:         25,
				LinkSpam:           15,
				SharedDomain:       20,
			},
		},
		Verification: Verification{
			Enabled:            true,
			Kind:               "image",
			Difficulty:         "medium",
			TimeoutMS:          300_000,
			MaxAttempts:        3,
			RateLimitWindowMS:  60_000,
			RateLimitMax:       3,
			DailyAttemptCap:    10,
			TempBanMS:          3_600_000,
			VerifiedRoleName:   "Verified",
			QuarantineRoleName: "Quarantined",
		},
	}
}

// LoadConfig loads the configuration from the first warden.toml found in the
// search paths, applied over defaults. Returns the config along with the used
// config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/warden.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: warden.toml", ErrConfigFileNotFound)
	}

	config := Default()
	if err := k.Unmarshal("", config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check config file version
	if config.Version == 0 {
		return nil, "", fmt.Errorf("%w: warden.toml", ErrConfigVersionMissing)
	}

	if config.Version != CurrentVersion {
		return nil, "", fmt.Errorf("%w: warden.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, config.Version, CurrentVersion)
	}

	return config, usedConfigPath, nil
}
