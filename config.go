package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Config is the runtime configuration of the bot. Everything except the flags
// comes from the environment, optionally seeded from a .env file.
type Config struct {
	BotToken    string
	TargetGuild string

	APIBaseURL       string // backend root, every API path is appended to it
	CountryInfoURL   string // third-party geolocation returning {countryCode}
	ClientIPInfoURL  string // third-party lookup returning {ip}
	ChallengeURL     string // bot-verification token service
	ChallengeSiteKey string
	SiteURL          string // customer site, used for subscription and start-watching links
	GuidesURL        string // device guide pages live under this URL
	CookieDomain     string
	RedisURL         string
	Locale           string
	SessionTTL       time.Duration
	LoggedInDays     int
	BackendTimeout   time.Duration
	LogLevel         log.Level
	OpsAddr          string
	RemoveCommands   bool
	EnvFile          string
}

// Flags holds the values parsed from the command line.
type Flags struct {
	EnvFile        string
	LogLevel       string
	OpsAddr        string
	RemoveCommands bool
}

// AddFlags binds the command line options onto fs.
func (f *Flags) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.EnvFile, "env-file", ".env", "Path of the .env file to load. Missing files are ignored.")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error). Overrides LOG_LEVEL.")
	fs.StringVar(&f.OpsAddr, "ops-addr", "", "Listen address of the health and metrics server. Overrides OPS_ADDR.")
	fs.BoolVar(&f.RemoveCommands, "remove-commands", true, "Remove the registered slash commands on shutdown.")
}

// LoadConfig reads the .env file named by the flags and builds the Config from
// the environment.
func LoadConfig(flags Flags) (*Config, error) {
	if flags.EnvFile != "" {
		if err := godotenv.Load(flags.EnvFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading %s: %w", flags.EnvFile, err)
			}
			log.WithField("file", flags.EnvFile).Debug("No env file, using the process environment")
		}
	}

	return configFromEnv(os.Getenv, flags)
}

func configFromEnv(getenv func(string) string, flags Flags) (*Config, error) {
	cfg := &Config{
		BotToken:         getenv("BOT_TOKEN"),
		TargetGuild:      getenv("BOT_TARGET_GUILD"),
		APIBaseURL:       strings.TrimRight(getenv("API_BASE_URL"), "/"),
		CountryInfoURL:   getenv("COUNTRY_INFO_LINK"),
		ClientIPInfoURL:  getenv("GET_CLIENT_IP_INFO_LINK"),
		ChallengeURL:     getenv("CHALLENGE_URL"),
		ChallengeSiteKey: getenv("CHALLENGE_SITE_KEY"),
		SiteURL:          strings.TrimRight(getenv("SITE_URL"), "/"),
		GuidesURL:        strings.TrimRight(getenv("GUIDES_URL"), "/"),
		CookieDomain:     getenv("COOKIE_DOMAIN"),
		RedisURL:         withDefault(getenv("REDIS_URL"), "redis://localhost:6379/0"),
		Locale:           withDefault(getenv("LOCALE"), "en-US"),
		OpsAddr:          withDefault(flags.OpsAddr, withDefault(getenv("OPS_ADDR"), ":9090")),
		RemoveCommands:   flags.RemoveCommands,
		EnvFile:          flags.EnvFile,
		LoggedInDays:     defaultLoggedDays,
	}

	var err error
	if cfg.SessionTTL, err = parseDuration(getenv("SESSION_TTL"), time.Hour); err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if cfg.BackendTimeout, err = parseDuration(getenv("BACKEND_TIMEOUT"), 15*time.Second); err != nil {
		return nil, fmt.Errorf("BACKEND_TIMEOUT: %w", err)
	}
	if days := getenv("LOGGED_IN_DAYS"); days != "" {
		if cfg.LoggedInDays, err = strconv.Atoi(days); err != nil || cfg.LoggedInDays <= 0 {
			return nil, fmt.Errorf("LOGGED_IN_DAYS must be a positive number of days: %q", days)
		}
	}
	if cfg.LogLevel, err = log.ParseLevel(withDefault(flags.LogLevel, withDefault(getenv("LOG_LEVEL"), "info"))); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed required setting.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	for name, value := range map[string]string{
		"API_BASE_URL": c.APIBaseURL,
		"SITE_URL":     c.SiteURL,
		"GUIDES_URL":   c.GuidesURL,
	} {
		if value == "" {
			continue
		}
		if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, value)
		}
	}
	return nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
