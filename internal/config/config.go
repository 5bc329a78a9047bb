package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FeedSummarizer/internal/domain"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "FEED_SUMMARIZER_CONFIG"
	apiKeyEnv       = "OPENAI_API_KEY"
	modelEnv        = "OPENAI_MODEL"
	feedURLsEnv     = "FEED_URLS"
	databasePathEnv = "DATABASE_PATH"
	bindAddrEnv     = "BIND_ADDR"
	logLevelEnv     = "LOG_LEVEL"
	kafkaBrokersEnv = "KAFKA_BROKERS"
	elasticAddrEnv  = "ELASTICSEARCH_ADDR"
	cronTokenEnv    = "CRON_TOKEN"
	scheduleTimeEnv = "SCHEDULE_TIME"
	scheduleZoneEnv = "SCHEDULE_TIMEZONE"
	telegramBotEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Settings SettingsConfig `yaml:"settings"`
	Fetch    FetchConfig    `yaml:"fetch"`
	LLM      LLMConfig      `yaml:"llm"`
	Runs     RunsConfig     `yaml:"runs"`
	Queue    QueueConfig    `yaml:"queue"`
	Publish  PublishConfig  `yaml:"publish"`
	Cron     CronConfig     `yaml:"cron"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	BindAddr        string        `yaml:"bindAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig points at the sqlite database file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SettingsConfig is the operator-editable part of the configuration.
type SettingsConfig struct {
	FeedURLs      []string       `yaml:"feedUrls"`
	ContextPrompt string         `yaml:"contextPrompt"`
	TitlePrompt   string         `yaml:"titlePrompt"`
	APIKey        string         `yaml:"apiKey"`
	DraftMode     bool           `yaml:"draftMode"`
	ScheduleTime  string         `yaml:"scheduleTime"`
	Timezone      string         `yaml:"timezone"`
	Signature     string         `yaml:"signature"`
	Author        string         `yaml:"author"`
	location      *time.Location `yaml:"-"`
}

// Location resolves the schedule timezone string to a time.Location.
func (s SettingsConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// Snapshot converts the section into the domain view handed to runs.
func (s SettingsConfig) Snapshot() domain.Settings {
	return domain.Settings{
		FeedURLs:      append([]string(nil), s.FeedURLs...),
		ContextPrompt: s.ContextPrompt,
		TitlePrompt:   s.TitlePrompt,
		APIKey:        s.APIKey,
		DraftMode:     s.DraftMode,
		ScheduleTime:  s.ScheduleTime,
		Location:      s.Location(),
		Signature:     s.Signature,
		Author:        s.Author,
	}
}

// FetchConfig bounds how much text a run collects.
type FetchConfig struct {
	MaxChars         int           `yaml:"maxChars"`
	MaxItemsPerFeed  int           `yaml:"maxItemsPerFeed"`
	MaxArticlesTotal int           `yaml:"maxArticlesTotal"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"userAgent"`
}

// Budget returns the fetch limits as a domain value.
func (f FetchConfig) Budget() domain.FetchBudget {
	return domain.FetchBudget{
		MaxChars:         f.MaxChars,
		MaxItemsPerFeed:  f.MaxItemsPerFeed,
		MaxArticlesTotal: f.MaxArticlesTotal,
	}
}

// LLMConfig defines how to contact the chat completion API.
type LLMConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RunsConfig holds retention for ephemeral and durable run state.
type RunsConfig struct {
	StatusTTL time.Duration `yaml:"statusTtl"`
	LockTTL   time.Duration `yaml:"lockTtl"`
	DedupTTL  time.Duration `yaml:"dedupTtl"`
}

// QueueConfig selects the background dispatch substrate.
type QueueConfig struct {
	Driver  string   `yaml:"driver"`
	Buffer  int      `yaml:"buffer"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

// PublishConfig selects where posts are stored and, optionally, where they are announced.
type PublishConfig struct {
	Sink           string `yaml:"sink"`
	ElasticAddr    string `yaml:"elasticAddr"`
	ElasticIndex   string `yaml:"elasticIndex"`
	TelegramToken  string `yaml:"telegramToken"`
	TelegramChatID string `yaml:"telegramChatId"`
}

// CronConfig controls the external cron trigger token.
type CronConfig struct {
	Token       string        `yaml:"token"`
	RotateEvery time.Duration `yaml:"rotateEvery"`
}

// Load reads .env and the YAML configuration (if present) and applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return LoadFile(os.Getenv(configPathEnv))
}

// Path returns the configured YAML path, empty when none is set.
func Path() string {
	return os.Getenv(configPathEnv)
}

// LoadFile is Load without the .env step, reading YAML from path when non-empty.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Settings.FeedURLs = cleanURLs(cfg.Settings.FeedURLs)

	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no run could work with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Settings.FeedURLs) > domain.MaxFeedSources {
		errs = append(errs, fmt.Errorf("at most %d feed URLs are allowed, got %d", domain.MaxFeedSources, len(c.Settings.FeedURLs)))
	}
	if _, _, err := domain.ParseClock(c.Settings.ScheduleTime); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.MaxChars <= 0 || c.Fetch.MaxItemsPerFeed <= 0 || c.Fetch.MaxArticlesTotal <= 0 {
		errs = append(errs, errors.New("fetch budgets must be positive"))
	}
	if c.Runs.StatusTTL <= 0 || c.Runs.LockTTL <= 0 || c.Runs.DedupTTL <= 0 {
		errs = append(errs, errors.New("run TTLs must be positive"))
	}
	switch c.Queue.Driver {
	case "local", "none":
	case "kafka":
		if len(c.Queue.Brokers) == 0 || c.Queue.Topic == "" {
			errs = append(errs, errors.New("kafka queue needs brokers and topic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue driver %q", c.Queue.Driver))
	}
	switch c.Publish.Sink {
	case "sqlite":
	case "elasticsearch":
		if c.Publish.ElasticAddr == "" {
			errs = append(errs, errors.New("elasticsearch sink needs an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown publish sink %q", c.Publish.Sink))
	}
	if (c.Publish.TelegramToken == "") != (c.Publish.TelegramChatID == "") {
		errs = append(errs, errors.New("telegram announcements need both bot token and chat id"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfig, errors.Join(errs...))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Settings.APIKey = v
	}
	if v := os.Getenv(modelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(feedURLsEnv); v != "" {
		c.Settings.FeedURLs = splitList(v)
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(bindAddrEnv); v != "" {
		c.Server.BindAddr = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Queue.Brokers = splitList(v)
		c.Queue.Driver = "kafka"
	}
	if v := os.Getenv(elasticAddrEnv); v != "" {
		c.Publish.ElasticAddr = v
		c.Publish.Sink = "elasticsearch"
	}
	if v := os.Getenv(cronTokenEnv); v != "" {
		c.Cron.Token = v
	}
	if v := os.Getenv(scheduleTimeEnv); v != "" {
		c.Settings.ScheduleTime = v
	}
	if v := os.Getenv(scheduleZoneEnv); v != "" {
		c.Settings.Timezone = v
	}
	if v := os.Getenv(telegramBotEnv); v != "" {
		c.Publish.TelegramToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Publish.TelegramChatID = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Settings.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %q: %w", domain.ErrConfig, tz, err)
	}
	c.Settings.Timezone = tz
	c.Settings.location = loc
	return nil
}

// splitList accepts newline or comma separated values.
func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ',' || r == '\r'
	})
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			BindAddr:        ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Path: "feedsummarizer.db"},
		Settings: SettingsConfig{
			ContextPrompt: "Summarize the following articles into a single cohesive blog post.",
			TitlePrompt:   "Write a short, descriptive title for the post.",
			ScheduleTime:  "08:00",
			Timezone:      defaultTimezone,
			Author:        "system",
		},
		Fetch: FetchConfig{
			MaxChars:         25000,
			MaxItemsPerFeed:  10,
			MaxArticlesTotal: 3,
			Timeout:          20 * time.Second,
			UserAgent:        "FeedSummarizer/1.0",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   1000,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Runs: RunsConfig{
			StatusTTL: time.Hour,
			LockTTL:   5 * time.Minute,
			DedupTTL:  30 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			Driver: "local",
			Buffer: 4,
			Topic:  "feed-summarizer-runs",
			Group:  "feed-summarizer",
		},
		Publish: PublishConfig{
			Sink:         "sqlite",
			ElasticIndex: "posts",
		},
		Cron: CronConfig{RotateEvery: 7 * 24 * time.Hour},
	}
}
