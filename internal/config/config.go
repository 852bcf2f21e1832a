package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/nasiyabot/backend/internal/logger"
	"github.com/spf13/viper"
)

type BotConfig struct {
	Token         string        `validate:"required"`
	APIURL        string        `validate:"required,url"`
	Mode          string        `validate:"oneof=polling webhook"`
	PollTimeout   time.Duration `validate:"gte=0"`
	WebhookSecret string        `validate:"required_if=Mode webhook"`
	WebhookURL    string        `validate:"required_if=Mode webhook,omitempty,url"`
}

type AdminConfig struct {
	IDs       []int64
	Usernames []string
	Contact   string
}

type ScheduleConfig struct {
	DigestAt       string        `validate:"hhmm"`
	SubscriptionAt string        `validate:"hhmm"`
	BackupAt       string        `validate:"hhmm"`
	Interval       time.Duration `validate:"gt=0"`
	Timezone       string
}

type SessionConfig struct {
	Backend string `validate:"oneof=memory redis"`
	TTL     time.Duration
}

type NotifyConfig struct {
	ReminderDelay  time.Duration
	BroadcastDelay time.Duration
}

// Config is the process configuration, immutable after Load.
type Config struct {
	Bot         BotConfig
	Admin       AdminConfig
	Schedule    ScheduleConfig
	Session     SessionConfig
	Notify      NotifyConfig
	Log         logger.Config
	HTTPAddr    string
	PhoneRegion string         `validate:"len=2"`
	Location    *time.Location `validate:"-"`
	FileUsed    string
}

var bindings = map[string]string{
	"bot.token":          "BOT_TOKEN",
	"bot.api_url":        "BOT_API_URL",
	"bot.mode":           "BOT_MODE",
	"bot.poll_timeout":   "BOT_POLL_TIMEOUT",
	"bot.webhook_secret": "WEBHOOK_SECRET",
	"bot.webhook_url":    "WEBHOOK_URL",

	"database.driver":   "DB_DRIVER",
	"database.path":     "DB_PATH",
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"session.backend": "SESSION_BACKEND",
	"session.ttl":     "SESSION_TTL",

	"schedule.digest_at":       "DIGEST_TIME",
	"schedule.subscription_at": "SUBSCRIPTION_TIME",
	"schedule.backup_at":       "BACKUP_TIME",
	"schedule.interval":        "SCHEDULER_INTERVAL",
	"schedule.timezone":        "TIMEZONE",

	"admin.ids":       "ADMIN_IDS",
	"admin.usernames": "ADMIN_USERNAMES",
	"admin.contact":   "ADMIN_CONTACT",

	"notify.reminder_delay":  "REMINDER_DELAY",
	"notify.broadcast_delay": "BROADCAST_DELAY",

	"phone.region": "PHONE_REGION",
	"http.addr":    "HTTP_ADDR",
	"log.level":    "LOG_LEVEL",
	"log.format":   "LOG_FORMAT",
	"log.output":   "LOG_OUTPUT",
}

func setDefaults() {
	viper.SetDefault("bot.api_url", "https://api.telegram.org")
	viper.SetDefault("bot.mode", "polling")
	viper.SetDefault("bot.poll_timeout", 30*time.Second)
	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.ttl", 24*time.Hour)
	viper.SetDefault("schedule.digest_at", "20:00")
	viper.SetDefault("schedule.subscription_at", "09:00")
	viper.SetDefault("schedule.backup_at", "23:00")
	viper.SetDefault("schedule.interval", 30*time.Second)
	viper.SetDefault("schedule.timezone", "Asia/Tashkent")
	viper.SetDefault("notify.reminder_delay", 500*time.Millisecond)
	viper.SetDefault("notify.broadcast_delay", 50*time.Millisecond)
	viper.SetDefault("phone.region", "UZ")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
}

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Load reads .env (if present) and the environment into a validated Config.
func Load(envFile string) (*Config, error) {
	viper.Reset()
	viper.SetConfigFile(envFile)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}
	setDefaults()

	cfg := &Config{}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading %s: %w", envFile, err)
		}
	} else {
		cfg.FileUsed = viper.ConfigFileUsed()
		// .env keys arrive as lowercased env names; the real environment still wins.
		for key, env := range bindings {
			if v := viper.GetString(strings.ToLower(env)); v != "" && os.Getenv(env) == "" {
				viper.Set(key, v)
			}
		}
	}

	ids, err := parseIDs(viper.GetString("admin.ids"))
	if err != nil {
		return nil, err
	}

	cfg.Bot = BotConfig{
		Token:         viper.GetString("bot.token"),
		APIURL:        viper.GetString("bot.api_url"),
		Mode:          viper.GetString("bot.mode"),
		PollTimeout:   viper.GetDuration("bot.poll_timeout"),
		WebhookSecret: viper.GetString("bot.webhook_secret"),
		WebhookURL:    viper.GetString("bot.webhook_url"),
	}
	cfg.Admin = AdminConfig{
		IDs:       ids,
		Usernames: parseList(viper.GetString("admin.usernames")),
		Contact:   viper.GetString("admin.contact"),
	}
	cfg.Schedule = ScheduleConfig{
		DigestAt:       viper.GetString("schedule.digest_at"),
		SubscriptionAt: viper.GetString("schedule.subscription_at"),
		BackupAt:       viper.GetString("schedule.backup_at"),
		Interval:       viper.GetDuration("schedule.interval"),
		Timezone:       viper.GetString("schedule.timezone"),
	}
	cfg.Session = SessionConfig{
		Backend: viper.GetString("session.backend"),
		TTL:     viper.GetDuration("session.ttl"),
	}
	cfg.Notify = NotifyConfig{
		ReminderDelay:  viper.GetDuration("notify.reminder_delay"),
		BroadcastDelay: viper.GetDuration("notify.broadcast_delay"),
	}
	cfg.Log = logger.Config{
		Level:   viper.GetString("log.level"),
		Format:  viper.GetString("log.format"),
		Output:  viper.GetString("log.output"),
		Service: "nasiya-bot",
	}
	cfg.HTTPAddr = viper.GetString("http.addr")
	cfg.PhoneRegion = strings.ToUpper(viper.GetString("phone.region"))

	cfg.Location, err = time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Schedule.Timezone, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags on cfg.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "@")); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range parseList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
