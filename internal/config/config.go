package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hansimuller/taekwon/internal/engine"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Tournament TournamentConfig `yaml:"tournament"`
	Match      MatchConfig      `yaml:"match"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	TickInterval time.Duration `yaml:"tick_interval"`
	// StoreTimeout bounds every state-defining store call made by the tournament loop.
	StoreTimeout time.Duration `yaml:"store_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	OutboxSize   int           `yaml:"outbox_size"`
}

// StoreConfig selects the document store: sqlite, postgres or memory.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SessionConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
	Cookie   string        `yaml:"cookie"`
	Secure   bool          `yaml:"secure"`
}

type TournamentConfig struct {
	Rings        int    `yaml:"rings"`
	SlotsPerRing int    `yaml:"slots_per_ring"`
	MasterSecret string `yaml:"master_secret"`
	// Fresh ignores any tournament already in the store.
	Fresh bool `yaml:"fresh"`
}

type MatchConfig struct {
	RoundTime   time.Duration `yaml:"round_time"`
	BreakTime   time.Duration `yaml:"break_time"`
	InjuryTime  time.Duration `yaml:"injury_time"`
	Rounds      int           `yaml:"rounds"`
	MaxScore    int           `yaml:"max_score"`
	GoldenPoint bool          `yaml:"golden_point"`
}

func (m MatchConfig) Engine() engine.Config {
	return engine.Config{
		RoundTime:   m.RoundTime,
		BreakTime:   m.BreakTime,
		InjuryTime:  m.InjuryTime,
		Rounds:      m.Rounds,
		MaxScore:    m.MaxScore,
		GoldenPoint: m.GoldenPoint,
	}
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	mc := engine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			TickInterval: 100 * time.Millisecond,
			StoreTimeout: 3 * time.Second,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  60 * time.Second,
			OutboxSize:   64,
		},
		Store:   StoreConfig{Driver: "sqlite", DSN: "taekwon.db?_journal_mode=WAL"},
		Session: SessionConfig{Lifetime: 24 * time.Hour, Cookie: "taekwon_session"},
		Tournament: TournamentConfig{
			Rings:        4,
			SlotsPerRing: 4,
		},
		Match: MatchConfig{
			RoundTime:   mc.RoundTime,
			BreakTime:   mc.BreakTime,
			InjuryTime:  mc.InjuryTime,
			Rounds:      mc.Rounds,
			MaxScore:    mc.MaxScore,
			GoldenPoint: mc.GoldenPoint,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads filename over the defaults, then applies environment overrides.
// A missing file is not an error: the environment alone configures the server.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) || filename == "":
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MASTER_PWD"); v != "" {
		cfg.Tournament.MasterSecret = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = v == "true"
	}
	if v := os.Getenv("SESSION_SECURE"); v != "" {
		cfg.Session.Secure = v == "true"
	}
	if v := os.Getenv("FRESH_TOURNAMENT"); v != "" {
		cfg.Tournament.Fresh = v == "true"
	}
	if v := os.Getenv("GOLDEN_POINT"); v != "" {
		cfg.Match.GoldenPoint = v == "true"
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"RINGS_COUNT", &cfg.Tournament.Rings},
		{"CJS_PER_RING", &cfg.Tournament.SlotsPerRing},
		{"MAX_SCORE", &cfg.Match.MaxScore},
		{"ROUNDS", &cfg.Match.Rounds},
	}
	for _, it := range ints {
		v := os.Getenv(it.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer: %v", ErrInvalid, it.env, err)
		}
		*it.dst = n
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"TICK_INTERVAL", &cfg.Server.TickInterval},
		{"STORE_TIMEOUT", &cfg.Server.StoreTimeout},
		{"ROUND_TIME", &cfg.Match.RoundTime},
		{"BREAK_TIME", &cfg.Match.BreakTime},
		{"INJURY_TIME", &cfg.Match.InjuryTime},
		{"SESSION_LIFETIME", &cfg.Session.Lifetime},
	}
	for _, it := range durations {
		v := os.Getenv(it.env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a duration: %v", ErrInvalid, it.env, err)
		}
		*it.dst = d
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Tournament.MasterSecret == "":
		return fmt.Errorf("%w: master secret (MASTER_PWD) is required", ErrInvalid)
	case c.Tournament.Rings < 1:
		return fmt.Errorf("%w: rings must be a positive integer", ErrInvalid)
	case c.Tournament.SlotsPerRing < 1:
		return fmt.Errorf("%w: slots per ring (CJS_PER_RING) must be a positive integer", ErrInvalid)
	case c.Server.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalid)
	case c.Server.StoreTimeout <= 0:
		return fmt.Errorf("%w: store timeout must be positive", ErrInvalid)
	case c.Server.OutboxSize < 1:
		return fmt.Errorf("%w: outbox size must be positive", ErrInvalid)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("%w: store dsn is required for %s", ErrInvalid, c.Store.Driver)
	}
	if err := c.Match.Engine().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
