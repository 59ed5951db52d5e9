// Package config assembles server configuration from defaults, an
// optional .env-style file, process environment variables, and command
// line flags, in that increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hashicorp/go-envparse"
	"github.com/spf13/pflag"
)

// Config is the fully-resolved set of knobs the process needs to start.
type Config struct {
	Port          uint16
	MaxSessions   int
	NumWorkers    int
	TickRateHz    int
	MetricsAddr   string
	EnvFile       string
}

// TickDuration is the nominal interval between scheduler ticks.
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

const (
	defaultPort        = 9180
	defaultMaxSessions = 1000
	defaultTickRateHz  = 30
)

// envPrefix namespaces every environment variable this process reads.
const envPrefix = "PONGD_"

// Load parses args (normally os.Args[1:]) against flag defaults, applies
// any matching PONGD_* environment variables over those defaults, then
// re-applies flags so an explicit flag always wins over the environment.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("pongd", pflag.ContinueOnError)

	cfg := Config{
		Port:        defaultPort,
		MaxSessions: defaultMaxSessions,
		NumWorkers:  runtime.NumCPU(),
		TickRateHz:  defaultTickRateHz,
		MetricsAddr: ":9181",
	}

	fs.Uint16Var(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "maximum concurrently live sessions")
	fs.IntVar(&cfg.NumWorkers, "workers", cfg.NumWorkers, "fixed tick worker pool size")
	fs.IntVar(&cfg.TickRateHz, "tick-rate", cfg.TickRateHz, "server tick rate in Hz")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on")
	fs.StringVar(&cfg.EnvFile, "env-file", "", "optional .env-style file to load overrides from")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	env, err := loadEnv(cfg.EnvFile)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg, env)

	// Flags take precedence over the environment: re-parse onto the
	// env-adjusted config so any flag the caller actually set overwrites
	// it again.
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.TickRateHz < 1 {
		return Config{}, fmt.Errorf("config: tick-rate must be positive, got %d", cfg.TickRateHz)
	}
	return cfg, nil
}

func loadEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening env file: %w", err)
	}
	defer f.Close()

	entries, err := envparse.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("config: parsing env file: %w", err)
	}
	return entries, nil
}

func applyEnv(cfg *Config, fromFile map[string]string) {
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return v, true
		}
		if fromFile != nil {
			if v, ok := fromFile[envPrefix+key]; ok {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := lookup("PORT"); ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Port = uint16(n)
		}
	}
	if v, ok := lookup("MAX_SESSIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSessions = n
		}
	}
	if v, ok := lookup("WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumWorkers = n
		}
	}
	if v, ok := lookup("TICK_RATE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TickRateHz = n
		}
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
}
