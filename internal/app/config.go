package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/platform/envutil"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime/bus"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

const (
	defaultPort          = "8000"
	defaultDataDir       = "~/silnlp_data"
	defaultMaxConcurrent = 10
)

type Config struct {
	Environment string
	Port        string

	DataDir        string
	ProjectsDir    string
	ExperimentsDir string
	ScriptureDir   string
	VrefPath       string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	MaxConcurrent   int
	SkipStartupScan bool

	CORSOrigins  []string
	RedisAddr    string
	RedisChannel string

	MetricsEnabled  bool
	MetricsInterval time.Duration
	ShutdownTimeout time.Duration
}

// fileConfig is the SILAUTO_CONFIG toml layout. Keys left out keep their defaults.
type fileConfig struct {
	Environment     string   `toml:"environment"`
	Port            string   `toml:"port"`
	DataDir         string   `toml:"silnlp_data"`
	ProjectsDir     string   `toml:"projects_dir"`
	ExperimentsDir  string   `toml:"experiments_dir"`
	ScriptureDir    string   `toml:"scripture_dir"`
	VrefPath        string   `toml:"vref_path"`
	DatabaseDriver  string   `toml:"database_driver"`
	DatabasePath    string   `toml:"database_path"`
	DatabaseDSN     string   `toml:"database_dsn"`
	MaxConcurrent   int      `toml:"max_concurrent_file_processing"`
	SkipStartupScan bool     `toml:"skip_startup_scan"`
	CORSOrigins     []string `toml:"cors_origins"`
	RedisAddr       string   `toml:"redis_addr"`
	RedisChannel    string   `toml:"redis_channel"`
	MetricsEnabled  bool     `toml:"metrics_enabled"`
	MetricsInterval string   `toml:"metrics_interval"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Environment:     "development",
		Port:            defaultPort,
		DataDir:         defaultDataDir,
		DatabaseDriver:  db.DriverSQLite,
		MaxConcurrent:   defaultMaxConcurrent,
		RedisChannel:    bus.DefaultChannel,
		MetricsEnabled:  true,
		MetricsInterval: 30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// LoadConfig layers defaults, the optional SILAUTO_CONFIG file and the environment,
// in that order. Directory roots not set explicitly derive from SILNLP_DATA.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	if path := envutil.String("SILAUTO_CONFIG", ""); path != "" {
		if err := applyFile(&cfg, envutil.ExpandPath(path)); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg)

	cfg.DataDir = envutil.ExpandPath(cfg.DataDir)
	cfg.ProjectsDir = derivePath(cfg.ProjectsDir, cfg.DataDir, "Paratext", "projects")
	cfg.ExperimentsDir = derivePath(cfg.ExperimentsDir, cfg.DataDir, "MT", "experiments")
	cfg.ScriptureDir = derivePath(cfg.ScriptureDir, cfg.DataDir, "MT", "scripture")
	cfg.VrefPath = envutil.ExpandPath(cfg.VrefPath)
	cfg.DatabasePath = envutil.ExpandPath(cfg.DatabasePath)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	log.Info("Config loaded",
		"environment", cfg.Environment,
		"projects_dir", cfg.ProjectsDir,
		"experiments_dir", cfg.ExperimentsDir,
		"scripture_dir", cfg.ScriptureDir,
		"database_driver", cfg.DatabaseDriver,
		"max_concurrent", cfg.MaxConcurrent,
		"redis_enabled", cfg.RedisAddr != "",
	)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	setString := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("environment", &cfg.Environment, raw.Environment)
	setString("port", &cfg.Port, raw.Port)
	setString("silnlp_data", &cfg.DataDir, raw.DataDir)
	setString("projects_dir", &cfg.ProjectsDir, raw.ProjectsDir)
	setString("experiments_dir", &cfg.ExperimentsDir, raw.ExperimentsDir)
	setString("scripture_dir", &cfg.ScriptureDir, raw.ScriptureDir)
	setString("vref_path", &cfg.VrefPath, raw.VrefPath)
	setString("database_driver", &cfg.DatabaseDriver, raw.DatabaseDriver)
	setString("database_path", &cfg.DatabasePath, raw.DatabasePath)
	setString("database_dsn", &cfg.DatabaseDSN, raw.DatabaseDSN)
	setString("redis_addr", &cfg.RedisAddr, raw.RedisAddr)
	setString("redis_channel", &cfg.RedisChannel, raw.RedisChannel)

	if meta.IsDefined("max_concurrent_file_processing") {
		cfg.MaxConcurrent = raw.MaxConcurrent
	}
	if meta.IsDefined("skip_startup_scan") {
		cfg.SkipStartupScan = raw.SkipStartupScan
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("metrics_enabled") {
		cfg.MetricsEnabled = raw.MetricsEnabled
	}
	for key, pair := range map[string]struct {
		raw string
		dst *time.Duration
	}{
		"metrics_interval": {raw.MetricsInterval, &cfg.MetricsInterval},
		"shutdown_timeout": {raw.ShutdownTimeout, &cfg.ShutdownTimeout},
	} {
		if !meta.IsDefined(key) {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(pair.raw))
		if err != nil {
			return fmt.Errorf("load config %s: %s: %w", path, key, err)
		}
		*pair.dst = d
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.DataDir = envutil.String("SILNLP_DATA", cfg.DataDir)
	cfg.ProjectsDir = envutil.String("PROJECTS_DIR", cfg.ProjectsDir)
	cfg.ExperimentsDir = envutil.String("EXPERIMENTS_DIR", cfg.ExperimentsDir)
	cfg.ScriptureDir = envutil.String("SCRIPTURE_DIR", cfg.ScriptureDir)
	cfg.VrefPath = envutil.String("VREF_PATH", cfg.VrefPath)
	cfg.DatabaseDriver = envutil.String("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabasePath = envutil.String("DATABASE_PATH", cfg.DatabasePath)
	cfg.DatabaseDSN = envutil.String("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.MaxConcurrent = envutil.Int("MAX_CONCURRENT_FILE_PROCESSING", cfg.MaxConcurrent)
	cfg.SkipStartupScan = envutil.Bool("SKIP_STARTUP_SCAN", cfg.SkipStartupScan)
	cfg.CORSOrigins = envutil.List("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisChannel = envutil.String("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsInterval = envutil.Duration("METRICS_INTERVAL", cfg.MetricsInterval)
	cfg.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

func derivePath(explicit, dataDir string, elems ...string) string {
	if explicit != "" {
		return envutil.ExpandPath(explicit)
	}
	return filepath.Join(append([]string{dataDir}, elems...)...)
}

func (c Config) validate() error {
	var errs []error
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_FILE_PROCESSING must be at least 1, got %d", c.MaxConcurrent))
	}
	switch strings.ToLower(c.DatabaseDriver) {
	case db.DriverSQLite:
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DATABASE_PATH is required for the sqlite catalog"))
		}
	case db.DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("CORS_ORIGINS entry %q must start with http:// or https://", o))
		}
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	return errors.Join(errs...)
}

func (c Config) ReconcileConfig() reconcile.Config {
	return reconcile.Config{
		ProjectsDir:    c.ProjectsDir,
		ExperimentsDir: c.ExperimentsDir,
		ScriptureDir:   c.ScriptureDir,
		MaxConcurrent:  c.MaxConcurrent,
	}
}

func (c Config) DBOptions() db.Options {
	return db.Options{Driver: c.DatabaseDriver, Dir: c.DatabasePath, DSN: c.DatabaseDSN}
}

func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
