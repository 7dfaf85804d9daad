package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Config holds everything the pipeline needs. Values come from defaults,
// then the config file, then environment overrides.
type Config struct {
	APIKey             string        `json:"comicvine_api_key" validate:"omitempty,min=8"`
	CacheDatabasePath  string        `json:"cache_database_path"`
	RequestsPerHour    int           `default:"199"  json:"requests_per_hour"    validate:"min=1"`
	MinRequestInterval time.Duration `default:"4s"   json:"min_request_interval" validate:"min=0"`
	RequestTimeout     time.Duration `default:"30s"  json:"request_timeout"      validate:"min=1s"`
	MaxRetries         int           `default:"3"    json:"max_retries"          validate:"min=0"`
	FolderWorkers      int           `default:"2"    json:"folder_workers"       validate:"min=1"`
	IssuePadWidth      int           `default:"3"    json:"issue_pad_width"      validate:"min=1,max=6"`

	DatabaseConnectRetryCount int           `json:"-"`
	DatabaseConnectRetryDelay time.Duration `json:"-"`
	DatabaseBusyTimeout       time.Duration `json:"-"`
	DatabaseDebug             bool          `json:"-"`

	configDir string
}

const (
	configDirENV = "RUNARR_CONFIG_DIRECTORY"
	apiKeyENV    = "COMICVINE_API_KEY"
)

var validate = validator.New()

func configDirectory() (string, error) {
	if dir := os.Getenv(configDirENV); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return filepath.Join(home, ".runarr"), nil
}

func New() (*Config, error) {
	dir, err := configDirectory()
	if err != nil {
		return nil, err
	}
	return load(dir)
}

func load(dir string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	cfg.configDir = dir
	cfg.CacheDatabasePath = filepath.Join(dir, "cache.db")
	cfg.DatabaseConnectRetryCount = 5
	cfg.DatabaseConnectRetryDelay = 2 * time.Second
	cfg.DatabaseBusyTimeout = 5 * time.Second

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "config file is corrupted")
		}
	}

	if key := os.Getenv(apiKeyENV); key != "" {
		cfg.APIKey = key
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, errors.WithStack(errcodes.ValidationError(err.Error()))
	}

	return cfg, nil
}

// ConfigDir returns the directory holding config.json and the cache database.
func (cfg *Config) ConfigDir() string {
	return cfg.configDir
}

// SaveAPIKey persists the API key to the config file for future runs.
func (cfg *Config) SaveAPIKey(key string) error {
	cfg.APIKey = key
	return cfg.save()
}

func (cfg *Config) save() error {
	if err := os.MkdirAll(cfg.configDir, 0700); err != nil {
		return errors.WithStack(err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.WriteFile(filepath.Join(cfg.configDir, "config.json"), data, 0600)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// MarshalJSON/UnmarshalJSON wrap durations so the config file stays readable
// ("4s" rather than nanosecond integers).
func (cfg *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	aux := &struct {
		MinRequestInterval string `json:"min_request_interval"`
		RequestTimeout     string `json:"request_timeout"`
		*alias
	}{alias: (*alias)(cfg)}

	if err := json.Unmarshal(data, aux); err != nil {
		return errors.WithStack(err)
	}

	if aux.MinRequestInterval != "" {
		d, err := time.ParseDuration(aux.MinRequestInterval)
		if err != nil {
			return errors.WithStack(err)
		}
		cfg.MinRequestInterval = d
	}
	if aux.RequestTimeout != "" {
		d, err := time.ParseDuration(aux.RequestTimeout)
		if err != nil {
			return errors.WithStack(err)
		}
		cfg.RequestTimeout = d
	}

	return nil
}

func (cfg *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	return json.Marshal(&struct {
		MinRequestInterval string `json:"min_request_interval"`
		RequestTimeout     string `json:"request_timeout"`
		*alias
	}{
		MinRequestInterval: cfg.MinRequestInterval.String(),
		RequestTimeout:     cfg.RequestTimeout.String(),
		alias:              (*alias)(cfg),
	})
}
