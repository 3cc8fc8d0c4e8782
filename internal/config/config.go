package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Configuration struct {
	Env        string                    `json:"env"` // "production" or "staging"
	Server     ServerConfig              `json:"server"`
	Database   DatabaseConfig            `json:"database"`
	Storage    StorageConfig             `json:"storage"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Render     RenderConfig              `json:"render"`
	Extraction ExtractionConfig          `json:"extraction"`
	Signing    SigningConfig             `json:"signing"`
	Logging    LoggingConfig             `json:"logging"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            string `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime"`
}

type StorageConfig struct {
	Driver     string        `json:"driver"` // "s3" or "memory"
	Region     string        `json:"region"`
	Bucket     string        `json:"bucket"`
	PresignTTL time.Duration `json:"presign_ttl"`
}

// ProviderConfig holds the credentials for one external e-signature provider.
// WebhookSecret is the shared HMAC key for the provider's callbacks.
type ProviderConfig struct {
	BaseURL       string `json:"base_url"`
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
	// Sessions are only created against the live provider in production;
	// elsewhere session creation is a logged no-op unless this is set.
	AllowOutsideProduction bool `json:"allow_outside_production"`
}

type RenderConfig struct {
	TemplateDir  string        `json:"template_dir"`
	FontPath     string        `json:"font_path"`
	Workers      int           `json:"workers"`
	MaxAttempts  int           `json:"max_attempts"`
	PollInterval time.Duration `json:"poll_interval"`
}

type ExtractionConfig struct {
	BaseURL       string        `json:"base_url"`
	APIKey        string        `json:"api_key"`
	Timeout       time.Duration `json:"timeout"`
	RatePerSecond float64       `json:"rate_per_second"`
}

type SigningConfig struct {
	TokenSecret string        `json:"token_secret"`
	TokenTTL    time.Duration `json:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

var (
	config     *Configuration
	configOnce sync.Once
	configLock sync.RWMutex
)

func LoadConfig(filePath string) (*Configuration, error) {
	var err error

	configOnce.Do(func() {
		var file *os.File
		file, err = os.Open(filePath)
		if err != nil {
			err = fmt.Errorf("failed to open config file: %w", err)
			return
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		config = &Configuration{}
		err = decoder.Decode(config)
		if err != nil {
			err = fmt.Errorf("failed to decode config file: %w", err)
			return
		}

		applyDefaults(config)
	})

	return config, err
}

func applyDefaults(c *Configuration) {
	if c.Env == "" {
		c.Env = "staging"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "s3"
	}
	if c.Storage.PresignTTL == 0 {
		c.Storage.PresignTTL = 5 * time.Minute
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = 2
	}
	if c.Render.MaxAttempts == 0 {
		c.Render.MaxAttempts = 5
	}
	if c.Render.PollInterval == 0 {
		c.Render.PollInterval = time.Second
	}
	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 15 * time.Second
	}
	if c.Extraction.RatePerSecond == 0 {
		c.Extraction.RatePerSecond = 2
	}
	if c.Signing.TokenTTL == 0 {
		c.Signing.TokenTTL = 72 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func (c *Configuration) IsProduction() bool {
	return c.Env == "production"
}

func InitializeDefaultConfig() *Configuration {
	configLock.Lock()
	defer configLock.Unlock()

	config = &Configuration{
		Env: "staging",
		Server: ServerConfig{
			Port:         "8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Password:        "password",
			Name:            "skyhelp",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 300,
		},
		Storage: StorageConfig{
			Driver:     "s3",
			Region:     "eu-central-1",
			Bucket:     "skyhelp-claim-documents",
			PresignTTL: 5 * time.Minute,
		},
		Providers: map[string]ProviderConfig{
			"signwell": {
				BaseURL: "https://www.signwell.com/api/v1",
			},
			"docuseal": {
				BaseURL: "https://api.docuseal.com",
			},
		},
		Render: RenderConfig{
			TemplateDir:  "assets/templates",
			FontPath:     "assets/fonts/LiberationSans-Regular.ttf",
			Workers:      2,
			MaxAttempts:  5,
			PollInterval: time.Second,
		},
		Extraction: ExtractionConfig{
			BaseURL:       "https://api.documentai.example.com",
			Timeout:       15 * time.Second,
			RatePerSecond: 2,
		},
		Signing: SigningConfig{
			TokenSecret: "skyhelp-signing-token-secret",
			TokenTTL:    72 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	return config
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	logger.Info("Application configuration",
		zap.String("env", config.Env),
		zap.String("port", config.Server.Port),
		zap.Duration("read_timeout", config.Server.ReadTimeout),
		zap.Duration("write_timeout", config.Server.WriteTimeout),
		zap.String("database_host", config.Database.Host),
		zap.String("database_name", config.Database.Name),
		zap.String("storage_driver", config.Storage.Driver),
		zap.String("storage_bucket", config.Storage.Bucket),
		zap.Int("render_workers", config.Render.Workers),
		zap.Int("render_max_attempts", config.Render.MaxAttempts),
	)
}
