package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // "mysql" or "postgres"
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	LLM struct {
		APIKey      string  `yaml:"apiKey"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"maxTokens"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"llm"`

	Analysis struct {
		// SingleCallThreshold is the text length (chars) below which the
		// whole document fits one completion call.
		SingleCallThreshold int `yaml:"singleCallThreshold"`
		// LotExcerptCap bounds the per-lot excerpt handed to one call.
		LotExcerptCap int `yaml:"lotExcerptCap"`
		// GeneralWindow bounds the text sent with the general-info call.
		GeneralWindow int `yaml:"generalWindow"`
		// TokenBudgetPerMinute is the provider's shared rate budget.
		TokenBudgetPerMinute int `yaml:"tokenBudgetPerMinute"`
		// CooldownSeconds is the pause after a budget-heavy call.
		CooldownSeconds int `yaml:"cooldownSeconds"`
		// FailurePauseSeconds is the recovery pause after a failed call.
		FailurePauseSeconds int `yaml:"failurePauseSeconds"`
		// RateLimitPauseSeconds is the longer recovery pause after 429s.
		RateLimitPauseSeconds int `yaml:"rateLimitPauseSeconds"`
		// GeneralRetries bounds attempts for the general-info call.
		GeneralRetries int `yaml:"generalRetries"`
	} `yaml:"analysis"`

	Worker struct {
		Queue     string `yaml:"queue"`
		StagedDir string `yaml:"stagedDir"`
	} `yaml:"worker"`

	Auth struct {
		// APIKeys maps tenant id to its API key.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`
}

// Load reads config.yaml from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	a := &c.Analysis
	if a.SingleCallThreshold <= 0 {
		a.SingleCallThreshold = 150_000
	}
	if a.LotExcerptCap <= 0 {
		a.LotExcerptCap = 80_000
	}
	if a.GeneralWindow <= 0 {
		a.GeneralWindow = 200_000
	}
	if a.TokenBudgetPerMinute <= 0 {
		a.TokenBudgetPerMinute = 30_000
	}
	if a.CooldownSeconds <= 0 {
		a.CooldownSeconds = 65
	}
	if a.FailurePauseSeconds <= 0 {
		a.FailurePauseSeconds = 10
	}
	if a.RateLimitPauseSeconds <= 0 {
		a.RateLimitPauseSeconds = 60
	}
	if a.GeneralRetries <= 0 {
		a.GeneralRetries = 3
	}
	if c.Worker.Queue == "" {
		c.Worker.Queue = "bidscope:analysis"
	}
	if c.Worker.StagedDir == "" {
		c.Worker.StagedDir = os.TempDir()
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
}

// Cooldown returns the inter-call cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Analysis.CooldownSeconds) * time.Second
}

// FailurePause returns the post-failure recovery pause.
func (c *Config) FailurePause() time.Duration {
	return time.Duration(c.Analysis.FailurePauseSeconds) * time.Second
}

// RateLimitPause returns the post-429 recovery pause.
func (c *Config) RateLimitPause() time.Duration {
	return time.Duration(c.Analysis.RateLimitPauseSeconds) * time.Second
}

// MySQLDSN builds a go-sql-driver connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
