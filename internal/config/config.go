package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Redis struct {
		URL          string `yaml:"url"`
		ReadTimeout  int    `yaml:"read_timeout"`
		WriteTimeout int    `yaml:"write_timeout"`
		DialTimeout  int    `yaml:"dial_timeout"`
	} `yaml:"redis"`

	LLM struct {
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Payment struct {
		GatewayURL string `yaml:"gateway_url"`
		Secret     string `yaml:"secret"`
	} `yaml:"payment"`

	Notify struct {
		WeatherURL         string `yaml:"weather_url"`
		SafetyURL          string `yaml:"safety_url"`
		RecommendationsURL string `yaml:"recommendations_url"`
		QueueSize          int    `yaml:"queue_size"`
		Workers            int    `yaml:"workers"`
	} `yaml:"notify"`

	RateLimit struct {
		// Mode selects the burst-limiter strategy: "bucket" (in-memory),
		// "redis", or "off" (always allow, for local development).
		Mode             string `yaml:"mode"`
		BurstCapacity    int    `yaml:"burst_capacity"`
		BurstRefillHours int    `yaml:"burst_refill_hours"`
	} `yaml:"ratelimit"`
}

var AppConfig *Config

// LoadConfig reads config/config.yaml, or builds the config entirely from
// environment variables when DATABASE_URL is set (test/container mode).
func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	cfg.LLM.BaseURL = os.Getenv("LLM_BASE_URL")
	cfg.LLM.Model = os.Getenv("LLM_MODEL")
	cfg.Payment.GatewayURL = os.Getenv("PAYMENT_GATEWAY_URL")
	cfg.Payment.Secret = os.Getenv("PAYMENT_SECRET")
	cfg.RateLimit.Mode = os.Getenv("RATELIMIT_MODE")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
	if cfg.Notify.QueueSize == 0 {
		cfg.Notify.QueueSize = 128
	}
	if cfg.Notify.Workers == 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.RateLimit.Mode == "" {
		cfg.RateLimit.Mode = "bucket"
	}
	if cfg.RateLimit.BurstCapacity == 0 {
		cfg.RateLimit.BurstCapacity = 1
	}
	if cfg.RateLimit.BurstRefillHours == 0 {
		cfg.RateLimit.BurstRefillHours = 24
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
