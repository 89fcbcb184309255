package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

type Config struct {
	Server      ServerConfig
	Upstream    UpstreamConfig
	Anthropic   AnthropicConfig
	OpenAI      OpenAIConfig
	Ollama      OllamaConfig
	Describe    DescribeConfig
	RedisConfig RedisConfig
	CacheEnable bool `env:"CACHE_ENABLE"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
	MaxBodyBytes    int64         `env:"SERVER_MAX_BODY_BYTES" envDefault:"31457280"`
	AllowOrigin     string        `env:"CORS_ALLOW_ORIGIN" envDefault:"*"`
}

type UpstreamConfig struct {
	Provider  string `env:"UPSTREAM_PROVIDER" envDefault:"anthropic"`
	MaxTokens int64  `env:"UPSTREAM_MAX_TOKENS" envDefault:"1000"`
}

type AnthropicConfig struct {
	APIKey  string `env:"ANTHROPIC_API_KEY"`
	BaseURL string `env:"ANTHROPIC_BASE_URL"`
	Model   string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type OllamaConfig struct {
	Host  string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	Model string `env:"OLLAMA_MODEL" envDefault:"llava"`
}

// DescribeConfig bounds the word count requested from the model.
type DescribeConfig struct {
	DefaultMaxWords int `env:"DESCRIBE_DEFAULT_MAX_WORDS" envDefault:"50"`
	MaxWordsLimit   int `env:"DESCRIBE_MAX_WORDS_LIMIT" envDefault:"500"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with. A missing provider
// credential is not one of them: it is reported per request instead.
func (c *Config) Validate() error {
	switch c.Upstream.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown upstream provider %q", c.Upstream.Provider)
	}
	if c.Upstream.MaxTokens <= 0 {
		return fmt.Errorf("UPSTREAM_MAX_TOKENS must be positive, got %d", c.Upstream.MaxTokens)
	}
	if c.Describe.DefaultMaxWords <= 0 {
		return fmt.Errorf("DESCRIBE_DEFAULT_MAX_WORDS must be positive, got %d", c.Describe.DefaultMaxWords)
	}
	if c.Describe.MaxWordsLimit < c.Describe.DefaultMaxWords {
		return fmt.Errorf("DESCRIBE_MAX_WORDS_LIMIT (%d) is below the default (%d)",
			c.Describe.MaxWordsLimit, c.Describe.DefaultMaxWords)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("SERVER_MAX_BODY_BYTES must be positive, got %d", c.Server.MaxBodyBytes)
	}
	return nil
}
