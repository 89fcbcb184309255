package main

import (
	"fmt"
	"net/http"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream/anthropic"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream/ollama"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream/openai"
)

func newDescriber(cfg *config.Config, httpClient *http.Client) (upstream.Describer, error) {
	switch cfg.Upstream.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(cfg.Anthropic, httpClient), nil
	case config.ProviderOpenAI:
		return openai.New(cfg.OpenAI, httpClient), nil
	case config.ProviderOllama:
		c, err := ollama.New(cfg.Ollama, httpClient)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Upstream.Provider)
	}
}
