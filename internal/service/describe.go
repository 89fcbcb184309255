package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/metrics"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

type DescribeService struct {
	logger          *log.Logger
	describer       upstream.Describer
	cache           Cache
	maxTokens       int64
	defaultMaxWords int
	maxWordsLimit   int
}

func NewDescribeService(
	logger *log.Logger,
	describer upstream.Describer,
	upstreamCfg config.UpstreamConfig,
	describeCfg config.DescribeConfig,
) *DescribeService {
	return &DescribeService{
		logger:          logger,
		describer:       describer,
		maxTokens:       upstreamCfg.MaxTokens,
		defaultMaxWords: describeCfg.DefaultMaxWords,
		maxWordsLimit:   describeCfg.MaxWordsLimit,
	}
}

func (s *DescribeService) SetCacheClient(cache Cache) {
	s.cache = cache
}

// Ready fails with a configuration error when the provider cannot be called.
// Handlers check it before reading the request body.
func (s *DescribeService) Ready() error {
	if err := s.describer.Configured(); err != nil {
		s.logger.Printf("%s: %v\n", s.describer.Name(), err)
		return configurationError(s.describer.Name())
	}
	return nil
}

// configured is the silent form of Ready used inside the service, so a
// request that already passed Ready logs the problem once.
func (s *DescribeService) configured() error {
	if s.describer.Configured() != nil {
		return configurationError(s.describer.Name())
	}
	return nil
}

func (s *DescribeService) Describe(ctx context.Context, req *models.DescribeRequest) (*models.DescribeResponse, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, noImageError()
	}

	key := s.cacheKey(req)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return &models.DescribeResponse{Description: cached, Success: true}, nil
	}

	start := time.Now()
	description, err := s.describer.Describe(ctx, s.buildRequest(req))
	if err != nil {
		e := classifyUpstream(s.describer.Name(), err)
		metrics.UpstreamRequest(s.describer.Name(), string(e.Kind), time.Since(start))
		s.logger.Printf("upstream error: %v\n", err)
		return nil, e
	}
	metrics.UpstreamRequest(s.describer.Name(), "ok", time.Since(start))

	if description == "" {
		return &models.DescribeResponse{Description: fallbackDescription, Success: true}, nil
	}

	s.cacheSet(ctx, key, description)
	return &models.DescribeResponse{Description: description, Success: true}, nil
}

// DescribeStream validates synchronously, so configuration and input errors
// are returned before any chunk is produced. Upstream failures arrive as a
// chunk with Err set to *Error.
func (s *DescribeService) DescribeStream(
	ctx context.Context,
	req *models.DescribeRequest,
) (<-chan models.StreamChunk, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, noImageError()
	}

	ch := make(chan models.StreamChunk, 1)

	key := s.cacheKey(req)
	if cached, ok := s.cacheGet(ctx, key); ok {
		go func() {
			defer close(ch)
			select {
			case ch <- models.StreamChunk{Delta: cached}:
			case <-ctx.Done():
				return
			}
			select {
			case ch <- models.StreamChunk{Description: cached, Success: true, Done: true}:
			case <-ctx.Done():
			}
		}()
		return ch, nil
	}

	upstreamReq := s.buildRequest(req)

	go func() {
		defer close(ch)

		sendOrStop := func(msg models.StreamChunk) error {
			select {
			case ch <- msg:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		sendNonBlocking := func(msg models.StreamChunk) {
			select {
			case ch <- msg:
			default:
			}
		}

		var builder strings.Builder
		start := time.Now()

		err := s.describer.DescribeStream(ctx, upstreamReq, func(delta string) error {
			builder.WriteString(delta)
			return sendOrStop(models.StreamChunk{Delta: delta})
		})
		if err != nil {
			e := classifyUpstream(s.describer.Name(), err)
			metrics.UpstreamRequest(s.describer.Name(), string(e.Kind), time.Since(start))
			s.logger.Printf("upstream stream error: %v\n", err)
			sendNonBlocking(models.StreamChunk{Err: e})
			return
		}
		metrics.UpstreamRequest(s.describer.Name(), "ok", time.Since(start))

		description := builder.String()
		if description == "" {
			description = fallbackDescription
		} else {
			s.cacheSet(ctx, key, description)
		}

		sendOrStop(models.StreamChunk{Description: description, Success: true, Done: true})
	}()

	return ch, nil
}

func (s *DescribeService) buildRequest(req *models.DescribeRequest) upstream.Request {
	words := req.MaxWords.Resolve(s.defaultMaxWords, s.maxWordsLimit)
	return upstream.Request{
		Prompt:    buildPrompt(words),
		Image:     req.Image,
		MediaType: req.MediaType(),
		MaxTokens: s.maxTokens,
	}
}

func buildPrompt(words int) string {
	return fmt.Sprintf(promptTemplate, words)
}

func (s *DescribeService) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Printf("cache get error: %v\n", err)
	}
	metrics.CacheLookup(found)
	if found {
		s.logger.Println("served from cache")
	}
	return cached, found
}

func (s *DescribeService) cacheSet(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Printf("failed to set cache: %v\n", err)
	}
}

func (s *DescribeService) cacheKey(req *models.DescribeRequest) string {
	words := req.MaxWords.Resolve(s.defaultMaxWords, s.maxWordsLimit)
	data := []string{
		s.describer.Name(),
		req.MediaType(),
		fmt.Sprintf("%d", words),
		req.Image,
	}

	hash := sha256.Sum256([]byte(strings.Join(data, "-")))
	return hex.EncodeToString(hash[:])
}
