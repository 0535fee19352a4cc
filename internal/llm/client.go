package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/pkg/circuitbreaker"
	"github.com/neu-planner/backend/pkg/logger"
	"github.com/neu-planner/backend/pkg/retry"
)

var (
	// ErrUnavailable means the completion service cannot be reached at all:
	// no credentials, or the breaker has opened after repeated failures.
	ErrUnavailable   = errors.New("llm unavailable")
	ErrEmptyResponse = errors.New("llm returned no choices")
)

// Completer is a single-turn completion service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	// Timeout bounds this call only; zero means the client default.
	Timeout time.Duration
	// Purpose labels metrics and logs, e.g. "expand" or "batch_scan".
	Purpose string
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Temperature      float32
	MaxTokens        int
	MaxAttempts      int
	FailureThreshold int
	Cooldown         time.Duration
	DefaultTimeout   time.Duration
}

type Client struct {
	client         *openai.Client
	configured     bool
	model          string
	temperature    float32
	maxTokens      int
	defaultTimeout time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxProbes:        1,
		Cooldown:         cfg.Cooldown,
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 1,
		IsFailure:        countsAgainstBreaker,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      isTransient,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.Bool("configured", cfg.APIKey != ""),
	)

	return &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		configured:     cfg.APIKey != "",
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		defaultTimeout: cfg.DefaultTimeout,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "completion"
	}

	if !c.configured {
		metrics.LLMRequests.WithLabelValues(purpose, "unavailable").Inc()
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return retry.Permanent(ErrEmptyResponse)
			}

			logger.Debug("LLM completion generated",
				zap.String("purpose", purpose),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) || isAuthFailure(err) {
			metrics.LLMRequests.WithLabelValues(purpose, "unavailable").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.LLMRequests.WithLabelValues(purpose, "error").Inc()
		return nil, err
	}

	metrics.LLMRequests.WithLabelValues(purpose, "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(result.Usage.CompletionTokens))

	return result, nil
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}

func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func isAuthFailure(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}

// Caller cancellation says nothing about the health of the service.
func countsAgainstBreaker(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrEmptyResponse)
}

// FailureReason is the short label stages attach to a degraded outcome.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "llm unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "llm timeout"
	case errors.Is(err, ErrMalformed):
		return "llm returned malformed output"
	default:
		return "llm error"
	}
}
