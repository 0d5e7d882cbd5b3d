package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/lessonpath/internal/logger"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"b":2}`)},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp1.Content) != `{"a":1}` {
		t.Fatalf("expected {\"a\":1}, got %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp2.Content) != `{"b":2}` {
		t.Fatalf("expected {\"b\":2}, got %s", resp2.Content)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{}})

	_, err := mock.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_ValidatesAgainstSchema(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"ok":true}`)})

	_, err := mock.Generate(context.Background(), Request{Schema: gradeTestSchema()})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got: %T (%v)", err, err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, "grade:problem-3")
	if p := PurposeFrom(ctx); p != "grade:problem-3" {
		t.Fatalf("expected 'grade:problem-3', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"anthropic without key", Config{Provider: "anthropic", Timeout: time.Second}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}, Timeout: time.Second}, false},
		{"openai without key", Config{Provider: "openai", Timeout: time.Second}, true},
		{"gemini with key", Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g"}, Timeout: time.Second}, false},
		{"openrouter without key", Config{Provider: "openrouter", Timeout: time.Second}, true},
		{"mock needs no key", Config{Provider: "mock", Timeout: time.Second}, false},
		{"zero timeout", Config{Provider: "mock"}, true},
		{"unknown provider", Config{Provider: "unknown", Timeout: time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LESSONPATH_LLM_PROVIDER", "LESSONPATH_LLM_TIMEOUT",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("explicit provider", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("LESSONPATH_LLM_PROVIDER", "anthropic")
		t.Setenv("LESSONPATH_ANTHROPIC_API_KEY", "sk-ant")
		t.Setenv("LESSONPATH_LLM_TIMEOUT", "5s")

		cfg := ConfigFromEnv()
		assert.Equal(t, "anthropic", cfg.Provider)
		assert.Equal(t, "sk-ant", cfg.Anthropic.APIKey)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		require.NoError(t, cfg.Validate())
	})

	t.Run("discovered from vendor key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-oai")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

		cfg := ConfigFromEnv()
		assert.Equal(t, "openai", cfg.Provider)
		assert.Equal(t, "sk-oai", cfg.OpenAI.APIKey)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("nothing set disables grading", func(t *testing.T) {
		clearProviderEnv(t)
		cfg := ConfigFromEnv()
		assert.False(t, cfg.Enabled())
		require.NoError(t, cfg.Validate())
	})
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(context.Background(), Config{Provider: "mock", Timeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	_, err = NewProvider(context.Background(), Config{Provider: "bogus"}, nil)
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Provider: "openai"}, nil)
	assert.Error(t, err)
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 3, OutputTokens: 4}},
		MockResponse{Err: &ErrProviderUnavailable{}},
	)
	p := WithLogging(mock, "mock", log)
	ctx := WithPurpose(context.Background(), "grade:problem-1")

	_, err := p.Generate(ctx, Request{})
	require.NoError(t, err)
	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "llm request", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "grade:problem-1", fields["purpose"])
	assert.EqualValues(t, 3, fields["input_tokens"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}
