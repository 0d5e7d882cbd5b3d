package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/lessonpath/internal/apperr"
)

// DefaultRunnerTimeout bounds a single call to the remote runner.
const DefaultRunnerTimeout = 3 * time.Second

// Payload defaults applied when the effective configuration omits a field.
const (
	defaultMode        = "parse"
	defaultRuntime     = "generic"
	defaultTimeLimitMS = 200
	defaultMemLimitMB  = 64
)

const maxRunnerBody = 1 << 20

// HTTPRunner delegates judging to a remote execution service. The call is
// made once with a hard timeout and never retried.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRunner creates a runner client for baseURL. A non-positive timeout
// selects DefaultRunnerTimeout.
func NewHTTPRunner(baseURL string, timeout time.Duration) *HTTPRunner {
	if timeout <= 0 {
		timeout = DefaultRunnerTimeout
	}
	return &HTTPRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type runnerResponse struct {
	OK      bool            `json:"ok"`
	Stage   string          `json:"stage"`
	Error   *string         `json:"error"`
	Details json.RawMessage `json:"details"`
}

// Payload builds the request body sent to the runner.
func Payload(submission string, cfg map[string]any) map[string]any {
	get := func(key string, def any) any {
		if v, ok := cfg[key]; ok && v != nil {
			return v
		}
		return def
	}
	return map[string]any{
		"submission":    submission,
		"mode":          get("mode", defaultMode),
		"runtime":       get("runtime", defaultRuntime),
		"time_limit_ms": get("time_limit_ms", defaultTimeLimitMS),
		"mem_limit_mb":  get("mem_limit_mb", defaultMemLimitMB),
		"tests":         get("tests", []any{}),
	}
}

func (r *HTTPRunner) Judge(ctx context.Context, in Input) (*Verdict, error) {
	if r.baseURL == "" {
		return nil, runnerError(fmt.Errorf("runner URL not configured"))
	}

	body, err := json.Marshal(Payload(in.Submission, in.Config))
	if err != nil {
		return nil, runnerError(fmt.Errorf("encode payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, runnerError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, runnerError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRunnerBody))
	if err != nil {
		return nil, runnerError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, runnerError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	return decodeRunnerResponse(raw)
}

func decodeRunnerResponse(raw []byte) (*Verdict, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, runnerError(fmt.Errorf("invalid JSON: %w", err))
	}
	sch, err := runnerSchema()
	if err != nil {
		return nil, runnerError(fmt.Errorf("compile response schema: %w", err))
	}
	if err := sch.Validate(doc); err != nil {
		return nil, runnerError(fmt.Errorf("malformed response: %w", err))
	}

	var out runnerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, runnerError(fmt.Errorf("decode response: %w", err))
	}
	details, err := normalizeDetails(out.Details)
	if err != nil {
		return nil, runnerError(err)
	}
	return &Verdict{OK: out.OK, Stage: out.Stage, Error: out.Error, Details: details}, nil
}

// normalizeDetails turns a bare string into {"message": s} and null or
// absent into an empty object.
func normalizeDetails(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		return map[string]any{"message": s}, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return out, nil
}

func runnerError(cause error) error {
	return apperr.Wrap(apperr.KindUpstreamUnavailable, fmt.Sprintf("runner error: %v", cause), cause)
}

var runnerResponseSchema = map[string]any{
	"type":     "object",
	"required": []any{"ok", "stage"},
	"properties": map[string]any{
		"ok":      map[string]any{"type": "boolean"},
		"stage":   map[string]any{"type": "string"},
		"error":   map[string]any{"type": []any{"string", "null"}},
		"details": map[string]any{"type": []any{"object", "string", "null"}},
	},
}

var runnerSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	const url = "schema://runner-response.json"
	if err := c.AddResource(url, runnerResponseSchema); err != nil {
		return nil, err
	}
	return c.Compile(url)
})
