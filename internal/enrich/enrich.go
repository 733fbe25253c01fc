// Package enrich implements the optional LLM enrichment stage.
//
// Enrichment attaches structured visual attributes to the highest-scoring
// candidates only. The stage is a capability, not a requirement: with no API
// key configured the engine carries a nil Enricher and skips the stage with
// zero behavioral difference. Per-candidate failures are contained; a failed
// candidate is returned without metadata.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/enrich/prompt"
	"github.com/lumireader/descry/internal/types"
)

// Enricher attaches structured semantic attributes to a candidate.
// Implementations must be safe for concurrent use.
type Enricher interface {
	Enrich(ctx context.Context, d types.CompleteDescription) (map[string]any, error)
}

// ChatClient is the narrow LLM surface the enricher needs.
// Production uses the openai-go-backed client; tests substitute fakes.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Attributes is the typed shape of enrichment output, used to sanity-check
// the decoded response before it is handed back as metadata.
type Attributes struct {
	Subject    string   `mapstructure:"subject"`
	Setting    *string  `mapstructure:"setting"`
	Mood       string   `mapstructure:"mood"`
	Palette    []string `mapstructure:"palette"`
	TimeOfDay  string   `mapstructure:"time_of_day"`
	StyleHints []string `mapstructure:"style_hints"`
}

// LLMEnricher calls an LLM with the enrichment prompt and validates the
// structured response against the attributes schema.
type LLMEnricher struct {
	client     ChatClient
	schema     *jsonschema.Schema
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// New creates an enricher around a chat client.
func New(client ChatClient, cfg config.EnricherConfig, logger *slog.Logger) (*LLMEnricher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := jsonschema.CompileString("attributes.json", string(prompt.SchemaJSON()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile attributes schema: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &LLMEnricher{
		client:     client,
		schema:     schema,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger.With("component", "enricher"),
	}, nil
}

// FromConfig builds the production enricher, or nil when enrichment is
// disabled or no API key is available. A nil return is a normal
// configuration, logged once by the caller at startup.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*LLMEnricher, error) {
	if !cfg.Enricher.Enabled {
		return nil, nil
	}
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, nil
	}
	client := newOpenAIClient(apiKey, cfg.Enricher)
	return New(client, cfg.Enricher, logger)
}

// Enrich requests attributes for one candidate. The call is retried on
// transient failure; a malformed or schema-invalid response fails the
// candidate, never the batch.
func (e *LLMEnricher) Enrich(ctx context.Context, d types.CompleteDescription) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var raw string
	err := retry.Do(
		func() error {
			var callErr error
			raw, callErr = e.client.Complete(callCtx, prompt.SystemPrompt(), prompt.UserPrompt(d))
			return callErr
		},
		retry.Context(callCtx),
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("enrichment call failed: %w", err)
	}

	metadata, err := e.parseResponse(raw)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

// parseResponse extracts, validates, and type-checks the JSON payload.
func (e *LLMEnricher) parseResponse(raw string) (map[string]any, error) {
	payload := stripCodeFences(raw)

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("enrichment response is not valid JSON: %w", err)
	}
	if err := e.schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("enrichment response failed schema validation: %w", err)
	}

	metadata, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("enrichment response is not a JSON object")
	}

	var attrs Attributes
	if err := mapstructure.Decode(metadata, &attrs); err != nil {
		return nil, fmt.Errorf("enrichment response has unexpected field types: %w", err)
	}
	return metadata, nil
}

// stripCodeFences removes a surrounding markdown code fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
