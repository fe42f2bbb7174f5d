package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/errors"
)

// providerClient speaks the two wire dialects the configured providers use:
// the ollama native API and the OpenAI-compatible API (vllm, openai).
type providerClient struct {
	provider string
	cfg      config.ProviderConfig
	http     *http.Client
}

func newProviderClient(provider string, cfg config.ProviderConfig) *providerClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &providerClient{
		provider: provider,
		cfg:      cfg,
		http:     &http.Client{Timeout: timeout},
	}
}

// Embed returns one vector per input
func (c *providerClient) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	if c.provider == "ollama" {
		return c.embedOllama(ctx, model, inputs)
	}

	return c.embedOpenAI(ctx, model, inputs)
}

func (c *providerClient) embedOllama(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
	}

	err := c.post(ctx, "/api/embed", map[string]any{
		"model": model,
		"input": inputs,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(inputs) {
		return nil, errors.Newf("provider returned %d embeddings for %d inputs",
			len(resp.Embeddings), len(inputs)).WithCode(errors.CodeProcessor)
	}

	return resp.Embeddings, nil
}

func (c *providerClient) embedOpenAI(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	err := c.post(ctx, "/v1/embeddings", map[string]any{
		"model": model,
		"input": inputs,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(inputs) {
		return nil, errors.Newf("provider returned %d embeddings for %d inputs",
			len(resp.Data), len(inputs)).WithCode(errors.CodeProcessor)
	}

	out := make([][]float64, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errors.Newf("provider returned out-of-range index %d", d.Index).
				WithCode(errors.CodeProcessor)
		}
		out[d.Index] = d.Embedding
	}

	return out, nil
}

// Generate returns a completion for a prompt
func (c *providerClient) Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if c.provider == "ollama" {
		var resp struct {
			Response string `json:"response"`
		}

		err := c.post(ctx, "/api/generate", map[string]any{
			"model":  model,
			"prompt": prompt,
			"stream": false,
			"options": map[string]any{
				"num_predict": maxTokens,
			},
		}, &resp)
		if err != nil {
			return "", err
		}

		return resp.Response, nil
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	err := c.post(ctx, "/v1/chat/completions", map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("provider returned no choices").
			WithCode(errors.CodeProcessor)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *providerClient) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode provider request").
			WithCode(errors.CodeSerialization)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "failed to build provider request").
			WithCode(errors.CodeProcessor)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "provider request to %s failed", path).
			WithCode(errors.CodeProcessor)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("provider returned %d: %s", resp.StatusCode, string(snippet)).
			WithCode(errors.CodeProcessor).
			WithMetadata("status", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode provider response").
			WithCode(errors.CodeProcessor)
	}

	return nil
}

// vectorLiteral renders a vector in pgvector's input syntax
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')

	return b.String()
}
