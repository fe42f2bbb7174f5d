package config

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Redacted returns a copy of the configuration with credentials masked:
// DSN passwords and provider API keys become "***". The result is what gets
// logged at startup and persisted on the daemon instance row.
func (c *Config) Redacted() Config {
	cp := *c

	cp.Database.ControlDSN = redactDSN(c.Database.ControlDSN)
	cp.Events.Password = redactSecret(c.Events.Password)

	cp.Embeddings.Ollama.APIKey = redactSecret(c.Embeddings.Ollama.APIKey)
	cp.Embeddings.VLLM.APIKey = redactSecret(c.Embeddings.VLLM.APIKey)
	cp.Embeddings.OpenAI.APIKey = redactSecret(c.Embeddings.OpenAI.APIKey)

	cp.LLM.Ollama.APIKey = redactSecret(c.LLM.Ollama.APIKey)
	cp.LLM.VLLM.APIKey = redactSecret(c.LLM.VLLM.APIKey)
	cp.LLM.OpenAI.APIKey = redactSecret(c.LLM.OpenAI.APIKey)

	return cp
}

// Snapshot serializes the redacted configuration for the daemon instance row
func (c *Config) Snapshot() []byte {
	redacted := c.Redacted()
	raw, err := json.Marshal(redacted)
	if err != nil {
		return []byte("{}")
	}

	return raw
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}

	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return dsn
	}

	// url.UserPassword would percent-encode the mask as %2A%2A%2A, so the
	// mask is spliced in after the escaped user name instead
	u.User = url.User(u.User.Username())
	s := u.String()
	at := strings.Index(s, "@")

	return s[:at] + ":***" + s[at:]
}

func redactSecret(s string) string {
	if s == "" {
		return s
	}

	return "***"
}
