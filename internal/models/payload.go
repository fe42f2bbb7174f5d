package models

import (
	"encoding/json"

	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/validation"
)

// FileOp is the operation recorded for a single file change
type FileOp string

const (
	FileOpUpsert FileOp = "UPSERT"
	FileOpDelete FileOp = "DELETE"
)

// FileChange is one entry in a batch reindex payload
type FileChange struct {
	Path string `json:"path"`
	Op   FileOp `json:"op"`
}

// Job payloads. The wire representation stays an opaque JSON blob so
// external producers need no recompile; these types are the in-process view.

// FullIndexPayload requests a full repository reindex
type FullIndexPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ReindexFilePayload requests a single-file reindex
type ReindexFilePayload struct {
	Path   string `json:"path"`
	Op     FileOp `json:"op"`
	Reason string `json:"reason,omitempty"`
}

// ReindexManyPayload requests a batch reindex
type ReindexManyPayload struct {
	Entries []FileChange `json:"paths"`
	Reason  string       `json:"reason,omitempty"`
}

// EmbedMissingPayload requests embedding of chunks and documents without one
type EmbedMissingPayload struct {
	Overrides map[string]string `json:"overrides,omitempty"`
}

// EmptyPayload is shared by job types that carry no parameters
// (DOCS_SCAN, TAG_RULES_SYNC, SUMMARIZE_*, EMBED_SUMMARIES,
// REGENERATE_SUMMARY).
type EmptyPayload struct{}

// EncodePayload marshals a typed payload into the opaque job blob
func EncodePayload(p any) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode job payload").
			WithCode(errors.CodeSerialization)
	}

	return raw, nil
}

// DecodeReindexFile decodes and validates a REINDEX_FILE payload
func DecodeReindexFile(raw json.RawMessage) (*ReindexFilePayload, error) {
	var p ReindexFilePayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	if err := validation.Validate(
		validation.NewField("path", p.Path, validation.Required, validation.RelPath()),
		validation.NewField("op", string(p.Op), validation.In("UPSERT", "DELETE")),
	); err != nil {
		return nil, err
	}

	return &p, nil
}

// DecodeReindexMany decodes and validates a REINDEX_MANY payload
func DecodeReindexMany(raw json.RawMessage) (*ReindexManyPayload, error) {
	var p ReindexManyPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	if len(p.Entries) == 0 {
		return nil, errors.New("REINDEX_MANY payload has no paths").
			WithCode(errors.CodeValidation)
	}

	for _, e := range p.Entries {
		if err := validation.Validate(
			validation.NewField("path", e.Path, validation.Required, validation.RelPath()),
			validation.NewField("op", string(e.Op), validation.In("UPSERT", "DELETE")),
		); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// DecodeEmbedMissing decodes an EMBED_MISSING payload
func DecodeEmbedMissing(raw json.RawMessage) (*EmbedMissingPayload, error) {
	var p EmbedMissingPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// DecodeFullIndex decodes a FULL_INDEX payload
func DecodeFullIndex(raw json.RawMessage) (*FullIndexPayload, error) {
	var p FullIndexPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(err, "malformed job payload").
			WithCode(errors.CodeValidation)
	}

	return nil
}
