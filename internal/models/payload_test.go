package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/pkg/errors"
)

func TestDecodeReindexFile(t *testing.T) {
	raw := json.RawMessage(`{"path": "src/game.py", "op": "UPSERT", "reason": "file_modified"}`)

	p, err := DecodeReindexFile(raw)

	require.NoError(t, err)
	assert.Equal(t, "src/game.py", p.Path)
	assert.Equal(t, FileOpUpsert, p.Op)
	assert.Equal(t, "file_modified", p.Reason)
}

func TestDecodeReindexFile_BadOp(t *testing.T) {
	raw := json.RawMessage(`{"path": "src/game.py", "op": "TRUNCATE"}`)

	_, err := DecodeReindexFile(raw)

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestDecodeReindexFile_AbsolutePath(t *testing.T) {
	raw := json.RawMessage(`{"path": "/etc/passwd", "op": "UPSERT"}`)

	_, err := DecodeReindexFile(raw)

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestDecodeReindexMany(t *testing.T) {
	raw := json.RawMessage(`{"paths": [{"path": "a.py", "op": "DELETE"}, {"path": "b.py", "op": "UPSERT"}], "reason": "watch_batch"}`)

	p, err := DecodeReindexMany(raw)

	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, FileOpDelete, p.Entries[0].Op)
	assert.Equal(t, "b.py", p.Entries[1].Path)
}

func TestDecodeReindexMany_Empty(t *testing.T) {
	_, err := DecodeReindexMany(json.RawMessage(`{"paths": []}`))

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestDecodeReindexMany_Malformed(t *testing.T) {
	_, err := DecodeReindexMany(json.RawMessage(`{"paths": "not-a-list"}`))

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestDecode_EmptyPayloadIsValid(t *testing.T) {
	p, err := DecodeFullIndex(nil)

	require.NoError(t, err)
	assert.Empty(t, p.Reason)
}

func TestEncodePayload_RoundTrip(t *testing.T) {
	raw, err := EncodePayload(ReindexManyPayload{
		Entries: []FileChange{{Path: "a.py", Op: FileOpDelete}},
		Reason:  "watch_batch",
	})
	require.NoError(t, err)

	p, err := DecodeReindexMany(raw)
	require.NoError(t, err)
	assert.Equal(t, FileOpDelete, p.Entries[0].Op)
}
