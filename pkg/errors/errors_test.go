package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultCode(t *testing.T) {
	err := New("something broke")

	assert.Equal(t, CodeUnknown, err.Code)
	assert.Equal(t, "something broke", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap_PreservesCodeAndHint(t *testing.T) {
	inner := New("schema missing").
		WithCode(CodeNamespaceMissing).
		WithHint("run 'robomonkey index' to register the repository")

	outer := Wrap(inner, "failed to resolve repo")

	assert.Equal(t, CodeNamespaceMissing, outer.Code)
	assert.Equal(t, "run 'robomonkey index' to register the repository", GetHint(outer))
	assert.Contains(t, outer.Error(), "failed to resolve repo")
	assert.Contains(t, outer.Error(), "schema missing")
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWrap_PlainError(t *testing.T) {
	err := Wrap(fmt.Errorf("connection refused"), "failed to connect")

	assert.Equal(t, CodeUnknown, err.Code)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"validation", New("bad payload").WithCode(CodeValidation), false},
		{"namespace missing", New("no such repo").WithCode(CodeNamespaceMissing), false},
		{"config", New("bad dsn").WithCode(CodeConfig), false},
		{"timeout", New("deadline").WithCode(CodeTimeout), true},
		{"database", New("deadlock").WithCode(CodeDatabase), true},
		{"processor", New("boom").WithCode(CodeProcessor), true},
		{"plain error", fmt.Errorf("anything"), true},
		{"wrapped validation", Wrap(New("x").WithCode(CodeValidation), "outer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestCodeChecks(t *testing.T) {
	assert.True(t, IsNotFound(New("x").WithCode(CodeNotFound)))
	assert.True(t, IsValidation(New("x").WithCode(CodeValidation)))
	assert.True(t, IsValidation(New("x").WithCode(CodeNamespaceMissing)))
	assert.True(t, IsTimeout(New("x").WithCode(CodeTimeout)))
	assert.True(t, IsSchemaExists(New("x").WithCode(CodeSchemaExists)))
	assert.True(t, IsStoreUnreachable(New("x").WithCode(CodeStoreUnreachable)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeTimeout, GetCode(New("x").WithCode(CodeTimeout)))
	assert.Equal(t, CodeUnknown, GetCode(fmt.Errorf("plain")))
}

func TestWithMetadata(t *testing.T) {
	err := New("x").WithMetadata("job_id", "abc").WithMetadata("attempts", 3)

	assert.Equal(t, "abc", err.Metadata["job_id"])
	assert.Equal(t, 3, err.Metadata["attempts"])
}
