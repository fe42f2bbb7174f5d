package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority_CanonicalMapping(t *testing.T) {
	tests := []struct {
		jt   JobType
		want int
	}{
		{JobTypeFullIndex, 10},
		{JobTypeReindexFile, 10},
		{JobTypeReindexMany, 10},
		{JobTypeDocsScan, 9},
		{JobTypeTagRulesSync, 7},
		{JobTypeEmbedMissing, 5},
		{JobTypeSummarizeFiles, 4},
		{JobTypeSummarizeSymbols, 4},
		{JobTypeEmbedSummaries, 3},
		{JobTypeRegenerateSummary, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.jt), func(t *testing.T) {
			assert.Equal(t, tt.want, Priority(tt.jt))
		})
	}
}

func TestPriority_UnknownDefaultsToFive(t *testing.T) {
	assert.Equal(t, 5, Priority(JobType("MYSTERY")))
}

func TestValidJobType(t *testing.T) {
	for _, jt := range AllJobTypes() {
		assert.True(t, ValidJobType(jt), string(jt))
	}

	assert.False(t, ValidJobType(JobType("MYSTERY")))
}

func TestJob_Terminal(t *testing.T) {
	done := &Job{Status: JobStatusDone}
	assert.True(t, done.Terminal())

	exhausted := &Job{Status: JobStatusFailed, Attempts: 3, MaxAttempts: 3}
	assert.True(t, exhausted.Terminal())

	pending := &Job{Status: JobStatusPending, Attempts: 2, MaxAttempts: 3}
	assert.False(t, pending.Terminal())

	claimed := &Job{Status: JobStatusClaimed, Attempts: 1, MaxAttempts: 3}
	assert.False(t, claimed.Terminal())
}
