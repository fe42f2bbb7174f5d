package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheYonk/robomonkey/pkg/errors"
)

func TestValidate_AllValid(t *testing.T) {
	err := Validate(
		NewField("repo_name", "wrestling-game", Required, RepoName()),
		NewField("priority", 5, Priority()),
		NewField("op", "UPSERT", In("UPSERT", "DELETE")),
	)

	assert.NoError(t, err)
}

func TestValidate_CollectsFailures(t *testing.T) {
	err := Validate(
		NewField("repo_name", "", Required, RepoName()),
		NewField("priority", 42, Priority()),
	)

	assert.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	assert.Contains(t, err.Error(), "repo_name")
	assert.Contains(t, err.Error(), "priority")
}

func TestRepoName(t *testing.T) {
	v := RepoName()

	assert.NoError(t, v.Validate("wrestling-game"))
	assert.NoError(t, v.Validate("my.repo_2"))
	assert.Error(t, v.Validate(""))
	assert.Error(t, v.Validate("-leading-dash"))
	assert.Error(t, v.Validate("has space"))
	assert.Error(t, v.Validate(123))
}

func TestJobType(t *testing.T) {
	v := JobType()

	assert.NoError(t, v.Validate("FULL_INDEX"))
	assert.NoError(t, v.Validate("REINDEX_MANY"))
	assert.Error(t, v.Validate("full_index"))
	assert.Error(t, v.Validate("_LEADING"))
}

func TestPriority(t *testing.T) {
	v := Priority()

	assert.NoError(t, v.Validate(1))
	assert.NoError(t, v.Validate(10))
	assert.Error(t, v.Validate(0))
	assert.Error(t, v.Validate(11))
	assert.Error(t, v.Validate("5"))
}

func TestRelPath(t *testing.T) {
	v := RelPath()

	assert.NoError(t, v.Validate("src/main.py"))
	assert.NoError(t, v.Validate("a.py"))
	assert.Error(t, v.Validate("/abs/path.py"))
	assert.Error(t, v.Validate("../escape.py"))
	assert.Error(t, v.Validate(""))
}

func TestMinMax(t *testing.T) {
	assert.NoError(t, Min(1).Validate(5))
	assert.Error(t, Min(10).Validate(5))
	assert.NoError(t, Max(10).Validate(5))
	assert.Error(t, Max(3).Validate(5))
	assert.Error(t, Min(1).Validate(struct{}{}))
}
