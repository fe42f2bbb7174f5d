package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/models"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

func testDeps() Deps {
	return Deps{
		Config: &config.Config{
			Watcher: config.WatcherConfig{
				Extensions:     []string{".py", ".go"},
				IgnorePatterns: []string{".git", "node_modules"},
			},
		},
		Logger: logger.NewNop(),
	}
}

func TestRegistry_CoversAllJobTypes(t *testing.T) {
	r := NewRegistry(testDeps())

	for _, jt := range models.AllJobTypes() {
		p, err := r.Resolve(jt)
		require.NoError(t, err, string(jt))
		assert.NotNil(t, p, string(jt))
	}
}

func TestRegistry_UnknownTypeIsValidationError(t *testing.T) {
	r := NewRegistry(testDeps())

	_, err := r.Resolve(models.JobType("MYSTERY"))

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestFSIndexer_SupportedFilter(t *testing.T) {
	ix := newFSIndexer(testDeps().Config, logger.NewNop())

	assert.True(t, ix.supported("src/main.py"))
	assert.True(t, ix.supported("cmd/app/main.go"))
	assert.False(t, ix.supported("README.md"))
	assert.False(t, ix.supported(".git/config.py"))
	assert.False(t, ix.supported("vendor/node_modules/x.py"))
	assert.False(t, ix.supported("image.png"))
}

func TestLangForExt(t *testing.T) {
	assert.Equal(t, "python", langForExt(".py"))
	assert.Equal(t, "typescript", langForExt(".tsx"))
	assert.Equal(t, "go", langForExt(".go"))
	assert.Equal(t, "rb", langForExt(".rb"))
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,2.25]", vectorLiteral([]float64{0.5, -1, 2.25}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestDocTitle(t *testing.T) {
	assert.Equal(t, "Getting Started", docTitle("docs/intro.md", "# Getting Started\n\nbody"))
	assert.Equal(t, "Deep", docTitle("docs/deep.md", "\n\n### Deep\n"))
	assert.Equal(t, "notes.txt", docTitle("docs/notes.txt", "plain text first line"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
