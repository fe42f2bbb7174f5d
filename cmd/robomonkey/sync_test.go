package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheYonk/robomonkey/internal/models"
)

func TestParseNameStatus(t *testing.T) {
	out := "M\tsrc/game.py\n" +
		"A\tsrc/new.py\n" +
		"D\told/gone.py\n" +
		"R100\tsrc/before.py\tsrc/after.py\n" +
		"\n"

	changes := parseNameStatus(out)

	assert.Equal(t, []models.FileChange{
		{Path: "src/game.py", Op: models.FileOpUpsert},
		{Path: "src/new.py", Op: models.FileOpUpsert},
		{Path: "old/gone.py", Op: models.FileOpDelete},
		{Path: "src/before.py", Op: models.FileOpDelete},
		{Path: "src/after.py", Op: models.FileOpUpsert},
	}, changes)
}

func TestParseNameStatus_Empty(t *testing.T) {
	assert.Empty(t, parseNameStatus(""))
	assert.Empty(t, parseNameStatus("\n\n"))
}

func TestChangesFromPatch(t *testing.T) {
	patch := `diff --git a/src/game.py b/src/game.py
--- a/src/game.py
+++ b/src/game.py
@@ -1,3 +1,4 @@
+import os
diff --git a/old/gone.py b/old/gone.py
--- a/old/gone.py
+++ /dev/null
@@ -1,2 +0,0 @@
-print("bye")
diff --git a/src/new.py b/src/new.py
--- /dev/null
+++ b/src/new.py
@@ -0,0 +1 @@
+print("hi")
`

	path := filepath.Join(t.TempDir(), "change.patch")
	require.NoError(t, os.WriteFile(path, []byte(patch), 0o644))

	changes, err := changesFromPatch(path)

	require.NoError(t, err)
	assert.Equal(t, []models.FileChange{
		{Path: "src/game.py", Op: models.FileOpUpsert},
		{Path: "old/gone.py", Op: models.FileOpDelete},
		{Path: "src/new.py", Op: models.FileOpUpsert},
	}, changes)
}

func TestChangesFromPatch_MissingFile(t *testing.T) {
	_, err := changesFromPatch(filepath.Join(t.TempDir(), "nope.patch"))

	assert.Error(t, err)
}
