// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

// writeTree creates files (relative path → content) under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestDiscover_DirectoryFiltersBySuffix(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.py":         "",
		"a.py":         "",
		"README.md":    "",
		"pkg/c.py":     "",
		"pkg/data.txt": "",
	})

	res, err := Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "python", res.Frontend.Language())
	assert.Equal(t, []string{
		filepath.Join(root, "a.py"),
		filepath.Join(root, "b.py"),
		filepath.Join(root, "pkg", "c.py"),
	}, res.Sources)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "README.md"),
		filepath.Join(root, "pkg", "data.txt"),
	}, res.Skipped)
}

func TestDiscover_ExplicitFileAlwaysIncluded(t *testing.T) {
	root := writeTree(t, map[string]string{
		"tool":    "",
		"main.py": "",
	})
	tool := filepath.Join(root, "tool")
	main := filepath.Join(root, "main.py")

	res, err := Discover(context.Background(), []string{tool, main}, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{main, tool}, res.Sources)
}

func TestDiscover_ExplicitLanguage(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": ""})

	res, err := Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{Language: "py"})
	require.NoError(t, err)
	assert.Len(t, res.Sources, 1)

	_, err = Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{Language: "cobol"})
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestDiscover_Errors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		_, err := Discover(context.Background(), []string{t.TempDir()}, ast.DefaultRegistry(), Options{})
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("no known suffix", func(t *testing.T) {
		root := writeTree(t, map[string]string{"notes.txt": ""})
		_, err := Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{})
		assert.ErrorIs(t, err, ErrLanguageUndetected)
	})

	t.Run("no matching files", func(t *testing.T) {
		root := writeTree(t, map[string]string{"notes.txt": ""})
		_, err := Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{Language: "python"})
		assert.ErrorIs(t, err, ErrNoMatchingSources)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Discover(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, ast.DefaultRegistry(), Options{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled", func(t *testing.T) {
		root := writeTree(t, map[string]string{"a.py": ""})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Discover(ctx, []string{root}, ast.DefaultRegistry(), Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDiscover_Gitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":      "build/\ngenerated_*.py\n",
		"app.py":          "",
		"generated_x.py":  "",
		"build/out.py":    "",
		".git/hooks/x.py": "",
	})

	res, err := Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{RespectGitignore: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "app.py")}, res.Sources)

	res, err = Discover(context.Background(), []string{root}, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Sources, 3)
}

func TestDiscover_Deduplicates(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": ""})
	file := filepath.Join(root, "a.py")

	res, err := Discover(context.Background(), []string{root, file}, ast.DefaultRegistry(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, res.Sources)
}
