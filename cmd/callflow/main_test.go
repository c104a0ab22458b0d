// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/callflow/services/flow/config"
)

const appSource = `def helper():
    pass

def main():
    helper()

main()
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeApp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte(appSource), 0o644))
	return dir
}

func TestRender_WritesOutput(t *testing.T) {
	src := writeApp(t)
	out := filepath.Join(t.TempDir(), "graph.dot")

	_, err := execute(t, src, "-o", out, "-q", "--hide-legend")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph G {"))
	assert.NotContains(t, string(data), "legend")
	assert.Contains(t, string(data), `name="app::helper"`)
}

func TestRender_AcceptsSourcesAlongsideSubcommands(t *testing.T) {
	src := writeApp(t)
	out := filepath.Join(t.TempDir(), "x.dot")

	root := newRootCmd()
	found, rest, err := root.Find([]string{src})
	require.NoError(t, err)
	assert.Same(t, root, found)
	assert.Equal(t, []string{src}, rest)

	_, err = execute(t, src, filepath.Join(src, "app.py"), "-o", out, "-q")
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph G {"))
	assert.Contains(t, string(data), `name="app::main"`)
	assert.Contains(t, string(data), `name="app::helper"`)
}

func TestRender_Errors(t *testing.T) {
	src := writeApp(t)
	out := filepath.Join(t.TempDir(), "graph.dot")

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"verbose and quiet", []string{src, "-o", out, "-v", "-q"}, config.ErrVerboseQuiet},
		{"depth without target", []string{src, "-o", out, "-q", "--upstream-depth", "1"}, config.ErrSubsetRequiresTarget},
		{"target without depth", []string{src, "-o", out, "-q", "--target-function", "main"}, config.ErrSubsetRequiresDepth},
		{"bad output", []string{src, "-o", "graph.pdf", "-q"}, config.ErrInvalidOutput},
		{"no sources", []string{"-o", out, "-q"}, config.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRender_ConfigFile(t *testing.T) {
	src := writeApp(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "from-file.json")
	cfgPath := filepath.Join(dir, "callflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sources: ["+src+"]\noutput: "+out+"\nquiet: true\n"), 0o644))

	_, err := execute(t, "--config", cfgPath)
	require.NoError(t, err)
	_, err = os.Stat(out)
	require.NoError(t, err)

	override := filepath.Join(dir, "override.mmd")
	_, err = execute(t, "--config", cfgPath, "-o", override)
	require.NoError(t, err)
	data, err := os.ReadFile(override)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "flowchart LR"))
}

func TestLoadConfig_ListFlags(t *testing.T) {
	a := &app{}
	cmd := newCommand(a)
	require.NoError(t, cmd.ParseFlags([]string{"--exclude-functions", "a, b", "--include-only-namespaces", "pkg", "--no-gitignore"}))

	cfg, err := a.loadConfig(cmd, []string{"src"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, cfg.Sources)
	assert.Equal(t, []string{"a", "b"}, cfg.ExcludeFunctions)
	assert.Equal(t, []string{"pkg"}, cfg.IncludeOnlyNamespaces)
	assert.Nil(t, cfg.ExcludeNamespaces)
	assert.False(t, cfg.RespectGitignore)
	assert.Equal(t, "out.png", cfg.Output)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "callflow")
}
