// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discover expands the source arguments of a run into the list of
// files to parse and selects the language front end.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/AleutianAI/callflow/services/flow/ast"
)

var (
	// ErrNoSources is returned when the source arguments name no files at all.
	ErrNoSources = errors.New("no source files found")

	// ErrLanguageUndetected is returned when no file suffix maps to a front end.
	ErrLanguageUndetected = errors.New("language could not be detected; pass it explicitly")

	// ErrUnknownLanguage is returned for an explicit language with no front end.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrNoMatchingSources is returned when files exist but none match the language.
	ErrNoMatchingSources = errors.New("no source files match the language")
)

// Options configures discovery.
type Options struct {
	// Language is a language name or suffix. Empty means detect it.
	Language string

	// RespectGitignore skips files matched by a .gitignore at the top of each
	// source directory.
	RespectGitignore bool

	// Logger receives skipped-file notices. Default: slog.Default()
	Logger *slog.Logger
}

// Result is the outcome of discovery.
type Result struct {
	// Sources are the files to parse, sorted and deduplicated.
	Sources []string

	// Frontend parses Sources.
	Frontend ast.Frontend

	// Skipped are directory files left out because their suffix did not
	// match the language.
	Skipped []string
}

// candidate is a discovered file and whether it was named explicitly.
type candidate struct {
	path     string
	explicit bool
}

// Discover resolves source arguments into files and a front end.
//
// Description:
//
//	Paths are processed in sorted order. A path naming a file is always
//	included, whatever its suffix. A directory is walked recursively and
//	only files with a suffix the front end handles are kept. When no
//	language is given it is taken from the first file whose suffix is
//	registered.
//
// Inputs:
//   - ctx: Context for cancellation of long walks.
//   - paths: Files and directories named by the user.
//   - registry: Available front ends.
//   - opts: Discovery options.
//
// Outputs:
//   - *Result: Sorted sources and the chosen front end.
//   - error: ErrNoSources, ErrLanguageUndetected, ErrUnknownLanguage,
//     ErrNoMatchingSources, or a filesystem error.
//
// Example:
//
//	res, err := discover.Discover(ctx, []string{"src"}, ast.DefaultRegistry(), discover.Options{})
//	if err != nil {
//	    return err
//	}
func Discover(ctx context.Context, paths []string, registry *ast.FrontendRegistry, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	candidates, err := collect(ctx, paths, opts.RespectGitignore, logger)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w from %v", ErrNoSources, paths)
	}
	logger.Info("found files from sources argument", slog.Int("count", len(candidates)))

	frontend, err := selectFrontend(candidates, registry, opts.Language, logger)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]bool)
	for _, ext := range frontend.Extensions() {
		extensions[ext] = true
	}

	seen := make(map[string]bool)
	result := &Result{Frontend: frontend}
	for _, c := range candidates {
		if !c.explicit && !extensions[suffix(c.path)] {
			logger.Info("skipping file that does not match the language; include it explicitly if this is wrong",
				slog.String("file", c.path),
				slog.String("language", frontend.Language()))
			result.Skipped = append(result.Skipped, c.path)
			continue
		}
		if !seen[c.path] {
			seen[c.path] = true
			result.Sources = append(result.Sources, c.path)
		}
	}

	if len(result.Sources) == 0 {
		return nil, fmt.Errorf("%w: sources %v, language %s", ErrNoMatchingSources, paths, frontend.Language())
	}
	sort.Strings(result.Sources)

	logger.Info("processing source files", slog.Int("count", len(result.Sources)))
	for _, source := range result.Sources {
		logger.Debug("source", slog.String("file", source))
	}
	return result, nil
}

// collect expands paths into candidates in walk order.
func collect(ctx context.Context, paths []string, respectGitignore bool, logger *slog.Logger) ([]candidate, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var candidates []candidate
	for _, root := range sorted {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("reading source %s: %w", root, err)
		}
		if !info.IsDir() {
			candidates = append(candidates, candidate{path: root, explicit: true})
			continue
		}

		var gitignore *ignore.GitIgnore
		if respectGitignore {
			gitignore = loadGitignore(root, logger)
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				if gitignore != nil && gitignore.MatchesPath(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}
			if gitignore != nil && gitignore.MatchesPath(rel) {
				logger.Debug("skipping ignored file", slog.String("file", path))
				return nil
			}
			candidates = append(candidates, candidate{path: path})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return candidates, nil
}

// loadGitignore compiles root/.gitignore, or returns nil when there is none.
func loadGitignore(root string, logger *slog.Logger) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gitignore, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		logger.Warn("failed to load .gitignore", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	logger.Debug("loaded .gitignore", slog.String("path", path))
	return gitignore
}

// selectFrontend resolves an explicit language or detects one.
func selectFrontend(candidates []candidate, registry *ast.FrontendRegistry, language string, logger *slog.Logger) (ast.Frontend, error) {
	if language != "" {
		frontend, ok := registry.Lookup(language)
		if !ok {
			return nil, fmt.Errorf("%w: %s (known suffixes: %s)", ErrUnknownLanguage, language,
				strings.Join(registry.Extensions(), ", "))
		}
		return frontend, nil
	}

	for _, c := range candidates {
		ext := suffix(c.path)
		if frontend, ok := registry.GetByExtension(ext); ok {
			logger.Info("implicitly detected language", slog.String("suffix", ext),
				slog.String("language", frontend.Language()))
			return frontend, nil
		}
	}
	return nil, ErrLanguageUndetected
}

// suffix returns the text after the last dot of the file name, without the dot.
func suffix(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}
