// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/callflow/services/flow/ast"
	"github.com/AleutianAI/callflow/services/flow/graph"
)

// parseSources parses every source with a bounded worker pool.
//
// Description:
//
//	Files are parsed independently in parallel. Results are stored by
//	index and joined on the calling goroutine, so the returned trees are
//	in source order regardless of completion order. With skip set, a file
//	that fails to read or parse is reported as a FileError and left out.
//	Without it the first failure cancels the remaining work.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	frontend - Front end to parse with. Must allow concurrent Parse.
//	sources - Files to parse.
//	workers - Parallelism bound. 0 uses runtime.NumCPU().
//	skip - Whether parse failures are skipped instead of fatal.
//	logger - Receives skipped-file warnings.
//
// Outputs:
//
//	[]*ast.SyntaxTree - Parsed trees in source order.
//	[]graph.FileError - Skipped files, in source order.
//	error - First failure when skip is false, or cancellation.
func parseSources(
	ctx context.Context,
	frontend ast.Frontend,
	sources []string,
	workers int,
	skip bool,
	logger *slog.Logger,
) ([]*ast.SyntaxTree, []graph.FileError, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]*ast.SyntaxTree, len(sources))
	failures := make([]error, len(sources))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, source := range sources {
		eg.Go(func() error {
			tree, err := parseFile(egCtx, frontend, source)
			if err == nil {
				trees[i] = tree
				return nil
			}
			if skip && egCtx.Err() == nil {
				failures[i] = err
				return nil
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]*ast.SyntaxTree, 0, len(trees))
	var fileErrors []graph.FileError
	for i, tree := range trees {
		if failures[i] != nil {
			logger.Warn("could not parse file, skipping",
				slog.String("file", sources[i]),
				slog.String("error", failures[i].Error()))
			fileErrors = append(fileErrors, graph.FileError{FilePath: sources[i], Err: failures[i]})
			continue
		}
		out = append(out, tree)
	}
	return out, fileErrors, nil
}

func parseFile(ctx context.Context, frontend ast.Frontend, path string) (*ast.SyntaxTree, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, ast.WrapParseError(err, path)
	}
	return frontend.Parse(ctx, content, path)
}
