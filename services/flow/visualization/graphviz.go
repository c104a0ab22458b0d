// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visualization

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrGraphvizNotFound is returned when neither `dot` nor `dot.exe` is on PATH.
var ErrGraphvizNotFound = errors.New("graphviz not found: neither `dot` nor `dot.exe` is on PATH; " +
	"install graphviz or choose a text output such as .dot, .json or .mmd")

// graphvizBinaries are the executable names searched, in order.
var graphvizBinaries = []string{"dot", "dot.exe"}

// Graphviz runs the Graphviz `dot` layout program.
//
// # Thread Safety
//
// Safe for concurrent use.
type Graphviz struct {
	binary string
}

// FindGraphviz locates the dot executable.
//
// # Outputs
//
//   - *Graphviz: Runner bound to the executable found.
//   - error: ErrGraphvizNotFound when none is installed.
func FindGraphviz() (*Graphviz, error) {
	for _, name := range graphvizBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return &Graphviz{binary: path}, nil
		}
	}
	return nil, ErrGraphvizNotFound
}

// NewGraphviz creates a runner for an explicit executable path.
func NewGraphviz(binary string) *Graphviz {
	return &Graphviz{binary: binary}
}

// Binary returns the executable path.
func (g *Graphviz) Binary() string {
	return g.binary
}

// Render lays out dotPath and writes the image to outPath.
//
// # Inputs
//
//   - ctx: Context for cancellation. Kills the process when cancelled.
//   - dotPath: The .gv file to lay out.
//   - imageFormat: Graphviz output type such as "png" or "svg".
//   - outPath: Destination image file.
//
// # Outputs
//
//   - error: Non-nil if the file cannot be created or dot exits non-zero.
//     The error carries dot's stderr and the command to rerun for detail.
func (g *Graphviz) Render(ctx context.Context, dotPath, imageFormat, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	args := []string{"-T" + imageFormat, dotPath}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Stdout = out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("graphviz returned %w (try running %q for more detail): %s",
			err, strings.Join(append(append([]string{g.binary}, args...), "-v", "-O"), " "),
			strings.TrimSpace(stderr.String()))
	}
	return nil
}
