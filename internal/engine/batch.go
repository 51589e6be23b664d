package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/schema"
)

// Source is one input to ScanBatch. When Content is empty the file at Path
// is read.
type Source struct {
	Path    string
	Content string
}

// BatchResult is the outcome for one Source. A failed source carries Err
// and does not stop the batch.
type BatchResult struct {
	Path   string                `json:"path"`
	Result schema.AnalysisResult `json:"result"`
	Err    error                 `json:"-"`
}

// ScanBatch scans sources on a bounded worker pool. Results are returned in
// input order. Only cancellation fails the whole batch.
func (e *Engine) ScanBatch(ctx context.Context, sources []Source) ([]BatchResult, error) {
	results := make([]BatchResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.scanOne(gctx, src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch scan complete",
		"sources", len(sources),
		"failed", failed,
		"workers", e.workers,
	)
	return results, nil
}

func (e *Engine) scanOne(ctx context.Context, src Source) BatchResult {
	br := BatchResult{Path: src.Path}
	content := src.Content
	if content == "" && src.Path != "" {
		data, err := e.readSource(src.Path)
		if err != nil {
			br.Err = err
			return br
		}
		content = string(data)
	}
	br.Result, br.Err = e.ScanFile(ctx, src.Path, content)
	if br.Err != nil {
		e.logger.Warn("source scan failed", "path", src.Path, "error", br.Err)
	}
	return br
}

func (e *Engine) readSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if e.maxSource > 0 && info.Size() > e.maxSource {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrSourceTooLarge, path, info.Size(), e.maxSource)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return data, nil
}

// CollectSources expands files and directories into batch sources. Directories
// are walked recursively for files with one of exts; explicitly named files
// are always included. Paths are returned sorted within each directory.
func CollectSources(paths, exts []string) ([]Source, error) {
	var sources []Source
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			sources = append(sources, Source{Path: path})
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if slices.Contains(exts, strings.ToLower(filepath.Ext(p))) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		slices.Sort(found)
		for _, p := range found {
			sources = append(sources, Source{Path: p})
		}
	}
	return sources, nil
}

// skipDir reports dependency and build directories that are not part of
// the audited code.
func skipDir(name string) bool {
	switch name {
	case "node_modules", "lib", ".git", "out", "cache", "artifacts":
		return true
	}
	return strings.HasPrefix(name, ".")
}
