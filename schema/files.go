package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
	vocab "github.com/c360studio/semvault/vocabulary/artifact"
)

// ResolveFiles expands file patterns to concrete files. Relative patterns
// are taken from baseDir; ** matches across directories.
//
// Examples:
//   - "schemas/base-v1.nt" → ["<baseDir>/schemas/base-v1.nt"]
//   - "schemas/base/v2/**/*.nt" → every .nt file below schemas/base/v2
func ResolveFiles(baseDir string, patterns []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		paths, err := resolvePattern(baseDir, pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				resolved = append(resolved, p)
			}
		}
	}
	return resolved, nil
}

func resolvePattern(baseDir, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}

	if !containsGlob(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("path is a directory: %s", pattern)
		}
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// ReadFile parses a statement file, placing its statements in context.
func ReadFile(path, context string) ([]statement.Statement, error) {
	format, err := statement.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	if !statement.FormatRegistry[format].Readable {
		return nil, fmt.Errorf("format %s cannot be read: %s", format, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stmts, err := statement.Parse(f, context)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// schema content always lives in the version context
	return statement.WithContext(stmts, context), nil
}

// Install writes every version's files and the schema management records
// to repo in one transaction. Versions without files keep whatever content
// the repository already holds.
func Install(ctx context.Context, repo store.Repository, m *Manifest) (int, error) {
	content := make(map[string][]statement.Statement)
	for _, p := range m.Versions {
		patterns := m.Files[p.Version]
		if len(patterns) == 0 {
			continue
		}
		files, err := ResolveFiles(m.BaseDir, patterns)
		if err != nil {
			return 0, fmt.Errorf("schema %s: %w", p.Version, err)
		}
		for _, file := range files {
			stmts, err := ReadFile(file, p.Version)
			if err != nil {
				return 0, fmt.Errorf("schema %s: %w", p.Version, err)
			}
			content[p.Version] = append(content[p.Version], stmts...)
		}
	}

	conn, err := repo.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	if err := conn.Begin(ctx); err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if conn.IsActive() {
			_ = conn.Rollback(ctx)
		}
	}()

	total := 0
	for version, stmts := range content {
		if _, err := conn.Remove(ctx, statement.InContext(version)); err != nil {
			return 0, fmt.Errorf("clear schema %s: %w", version, err)
		}
		if err := conn.Add(ctx, stmts...); err != nil {
			return 0, fmt.Errorf("store schema %s: %w", version, err)
		}
		total += len(stmts)
	}

	if _, err := conn.Remove(ctx, statement.InContext(vocab.SchemaManagementGraph)); err != nil {
		return 0, fmt.Errorf("clear schema records: %w", err)
	}
	if err := conn.Add(ctx, m.Statements(vocab.SchemaManagementGraph)...); err != nil {
		return 0, fmt.Errorf("store schema records: %w", err)
	}
	if err := conn.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit schemas: %w", err)
	}
	return total, nil
}
