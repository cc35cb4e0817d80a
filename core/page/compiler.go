package page

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Compiler turns a page source into an artifact an ArtifactLoader can load.
type Compiler interface {
	// ArtifactPath names the artifact Compile would produce for src in outDir.
	ArtifactPath(src, outDir string) string
	// Compile builds src into outDir and returns the artifact path.
	Compile(ctx context.Context, src, outDir string) (string, error)
}

// TemplateCompiler validates html/template sources and stores them as
// artifacts for TemplateLoader.
type TemplateCompiler struct{}

// ArtifactPath implements Compiler.
func (TemplateCompiler) ArtifactPath(src, outDir string) string {
	return filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".tmpl")
}

// Compile implements Compiler. Syntax errors are returned wrapped in ErrCompile
// and leave any previous artifact untouched.
func (c TemplateCompiler) Compile(ctx context.Context, src, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	if _, err := template.New(filepath.Base(src)).Parse(string(data)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompile, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	artifact := c.ArtifactPath(src, outDir)
	tmp := artifact + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, artifact); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return artifact, nil
}

// ExecCompiler runs an external command to build a page. Args may contain
// the placeholders {src} and {out}, replaced by the source path and the
// artifact path.
type ExecCompiler struct {
	Command string
	Args    []string
	// Ext is the artifact extension, ".tmpl" when empty.
	Ext string
	Env []string
}

// ArtifactPath implements Compiler.
func (c ExecCompiler) ArtifactPath(src, outDir string) string {
	ext := c.Ext
	if ext == "" {
		ext = ".tmpl"
	}
	return filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+ext)
}

// Compile implements Compiler.
func (c ExecCompiler) Compile(ctx context.Context, src, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	artifact := c.ArtifactPath(src, outDir)

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		a = strings.ReplaceAll(a, "{src}", src)
		args[i] = strings.ReplaceAll(a, "{out}", artifact)
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Env = append(os.Environ(), c.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		return "", fmt.Errorf("%w: %s: %w: %s", ErrCompile, c.Command, err, strings.TrimSpace(output))
	}
	if _, err := os.Stat(artifact); err != nil {
		return "", fmt.Errorf("%w: %s produced no artifact: %w", ErrCompile, c.Command, err)
	}
	return artifact, nil
}
