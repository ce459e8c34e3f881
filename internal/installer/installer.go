// Package installer copies TestGenie chat modes into a project and merges the
// package manifest, editor settings and MCP configuration that go with them.
package installer

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/templates"
)

type Options struct {
	Types   []string
	Force   bool
	Deps    bool
	MCP     bool
	Profile string
}

type Report struct {
	Root          string
	Chatmodes     CopyResult
	Warnings      []string
	DepsInstalled bool
	MCP           *MCPReport
}

type MCPReport struct {
	Profile Profile
	Path    string
}

type Installer struct {
	templates fs.FS
	vscode    VSCode
	runner    Runner
	version   string
	logger    zerolog.Logger
}

func New(version string, vscode VSCode, runner Runner, logger zerolog.Logger) *Installer {
	return &Installer{
		templates: templates.FS(),
		vscode:    vscode,
		runner:    runner,
		version:   version,
		logger:    logger,
	}
}

func (i *Installer) VSCode() VSCode { return i.vscode }

// Install runs the full installation into root. choose is consulted when the
// MCP profile cannot be determined otherwise.
func (i *Installer) Install(ctx context.Context, root string, opts Options, choose ChooseFunc) (Report, error) {
	l := NewLayout(root)
	rep := Report{Root: root}

	if err := l.CheckRoot(); err != nil {
		return rep, err
	}
	if !l.ValidateProject() {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s has no package.json or .git; installing anyway", root))
	}
	if err := l.EnsureDirectories(); err != nil {
		return rep, err
	}

	for _, typ := range opts.Types {
		res, err := InstallChatmode(i.templates, l, typ, opts.Force)
		if err != nil {
			return rep, fmt.Errorf("install %s chatmode: %w", typ, err)
		}
		rep.Chatmodes.merge(res)
		i.logger.Debug().Str("type", typ).Int("written", len(res.Written)).Int("skipped", len(res.Skipped)).Msg("chatmode installed")
	}

	if err := ApplySettings(l); err != nil {
		return rep, fmt.Errorf("vscode settings: %w", err)
	}

	if opts.Deps {
		tmpl, err := fs.ReadFile(i.templates, templates.PackageJSON)
		if err != nil {
			return rep, err
		}
		if err := InstallDependencies(ctx, l, tmpl, i.version, i.runner); err != nil {
			return rep, err
		}
		rep.DepsInstalled = true
	}

	if opts.MCP {
		mcp, err := i.SetupMCP(opts.Profile, opts.Force, choose)
		if err != nil {
			return rep, err
		}
		rep.MCP = &mcp
	}
	return rep, nil
}

// SetupMCP merges the MCP template into the resolved profile directory.
func (i *Installer) SetupMCP(profile string, force bool, choose ChooseFunc) (MCPReport, error) {
	p := i.vscode.ResolveProfile(profile, choose)
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return MCPReport{Profile: p}, fmt.Errorf("create %s: %w", p.Dir, err)
	}

	tmpl, err := fs.ReadFile(i.templates, templates.MCPConfig)
	if err != nil {
		return MCPReport{Profile: p}, err
	}
	path, err := MergeMCP(p.Dir, tmpl, force)
	if err != nil {
		return MCPReport{Profile: p, Path: path}, fmt.Errorf("mcp config: %w", err)
	}
	i.logger.Debug().Str("profile", p.ID).Str("source", p.Source).Str("path", path).Msg("mcp config written")
	return MCPReport{Profile: p, Path: path}, nil
}

// Update refreshes chat modes already installed in root.
func (i *Installer) Update(root string) (CopyResult, error) {
	l := NewLayout(root)
	if err := l.CheckRoot(); err != nil {
		return CopyResult{}, err
	}
	return UpdateChatmodes(i.templates, l)
}
