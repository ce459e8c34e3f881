package installer

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes external commands such as `npm install`.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, lastLines(string(out), 5))
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var packageSections = []string{"scripts", "devDependencies", "dependencies"}

// MergePackageJSON folds the template's scripts and dependencies into the
// project's package.json, creating a minimal manifest when none exists.
func MergePackageJSON(l Layout, tmpl []byte, version string) error {
	pkg, found, err := readObject(l.PackageJSON())
	if err != nil {
		return err
	}
	if !found {
		if err := set(pkg, "name", filepath.Base(l.Root)); err != nil {
			return err
		}
		if err := set(pkg, "version", "1.0.0"); err != nil {
			return err
		}
		desc := fmt.Sprintf("Project with TestGenie chatmodes - Created by TestGenie CLI v%s", version)
		if err := set(pkg, "description", desc); err != nil {
			return err
		}
	}

	src, err := parseObject(tmpl)
	if err != nil {
		return fmt.Errorf("parse package template: %w", err)
	}
	for _, section := range packageSections {
		if err := mergeSection(pkg, src, section); err != nil {
			return err
		}
	}
	return writeJSON(l.PackageJSON(), pkg)
}

// InstallDependencies merges package.json and runs npm install in the project.
func InstallDependencies(ctx context.Context, l Layout, tmpl []byte, version string, runner Runner) error {
	if err := MergePackageJSON(l, tmpl, version); err != nil {
		return err
	}
	if err := runner.Run(ctx, l.Root, "npm", "install"); err != nil {
		return fmt.Errorf("failed to install dependencies: %w", err)
	}
	return nil
}
