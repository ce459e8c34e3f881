package installer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Layout names the directories the installer touches inside a project.
type Layout struct {
	Root         string
	GitHub       string
	Chatmodes    string
	Instructions string
	VSCode       string
}

func NewLayout(root string) Layout {
	github := filepath.Join(root, ".github")
	return Layout{
		Root:         root,
		GitHub:       github,
		Chatmodes:    filepath.Join(github, "chatmodes"),
		Instructions: filepath.Join(github, "instructions"),
		VSCode:       filepath.Join(root, ".vscode"),
	}
}

func (l Layout) PackageJSON() string { return filepath.Join(l.Root, "package.json") }

func (l Layout) Settings() string { return filepath.Join(l.VSCode, "settings.json") }

// CheckRoot fails when the project directory is missing.
func (l Layout) CheckRoot() error {
	info, err := os.Stat(l.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory %s does not exist", l.Root)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", l.Root)
	}
	return nil
}

func (l Layout) EnsureDirectories() error {
	for _, dir := range []string{l.Chatmodes, l.Instructions} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ValidateProject reports whether the root looks like a project: it has a
// package.json or a .git directory.
func (l Layout) ValidateProject() bool {
	return exists(l.PackageJSON()) || exists(filepath.Join(l.Root, ".git"))
}

// InstalledChatmodes lists *.chatmode.md files already in the project.
func (l Layout) InstalledChatmodes() ([]string, error) {
	entries, err := os.ReadDir(l.Chatmodes)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".chatmode.md") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeJSON writes v indented by two spaces with a trailing newline.
func writeJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", filepath.Base(path), err)
	}
	out.WriteByte('\n')
	return writeFile(path, out.Bytes())
}
