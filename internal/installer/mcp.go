package installer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultProfile = "default"

// VSCode locates the editor's user data. Profiles live under User/profiles/<id>.
type VSCode struct {
	UserDir  string
	ArgvPath string
}

// DefaultVSCode resolves the stable-channel paths for the current OS.
func DefaultVSCode() (VSCode, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return VSCode{}, fmt.Errorf("resolve user config dir: %w", err)
	}
	return VSCode{
		UserDir:  filepath.Join(base, "Code", "User"),
		ArgvPath: filepath.Join(base, "Code", "argv.json"),
	}, nil
}

func (v VSCode) ProfilesDir() string { return filepath.Join(v.UserDir, "profiles") }

func (v VSCode) ProfileDir(id string) string {
	if id == "" || id == DefaultProfile {
		return v.UserDir
	}
	return filepath.Join(v.ProfilesDir(), id)
}

// Profiles lists custom profile ids, sorted.
func (v VSCode) Profiles() ([]string, error) {
	entries, err := os.ReadDir(v.ProfilesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ArgvProfile reads the profile recorded in argv.json, if any. The file may
// contain // comments.
func (v VSCode) ArgvProfile() string {
	raw, err := os.ReadFile(v.ArgvPath)
	if err != nil {
		return ""
	}
	var argv struct {
		Profile string `json:"profile"`
	}
	if err := json.Unmarshal(stripLineComments(raw), &argv); err != nil {
		return ""
	}
	return argv.Profile
}

func stripLineComments(raw []byte) []byte {
	var out bytes.Buffer
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("//")) {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// ChooseFunc picks one of the offered profiles; ok is false when nothing was chosen.
type ChooseFunc func(profiles []string) (choice string, ok bool)

// Profile is the resolved target of an MCP install.
type Profile struct {
	ID     string
	Dir    string
	Source string
	Note   string
}

// ResolveProfile picks the profile directory: an explicit flag, then
// argv.json, then an interactive choice, then the default user directory.
func (v VSCode) ResolveProfile(flag string, choose ChooseFunc) Profile {
	var note string
	if flag != "" {
		if flag == DefaultProfile {
			return Profile{ID: DefaultProfile, Dir: v.UserDir, Source: "flag"}
		}
		if dir := v.ProfileDir(flag); exists(dir) {
			return Profile{ID: flag, Dir: dir, Source: "flag"}
		}
		note = fmt.Sprintf("profile %q not found, detecting automatically", flag)
	}

	if id := v.ArgvProfile(); id != "" && id != DefaultProfile {
		if dir := v.ProfileDir(id); exists(dir) {
			return Profile{ID: id, Dir: dir, Source: "argv.json", Note: note}
		}
	}

	profiles, _ := v.Profiles()
	if len(profiles) > 0 && choose != nil {
		offered := append([]string{DefaultProfile}, profiles...)
		if id, ok := choose(offered); ok {
			return Profile{ID: id, Dir: v.ProfileDir(id), Source: "prompt", Note: note}
		}
	}

	return Profile{ID: DefaultProfile, Dir: v.UserDir, Source: "default", Note: note}
}

func MCPPath(dir string) string { return filepath.Join(dir, "mcp.json") }

// MergeMCP writes the template's servers into dir/mcp.json. Existing servers
// are kept unless force is set, template servers replace same-named ones and
// the template's inputs replace the existing inputs.
func MergeMCP(dir string, tmpl []byte, force bool) (string, error) {
	path := MCPPath(dir)

	cfg := newObject()
	if !force {
		existing, _, err := readObject(path)
		if err != nil {
			return path, err
		}
		cfg = existing
	}

	src, err := parseObject(tmpl)
	if err != nil {
		return path, fmt.Errorf("parse mcp template: %w", err)
	}

	if _, ok := cfg.Get("servers"); !ok {
		if err := set(cfg, "servers", newObject()); err != nil {
			return path, err
		}
	}
	if err := mergeSection(cfg, src, "servers"); err != nil {
		return path, err
	}
	if inputs, ok := src.Get("inputs"); ok {
		cfg.Set("inputs", inputs)
	}

	return path, writeJSON(path, cfg)
}

// Settings applied to the project's .vscode/settings.json.
var editorSettings = []struct {
	Key   string
	Value any
}{
	{Key: "chat.useNestedAgentsMdFiles", Value: true},
	{Key: "chat.agentSessionsViewLocation", Value: "view"},
}

// ApplySettings sets the chat settings in .vscode/settings.json. A corrupt
// file is replaced.
func ApplySettings(l Layout) error {
	settings, _, err := readObject(l.Settings())
	if err != nil {
		settings = newObject()
	}
	for _, s := range editorSettings {
		if err := set(settings, s.Key, s.Value); err != nil {
			return err
		}
	}
	return writeJSON(l.Settings(), settings)
}

// ProfileLabel renders a profile for listings.
func ProfileLabel(id string) string {
	if id == DefaultProfile {
		return "Default (Standard VS Code)"
	}
	return "Profile: " + strings.TrimSpace(id)
}
