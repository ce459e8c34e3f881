package installer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leshachaplin/testgenie/internal/templates"
)

type recordingRunner struct {
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, dir, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{dir, name}, args...))
	return r.err
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testVSCode(t *testing.T) VSCode {
	base := t.TempDir()
	return VSCode{
		UserDir:  filepath.Join(base, "Code", "User"),
		ArgvPath: filepath.Join(base, "Code", "argv.json"),
	}
}

func TestInstallChatmode_SkipsUnlessForced(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.EnsureDirectories())

	target := filepath.Join(l.Chatmodes, "TestGenie.chatmode.md")
	writeRaw(t, target, "custom")

	res, err := InstallChatmode(templates.FS(), l, "test", false)
	require.NoError(t, err)
	assert.Equal(t, []string{target}, res.Skipped)
	assert.Equal(t, []string{filepath.Join(l.Instructions, templates.Instructions)}, res.Written)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(raw))

	res, err = InstallChatmode(templates.FS(), l, "test", true)
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)
	raw, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.NotEqual(t, "custom", string(raw))

	_, err = InstallChatmode(templates.FS(), l, "unknown", false)
	assert.Error(t, err)
}

func TestUpdateChatmodes(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.EnsureDirectories())

	_, err := InstallChatmode(templates.FS(), l, "bug", false)
	require.NoError(t, err)
	_, err = InstallChatmode(templates.FS(), l, "script", false)
	require.NoError(t, err)
	writeRaw(t, filepath.Join(l.Chatmodes, "BugGenie.chatmode.md"), "old")

	res, err := UpdateChatmodes(templates.FS(), l)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(l.Chatmodes, "BugGenie.chatmode.md")}, res.Written)
	assert.Len(t, res.Unchanged, 2)
	assert.NoFileExists(t, filepath.Join(l.Chatmodes, "TestGenie.chatmode.md"))

	installed, err := l.InstalledChatmodes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BugGenie.chatmode.md", "ScriptGenerator.chatmode.md"}, installed)
}

func TestMergePackageJSON(t *testing.T) {
	tmpl := []byte(`{
		"scripts": {"test": "playwright test", "report": "allure open"},
		"devDependencies": {"@playwright/test": "^1.48.0"},
		"dependencies": {"dotenv": "^16.4.0"}
	}`)

	t.Run("existing manifest keeps order and fields", func(t *testing.T) {
		l := NewLayout(t.TempDir())
		writeRaw(t, l.PackageJSON(), `{
  "name": "shop",
  "private": true,
  "scripts": {"build": "tsc", "test": "jest"},
  "dependencies": {"lodash": "^4.0.0"}
}`)

		require.NoError(t, MergePackageJSON(l, tmpl, "1.2.0"))

		raw, err := os.ReadFile(l.PackageJSON())
		require.NoError(t, err)
		text := string(raw)
		assert.Less(t, strings.Index(text, `"name"`), strings.Index(text, `"private"`))
		assert.Less(t, strings.Index(text, `"build"`), strings.Index(text, `"report"`))

		pkg := readJSON(t, l.PackageJSON())
		assert.Equal(t, "shop", pkg["name"])
		assert.Equal(t, true, pkg["private"])
		assert.Equal(t, map[string]any{"build": "tsc", "test": "playwright test", "report": "allure open"}, pkg["scripts"])
		assert.Equal(t, map[string]any{"lodash": "^4.0.0", "dotenv": "^16.4.0"}, pkg["dependencies"])
		assert.Equal(t, map[string]any{"@playwright/test": "^1.48.0"}, pkg["devDependencies"])
	})

	t.Run("missing manifest is created", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "demo-app")
		require.NoError(t, os.MkdirAll(root, 0o755))
		l := NewLayout(root)

		require.NoError(t, MergePackageJSON(l, tmpl, "1.2.0"))

		pkg := readJSON(t, l.PackageJSON())
		assert.Equal(t, "demo-app", pkg["name"])
		assert.Equal(t, "1.0.0", pkg["version"])
		assert.Contains(t, pkg["description"], "TestGenie CLI v1.2.0")
	})

	t.Run("corrupt manifest is an error", func(t *testing.T) {
		l := NewLayout(t.TempDir())
		writeRaw(t, l.PackageJSON(), `{nope`)
		assert.Error(t, MergePackageJSON(l, tmpl, "1.2.0"))
	})
}

func TestInstallDependencies_RunsNpm(t *testing.T) {
	l := NewLayout(t.TempDir())
	runner := &recordingRunner{}

	require.NoError(t, InstallDependencies(context.Background(), l, []byte(`{}`), "1.0.0", runner))
	assert.Equal(t, [][]string{{l.Root, "npm", "install"}}, runner.calls)

	runner.err = errors.New("exit status 1")
	err := InstallDependencies(context.Background(), l, []byte(`{}`), "1.0.0", runner)
	assert.ErrorContains(t, err, "failed to install dependencies")
}

func TestMergeMCP(t *testing.T) {
	tmpl := []byte(`{
		"servers": {"atlassian": {"type": "http", "url": "https://new"}},
		"inputs": [{"id": "token"}]
	}`)
	existing := `{
  "servers": {
    "mine": {"type": "stdio", "command": "x"},
    "atlassian": {"type": "http", "url": "https://old"}
  },
  "inputs": [{"id": "old"}],
  "extra": 1
}`

	cases := map[string]struct {
		force bool
		want  map[string]any
	}{
		"merge": {
			want: map[string]any{
				"servers": map[string]any{
					"mine":      map[string]any{"type": "stdio", "command": "x"},
					"atlassian": map[string]any{"type": "http", "url": "https://new"},
				},
				"inputs": []any{map[string]any{"id": "token"}},
				"extra":  float64(1),
			},
		},
		"force": {
			force: true,
			want: map[string]any{
				"servers": map[string]any{
					"atlassian": map[string]any{"type": "http", "url": "https://new"},
				},
				"inputs": []any{map[string]any{"id": "token"}},
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeRaw(t, MCPPath(dir), existing)

			path, err := MergeMCP(dir, tmpl, tc.force)
			require.NoError(t, err)
			assert.Equal(t, tc.want, readJSON(t, path))
		})
	}
}

func TestResolveProfile(t *testing.T) {
	v := testVSCode(t)
	require.NoError(t, os.MkdirAll(v.ProfileDir("abc123"), 0o755))
	require.NoError(t, os.MkdirAll(v.ProfileDir("work"), 0o755))

	pick := func(id string) ChooseFunc {
		return func(offered []string) (string, bool) {
			assert.Equal(t, []string{DefaultProfile, "abc123", "work"}, offered)
			return id, true
		}
	}

	p := v.ResolveProfile("work", nil)
	assert.Equal(t, Profile{ID: "work", Dir: v.ProfileDir("work"), Source: "flag"}, p)

	p = v.ResolveProfile(DefaultProfile, nil)
	assert.Equal(t, v.UserDir, p.Dir)

	p = v.ResolveProfile("", pick("abc123"))
	assert.Equal(t, "prompt", p.Source)
	assert.Equal(t, v.ProfileDir("abc123"), p.Dir)

	p = v.ResolveProfile("", nil)
	assert.Equal(t, "default", p.Source)
	assert.Equal(t, v.UserDir, p.Dir)

	writeRaw(t, v.ArgvPath, "// editor flags\n{\n  \"profile\": \"work\"\n}\n")
	p = v.ResolveProfile("missing", pick("abc123"))
	assert.Equal(t, "argv.json", p.Source)
	assert.Equal(t, "work", p.ID)
	assert.NotEmpty(t, p.Note)
}

func TestApplySettings(t *testing.T) {
	l := NewLayout(t.TempDir())
	writeRaw(t, l.Settings(), `{"editor.tabSize": 2}`)

	require.NoError(t, ApplySettings(l))
	assert.Equal(t, map[string]any{
		"editor.tabSize":                 float64(2),
		"chat.useNestedAgentsMdFiles":    true,
		"chat.agentSessionsViewLocation": "view",
	}, readJSON(t, l.Settings()))

	writeRaw(t, l.Settings(), `{corrupt`)
	require.NoError(t, ApplySettings(l))
	assert.Len(t, readJSON(t, l.Settings()), 2)
}

func TestInstaller_Install(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	runner := &recordingRunner{}
	inst := New("1.2.0", testVSCode(t), runner, zerolog.Nop())

	rep, err := inst.Install(context.Background(), root, Options{
		Types: templates.Types(),
		Deps:  true,
		MCP:   true,
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, rep.Warnings)
	assert.True(t, rep.DepsInstalled)
	require.NotNil(t, rep.MCP)
	assert.Equal(t, MCPPath(inst.VSCode().UserDir), rep.MCP.Path)
	assert.FileExists(t, rep.MCP.Path)
	assert.Len(t, rep.Chatmodes.Written, 4)
	assert.Len(t, runner.calls, 1)

	for _, c := range templates.Chatmodes() {
		assert.FileExists(t, filepath.Join(root, ".github", "chatmodes", c.File))
	}
	assert.FileExists(t, filepath.Join(root, ".vscode", "settings.json"))
	assert.FileExists(t, filepath.Join(root, "package.json"))
}

func TestInstaller_InstallWarnsAndFails(t *testing.T) {
	inst := New("1.2.0", testVSCode(t), &recordingRunner{}, zerolog.Nop())

	rep, err := inst.Install(context.Background(), t.TempDir(), Options{Types: []string{"script"}}, nil)
	require.NoError(t, err)
	assert.Len(t, rep.Warnings, 1)
	assert.Nil(t, rep.MCP)
	assert.False(t, rep.DepsInstalled)

	_, err = inst.Install(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{}, nil)
	assert.ErrorContains(t, err, "does not exist")
}
