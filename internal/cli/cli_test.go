package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leshachaplin/testgenie/internal/consent"
	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/installer"
	"github.com/leshachaplin/testgenie/internal/telemetry"
)

type tracked struct {
	action string
	data   map[string]any
}

type fakeTracker struct {
	mu     sync.Mutex
	events []tracked
}

func (f *fakeTracker) Track(_ context.Context, action string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, tracked{action: action, data: data})
}

func (f *fakeTracker) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.action)
	}
	return out
}

type nopRunner struct{ calls int }

func (r *nopRunner) Run(context.Context, string, string, ...string) error {
	r.calls++
	return nil
}

type harness struct {
	cli     *CLI
	out     *bytes.Buffer
	tracker *fakeTracker
	runner  *nopRunner
	vscode  installer.VSCode
	opened  []string
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	base := t.TempDir()
	h := &harness{
		out:     &bytes.Buffer{},
		tracker: &fakeTracker{},
		runner:  &nopRunner{},
		vscode: installer.VSCode{
			UserDir:  filepath.Join(base, "Code", "User"),
			ArgvPath: filepath.Join(base, "Code", "argv.json"),
		},
	}
	h.cli = &CLI{
		Version:    "1.2.0",
		In:         strings.NewReader(stdin),
		Out:        h.out,
		Err:        h.out,
		Executable: "/usr/local/bin/testgenie",
		Telemetry:  &telemetry.Config{Enabled: true, Repo: "owner/repo", APIURL: "http://127.0.0.1:1"},
		Tracker:    h.tracker,
		Consent:    consent.NewStore(filepath.Join(base, ".testgenie", "config.json")),
		Installer:  installer.New("1.2.0", h.vscode, h.runner, zerolog.Nop()),
		OpenURL: func(_ context.Context, url string) error {
			h.opened = append(h.opened, url)
			return nil
		},
	}
	return h
}

func (h *harness) run(args ...string) error {
	return h.cli.Execute(context.Background(), args)
}

func TestInstall_NonInteractive(t *testing.T) {
	h := newHarness(t, "")
	project := t.TempDir()

	require.NoError(t, h.run("install", project, "-y", "--no-mcp"))

	assert.Equal(t, []string{domain.ActionInstallStart, domain.ActionInstallSuccess}, h.tracker.actions())
	success := h.tracker.events[1].data
	assert.Contains(t, success, "duration")
	assert.Equal(t, true, success["success"])
	assert.Equal(t, project, success["projectPath"])

	assert.FileExists(t, filepath.Join(project, ".github", "chatmodes", "TestGenie.chatmode.md"))
	assert.FileExists(t, filepath.Join(project, "package.json"))
	assert.Equal(t, 1, h.runner.calls)
	assert.NoFileExists(t, installer.MCPPath(h.vscode.UserDir))
	assert.Contains(t, h.out.String(), "installation completed successfully")
}

func TestInstall_SingleType(t *testing.T) {
	h := newHarness(t, "")
	project := t.TempDir()

	require.NoError(t, h.run("install", project, "--type", "script"))

	installed, err := installer.NewLayout(project).InstalledChatmodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"ScriptGenerator.chatmode.md"}, installed)
	assert.Zero(t, h.runner.calls)
}

func TestInstall_Errors(t *testing.T) {
	cases := map[string]struct {
		args []string
		want string
	}{
		"missing directory": {args: []string{"install", "/definitely/not/here", "-y"}, want: "does not exist"},
		"unknown type":      {args: []string{"install", "", "--type", "nope"}, want: "unknown chatmode type"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, "")
			if tc.args[1] == "" {
				tc.args[1] = t.TempDir()
			}

			err := h.run(tc.args...)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)

			assert.Equal(t, []string{domain.ActionInstallStart, domain.ActionInstallError}, h.tracker.actions())
			assert.Contains(t, h.tracker.events[1].data["error"], tc.want)
		})
	}
}

func TestInstall_InteractiveSelection(t *testing.T) {
	// TestGenie yes, BugGenie no, ScriptGenerator default (yes).
	h := newHarness(t, "y\nn\n\n")
	h.cli.Interactive = true
	project := t.TempDir()

	require.NoError(t, h.run("install", project, "--no-deps", "--no-mcp"))

	installed, err := installer.NewLayout(project).InstalledChatmodes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"TestGenie.chatmode.md", "ScriptGenerator.chatmode.md"}, installed)
}

func TestCommands_TrackCommand(t *testing.T) {
	cases := map[string]struct {
		args []string
		out  string
	}{
		"version":   {args: []string{"version"}, out: "testgenie version 1.2.0"},
		"list":      {args: []string{"list"}, out: "TestGenie CLI Features"},
		"analytics": {args: []string{"analytics", "--url"}, out: DashboardURL},
		"auth":      {args: []string{"auth"}, out: "No GitHub token found"},
		"mcp":       {args: []string{"mcp", "--list-profiles"}, out: "No custom profiles found"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, "")
			require.NoError(t, h.run(tc.args...))

			assert.Contains(t, h.out.String(), tc.out)
			require.Len(t, h.tracker.events, 1)
			assert.Equal(t, domain.ActionCommand, h.tracker.events[0].action)
			assert.Equal(t, name, h.tracker.events[0].data["command"])
		})
	}
}

func TestAnalytics_OpensDashboard(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("analytics"))
	assert.Equal(t, []string{DashboardURL}, h.opened)

	h = newHarness(t, "")
	h.cli.OpenURL = func(context.Context, string) error { return errors.New("no browser") }
	require.NoError(t, h.run("analytics"))
	assert.Contains(t, h.out.String(), "visit the URL above manually")
}

func TestMCP_WritesProfile(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, os.MkdirAll(h.vscode.ProfileDir("work"), 0o755))

	require.NoError(t, h.run("mcp", "-p", "work"))
	assert.FileExists(t, installer.MCPPath(h.vscode.ProfileDir("work")))
	assert.Contains(t, h.out.String(), "Profile: work")
}

func TestUpdate(t *testing.T) {
	h := newHarness(t, "")
	project := t.TempDir()
	require.NoError(t, h.run("install", project, "--type", "bug"))

	target := filepath.Join(project, ".github", "chatmodes", "BugGenie.chatmode.md")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	require.NoError(t, h.run("update", project))
	assert.Contains(t, h.out.String(), "Updated 1 file(s)")

	h.out.Reset()
	require.NoError(t, h.run("update", project))
	assert.Contains(t, h.out.String(), "up to date")
}

func TestConsentCommand(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.run("consent"))
	assert.Contains(t, h.out.String(), "Analytics consent: not set")

	require.NoError(t, h.run("consent", "off"))
	v, err := h.cli.Consent.Load()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)

	require.NoError(t, h.run("consent", "on"))
	h.out.Reset()
	require.NoError(t, h.run("consent", "status"))
	assert.Contains(t, h.out.String(), "Analytics consent: on")

	assert.Error(t, h.run("consent", "maybe"))
}

func TestEphemeralRunTracksNpxUsage(t *testing.T) {
	h := newHarness(t, "")
	h.cli.Executable = filepath.Join(os.TempDir(), "go-build123", "b001", "exe", "testgenie")

	require.NoError(t, h.run("version"))

	require.Equal(t, []string{domain.ActionNpxUsage, domain.ActionCommand}, h.tracker.actions())
	assert.Equal(t, "version", h.tracker.events[0].data["command"])
}

type brokenTransport struct{ calls int }

func (b *brokenTransport) Name() string { return "broken" }

func (b *brokenTransport) Send(context.Context, domain.Event) telemetry.Result {
	b.calls++
	return telemetry.Result{Err: &telemetry.TransportError{Transport: "broken", Err: errors.New("down")}}
}

func TestTelemetryFailureDoesNotFailCommand(t *testing.T) {
	h := newHarness(t, "")
	broken := &brokenTransport{}
	h.cli.Tracker = telemetry.NewWithTransports(true,
		telemetry.NewBuilder(context.Background(), "1.2.0"),
		telemetry.ConsentFunc(func() bool { return true }),
		zerolog.Nop(),
		broken,
	)

	require.NoError(t, h.run("install", t.TempDir(), "-y", "--no-deps", "--no-mcp"))
	assert.Equal(t, 2, broken.calls)
}

type countingTransport struct {
	mu      sync.Mutex
	actions []string
}

func (c *countingTransport) Name() string { return "counting" }

func (c *countingTransport) Send(_ context.Context, e domain.Event) telemetry.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, e.Action)
	return telemetry.Result{Receipt: "counted"}
}

func TestConsentOff_StopsDeliveryInSameRun(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.cli.Consent.Save(true))

	sink := &countingTransport{}
	h.cli.Tracker = nil
	h.cli.Transports = []telemetry.Transport{sink}
	h.cli.Executable = filepath.Join(os.TempDir(), "go-build123", "b001", "exe", "testgenie")

	require.NoError(t, h.run("consent", "off"))

	assert.Equal(t, []string{domain.ActionNpxUsage}, sink.actions)
	v, err := h.cli.Consent.Load()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)
}
