package telemetry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leshachaplin/testgenie/internal/domain"
)

// Install methods reported with every event.
const (
	InstallEphemeral = "npx"
	InstallGlobal    = "global"
	InstallLocal     = "local"
)

// Builder stamps events with process-wide identity and platform fields.
// All defaults ("unknown") are applied here, once.
type Builder struct {
	version   string
	sessionID string
	user      domain.UserInfo
	platform  map[string]any
	now       func() time.Time
}

// NewBuilder probes the host once. Probes that fail fall back to "unknown".
func NewBuilder(ctx context.Context, version string) *Builder {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = domain.Unknown
	}

	username := domain.Unknown
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}

	email := gitConfig(ctx, "user.email")
	emailDomain := domain.Unknown
	if i := strings.LastIndexByte(email, '@'); i >= 0 && i < len(email)-1 {
		emailDomain = email[i+1:]
	}
	if email == "" {
		email = domain.Unknown
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = domain.Unknown
	}

	return &Builder{
		version:   version,
		sessionID: uuid.NewString(),
		user: domain.UserInfo{
			Username:  username,
			Hostname:  hostname,
			UserEmail: email,
			Domain:    emailDomain,
		},
		platform: map[string]any{
			domain.DataPlatform:        runtime.GOOS,
			domain.DataArch:            runtime.GOARCH,
			domain.DataRuntimeVersion:  runtime.Version(),
			domain.DataNodeVersion:     runtime.Version(),
			domain.DataVersion:         version,
			domain.DataMachineID:       machineID(hostname),
			domain.DataInstallLocation: cwd,
			domain.DataInstallMethod:   DetectInstallMethod(executable()),
		},
		now: time.Now,
	}
}

func (b *Builder) SessionID() string { return b.sessionID }

// Build assembles an event for action. Keys in data override the probed fields.
func (b *Builder) Build(action string, data map[string]any) domain.Event {
	now := b.now()
	payload := make(map[string]any, len(b.platform)+len(data))
	for k, v := range b.platform {
		payload[k] = v
	}
	for k, v := range data {
		payload[k] = v
	}

	u := b.user
	return domain.Event{
		Action:    action,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		SessionID: b.sessionID,
		UserInfo:  &u,
		Data:      payload,
		EventID:   EventID(action, now),
	}
}

// EventID returns "<action>-<unix ms>-<8 hex chars>".
func EventID(action string, at time.Time) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%s-%d-%s", action, at.UnixMilli(), hex.EncodeToString(suffix[:]))
}

func machineID(hostname string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%d", hostname, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())))
	return hex.EncodeToString(sum[:])[:16]
}

func gitConfig(ctx context.Context, key string) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "config", "--global", key).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func executable() string {
	path, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// IsEphemeral reports whether exe lives somewhere that is wiped between runs:
// the system temp dir or the go build cache used by "go run".
func IsEphemeral(exe string) bool {
	if exe == "" {
		return false
	}
	exe = filepath.ToSlash(exe)
	if strings.Contains(exe, "/go-build") || strings.Contains(exe, "/_npx/") {
		return true
	}
	tmp := filepath.ToSlash(os.TempDir())
	return tmp != "" && strings.HasPrefix(exe, strings.TrimRight(tmp, "/")+"/")
}

// DetectInstallMethod classifies how the running binary was installed.
func DetectInstallMethod(exe string) string {
	switch {
	case exe == "":
		return domain.Unknown
	case IsEphemeral(exe):
		return InstallEphemeral
	case strings.Contains(filepath.ToSlash(exe), "/node_modules/"):
		return InstallLocal
	default:
		return InstallGlobal
	}
}
