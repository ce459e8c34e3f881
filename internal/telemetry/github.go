package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leshachaplin/testgenie/internal/domain"
)

const (
	IssueTransportName    = "issue"
	DispatchTransportName = "dispatch"
)

// IssueTransport files each event as an issue in the analytics repository.
// It needs a token; without one every attempt fails immediately.
type IssueTransport struct {
	poster *poster
	url    string
	now    func() time.Time
}

func NewIssueTransport(cfg Config, hc *http.Client) *IssueTransport {
	return &IssueTransport{
		poster: newPoster(cfg, hc),
		url:    fmt.Sprintf("%s/repos/%s/issues", cfg.APIURL, cfg.Repo),
		now:    time.Now,
	}
}

func (t *IssueTransport) Name() string { return IssueTransportName }

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

func (t *IssueTransport) Send(ctx context.Context, e domain.Event) Result {
	if t.poster.token == "" {
		return failed(t.Name(), 0, errNoToken)
	}

	now := t.now().UTC()
	req := issueRequest{
		Title:  fmt.Sprintf("[Analytics] %s - %s", e.Action, eventDay(e, now)),
		Body:   issueBody(e, now),
		Labels: issueLabels(e),
	}

	payload, terr := t.poster.post(ctx, t.Name(), t.url, req, true, true)
	if terr != nil {
		return Result{Err: terr}
	}

	var issue struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal(payload, &issue); err != nil || issue.Number == 0 {
		return ok("issue")
	}
	return ok(fmt.Sprintf("issue #%d", issue.Number))
}

// eventDay is the UTC day of the event's own timestamp; fallback covers
// timestamps that do not parse.
func eventDay(e domain.Event, fallback time.Time) string {
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		ts = fallback
	}
	return ts.UTC().Format(time.DateOnly)
}

func issueLabels(e domain.Event) []string {
	labels := []string{"analytics", e.Action}
	for _, key := range []string{domain.DataPlatform, domain.DataInstallMethod} {
		v := e.DataString(key)
		if v == "" {
			v = domain.Unknown
		}
		labels = append(labels, v)
	}
	return labels
}

func orUnknown(s string) string {
	if s == "" {
		return domain.Unknown
	}
	return s
}

func issueBody(e domain.Event, now time.Time) string {
	var u domain.UserInfo
	if e.UserInfo != nil {
		u = *e.UserInfo
	}

	success := "true"
	if v, ok := e.Data["success"].(bool); ok && !v {
		success = "false"
	}
	duration := domain.Unknown
	if d := e.DataString("duration"); d != "" {
		duration = d + "ms"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## TestGenie Analytics Event [%s]\n\n", e.EventID)

	b.WriteString("### Event Details\n")
	fmt.Fprintf(&b, "**User**: %s\n", orUnknown(u.Username))
	fmt.Fprintf(&b, "**Email**: %s\n", orUnknown(u.UserEmail))
	fmt.Fprintf(&b, "**Hostname**: %s\n", orUnknown(u.Hostname))
	fmt.Fprintf(&b, "**Action**: %s\n", e.Action)
	fmt.Fprintf(&b, "**Timestamp**: %s\n", e.Timestamp)
	fmt.Fprintf(&b, "**Event ID**: %s\n\n", e.EventID)

	b.WriteString("### System Information\n")
	fmt.Fprintf(&b, "**Version**: %s\n", orUnknown(e.DataString(domain.DataVersion)))
	fmt.Fprintf(&b, "**Platform**: %s\n", orUnknown(e.DataString(domain.DataPlatform)))
	fmt.Fprintf(&b, "**Architecture**: %s\n", orUnknown(e.DataString(domain.DataArch)))
	fmt.Fprintf(&b, "**Runtime Version**: %s\n", orUnknown(e.DataString(domain.DataRuntimeVersion)))
	fmt.Fprintf(&b, "**Install Method**: %s\n\n", orUnknown(e.DataString(domain.DataInstallMethod)))

	b.WriteString("### Command Details\n")
	fmt.Fprintf(&b, "**Install Location**: %s\n", orUnknown(e.DataString(domain.DataInstallLocation)))
	fmt.Fprintf(&b, "**Command**: %s\n", orUnknown(e.DataString("command")))
	fmt.Fprintf(&b, "**Success**: %s\n", success)
	fmt.Fprintf(&b, "**Duration**: %s\n\n", duration)

	b.WriteString("---\n")
	fmt.Fprintf(&b, "*Generated by TestGenie Analytics v%s on %s*\n",
		orUnknown(e.DataString(domain.DataVersion)), now.Format(time.RFC3339))
	return b.String()
}

// DispatchTransport triggers a repository_dispatch webhook carrying the flat event.
type DispatchTransport struct {
	poster *poster
	url    string
}

func NewDispatchTransport(cfg Config, hc *http.Client) *DispatchTransport {
	return &DispatchTransport{
		poster: newPoster(cfg, hc),
		url:    fmt.Sprintf("%s/repos/%s/dispatches", cfg.APIURL, cfg.Repo),
	}
}

func (t *DispatchTransport) Name() string { return DispatchTransportName }

type dispatchRequest struct {
	EventType     string         `json:"event_type"`
	ClientPayload map[string]any `json:"client_payload"`
}

func (t *DispatchTransport) Send(ctx context.Context, e domain.Event) Result {
	req := dispatchRequest{EventType: "analytics_data", ClientPayload: e.Flat()}
	if _, terr := t.poster.post(ctx, t.Name(), t.url, req, true, true); terr != nil {
		return Result{Err: terr}
	}
	return ok("webhook")
}
