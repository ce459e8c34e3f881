package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/leshachaplin/testgenie/internal/domain"
)

// Transport is one delivery mechanism in the fallback chain.
type Transport interface {
	Name() string
	Send(ctx context.Context, e domain.Event) Result
}

// Result is the outcome of a single transport attempt. Exactly one of
// Receipt and Err is meaningful: Err == nil means the event was delivered.
type Result struct {
	Receipt string
	Err     *TransportError
}

func (r Result) OK() bool { return r.Err == nil }

func ok(receipt string) Result { return Result{Receipt: receipt} }

func failed(transport string, status int, err error) Result {
	return Result{Err: &TransportError{Transport: transport, StatusCode: status, Err: err}}
}

// TransportError covers network failures, timeouts and non-2xx responses.
type TransportError struct {
	Transport  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Transport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var errNoToken = errors.New("no token configured")

const userAgentPrefix = "TestGenie-Analytics/"

// poster performs single-attempt JSON POSTs on behalf of the HTTP transports.
type poster struct {
	client    *retryablehttp.Client
	userAgent string
	token     string
}

func newPoster(cfg Config, hc *http.Client) *poster {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	if hc != nil {
		c := *hc
		client.HTTPClient = &c
	}
	client.HTTPClient.Timeout = cfg.Timeout
	// Surface the response to the caller instead of retryablehttp's
	// "giving up after 1 attempt" error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &poster{client: client, userAgent: userAgentPrefix + version, token: cfg.Token}
}

// post sends body to url and returns the response payload when the status is 2xx.
func (p *poster) post(ctx context.Context, transport, url string, body any, github, auth bool) ([]byte, *TransportError) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Transport: transport, Err: fmt.Errorf("marshal: %w", err)}
	}
	return p.do(ctx, transport, http.MethodPost, url, raw, github, auth)
}

func (p *poster) get(ctx context.Context, transport, url string) ([]byte, *TransportError) {
	return p.do(ctx, transport, http.MethodGet, url, nil, true, true)
}

func (p *poster) do(ctx context.Context, transport, method, url string, raw []byte, github, auth bool) ([]byte, *TransportError) {
	var body any
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Transport: transport, Err: err}
	}
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", p.userAgent)
	if github {
		req.Header.Set("Accept", "application/vnd.github.v3+json")
	}
	if auth && p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Transport: transport, Err: err}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Transport:  transport,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(payload)),
		}
	}
	return payload, nil
}
