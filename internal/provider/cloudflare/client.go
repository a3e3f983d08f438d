package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jsribeiro/ddnsd/internal/ddnserr"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// defaultDeadline is the total deadline of each request made through the
// provider's shared HTTP client.
const defaultDeadline = 30 * time.Second

// client is the single HTTP transport shared by one Provider instance.
// It never retries and never sleeps; every method makes exactly one HTTP
// round trip, per the DnsProvider contract's "at-most-once" requirement.
// baseURL is overridden by tests to point at an httptest server.
type client struct {
	http    *http.Client
	token   apiToken
	dryRun  bool
	baseURL string
}

func newClient(token apiToken, dryRun bool) *client {
	return &client{
		http:    &http.Client{Timeout: defaultDeadline},
		baseURL: defaultBaseURL,
		token:   token,
		dryRun: dryRun,
	}
}

func (c *client) do(ctx context.Context, method, url string, body any, write bool) ([]byte, int, error) {
	if write && c.dryRun {
		return nil, 0, errDryRun
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, ddnserr.Wrap(ddnserr.KindInternal, "encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, ddnserr.Wrap(ddnserr.KindInternal, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+string(c.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, ddnserr.Wrap(ddnserr.KindTransient, "cloudflare api request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, ddnserr.Wrap(ddnserr.KindTransient, "read cloudflare response body", err)
	}

	return data, resp.StatusCode, classifyHTTPStatus(resp, data)
}

// errDryRun is a sentinel the provider checks for, distinguishing "we
// intentionally did not issue this write" from a real transport failure.
var errDryRun = fmt.Errorf("dry-run: write suppressed")

// classifyHTTPStatus maps the HTTP-level outcome per SPEC_FULL.md §4.3
// step 5. A nil return means "decode the envelope, it may still carry a
// success:false body".
func classifyHTTPStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ddnserr.New(ddnserr.KindAuthentication, "cloudflare rejected the api token")
	case resp.StatusCode == http.StatusNotFound:
		return ddnserr.New(ddnserr.KindNotFound, "cloudflare resource not found")
	case resp.StatusCode == http.StatusConflict:
		return ddnserr.New(ddnserr.KindConflict, "cloudflare reported a conflicting update")
	case resp.StatusCode == http.StatusTooManyRequests:
		return ddnserr.RateLimited("cloudflare rate limited this request", retryAfter(resp))
	case resp.StatusCode == http.StatusBadRequest:
		// 400 sometimes carries an auth-shaped error code; defer to the
		// envelope decode, which runs classifyCFErrors.
		return nil
	case resp.StatusCode >= 500:
		return ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("cloudflare returned %d", resp.StatusCode))
	default:
		return nil
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func decodeEnvelope[T any](body []byte) (envelope[T], error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return env, ddnserr.Wrap(ddnserr.KindTransient, "decode cloudflare response", err)
	}
	if !env.Success {
		code, message, isAuth, isConflict, isNotFound := classifyCFErrors(env.Errors)
		switch {
		case isAuth:
			return env, ddnserr.New(ddnserr.KindAuthentication, fmt.Sprintf("cloudflare auth error %d: %s", code, message))
		case isConflict:
			return env, ddnserr.New(ddnserr.KindConflict, fmt.Sprintf("cloudflare conflict %d: %s", code, message))
		case isNotFound:
			return env, ddnserr.New(ddnserr.KindNotFound, fmt.Sprintf("cloudflare not found %d: %s", code, message))
		default:
			return env, ddnserr.New(ddnserr.KindTransient, fmt.Sprintf("cloudflare api error %d: %s", code, message))
		}
	}
	return env, nil
}
