package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout        = 5 * time.Second
	defaultMaxRetries     = 2
	defaultInitialBackoff = 100 * time.Millisecond
	maxResponseBytes      = 1 << 20
)

// ClientConfig bounds outbound provider calls.
type ClientConfig struct {
	// Timeout applies to each attempt.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries     uint
	InitialBackoff time.Duration
	// HTTPClient overrides the transport. Its Timeout is replaced by Timeout.
	HTTPClient *http.Client
	// OnRetry is called before each retry sleep.
	OnRetry func(err error, wait time.Duration)
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	return c
}

// DefaultClientConfig returns 5s per attempt and two retries.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{Timeout: defaultTimeout, MaxRetries: defaultMaxRetries, InitialBackoff: defaultInitialBackoff}
}

var errMalformedResponse = errors.New("malformed provider response")

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// fetcher issues GET requests that decode JSON, retrying transport errors,
// 5xx and 429 with exponential backoff.
type fetcher struct {
	cfg    ClientConfig
	client *http.Client
}

func newFetcher(cfg ClientConfig) *fetcher {
	cfg = cfg.withDefaults()
	client := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.Timeout = cfg.Timeout
	return &fetcher{cfg: cfg, client: client}
}

// withTransport returns an http.Client sharing the fetcher timeout but using rt.
func (f *fetcher) withTransport(rt http.RoundTripper) *http.Client {
	copied := *f.client
	copied.Transport = rt
	return &copied
}

func (f *fetcher) baseTransport() http.RoundTripper {
	if f.client.Transport != nil {
		return f.client.Transport
	}
	return http.DefaultTransport
}

// getJSON fetches endpoint with client and decodes the body into out.
// secrets are removed from any error text.
func (f *fetcher) getJSON(ctx context.Context, client *http.Client, endpoint string, out any, secrets ...string) error {
	if client == nil {
		client = f.client
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.InitialBackoff
	policy.MaxInterval = 2 * time.Second

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(f.cfg.MaxRetries + 1),
		backoff.WithMaxElapsedTime(time.Duration(f.cfg.MaxRetries+1) * (f.cfg.Timeout + policy.MaxInterval)),
	}
	if f.cfg.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			f.cfg.OnRetry(errors.New(scrub(err.Error(), secrets)), wait)
		}))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.attempt(ctx, client, endpoint, out)
	}, opts...)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, ctxErr)
	}
	var status *statusError
	if errors.As(err, &status) && status.code < 500 && status.code != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrInvalidToken, scrub(err.Error(), secrets))
	}
	if errors.Is(err, errMalformedResponse) {
		return fmt.Errorf("%w: %v", ErrUnavailable, errMalformedResponse)
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, scrub(err.Error(), secrets))
}

func (f *fetcher) attempt(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(errors.New("build request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which may carry credentials.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &statusError{code: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backoff.Permanent(&statusError{code: resp.StatusCode})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return backoff.Permanent(errMalformedResponse)
	}
	return nil
}

func scrub(msg string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, "[redacted]")
		}
	}
	return msg
}
