package providers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// throttledTransport rate limits outbound requests to a provider and backs
// off for a minute whenever the provider answers with 403, the usual signal
// that we've tripped an anti-scraping guard.
type throttledTransport struct {
	http.RoundTripper
	limiter  *rate.Limiter
	provider string
}

func (t throttledTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(r.Context()); err != nil {
		return nil, &Failure{Provider: t.provider, Kind: FailureTimeout, Err: err}
	}
	resp, err := t.RoundTripper.RoundTrip(r)
	if err != nil {
		return nil, &Failure{Provider: t.provider, Kind: FailureTimeout, Err: err}
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		slog.Default().Warn("backing off after throttle response",
			"provider", t.provider, "status", resp.StatusCode, "tokens", t.limiter.Tokens())
		orig := t.limiter.Limit()
		t.limiter.SetLimit(rate.Every(time.Hour / 60)) // 1 RPM
		t.limiter.SetLimitAt(time.Now().Add(time.Minute), orig)
	}

	return resp, nil
}

// scopedTransport forces every request onto a fixed host regardless of
// redirects, so a provider credential can never leak to a third host.
type scopedTransport struct {
	host string
	http.RoundTripper
}

func (t scopedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r.URL.Scheme = "https"
	r.URL.Host = t.host
	return t.RoundTripper.RoundTrip(r)
}

// headerTransport adds a fixed header (an API key, most often) to every
// request. Pair with scopedTransport so the key only ever reaches one host.
type headerTransport struct {
	key, value string
	http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r.Header.Set(t.key, t.value)
	return t.RoundTripper.RoundTrip(r)
}

// errorProxyTransport turns upstream 4xx/5xx responses into a typed Failure
// instead of an *http.Response the caller has to remember to status-check.
type errorProxyTransport struct {
	http.RoundTripper
	provider string
}

func (t errorProxyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.RoundTripper.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Failure{Provider: t.provider, Kind: FailureAuth, Err: errors.New(resp.Status)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Failure{Provider: t.provider, Kind: FailureRateLimited, Err: errors.New(resp.Status)}
	case resp.StatusCode >= 500:
		return nil, &Failure{Provider: t.provider, Kind: FailureUpstream5xx, Err: errors.New(resp.Status)}
	case resp.StatusCode >= 400:
		return nil, &Failure{Provider: t.provider, Kind: FailureMalformedResponse, Err: errors.New(resp.Status)}
	}
	return resp, nil
}

// newClient builds the layered RoundTripper chain every REST adapter shares:
// rate limiting, host scoping, credential injection, and status translation.
// apiKeyHeader may be empty for providers that take no credential.
func newClient(provider, host, apiKeyHeader, apiKey string, rps float64, burst int) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	rt = throttledTransport{RoundTripper: rt, limiter: rate.NewLimiter(rate.Limit(rps), burst), provider: provider}
	rt = errorProxyTransport{RoundTripper: rt, provider: provider}
	if apiKeyHeader != "" {
		rt = headerTransport{key: apiKeyHeader, value: apiKey, RoundTripper: rt}
	}
	rt = scopedTransport{host: host, RoundTripper: rt}

	return &http.Client{Transport: rt, Timeout: 10 * time.Second}
}
