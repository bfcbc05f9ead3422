package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 8 << 20

// Response is the part of an HTTP response the checker needs.
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports whether the status is 2xx.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport issues a GET request. Implementations must abort the request
// when ctx is done.
type Transport interface {
	Get(ctx context.Context, url string) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, url string) (Response, error)

// Get calls f.
func (f TransportFunc) Get(ctx context.Context, url string) (Response, error) {
	return f(ctx, url)
}

// HTTPTransport is the net/http Transport used against the GitHub API.
type HTTPTransport struct {
	Client    *http.Client
	UserAgent string
	Token     string
}

// Get performs the request bound to ctx and reads the whole body.
func (t *HTTPTransport) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	ua := t.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
