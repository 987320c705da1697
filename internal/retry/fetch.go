package retry

import (
	"context"
	"io"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetch performs the request built by newRequest under Do. The builder is
// invoked once per attempt so request bodies can be replayed. Non-2xx
// responses become *HTTPError.
func Fetch(ctx context.Context, client *http.Client, newRequest func(ctx context.Context) (*http.Request, error), opts Options) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return Do(ctx, func(ctx context.Context) (*Response, error) {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}, opts)
}
