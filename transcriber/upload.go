package transcriber

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"straf/log"
)

const (
	uploadAttempts   = 3
	uploadBackoff    = 500 * time.Millisecond
	uploadMaxBackoff = 5 * time.Second
	uploadMaxBody    = 1 << 20
)

// uploadClient posts utterances to a hosted recognizer. Connections are
// kept warm between utterances; 429 and 5xx responses are retried with
// backoff, honouring Retry-After.
type uploadClient struct {
	client     *http.Client
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

func newUploadClient() *uploadClient {
	return &uploadClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		attempts:   uploadAttempts,
		backoff:    uploadBackoff,
		maxBackoff: uploadMaxBackoff,
	}
}

// uploadTrace says where the time of the last attempt went.
type uploadTrace struct {
	Connect  time.Duration // DNS, TCP and TLS; zero on a reused connection
	TTFB     time.Duration
	Total    time.Duration
	Reused   bool
	Attempts int
}

type uploadResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Trace      uploadTrace
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// post sends body to url. The final response is returned whatever its
// status; only transport errors are reported as errors.
func (c *uploadClient) post(ctx context.Context, url string, header http.Header, body []byte) (*uploadResponse, error) {
	wait := c.backoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header = header.Clone()

		resp, err := c.do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case !retryable(resp.StatusCode) || attempt >= c.attempts:
			resp.Trace.Attempts = attempt
			return resp, nil
		default:
			wait = retryAfter(resp.Header, wait)
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		}
		if attempt >= c.attempts {
			return nil, fmt.Errorf("after %d attempts: %w", attempt, lastErr)
		}

		log.Debugf("transcriber: upload attempt %d failed (%v), retrying in %s", attempt, lastErr, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func (c *uploadClient) do(req *http.Request) (*uploadResponse, error) {
	var tr uploadTrace
	var connectStart, wroteRequest time.Time
	trace := &httptrace.ClientTrace{
		GotConn:  func(info httptrace.GotConnInfo) { tr.Reused = info.Reused },
		DNSStart: func(httptrace.DNSStartInfo) { connectStart = time.Now() },
		ConnectStart: func(_, _ string) {
			if connectStart.IsZero() {
				connectStart = time.Now()
			}
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) { tr.Connect = time.Since(connectStart) },
		WroteRequest:     func(httptrace.WroteRequestInfo) { wroteRequest = time.Now() },
		GotFirstResponseByte: func() {
			tr.TTFB = time.Since(wroteRequest)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, uploadMaxBody))
	if err != nil {
		return nil, err
	}
	tr.Total = time.Since(start)
	return &uploadResponse{Body: body, StatusCode: resp.StatusCode, Header: resp.Header, Trace: tr}, nil
}

// retryAfter reads a Retry-After given in seconds, capped at
// uploadMaxBackoff, and falls back to fallback.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return fallback
	}
	return min(time.Duration(secs)*time.Second, uploadMaxBackoff)
}

// warm opens a connection to url so the first utterance skips the
// handshake.
func (c *uploadClient) warm(url string) {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debugf("transcriber: warming %s: %v", url, err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	log.Debugf("transcriber: connection to %s ready in %s", req.URL.Host, time.Since(start).Round(time.Millisecond))
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
