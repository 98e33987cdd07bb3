package waterfalls

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// pipeline executes requests against the index server. It holds only
// configuration and the transport, so one value serves concurrent calls.
type pipeline struct {
	baseURL    string
	doer       Doer
	sleeper    Sleeper
	header     http.Header
	maxRetries int
	backoff    Backoff
	logger     *zap.Logger
	metrics    Metrics
	headers    *headerCache
}

func (p *pipeline) newRequest(ctx context.Context, method, path string, query []QueryParam, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, buildURL(p.baseURL, path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range p.header {
		req.Header[k] = append([]string(nil), values...)
	}
	return req, nil
}

// send performs one exchange and reads the whole body.
func (p *pipeline) send(req *http.Request) (*response, error) {
	resp, err := p.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

// get issues a GET request, retrying retryable statuses with backoff.
// Once retries are exhausted the last response is returned as is.
func (p *pipeline) get(ctx context.Context, op, path string, query []QueryParam) (*response, error) {
	delay := p.backoff.initialDelay()
	for attempt := 0; ; attempt++ {
		req, err := p.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.send(req)
		if err != nil {
			return nil, err
		}
		if !p.backoff.ShouldRetry(attempt, p.maxRetries, resp.status) {
			return resp, nil
		}

		p.metrics.ObserveRetry(op, resp.status)
		p.logger.Debug("retrying request",
			zap.String("operation", op),
			zap.Int("status", resp.status),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if err := p.sleeper.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: backoff interrupted: %w", ErrTransport, err)
		}
		delay = p.backoff.NextDelay(delay)
	}
}

// post issues a single POST request. It is never retried.
func (p *pipeline) post(ctx context.Context, path, contentType string, body []byte) (*response, error) {
	req, err := p.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return p.send(req)
}

// observe wraps fn with the operation name and reports its outcome.
func observe[T any](p *pipeline, op string, fn func() (T, error)) (T, error) {
	started := time.Now()
	v, err := fn()
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
	}
	p.metrics.Observe(op, err, started)
	return v, err
}
