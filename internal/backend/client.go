// Package backend is the request client for the remote quantum service.
//
// Every operation is one POST with a JSON body and one decoded JSON
// response. The client never retries and adds no timeout; the caller's
// context is the only way to abandon an exchange. A response that decodes is
// a result even when the service reports failure in it; only transport and
// decode failures come back as errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qubitpage/qbp/internal/circuit"
)

// Service endpoints, relative to the base URL.
const (
	PathCompile   = "/api/qplang/compile"
	PathExecute   = "/api/qplang/execute"
	PathTokenize  = "/api/qplang/tokenize"
	PathSimulate  = "/api/quantum/simulate"
	PathBenchmark = "/api/qubilogic/benchmark"
	PathEncrypt   = "/api/crypto/encrypt"
	PathDecrypt   = "/api/crypto/decrypt"
	PathQRNG      = "/api/crypto/qrng"
	PathChat      = "/api/aria/chat"
)

// HTTPError is returned when the service answers with an error status and a
// body that is not a JSON payload.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Exchange describes one finished request for recorders.
type Exchange struct {
	ID        string
	Op        string
	Target    string
	Success   *bool
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder receives every exchange once it settles. Recording failures are
// logged and never reach the caller.
type Recorder interface {
	RecordExchange(ctx context.Context, ex Exchange) error
}

// Client talks to one service instance.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	circuits *circuit.Registry
	recorder Recorder
	log      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client. circuits resolves widget ids for Compile and may be
// nil when the caller never compiles from widgets.
func New(baseURL string, circuits *circuit.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     http.DefaultClient,
		circuits: circuits,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if circuits == nil {
		c.circuits = circuit.NewRegistry()
	}
	return c
}

// Outcome is implemented by payloads that carry the service's success flag.
type Outcome interface {
	OK() bool
}

// post runs one exchange and decodes the response into out.
func (c *Client) post(ctx context.Context, op, path, target string, body any, out any) error {
	ex := Exchange{ID: uuid.NewString(), Op: op, Target: target, StartedAt: time.Now().UTC()}
	err := c.do(ctx, path, body, out)
	ex.Duration = time.Since(ex.StartedAt)
	if err != nil {
		ex.Error = err.Error()
	} else if o, ok := out.(Outcome); ok {
		success := o.OK()
		ex.Success = &success
	}
	c.record(ctx, ex)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 400 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) record(ctx context.Context, ex Exchange) {
	fields := []zap.Field{
		zap.String("exchange", ex.ID),
		zap.String("op", ex.Op),
		zap.Duration("duration", ex.Duration),
	}
	if ex.Target != "" {
		fields = append(fields, zap.String("target", ex.Target))
	}
	if ex.Error != "" {
		c.log.Warn("exchange failed", append(fields, zap.String("error", ex.Error))...)
	} else {
		c.log.Debug("exchange settled", fields...)
	}
	if c.recorder == nil {
		return
	}
	// the exchange already happened; a cancelled caller still gets it recorded
	if err := c.recorder.RecordExchange(context.WithoutCancel(ctx), ex); err != nil {
		c.log.Warn("record exchange", zap.String("exchange", ex.ID), zap.Error(err))
	}
}

// IsTransport reports whether err came from the exchange itself rather than
// from an unknown widget.
func IsTransport(err error) bool {
	return err != nil && !errors.Is(err, circuit.ErrUnknownWidget)
}
