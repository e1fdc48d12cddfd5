// Package probe performs a single connectivity check: connect, send one
// GET request, decode the response, and look for the expected content.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/maxvaer/hostwatch/internal/http11"
	"github.com/maxvaer/hostwatch/internal/transport"
)

// ErrNoMatch means the transfer succeeded but the decoded body did not
// contain the expected substring.
var ErrNoMatch = errors.New("expected content not found in response body")

// Params holds the immutable configuration of a probe.
type Params struct {
	Host      string
	Path      string
	Match     string // literal, case-sensitive substring
	UserAgent string
	Timeout   time.Duration
}

// Result is the outcome of a single probe. The watchdog only consumes
// Success; Err and Duration exist for logging.
type Result struct {
	Success  bool
	Duration time.Duration
	Err      error
}

// RawDisplay receives the decoded response for display when
// --show-response is set.
type RawDisplay interface {
	ShowResponse(headers []string, body []byte)
}

// Prober runs probes against one target. Each probe opens, uses, and
// closes its own connection; nothing is shared between probes.
type Prober struct {
	dialer transport.Dialer
	params Params
	clk    clock.Clock
	log    *zap.SugaredLogger
	raw    RawDisplay // nil = no raw display
}

// New creates a Prober. raw may be nil.
func New(dialer transport.Dialer, params Params, clk clock.Clock, log *zap.SugaredLogger, raw RawDisplay) *Prober {
	return &Prober{dialer: dialer, params: params, clk: clk, log: log, raw: raw}
}

// Probe runs one check. Every failure kind (connect, send, read, decode,
// content mismatch) folds into Success == false; nothing is retried
// within a probe. The connection is closed on every exit path.
func (p *Prober) Probe(ctx context.Context) Result {
	start := p.clk.Now()

	fail := func(stage string, err error) Result {
		wrapped := fmt.Errorf("%s: %w", stage, err)
		p.log.Debugw("probe failed", "stage", stage, "error", err)
		return Result{Duration: p.clk.Since(start), Err: wrapped}
	}

	conn, err := p.dialer.Dial(ctx)
	if err != nil {
		return fail("connect", err)
	}
	defer conn.Close()

	bio := http11.NewIO(conn, p.clk, p.params.Timeout)
	if _, err := bio.Send(p.request()); err != nil {
		return fail("send", err)
	}

	resp, err := http11.ReadResponse(bio)
	if err != nil {
		return fail("read", err)
	}
	if p.raw != nil {
		p.raw.ShowResponse(resp.Headers, resp.Body)
	}
	p.log.Debugw("response decoded",
		"status", resp.StatusCode(), "headers", len(resp.Headers), "body_bytes", len(resp.Body))

	if !bytes.Contains(resp.Body, []byte(p.params.Match)) {
		return fail("match", ErrNoMatch)
	}
	return Result{Success: true, Duration: p.clk.Since(start)}
}

// request builds the wire bytes of the GET request.
func (p *Prober) request() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", p.params.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", p.params.Host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", p.params.UserAgent)
	b.WriteString("Accept: */*\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}
