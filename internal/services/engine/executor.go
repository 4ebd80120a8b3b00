package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	config "github.com/Vaarun-C/UptimeMonitor/internal/config/engine"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/probe"
	"github.com/Vaarun-C/UptimeMonitor/internal/domain/target"
)

// Prober issues a single check attempt. One call, one request, no retries.
type Prober interface {
	Check(ctx context.Context, t *target.Target) *probe.Result
}

var _ Prober = (*Executor)(nil)

// Executor performs one HTTP probe per Check call and classifies the outcome.
// It is stateless with respect to the engine: the network request is its only
// side effect.
type Executor struct {
	client    *http.Client
	method    string
	userAgent string
	timeout   time.Duration
}

func NewExecutor(cfg config.Probe) *Executor {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	client := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	method := http.MethodGet
	if strings.EqualFold(cfg.Method, http.MethodHead) {
		method = http.MethodHead
	}

	return &Executor{
		client:    client,
		method:    method,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
}

func (e *Executor) Check(ctx context.Context, t *target.Target) *probe.Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res := &probe.Result{TargetID: t.ID}

	req, err := http.NewRequestWithContext(ctx, e.method, normalizeURL(t.URL), nil)
	if err != nil {
		res.Timestamp = time.Now().UTC()
		res.Outcome = probe.OutcomeConnectionError
		return res
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	res.LatencyMS = time.Since(start).Milliseconds()
	res.Timestamp = time.Now().UTC()
	if err != nil {
		res.Outcome = classifyTransport(err)
		return res
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	res.Code = &code
	if code < 400 {
		res.Success = true
		res.Outcome = probe.OutcomeSuccess
	} else {
		res.Outcome = probe.OutcomeHTTPError
	}
	return res
}

// classifyTransport splits no-response failures into timeout vs everything
// that died before a response (DNS, refused, TLS).
func classifyTransport(err error) probe.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return probe.OutcomeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return probe.OutcomeTimeout
	}
	return probe.OutcomeConnectionError
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return "http://" + t
}
