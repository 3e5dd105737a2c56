package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/valyala/fasthttp"
)

var httpRequestInfo = models.TestDescriptor{
	ID:           IDHTTPRequest,
	Name:         "HTTP Request",
	Description:  "Repeated GET requests to the configured URL, the way a site calls out to remote APIs.",
	ConfigLabel:  "Requests",
	ConfigUnit:   "requests",
	DefaultValue: 10,
	MinValue:     1,
	MaxValue:     500,
	Experimental: true,
}

type httpRequestParams struct {
	Scoring   `mapstructure:",squash"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// HTTPRequestTest measures outbound HTTP round trips.
type HTTPRequestTest struct {
	scoring Scoring
	url     string
	timeout time.Duration
	client  *fasthttp.Client
	guard   *guard.Guard
}

// NewHTTPRequest builds the http_request test. Params: url, timeout,
// user_agent, target (seconds per request), weight.
func NewHTTPRequest(env Env) (*HTTPRequestTest, error) {
	p := httpRequestParams{
		Scoring:   Scoring{Target: 0.3, Weight: 0.10},
		Timeout:   10 * time.Second,
		UserAgent: "wpbench",
	}
	if err := decodeParams(env.Params, &p); err != nil {
		return nil, fmt.Errorf("http_request params: %w", err)
	}

	return &HTTPRequestTest{
		scoring: p.Scoring,
		url:     p.URL,
		timeout: p.Timeout,
		client: &fasthttp.Client{
			Name:                   p.UserAgent,
			MaxConnsPerHost:        16,
			MaxIdleConnDuration:    30 * time.Second,
			ReadTimeout:            p.Timeout,
			WriteTimeout:           p.Timeout,
			DisablePathNormalizing: true,
		},
		guard: env.guardOrDefault(),
	}, nil
}

func (t *HTTPRequestTest) Info() models.TestDescriptor {
	return httpRequestInfo
}

// Close drops idle keep-alive connections.
func (t *HTTPRequestTest) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPRequestTest) Run(ctx context.Context, value int) (res models.TestResult) {
	if value <= 0 {
		return invalidValue(IDHTTPRequest, value)
	}
	defer recoverInto(IDHTTPRequest, &res)

	stats := &models.HTTPStats{}
	res.HTTP = stats

	if t.url == "" {
		res.Error = "http_request: no url configured (set tests.http_request.params.url)"
		return res
	}

	latency := hdrhistogram.New(latencyLowest, latencyHighest, latencySigFigs)

	var errs errorList
	start := time.Now()
	for i := 0; i < value; i++ {
		if err := checkpoint(ctx, t.guard, i); err != nil {
			errs.Add(fmt.Errorf("stopped after %d requests: %w", i, err))
			break
		}

		began := time.Now()
		status, size, err := t.get(ctx)
		recordLatency(latency, time.Since(began))
		stats.Requests++
		stats.BytesReceived += int64(size)

		switch {
		case err != nil:
			stats.Failures++
			errs.Add(fmt.Errorf("request %d: %w", i, err))
		case status < 200 || status >= 400:
			stats.Failures++
			errs.Add(fmt.Errorf("request %d: HTTP %d", i, status))
		default:
			stats.Successes++
		}
	}
	res.Time = models.Seconds(time.Since(start))

	if latency.TotalCount() > 0 {
		stats.AvgRequestMs = latency.Mean() / 1000
	}
	if errs.Len() > 0 {
		res.Error = errs.String()
	}
	return res
}

func (t *HTTPRequestTest) get(ctx context.Context) (status, size int, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, 0, err
	}
	return resp.StatusCode(), len(resp.Body()), nil
}

// Score rates against Target seconds per request.
func (t *HTTPRequestTest) Score(result models.TestResult, value int) (models.SubScore, error) {
	requests := value
	if result.HTTP != nil && result.HTTP.Requests > 0 {
		requests = result.HTTP.Requests
	}
	return t.scoring.rate(IDHTTPRequest, result.Time, float64(requests))
}
