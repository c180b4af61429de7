// Package fetcher performs the credentialed cross-origin requests every other
// component depends on. It carries the linux.do session cookies that a browser
// would attach on its own.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/telemetry"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_new        = "fetcher.new"
	report_fetcher_fetch_raw  = "fetcher.fetch-raw"
	report_fetcher_fetch_json = "fetcher.fetch-json"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// StatusError is returned when a response status is outside of the 2xx range.
type StatusError struct {
	Code int
	Url  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

type Options struct {
	// Cookies maps a host (ex. "connect.linux.do") to a raw Cookie header value.
	Cookies map[string]string
	// DiscourseHosts are host suffixes that get the discourse XHR headers on json requests.
	DiscourseHosts []string
	UserAgent      string
	Timeout        time.Duration
	// RequestsPerSecond limits outbound requests, 0 means 2 per second.
	RequestsPerSecond float64
	// DisableCloudflareBypass skips wrapping the transport, mostly for tests.
	DisableCloudflareBypass bool
}

type Fetcher struct {
	http           *resty.Client
	discourseHosts []string
	tel            telemetry.API
}

func New(opts Options, tel telemetry.API) (*Fetcher, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("fetcher", tel)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	for host, raw := range opts.Cookies {
		cookies := parseCookieHeader(raw)
		if len(cookies) == 0 {
			tel.ReportWarning(report_fetcher_new, fmt.Errorf("no cookies parsed for host"), host)
			continue
		}
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cookies)
		jar.SetCookies(&url.URL{Scheme: "http", Host: host, Path: "/"}, cookies)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = 2
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if !opts.DisableCloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetTimeout(timeout)

	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(rps), 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, "ldmonitor/fetcher")

	return &Fetcher{
		http:           httpClient,
		discourseHosts: opts.DiscourseHosts,
		tel:            tel,
	}, nil
}

func parseCookieHeader(raw string) []*http.Cookie {
	req := http.Request{Header: http.Header{"Cookie": {raw}}}
	return req.Cookies()
}

func (f *Fetcher) isDiscourseHost(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, suffix := range f.discourseHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func (f *Fetcher) get(ctx context.Context, reportId, link string, headers map[string]string) (*resty.Response, error) {
	res, err := f.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(link)
	if err != nil {
		f.tel.ReportBroken(reportId, fmt.Errorf("request: %w", err), link)
		return nil, err
	}
	if !res.IsSuccess() {
		err := &StatusError{Code: res.StatusCode(), Url: link}
		f.tel.ReportWarning(reportId, err, link)
		return nil, err
	}
	return res, nil
}

// FetchRaw returns the response body of a GET request as text.
func (f *Fetcher) FetchRaw(ctx context.Context, link string) (string, error) {
	res, err := f.get(ctx, report_fetcher_fetch_raw, link, nil)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// FetchJSON decodes the response body of a GET request into out. Requests to a
// discourse host carry the headers discourse needs to return the full payload.
func (f *Fetcher) FetchJSON(ctx context.Context, link string, out any) error {
	headers := map[string]string{
		"Accept": "application/json, text/plain, */*",
	}
	if f.isDiscourseHost(link) {
		headers["X-Requested-With"] = "XMLHttpRequest"
		headers["Discourse-Present"] = "true"
	}
	return f.FetchJSONWithHeaders(ctx, link, headers, out)
}

// FetchJSONWithHeaders is FetchJSON with the caller in full control of the headers.
func (f *Fetcher) FetchJSONWithHeaders(ctx context.Context, link string, headers map[string]string, out any) error {
	res, err := f.get(ctx, report_fetcher_fetch_json, link, headers)
	if err != nil {
		return err
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		f.tel.ReportBroken(report_fetcher_fetch_json, fmt.Errorf("decode json: %w", err), link)
		return fmt.Errorf("decode %s: %w", link, err)
	}
	return nil
}
