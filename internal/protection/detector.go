// Package protection recognises challenge and block pages so scraped
// content is not mistaken for the real site.
package protection

import (
	"net/http"
	"regexp"
	"strings"
)

// Signal identifies the kind of block detected.
type Signal string

const (
	SignalNone               Signal = ""
	SignalCloudflare         Signal = "cloudflare"
	SignalCaptcha            Signal = "captcha"
	SignalAccessDenied       Signal = "access_denied"
	SignalRateLimited        Signal = "rate_limited"
	SignalEmptyContent       Signal = "empty_content"
	SignalJavaScriptRequired Signal = "javascript_required"
)

// Result is the outcome of checking one response.
type Result struct {
	Blocked bool
	Signal  Signal
	// Confidence is 0-100.
	Confidence int
	Reason     string
}

// Detector checks HTTP responses for block pages.
type Detector struct {
	// MinContentLength is the smallest body accepted without a content element.
	MinContentLength int
}

// NewDetector creates a detector with default thresholds.
func NewDetector() *Detector {
	return &Detector{MinContentLength: 500}
}

var (
	cloudflarePatterns = []string{
		"cf-browser-verification",
		"challenge-platform",
		"cf_chl_opt",
		"checking your browser",
		"attention required! | cloudflare",
		"just a moment...",
	}
	captchaPatterns = []string{
		"g-recaptcha",
		"h-captcha",
		"data-sitekey",
		"cf-turnstile",
	}
	accessDeniedPatterns = []string{
		"access denied",
		"access to this page has been denied",
		"request blocked",
		"bot detected",
		"please verify you are human",
		"are you a robot",
	}
	jsRequiredPatterns = []string{
		"please enable javascript",
		"javascript is required",
		"this site requires javascript",
	}

	contentElement = regexp.MustCompile(`<(article|main|section|h1|p)[\s>]`)
	emptySPARoot   = regexp.MustCompile(`<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`)
)

// Check inspects status, headers and body in that order and returns the first signal found.
func (d *Detector) Check(statusCode int, headers http.Header, body []byte) Result {
	switch statusCode {
	case http.StatusForbidden:
		return Result{Blocked: true, Signal: SignalAccessDenied, Confidence: 90, Reason: "HTTP 403"}
	case http.StatusTooManyRequests:
		return Result{Blocked: true, Signal: SignalRateLimited, Confidence: 95, Reason: "HTTP 429"}
	case http.StatusServiceUnavailable:
		return Result{Blocked: true, Signal: SignalCloudflare, Confidence: 70, Reason: "HTTP 503"}
	}

	if headers != nil && headers.Get("cf-mitigated") == "challenge" {
		return Result{Blocked: true, Signal: SignalCloudflare, Confidence: 95, Reason: "cf-mitigated challenge header"}
	}

	return d.checkBody(body)
}

func (d *Detector) checkBody(body []byte) Result {
	if len(body) == 0 {
		return Result{Blocked: true, Signal: SignalEmptyContent, Confidence: 80, Reason: "empty body"}
	}

	content := string(body)
	lower := strings.ToLower(content)

	groups := []struct {
		patterns   []string
		signal     Signal
		confidence int
	}{
		{cloudflarePatterns, SignalCloudflare, 90},
		{captchaPatterns, SignalCaptcha, 95},
		{accessDeniedPatterns, SignalAccessDenied, 85},
		{jsRequiredPatterns, SignalJavaScriptRequired, 80},
	}
	for _, g := range groups {
		for _, p := range g.patterns {
			if strings.Contains(lower, p) {
				return Result{Blocked: true, Signal: g.signal, Confidence: g.confidence, Reason: "matched " + p}
			}
		}
	}

	if emptySPARoot.MatchString(content) && !contentElement.MatchString(lower) {
		return Result{Blocked: true, Signal: SignalJavaScriptRequired, Confidence: 90, Reason: "empty application root"}
	}

	if len(body) < d.MinContentLength && !contentElement.MatchString(lower) {
		return Result{Blocked: true, Signal: SignalEmptyContent, Confidence: 60, Reason: "body too small"}
	}
	return Result{}
}
