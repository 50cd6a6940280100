package protection

import (
	"net/http"
	"strings"
	"testing"
)

func TestDetector_Check(t *testing.T) {
	d := NewDetector()
	realPage := "<html><body><main><h1>Acme</h1><p>" + strings.Repeat("Real product copy. ", 40) + "</p></main></body></html>"

	tests := []struct {
		name       string
		statusCode int
		headers    http.Header
		body       string
		wantSignal Signal
	}{
		{
			name:       "normal page",
			statusCode: 200,
			body:       realPage,
			wantSignal: SignalNone,
		},
		{
			name:       "short page with content element",
			statusCode: 200,
			body:       "<html><body><article>Short but real.</article></body></html>",
			wantSignal: SignalNone,
		},
		{
			name:       "403",
			statusCode: 403,
			body:       realPage,
			wantSignal: SignalAccessDenied,
		},
		{
			name:       "429",
			statusCode: 429,
			wantSignal: SignalRateLimited,
		},
		{
			name:       "cloudflare header",
			statusCode: 200,
			headers:    http.Header{"Cf-Mitigated": []string{"challenge"}},
			body:       realPage,
			wantSignal: SignalCloudflare,
		},
		{
			name:       "cloudflare interstitial",
			statusCode: 200,
			body:       `<html><head><title>Just a moment...</title></head><body><div id="cf-browser-verification"></div></body></html>`,
			wantSignal: SignalCloudflare,
		},
		{
			name:       "recaptcha",
			statusCode: 200,
			body:       `<html><body><div class="g-recaptcha" data-sitekey="x"></div>` + strings.Repeat(" ", 600) + `</body></html>`,
			wantSignal: SignalCaptcha,
		},
		{
			name:       "access denied text",
			statusCode: 200,
			body:       "<html><body><h1>Access Denied</h1></body></html>",
			wantSignal: SignalAccessDenied,
		},
		{
			name:       "javascript required",
			statusCode: 200,
			body:       "<html><body><noscript>Please enable JavaScript to continue</noscript></body></html>",
			wantSignal: SignalJavaScriptRequired,
		},
		{
			name:       "empty spa root",
			statusCode: 200,
			body:       `<html><body><div id="__next"></div><script src="/app.js"></script>` + strings.Repeat(" ", 600) + `</body></html>`,
			wantSignal: SignalJavaScriptRequired,
		},
		{
			name:       "empty body",
			statusCode: 200,
			wantSignal: SignalEmptyContent,
		},
		{
			name:       "tiny body",
			statusCode: 200,
			body:       "<html>ok</html>",
			wantSignal: SignalEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Check(tt.statusCode, tt.headers, []byte(tt.body))
			if got.Signal != tt.wantSignal {
				t.Errorf("Check() signal = %q, want %q (reason %q)", got.Signal, tt.wantSignal, got.Reason)
			}
			if got.Blocked != (tt.wantSignal != SignalNone) {
				t.Errorf("Check() blocked = %v, want %v", got.Blocked, tt.wantSignal != SignalNone)
			}
		})
	}
}
