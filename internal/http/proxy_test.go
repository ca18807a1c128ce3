package http

import (
	"net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/logging"
)

// TestProxyFuncWithBypass_EmptyNoProxy verifies that an empty noProxy always routes through proxy.
func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "", logging.Nop())

	req, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_WildcardDomain verifies *.example.com bypasses api.example.com.
func TestProxyFuncWithBypass_WildcardDomain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.example.com", logging.Nop())

	// Subdomain should bypass proxy
	req, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for api.example.com, got %v", result)
	}
}

// TestProxyFuncWithBypass_ExactDomain verifies example.com bypasses root and subdomains.
func TestProxyFuncWithBypass_ExactDomain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "example.com", logging.Nop())

	// Root domain should bypass
	req, _ := http.NewRequest("GET", "https://example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for example.com, got %v", result)
	}

	// Subdomain should also bypass (httpproxy matches subdomains for a domain without a leading dot)
	req2, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result2, err := proxyFunc(req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result2 != nil {
		t.Errorf("expected nil (bypass) for api.example.com, got %v", result2)
	}
}

// TestProxyFuncWithBypass_CIDR verifies IP/CIDR range matching.
func TestProxyFuncWithBypass_CIDR(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "10.0.0.0/8", logging.Nop())

	// IP in range should bypass
	req, _ := http.NewRequest("GET", "http://10.1.2.3:8080/api", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for 10.1.2.3, got %v", result)
	}
}

// TestProxyFuncWithBypass_NonMatchingHost verifies non-matching hosts route through proxy.
func TestProxyFuncWithBypass_NonMatchingHost(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.internal.corp,10.0.0.0/8", logging.Nop())

	// External host should use proxy
	req, _ := http.NewRequest("GET", "https://api.filequery.dev/v3/", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL for api.filequery.dev, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_MultiplePatterns verifies comma-separated patterns work.
func TestProxyFuncWithBypass_MultiplePatterns(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.example.com, 192.168.0.0/16, internal.corp", logging.Nop())

	tests := []struct {
		name       string
		url        string
		wantBypass bool
	}{
		{"wildcard match", "https://api.example.com/data", true},
		{"cidr match", "http://192.168.1.100/api", true},
		{"exact domain match", "https://internal.corp/status", true},
		{"non-match", "https://api.filequery.dev/v3/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass (nil) for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass && result == nil {
				t.Errorf("expected proxy for %s, got nil (bypass)", tt.url)
			}
		})
	}
}

// proxyFor resolves the proxy the configured client would use for target.
func proxyFor(t *testing.T, client *http.Client, target string) *url.URL {
	t.Helper()
	var tr *http.Transport
	switch rt := client.Transport.(type) {
	case *http.Transport:
		tr = rt
	case ntlmssp.Negotiator:
		tr = rt.RoundTripper.(*http.Transport)
	default:
		t.Fatalf("unexpected transport %T", client.Transport)
	}
	if tr.Proxy == nil {
		return nil
	}
	req, _ := http.NewRequest("GET", target, nil)
	u, err := tr.Proxy(req)
	if err != nil {
		t.Fatalf("Proxy(%s) error = %v", target, err)
	}
	return u
}

// TestConfiguredProxyBypassesStoreHosts drives the proxy from the configuration
// keys: file API calls go through the proxy, the object store on the internal
// network is reached directly.
func TestConfiguredProxyBypassesStoreHosts(t *testing.T) {
	for _, mode := range []string{"basic", "ntlm"} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Default()
			for key, value := range map[string]string{
				"backend":        "remote",
				"api_base_url":   "https://files.example.com",
				"proxy_mode":     mode,
				"proxy_host":     "proxy.corp",
				"proxy_port":     "3128",
				"proxy_user":     "svc",
				"proxy_password": "secret",
				"no_proxy":       "*.internal,10.0.0.0/8",
			} {
				if err := cfg.Set(key, value); err != nil {
					t.Fatalf("Set(%s) error = %v", key, err)
				}
			}

			client, err := ConfigureHTTPClient(cfg, logging.Nop())
			if err != nil {
				t.Fatalf("ConfigureHTTPClient() error = %v", err)
			}

			u := proxyFor(t, client, cfg.APIBaseURL+"/api/v1/files")
			if u == nil || u.Host != "proxy.corp:3128" {
				t.Fatalf("file API proxy = %v, want proxy.corp:3128", u)
			}
			if pw, _ := u.User.Password(); u.User.Username() != "svc" || pw != "secret" {
				t.Errorf("proxy credentials = %v", u.User)
			}
			for _, direct := range []string{"https://minio.internal:9000/bucket", "http://10.1.2.3:9000/bucket"} {
				if u := proxyFor(t, client, direct); u != nil {
					t.Errorf("%s proxied via %v, want direct", direct, u)
				}
			}
		})
	}
}

// TestConfiguredProxyWithoutPassword keeps credentials out of the proxy URL
// until the password is known.
func TestConfiguredProxyWithoutPassword(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "basic"
	cfg.ProxyHost = "proxy.corp"
	cfg.ProxyUser = "svc"

	if !NeedsProxyPassword(cfg) {
		t.Error("NeedsProxyPassword() = false, want true")
	}
	client, err := ConfigureHTTPClient(cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	u := proxyFor(t, client, "https://files.example.com/api/v1/files")
	if u == nil || u.Host != "proxy.corp:8080" || u.User != nil {
		t.Errorf("proxy = %v, want proxy.corp:8080 without credentials", u)
	}
}
