package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/rankwatch/models"
)

// HTTPEngine is the lightweight strategy: one GET per keyword with a
// randomized identity and a randomized pre-request delay.
type HTTPEngine struct {
	client    *http.Client
	searchURL string
	identity  IdentitySource
	pacer     *Pacer
	delayMin  time.Duration
	delayMax  time.Duration
	timeout   time.Duration
}

// HTTPOptions configures an HTTPEngine.
type HTTPOptions struct {
	SearchURL string
	Proxy     string
	DelayMin  time.Duration
	DelayMax  time.Duration
	Timeout   time.Duration
	Identity  IdentitySource
	Pacer     *Pacer
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
func NewHTTPEngine(opts HTTPOptions) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	if opts.Pacer == nil {
		opts.Pacer = NewPacer(nil, nil)
	}
	if opts.Identity == nil {
		opts.Identity = NewRotation(opts.Pacer)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		searchURL: opts.SearchURL,
		identity:  opts.Identity,
		pacer:     opts.Pacer,
		delayMin:  opts.DelayMin,
		delayMax:  opts.DelayMax,
		timeout:   opts.Timeout,
	}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error) {
	if err := e.pacer.Pause(ctx, e.delayMin, e.delayMax); err != nil {
		return nil, models.NewScrapeError(models.KindNetwork, "pre-request delay interrupted", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := e.fetch(ctx, SearchURL(e.searchURL, keyword, numResults))
	if err != nil {
		return nil, err
	}
	return observe(e.Name(), body, keyword, domain), nil
}

func (e *HTTPEngine) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", models.NewScrapeError(models.KindConfiguration, "build request", err)
	}
	req.Header.Set("User-Agent", e.identity.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", models.NewScrapeError(models.KindNetwork,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	// 10 MB cap; results pages are far smaller.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", models.NewScrapeError(models.KindNetwork, "read body", err)
	}
	return string(body), nil
}
