package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/engine"
	"github.com/ysmood/gson"
)

// rodSession owns one launched Chromium process.
type rodSession struct {
	launcher     *launcher.Launcher
	browser      *rod.Browser
	page         *rod.Page
	router       *rod.HijackRouter
	blockedTypes []string
}

func rodLauncher(cfg config.BrowserConfig) launchFunc {
	return func(ctx context.Context) (session, error) {
		l := launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)
		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}

		// ── Stealth flags ────────────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "TranslateUI")
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("no-first-run"))

		controlURL, err := l.Launch()
		if err != nil {
			l.Kill()
			return nil, err
		}

		s := &rodSession{launcher: l, blockedTypes: cfg.BlockedResourceTypes}
		s.browser = rod.New().ControlURL(controlURL)
		if err := s.browser.Connect(); err != nil {
			s.browser = nil
			_ = s.Close()
			return nil, err
		}
		slog.Debug("browser launched", "controlURL", controlURL)
		return s, nil
	}
}

// Open creates the stealth page, mounts the request filter and navigates.
// Stealth and the filter must be in place before navigation to take effect.
func (s *rodSession) Open(ctx context.Context, req *engine.RenderRequest) error {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return err
	}
	s.page = page

	if req.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      req.UserAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		}); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"DNT": "1"}),
	}.Call(page)

	s.router = setupHijack(page, s.blockedTypes)

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return err
	}
	if req.WaitSelector != "" {
		wait := req.WaitTimeout
		if wait <= 0 {
			wait = 10 * time.Second
		}
		if _, err := p.Timeout(wait).Element(req.WaitSelector); err != nil {
			return err
		}
	}
	return nil
}

func (s *rodSession) HTML() (string, error) {
	if s.page == nil {
		return "", errors.New("page not open")
	}
	return s.page.HTML()
}

// Close tears down in reverse order. It never blocks on a dead browser:
// the process is killed and its profile directory removed regardless.
func (s *rodSession) Close() error {
	var errs []error
	if s.router != nil {
		errs = append(errs, s.router.Stop())
	}
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	return errors.Join(errs...)
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
