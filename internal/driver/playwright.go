package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	networkIdleWait  = 10 * time.Second
)

// modalVisibleScript mirrors how the portal hides modal panels: the wrapper
// stays in the DOM with a computed display of none.
const modalVisibleScript = `(selector) => {
  const el = document.querySelector(selector);
  if (!el) return false;
  return window.getComputedStyle(el).display !== 'none';
}`

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Options configures a browser session.
type Options struct {
	Headless       bool
	Timeout        time.Duration
	ScreenshotDir  string
	DumpDir        string
	UserAgent      string
	Logger         zerolog.Logger
	Clock          func() time.Time
	InstallBrowser bool
}

// Playwright drives a single Chromium page. It is not safe for concurrent use.
type Playwright struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    Options
	log     zerolog.Logger
}

// Launch starts Playwright, a Chromium browser and one page. The caller owns
// the session and must Close it.
func Launch(ctx context.Context, opts Options) (*Playwright, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.InstallBrowser {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("driver: install chromium: %w", err)
		}
	}
	session := &Playwright{opts: opts, log: opts.Logger.With().Str("component", "driver").Logger()}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("driver: start playwright: %w", err)
	}
	session.pw = pw
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("driver: launch chromium: %w", err)
	}
	session.browser = browser
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: 1280, Height: 720},
		UserAgent: playwright.String(opts.UserAgent),
	})
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("driver: new browser context: %w", err)
	}
	session.context = bctx
	page, err := bctx.NewPage()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("driver: new page: %w", err)
	}
	page.SetDefaultTimeout(millis(opts.Timeout))
	session.page = page
	session.log.Info().Bool("headless", opts.Headless).Dur("timeout", opts.Timeout).Msg("Browser initialized")
	return session, nil
}

// Close releases the page, context, browser and driver process. It is safe
// to call on a partially launched session.
func (p *Playwright) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.context != nil {
		if err := p.context.Close(); err != nil {
			errs = append(errs, err)
		}
		p.context = nil
	}
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		p.browser = nil
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, err)
		}
		p.pw = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("driver: close session: %w", err)
	}
	return nil
}

// Navigate loads url and waits for the network to settle.
func (p *Playwright) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	return wrap("navigate "+url, err)
}

// WaitFor waits until loc is visible.
func (p *Playwright) WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if timeout <= 0 {
		timeout = p.opts.Timeout
	}
	err := p.page.Locator(string(loc)).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	return false, wrap("wait for "+string(loc), err)
}

// Click clicks loc and then gives the page a bounded chance to go idle.
func (p *Playwright) Click(ctx context.Context, loc Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(string(loc)).First().Click(); err != nil {
		return wrap("click "+string(loc), err)
	}
	p.settle()
	return nil
}

// Fill replaces the value of the input at loc.
func (p *Playwright) Fill(ctx context.Context, loc Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap("fill "+string(loc), p.page.Locator(string(loc)).First().Fill(value))
}

// Blur removes focus from loc and clicks an empty corner of the body, which
// is what makes the portal validate a typed card number.
func (p *Playwright) Blur(ctx context.Context, loc Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(string(loc)).First().Blur(); err != nil {
		return wrap("blur "+string(loc), err)
	}
	err := p.page.Locator("body").Click(playwright.LocatorClickOptions{
		Position: &playwright.Position{X: 10, Y: 10},
	})
	return wrap("click body", err)
}

// SelectOption picks the option whose value is value.
func (p *Playwright) SelectOption(ctx context.Context, loc Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Locator(string(loc)).First().SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return wrap("select "+value+" in "+string(loc), err)
}

// ReadText returns the text content of loc.
func (p *Playwright) ReadText(ctx context.Context, loc Locator) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.page.Locator(string(loc)).First().TextContent()
	if err != nil {
		return "", wrap("read "+string(loc), err)
	}
	return text, nil
}

// Evaluate answers structured queries. Modal visibility needs computed
// styles and runs in the page; everything else is extracted from markup.
func (p *Playwright) Evaluate(ctx context.Context, q Query) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if q.Kind == QueryModalVisible {
		raw, err := p.page.Evaluate(modalVisibleScript, strings.TrimSpace(string(q.Target)))
		if err != nil {
			return Result{}, wrap("evaluate "+q.Kind.String(), err)
		}
		visible, _ := raw.(bool)
		return Result{Visible: visible, Operator: -1}, nil
	}
	html, err := p.page.Content()
	if err != nil {
		return Result{}, wrap("read page content", err)
	}
	return EvaluateHTML(html, q)
}

// Screenshot saves a full page capture and returns its path.
func (p *Playwright) Screenshot(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := p.artifactPath(p.opts.ScreenshotDir, name, ".png")
	if err != nil {
		return "", err
	}
	if _, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return "", wrap("screenshot", err)
	}
	p.log.Info().Str("path", path).Msg("Screenshot saved")
	return path, nil
}

// Dump converts the current page to Markdown and saves it.
func (p *Playwright) Dump(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", wrap("read page content", err)
	}
	markdown, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("driver: convert page: %w", err)
	}
	path, err := p.artifactPath(p.opts.DumpDir, name, ".md")
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("<!-- %s captured %s -->\n\n", p.page.URL(), p.opts.Clock().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(header+markdown+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("driver: write dump: %w", err)
	}
	p.log.Info().Str("path", path).Msg("Page dump saved")
	return path, nil
}

func (p *Playwright) settle() {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(millis(networkIdleWait)),
	})
	if err != nil {
		p.log.Debug().Err(err).Msg("Page did not reach network idle")
	}
}

func (p *Playwright) artifactPath(dir, name, ext string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("driver: ensure %s: %w", dir, err)
	}
	return filepath.Join(dir, ArtifactName(name, p.opts.Clock())+ext), nil
}

// ArtifactName builds a filesystem safe, timestamped base name.
func ArtifactName(name string, now time.Time) string {
	safe := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if safe == "" {
		safe = "page"
	}
	return fmt.Sprintf("%s_%s", safe, now.UTC().Format("2006-01-02T15-04-05.000Z"))
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("driver: %s: %w", op, err)
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
