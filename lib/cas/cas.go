package cas

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"vtaccess/lib/fetch"
	"vtaccess/lib/htmlutil"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/vterr"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("vtaccess.lib.cas")

const (
	LoginURL         = "https://auth.vt.edu/login?service=https://webapps.banner.vt.edu/banner-cas-prod/authorized/banner/SelfService"
	LogoutURL        = "https://auth.vt.edu/logout"
	DefaultTrustPath = "auth.vt.edu.pem"

	recoveryReminder = "You have not updated account recovery options in the past"
)

type Options struct {
	LoginURL  string
	LogoutURL string
	// where the auth server's certificate is written on every login
	TrustPath string
	// Fetch.RootCAs also verifies the auth server while its
	// certificate is fetched
	Fetch fetch.Options
	// 0 means a session only goes stale through MarkStale
	MaxAge time.Duration
}

func (o Options) withDefaults() Options {
	if o.LoginURL == "" {
		o.LoginURL = LoginURL
	}
	if o.LogoutURL == "" {
		o.LogoutURL = LogoutURL
	}
	if o.TrustPath == "" {
		o.TrustPath = DefaultTrustPath
	}
	if o.Fetch.Timeout <= 0 {
		o.Fetch.Timeout = fetch.DefaultTimeout
	}
	return o
}

// Session is an authenticated portal session. It owns the credentials
// it was opened with until Close or SwitchUser wipes them. A Session
// belongs to one goroutine.
type Session struct {
	opts    Options
	fetcher *fetch.Fetcher

	username []byte
	password []byte
	closed   bool

	cookies  map[string]string
	active   bool
	stale    bool
	loggedIn time.Time
}

// Open logs into the portal. The returned session is active.
func Open(ctx context.Context, username, password string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		opts:     opts,
		fetcher:  fetch.New(opts.Fetch),
		username: []byte(username),
		password: []byte(password),
		cookies:  map[string]string{},
	}
	err := s.login(ctx)
	if err != nil {
		s.wipe()
		s.closed = true
		return nil, err
	}
	return s, nil
}

func (s *Session) Username() string {
	return string(s.username)
}

// Cookies returns a copy of the session cookies.
func (s *Session) Cookies() map[string]string {
	return maps.Clone(s.cookies)
}

func (s *Session) Cookie(name string) string {
	return s.cookies[name]
}

// MarkStale makes the next IsActive re-authenticate.
func (s *Session) MarkStale() {
	s.stale = true
}

func (s *Session) isStale() bool {
	if s.stale {
		return true
	}
	return s.opts.MaxAge > 0 && s.active && time.Since(s.loggedIn) > s.opts.MaxAge
}

// IsActive reports whether the session can be used, refreshing it
// once first when it is stale.
func (s *Session) IsActive(ctx context.Context) bool {
	if s.closed {
		return false
	}
	if s.isStale() {
		return s.Refresh(ctx)
	}
	return s.active
}

// Refresh logs out and back in with the stored credentials.
func (s *Session) Refresh(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "session:Refresh")
	defer span.End()

	if s.closed {
		return false
	}
	s.logout(ctx)
	err := s.login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to refresh session")
		slog.WarnContext(ctx, "session refresh failed", "kind", vterr.KindOf(err), "err", err)
		return false
	}
	return true
}

// SwitchUser logs the current user out, wipes their credentials and
// logs in as someone else. An empty trustPath keeps the current one.
func (s *Session) SwitchUser(ctx context.Context, username, password, trustPath string) error {
	ctx, span := tracer.Start(ctx, "session:SwitchUser")
	defer span.End()

	if !s.closed {
		s.logout(ctx)
	}
	s.wipe()

	s.username = []byte(username)
	s.password = []byte(password)
	s.closed = false
	if trustPath != "" {
		s.opts.TrustPath = trustPath
	}

	err := s.login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to switch user")
		s.wipe()
		s.closed = true
		return err
	}
	return nil
}

// Close wipes the credentials and logs out. Local state is always torn
// down, the result only says whether the portal acknowledged the
// logout.
func (s *Session) Close(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "session:Close")
	defer span.End()

	s.wipe()
	ok := false
	if !s.closed {
		ok = s.logout(ctx)
	}
	s.closed = true
	s.active = false
	s.stale = false
	s.cookies = map[string]string{}
	return ok
}

func (s *Session) wipe() {
	clear(s.username)
	clear(s.password)
	s.username = nil
	s.password = nil
}

func (s *Session) logout(ctx context.Context) bool {
	_, err := s.fetcher.Fetch(ctx, fetch.Request{
		URL:     s.opts.LogoutURL,
		Cookies: s.cookies,
	})
	s.active = false
	if err != nil {
		slog.DebugContext(ctx, "logout failed", "err", err)
		return false
	}
	return true
}

func (s *Session) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:login")
	defer span.End()

	s.active = false
	s.cookies = map[string]string{}

	err := s.runLogin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
		s.cookies = map[string]string{}
		return err
	}

	s.active = true
	s.stale = false
	s.loggedIn = time.Now()
	slog.DebugContext(ctx, "portal login succeeded", "cookies", len(s.cookies))
	return nil
}

func (s *Session) runLogin(ctx context.Context) error {
	const op = "cas: login"

	err := s.pinTrustAnchor(ctx)
	if err != nil {
		return err
	}

	loginPage, err := s.fetcher.Fetch(ctx, fetch.Request{
		URL:     s.opts.LoginURL,
		Cookies: s.cookies,
	})
	if err != nil {
		return err
	}

	form, action, err := readLoginForm(loginPage)
	if err != nil {
		return err
	}
	form["username"] = string(s.username)
	form["password"] = string(s.password)
	if action == "" {
		action = s.opts.LoginURL
	}
	// cookies the login page handed out before any credentials were sent
	preLogin := maps.Clone(s.cookies)

	res, err := s.fetcher.Fetch(ctx, fetch.Request{
		URL:     action,
		Method:  http.MethodPost,
		Form:    form,
		Cookies: s.cookies,
		Referer: loginPage.URL.String(),
	})
	clear(form)
	if err != nil {
		return err
	}

	err = s.checkLoginResponse(res)
	if err != nil {
		return err
	}
	if strings.Contains(htmlutil.Text(res.Doc.Find("#warn")), recoveryReminder) {
		_, err = s.fetcher.Fetch(ctx, fetch.Request{
			URL:     res.URL.String(),
			Cookies: s.cookies,
		})
		if err != nil {
			return err
		}
	}

	if !gainedCookie(preLogin, s.cookies) {
		return vterr.Newf(vterr.NotFound, op, "the portal answered the login without a session cookie")
	}
	return nil
}

// checkLoginResponse classifies the answer to the credential post.
// Only a page that is neither an error nor the login form again
// counts as accepted.
func (s *Session) checkLoginResponse(res fetch.Page) error {
	const op = "cas: login"

	if res.Doc.Find("#login-error").Length() > 0 {
		return vterr.Newf(vterr.InvalidCredentials, op, "the portal rejected the username or password")
	}
	if hasLoginForm(res.Doc) {
		return vterr.Newf(vterr.InvalidCredentials, op, "the portal asked for the username and password again")
	}
	if res.Status >= 400 {
		if s.isAuthPage(res) {
			return vterr.Newf(vterr.InvalidCredentials, op, "the portal refused the login with status %d", res.Status)
		}
		return vterr.Transport(op, fmt.Errorf("login answered with status %d", res.Status))
	}
	return nil
}

func (s *Session) isAuthPage(res fetch.Page) bool {
	loginURL, err := url.Parse(s.opts.LoginURL)
	if err != nil || res.URL == nil {
		return false
	}
	return res.URL.Host == loginURL.Host && res.URL.Path == loginURL.Path
}

func hasLoginForm(doc *goquery.Document) bool {
	return doc.Find(`form input[name="lt"], form input[name="execution"]`).Length() > 0
}

// gainedCookie reports whether the login added or changed a cookie,
// which is the only sign CAS gives that a session exists.
func gainedCookie(before, after map[string]string) bool {
	for name, value := range after {
		previous, ok := before[name]
		if !ok || previous != value {
			return true
		}
	}
	return false
}

// readLoginForm collects the hidden tokens CAS expects back. They are
// the first three children of the sixth div in the login fieldset.
func readLoginForm(page fetch.Page) (map[string]string, string, error) {
	section := page.Doc.Find("form fieldset div").Eq(5)
	children := section.Children()
	if children.Length() < 3 {
		return nil, "", vterr.Newf(vterr.NotFound, "cas: read login form", "login page has no token section")
	}

	form := map[string]string{"submit": "_submit"}
	for i, name := range []string{"lt", "execution", "_eventId"} {
		form[name] = children.Eq(i).AttrOr("value", "")
	}

	action := ""
	if raw := section.Closest("form").AttrOr("action", ""); raw != "" && page.URL != nil {
		ref, err := url.Parse(raw)
		if err == nil {
			action = page.URL.ResolveReference(ref).String()
		}
	}
	return form, action, nil
}

func (s *Session) pinTrustAnchor(ctx context.Context) error {
	const op = "cas: trust anchor"

	loginURL, err := url.Parse(s.opts.LoginURL)
	if err != nil {
		return vterr.New(vterr.InvalidInput, op, err)
	}
	if loginURL.Scheme != "https" {
		return vterr.Newf(vterr.TrustAnchor, op, "login url %s is not https", loginURL.Redacted())
	}
	port := loginURL.Port()
	if port == "" {
		port = "443"
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.Fetch.Timeout)
	defer cancel()
	leaf, err := dialLeaf(dialCtx, net.JoinHostPort(loginURL.Hostname(), port), s.opts.Fetch.RootCAs)
	if err != nil {
		return vterr.New(vterr.TrustAnchor, op, err)
	}
	err = writeTrustAnchor(s.opts.TrustPath, leaf)
	if err != nil {
		return vterr.New(vterr.TrustAnchor, op, err)
	}
	s.fetcher.Pin(loginURL.Hostname(), leaf)
	return nil
}

// Fetch issues a request with the session's cookies, so a caller can
// reach portal pages behind the login.
func (s *Session) Fetch(ctx context.Context, r fetch.Request) (fetch.Page, error) {
	if s.closed {
		return fetch.Page{}, vterr.Newf(vterr.SessionTimeout, "cas: fetch", "session is closed")
	}
	r.Cookies = s.cookies
	return s.fetcher.Fetch(ctx, r)
}
