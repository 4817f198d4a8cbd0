package hokiespa

import (
	"context"
	"net/http"
	"net/url"
	"vtaccess/lib/fetch"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/vterr"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("vtaccess.lib.hokiespa")

const (
	PopupURL    = "https://banweb.banner.vt.edu/ssb/prod/hzskstat.P_Popup"
	DetailURL   = "https://banweb.banner.vt.edu/ssb/prod/hzskschd.P_DispCrseSchdDetl"
	ExamTimeURL = "https://banweb.banner.vt.edu/ssb/prod/HZSKVTSC.P_ProcExamTime"
)

// Session is the part of an authenticated portal session the
// extractors need. *cas.Session implements it.
type Session interface {
	IsActive(ctx context.Context) bool
	Refresh(ctx context.Context) bool
	Cookie(name string) string
	Fetch(ctx context.Context, r fetch.Request) (fetch.Page, error)
}

type Options struct {
	PopupURL    string
	DetailURL   string
	ExamTimeURL string
}

func (o Options) withDefaults() Options {
	if o.PopupURL == "" {
		o.PopupURL = PopupURL
	}
	if o.DetailURL == "" {
		o.DetailURL = DetailURL
	}
	if o.ExamTimeURL == "" {
		o.ExamTimeURL = ExamTimeURL
	}
	return o
}

// Client reads the signed in student's own schedule pages.
type Client struct {
	session Session
	opts    Options
}

// NewClient confirms the session is usable, refreshing it once if it
// is not.
func NewClient(ctx context.Context, session Session, opts Options) (*Client, error) {
	if session == nil || (!session.IsActive(ctx) && !session.Refresh(ctx)) {
		return nil, vterr.Newf(vterr.SessionTimeout, "hokiespa: new client", "session is not active")
	}
	return &Client{session: session, opts: opts.withDefaults()}, nil
}

func (c *Client) popupURL(term semester.Code) string {
	query := url.Values{
		"link_in":     {"hzskschd.P_CrseSchdDetl"},
		"term_in":     {term.String()},
		"disp_header": {"N"},
	}
	return c.opts.PopupURL + "?" + query.Encode()
}

func (c *Client) detailURL(term semester.Code, printFriendly bool) string {
	query := url.Values{"term_in": {term.String()}}
	if printFriendly {
		query.Set("print_friendly", "Y")
	}
	return c.opts.DetailURL + "?" + query.Encode()
}

// checkSession fails before any request when the session cannot reach
// the schedule pages.
func (c *Client) checkSession(ctx context.Context, op string) error {
	if !c.session.IsActive(ctx) {
		return vterr.Newf(vterr.SessionTimeout, op, "session is not active")
	}
	if c.session.Cookie("IDMSESSID") == "" {
		return vterr.Newf(vterr.SessionTimeout, op, "session has no IDMSESSID cookie")
	}
	return nil
}

// detailPage primes the popup (which hands out SESSID) and posts for
// the schedule detail. A login form in the answer means the portal
// dropped the session on its side: the session is refreshed and the
// pair of requests retried once.
func (c *Client) detailPage(ctx context.Context, op string, term semester.Code, printFriendly bool) (fetch.Page, error) {
	ctx, span := tracer.Start(ctx, "hokiespa:detailPage")
	defer span.End()
	span.SetAttributes(attribute.String("term", term.String()), attribute.Bool("print_friendly", printFriendly))

	for attempt := 0; ; attempt++ {
		popup := c.popupURL(term)
		_, err := c.session.Fetch(ctx, fetch.Request{URL: popup})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to prime schedule popup")
			return fetch.Page{}, err
		}

		page, err := c.session.Fetch(ctx, fetch.Request{
			URL:     c.detailURL(term, printFriendly),
			Method:  http.MethodPost,
			Referer: popup,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch schedule detail")
			return fetch.Page{}, err
		}

		if page.Doc.Find("#login-form").Length() == 0 {
			return page, nil
		}
		if attempt > 0 || !c.session.Refresh(ctx) {
			span.SetStatus(codes.Error, "session expired")
			return fetch.Page{}, vterr.Newf(vterr.SessionTimeout, op, "portal asked to log in again")
		}
	}
}
