package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
	"vtaccess/lib/restyutil"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/vterr"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("vtaccess.lib.fetch")

const (
	UserAgent      = "Mozilla/5.0 (Windows NT 6.1; WOW64; rv:11.0) Gecko/20100101 Firefox/11.0"
	DefaultTimeout = 30 * time.Second
	maxRedirects   = 10
)

// DefaultHosts are the portal hosts redirects may move between.
var DefaultHosts = []string{
	"auth.vt.edu",
	"login.vt.edu",
	"banweb.banner.vt.edu",
	"webapps.banner.vt.edu",
}

type Options struct {
	// 0 means DefaultTimeout
	Timeout time.Duration
	// hosts redirects may land on, nil means DefaultHosts
	AllowedHosts []string
	// roots trusted instead of the system pool, nil means the system pool
	RootCAs          *x509.CertPool
	CloudflareBypass bool
	// optional dump of every http message when debug logging is on
	Output restyutil.InstrumentOutput
}

// Fetcher issues page requests with the portal's fixed browser
// identity. It holds no cookies itself: every request carries the
// caller's cookie map and gets it updated in place.
type Fetcher struct {
	http      *resty.Client
	transport *http.Transport
	proxy     func(*http.Request) (*url.URL, error)
	roots     *x509.CertPool

	mutex sync.RWMutex
	pins  map[string]*x509.Certificate
}

type Request struct {
	URL    string
	Method string
	// GET sends these as query parameters, POST as a urlencoded body
	Form    map[string]string
	Cookies map[string]string
	Referer string
}

type Page struct {
	Doc    *goquery.Document
	URL    *url.URL
	Status int
}

type cookieSinkKey struct{}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.AllowedHosts == nil {
		opts.AllowedHosts = DefaultHosts
	}

	client := resty.New()
	client.SetHeader("user-agent", UserAgent)
	client.SetTimeout(opts.Timeout)
	client.SetCookieJar(nil)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(maxRedirects),
		resty.DomainCheckRedirectPolicy(opts.AllowedHosts...),
		resty.RedirectPolicyFunc(harvestRedirectCookies),
	)
	f := &Fetcher{
		http:  client,
		roots: opts.RootCAs,
		pins:  map[string]*x509.Certificate{},
	}
	transport, ok := client.GetClient().Transport.(*http.Transport)
	if !ok {
		transport = http.DefaultTransport.(*http.Transport).Clone()
		client.GetClient().Transport = transport
	}
	f.transport = transport
	f.proxy = transport.Proxy
	transport.Proxy = f.proxyFor
	transport.DialTLSContext = f.dialTLS
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(transport)
	}

	restyutil.InstrumentClient(client, telemetry.Tracer("vtaccess.lib.fetch.http"), opts.Output)

	return f
}

// Pin requires every later connection to host to present exactly
// cert as its leaf, on top of the usual chain verification.
func (f *Fetcher) Pin(host string, cert *x509.Certificate) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pins[host] = cert
	// pooled connections were checked against the old pin
	f.transport.CloseIdleConnections()
}

// proxyFor sends pinned hosts direct. A CONNECT tunnel would do its
// handshake outside dialTLS and skip the pin check.
func (f *Fetcher) proxyFor(req *http.Request) (*url.URL, error) {
	if f.proxy == nil || f.pinned(req.URL.Hostname()) != nil {
		return nil, nil
	}
	return f.proxy(req)
}

func (f *Fetcher) pinned(host string) *x509.Certificate {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.pins[host]
}

func (f *Fetcher) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	dialer := &tls.Dialer{Config: &tls.Config{
		RootCAs:    f.roots,
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	pin := f.pinned(host)
	if pin == nil {
		return conn, nil
	}
	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 || !state.PeerCertificates[0].Equal(pin) {
		conn.Close()
		return nil, vterr.Newf(vterr.TrustAnchor, "fetch: dial "+host, "certificate does not match the pinned trust anchor")
	}
	return conn, nil
}

// redirect responses can set cookies (CAS does this), the plain
// response only shows the final hop's
func harvestRedirectCookies(req *http.Request, _ []*http.Request) error {
	sink, ok := req.Context().Value(cookieSinkKey{}).(map[string]string)
	if !ok || req.Response == nil {
		return nil
	}
	set := req.Response.Cookies()
	if len(set) == 0 {
		return nil
	}

	merged := map[string]string{}
	var order []string
	for _, c := range req.Cookies() {
		if _, ok := merged[c.Name]; !ok {
			order = append(order, c.Name)
		}
		merged[c.Name] = c.Value
	}
	for _, c := range set {
		sink[c.Name] = c.Value
		if _, ok := merged[c.Name]; !ok {
			order = append(order, c.Name)
		}
		merged[c.Name] = c.Value
	}

	req.Header.Del("Cookie")
	for _, name := range order {
		req.AddCookie(&http.Cookie{Name: name, Value: merged[name]})
	}
	return nil
}

func (f *Fetcher) Fetch(ctx context.Context, r Request) (Page, error) {
	ctx, span := tracer.Start(ctx, "fetch:Fetch")
	defer span.End()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	span.SetAttributes(
		attribute.String("method", method),
		attribute.String("url", r.URL),
	)
	op := fmt.Sprintf("fetch: %s %s", method, r.URL)

	if r.Cookies == nil {
		r.Cookies = map[string]string{}
	}
	redirected := map[string]string{}

	req := f.http.R().SetContext(context.WithValue(ctx, cookieSinkKey{}, redirected))
	for name, value := range r.Cookies {
		req.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	if r.Referer != "" {
		req.SetHeader("referer", r.Referer)
	}

	switch method {
	case http.MethodGet:
		if len(r.Form) > 0 {
			req.SetQueryParams(r.Form)
		}
	case http.MethodPost:
		req.SetFormData(r.Form)
	default:
		return Page{}, vterr.Newf(vterr.InvalidInput, op, "unsupported method")
	}

	res, err := req.Execute(method, r.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return Page{}, vterr.Transport(op, err)
	}

	for name, value := range redirected {
		r.Cookies[name] = value
	}
	for _, c := range res.Cookies() {
		r.Cookies[c.Name] = c.Value
	}

	if res.StatusCode() >= 500 {
		err := fmt.Errorf("server responded %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return Page{}, vterr.Transport(op, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return Page{}, vterr.Transport(op, err)
	}

	page := Page{Doc: doc, Status: res.StatusCode()}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		page.URL = res.RawResponse.Request.URL
	} else {
		page.URL, _ = url.Parse(r.URL)
	}
	span.SetAttributes(attribute.Int("status", page.Status))
	return page, nil
}

// IsTransport reports whether err came from the network rather than
// the page contents.
func IsTransport(err error) bool {
	return errors.Is(err, vterr.ErrTransport)
}
