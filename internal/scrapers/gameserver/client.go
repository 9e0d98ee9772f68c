// client.go owns the authenticated session with the game server, everything that
// needs to be logged in goes through here.

package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"playermail/internal/components/assert"
	"playermail/internal/components/chrono"
	"playermail/internal/components/telemetry"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_login  = "client.login"
	report_client_logout = "client.logout"
	report_client_get    = "client.authenticated-get"
	report_client_submit = "client.authenticated-submit"
)

const (
	userAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.88 Safari/537.36"
	htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"
	// the web client sends this literally before it has a token, the api rejects requests without it
	bearerUndefined = "Bearer undefined"
)

// Credentials are supplied once and never change for the lifetime of a client.
type Credentials struct {
	Server   string
	Login    string
	Password string
}

// Session is the cookie pair captured from a successful login, it is replaced
// wholesale on every login.
type Session struct {
	CookieName      string
	CookieValue     string
	AuthenticatedAt time.Time
}

func (s Session) cookieHeader() string {
	return s.CookieName + "=" + s.CookieValue
}

// Response is what is left of a form submit after redirects were followed.
type Response struct {
	StatusCode int
	// FinalURL is the url of the last request in the redirect chain.
	FinalURL *url.URL
	Body     string
}

type ClientOptions struct {
	Credentials Credentials
	// Session pre-seeds the client, if nil Login must be called before any
	// authenticated request.
	Session *Session
	// SessionLost defaults to ExpectLandingPage(DefaultLandingPage).
	SessionLost SessionLostPolicy
	// Timeout defaults to 10 seconds.
	Timeout time.Duration
	// RequestsPerSecond caps outgoing requests, 0 means no cap.
	RequestsPerSecond float64
	// Chrono defaults to chrono.StandardImpl.
	Chrono chrono.API
	// Dump receives every HTTP exchange, can be nil.
	Dump telemetry.HttpDump
}

type Client struct {
	server      *url.URL
	origin      string
	creds       Credentials
	http        *resty.Client
	session     *Session
	sessionLost SessionLostPolicy
	chrono      chrono.API
	tel         telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Credentials.Server)

	tel = telemetry.NewScopedAPI("gameserver", tel)

	server, err := url.Parse(strings.TrimSuffix(opts.Credentials.Server, "/"))
	if err != nil {
		return nil, err
	}
	if server.Scheme == "" || server.Host == "" {
		return nil, fmt.Errorf("server url must be absolute: %q", opts.Credentials.Server)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sessionLost := opts.SessionLost
	if sessionLost == nil {
		sessionLost = ExpectLandingPage(DefaultLandingPage)
	}
	clock := opts.Chrono
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(server.String())
	// the session cookie is attached explicitly, a jar would silently pick up
	// cookies and hide session loss
	httpClient.SetCookieJar(nil)
	httpClient.SetTimeout(timeout)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetHeader("user-agent", userAgent)

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	c := &Client{
		server:      server,
		origin:      fmt.Sprintf("%s://%s", server.Scheme, server.Host),
		creds:       opts.Credentials,
		http:        httpClient,
		sessionLost: sessionLost,
		chrono:      clock,
		tel:         tel,
	}
	if opts.Session != nil {
		seeded := *opts.Session
		c.session = &seeded
	}
	return c, nil
}

// Session returns the current session, ok is false if there is none.
func (c *Client) Session() (session Session, ok bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

type loginRequest struct {
	Name                string `json:"name"`
	Password            string `json:"password"`
	W                   string `json:"w"`
	MobileOptimizations bool   `json:"mobileOptimizations"`
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

// Login exchanges the credentials for a nonce and then the nonce for a
// session cookie. On success the previous session (if any) is replaced.
func (c *Client) Login(ctx context.Context) (Session, error) {
	loginError := func(err error) error {
		return fmt.Errorf("gameserver: login failed: %w", err)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("origin", c.origin).
		SetHeader("authorization", bearerUndefined).
		SetBody(loginRequest{
			Name:                c.creds.Login,
			Password:            c.creds.Password,
			W:                   "1920:1080",
			MobileOptimizations: false,
		}).
		Post("/api/v1/auth/login")
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("nonce request: %w", err),
		)
		return Session{}, loginError(fmt.Errorf("%w: nonce request: %w", ErrTransport, err))
	}

	var nonce nonceResponse
	if res.IsSuccess() {
		err = json.Unmarshal(res.Body(), &nonce)
		if err != nil {
			c.tel.ReportWarning(
				report_client_login,
				fmt.Errorf("decode nonce: %w", err),
			)
		}
	}
	if nonce.Nonce == "" {
		err := fmt.Errorf("%w (status %s)", ErrNoNonce, res.Status())
		c.tel.ReportBroken(report_client_login, err)
		return Session{}, loginError(err)
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("origin", c.origin).
		SetHeader("authorization", bearerUndefined).
		Post("/api/v1/auth/" + url.PathEscape(nonce.Nonce))
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("nonce confirmation: %w", err),
		)
		return Session{}, loginError(fmt.Errorf("%w: nonce confirmation: %w", ErrTransport, err))
	}

	setCookie := res.Header().Values("set-cookie")
	if len(setCookie) == 0 {
		err := fmt.Errorf("%w (status %s)", ErrNoCookie, res.Status())
		c.tel.ReportBroken(report_client_login, err)
		return Session{}, loginError(err)
	}
	cookie, err := http.ParseSetCookie(setCookie[0])
	if err != nil {
		err := fmt.Errorf("%w: parse %q: %w", ErrNoCookie, setCookie[0], err)
		c.tel.ReportBroken(report_client_login, err)
		return Session{}, loginError(err)
	}

	session := Session{
		CookieName:      cookie.Name,
		CookieValue:     cookie.Value,
		AuthenticatedAt: c.chrono.Now(),
	}
	c.session = &session
	c.tel.ReportDebug("logged in", c.creds.Login, cookie.Name)

	return session, nil
}

// AuthenticatedGet fetches `path` with the session cookie and returns the body.
func (c *Client) AuthenticatedGet(ctx context.Context, path string, query url.Values) (string, error) {
	if c.session == nil {
		return "", ErrNoSession
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("accept", htmlAccept).
		SetHeader("referer", c.server.String()).
		SetHeader("cookie", c.session.cookieHeader()).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		c.tel.ReportBroken(
			report_client_get,
			fmt.Errorf("fetch: %w", err),
			path,
		)
		return "", fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
	}
	if res.IsError() {
		err := fmt.Errorf("%w: GET %s: %s", ErrUnexpectedStatus, path, res.Status())
		c.tel.ReportBroken(report_client_get, err)
		return "", err
	}

	return res.String(), nil
}

// AuthenticatedSubmit posts a urlencoded form with the session cookie. Non-2xx
// statuses are not errors here, callers classify the returned Response.
func (c *Client) AuthenticatedSubmit(ctx context.Context, path string, form map[string]string) (Response, error) {
	if c.session == nil {
		return Response{}, ErrNoSession
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("origin", c.origin).
		SetHeader("authorization", bearerUndefined).
		SetHeader("referer", c.server.String()+path).
		SetHeader("cookie", c.session.cookieHeader()).
		SetFormData(form).
		Post(path)
	if err != nil {
		c.tel.ReportBroken(
			report_client_submit,
			fmt.Errorf("submit: %w", err),
			path,
		)
		return Response{}, fmt.Errorf("%w: POST %s: %w", ErrTransport, path, err)
	}

	finalUrl := c.server.JoinPath(path)
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL
	}

	return Response{
		StatusCode: res.StatusCode(),
		FinalURL:   finalUrl,
		Body:       res.String(),
	}, nil
}

// IsSessionLost applies the configured SessionLostPolicy.
func (c *Client) IsSessionLost(res Response) bool {
	return c.sessionLost(res)
}

// Logout is best-effort, failures are reported and the local session is
// dropped either way.
func (c *Client) Logout(ctx context.Context) {
	if c.session == nil {
		return
	}
	session := *c.session
	c.session = nil

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("origin", c.origin).
		SetHeader("authorization", bearerUndefined).
		SetHeader("cookie", session.cookieHeader()).
		Post("/api/v1/auth/logout")
	if err != nil {
		c.tel.ReportWarning(report_client_logout, err)
		return
	}
	if res.IsError() {
		c.tel.ReportWarning(
			report_client_logout,
			fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status()),
		)
	}
}
