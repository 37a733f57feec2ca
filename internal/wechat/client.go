package wechat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.weixin.qq.com"

// Risky content verdict code returned by msg_sec_check.
const errcodeRiskyContent = 87014

var (
	// ErrInvalidCode means the mini-program login code was rejected.
	ErrInvalidCode = errors.New("wechat login code invalid")
	// ErrRiskyContent means msg_sec_check flagged the text.
	ErrRiskyContent = errors.New("wechat content check rejected text")
)

// APIError carries a non-zero errcode from the WeChat platform.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.Code, e.Msg)
}

// Client talks to the WeChat mini-program platform APIs.
type Client struct {
	appID  string
	secret string
	http   *resty.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient constructs a platform client for the given mini-program credentials.
func NewClient(appID, secret string) *Client {
	return &Client{
		appID:  appID,
		secret: secret,
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(10 * time.Second),
		now: time.Now,
	}
}

// SetBaseURL overrides the platform endpoint, used by tests.
func (c *Client) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// Session is the identity returned by code2session.
type Session struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Code2Session exchanges a mini-program login code for the user's openid.
func (c *Client) Code2Session(ctx context.Context, jsCode string) (Session, error) {
	if strings.TrimSpace(jsCode) == "" {
		return Session{}, ErrInvalidCode
	}
	var session Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"appid":      c.appID,
			"secret":     c.secret,
			"js_code":    jsCode,
			"grant_type": "authorization_code",
		}).
		SetResult(&session).
		// The platform labels JSON bodies text/plain, so resty needs a push.
		ForceContentType("application/json").
		Get("/sns/jscode2session")
	if err != nil {
		return Session{}, fmt.Errorf("code2session: %w", err)
	}
	if resp.IsError() {
		return Session{}, fmt.Errorf("code2session: http status %d", resp.StatusCode())
	}
	if session.ErrCode != 0 {
		if session.ErrCode == 40029 || session.ErrCode == 40163 {
			return Session{}, ErrInvalidCode
		}
		return Session{}, &APIError{Code: session.ErrCode, Msg: session.ErrMsg}
	}
	if session.OpenID == "" {
		return Session{}, errors.New("code2session: empty openid")
	}
	return session, nil
}

type secCheckResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Result  struct {
		Suggest string `json:"suggest"`
		Label   int    `json:"label"`
	} `json:"result"`
}

// MsgSecCheck runs platform content moderation over the given text.
func (c *Client) MsgSecCheck(ctx context.Context, openID, content string) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}
	var result secCheckResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetBody(map[string]any{
			"content": content,
			"version": 2,
			"scene":   2,
			"openid":  openID,
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/wxa/msg_sec_check")
	if err != nil {
		return fmt.Errorf("msg_sec_check: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("msg_sec_check: http status %d", resp.StatusCode())
	}
	switch {
	case result.ErrCode == errcodeRiskyContent:
		return ErrRiskyContent
	case result.ErrCode != 0:
		return &APIError{Code: result.ErrCode, Msg: result.ErrMsg}
	}
	if strings.EqualFold(result.Result.Suggest, "risky") {
		return ErrRiskyContent
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	var result tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type": "client_credential",
			"appid":      c.appID,
			"secret":     c.secret,
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Get("/cgi-bin/token")
	if err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("access token: http status %d", resp.StatusCode())
	}
	if result.ErrCode != 0 {
		return "", &APIError{Code: result.ErrCode, Msg: result.ErrMsg}
	}
	if result.AccessToken == "" {
		return "", errors.New("access token: empty token")
	}

	ttl := time.Duration(result.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	// Refresh a minute early so in-flight calls never carry a stale token.
	c.accessToken = result.AccessToken
	c.tokenExpiry = c.now().Add(ttl - time.Minute)
	return c.accessToken, nil
}
