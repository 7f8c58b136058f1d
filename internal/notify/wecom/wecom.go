// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package wecom implements message delivery through a WeCom (WeChat Work)
// application.
package wecom

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/learning/dailypush/internal/notify"
	"github.com/learning/dailypush/internal/request"
	"github.com/learning/dailypush/internal/store"
)

const (
	wecomAPI      = "https://qyapi.weixin.qq.com"
	maxMessageLen = 2048 // bytes
)

// WeCom error codes that mean the access token must be fetched again.
const (
	errcodeInvalidToken = 40014
	errcodeTokenExpired = 42001
)

// ErrNoAccessToken is returned when the token exchange does not yield an
// access token. Nothing is sent in that case.
var ErrNoAccessToken = errors.New("wecom: no access token in response")

// Config configures a WeCom sender.
type Config struct {
	CorpID  string
	Secret  string
	AgentID int
	// ToUser is the recipient list. It defaults to "@all".
	ToUser     string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Store caches access tokens. If nil, an in-memory store is used.
	Store store.Store
	// BaseURL overrides the WeCom API endpoint.
	BaseURL string
}

// Sender sends text messages as a WeCom application.
type Sender struct {
	corpID    string
	secret    string
	agentID   int
	toUser    string
	baseURL   string
	httpc     *http.Client
	slog      *slog.Logger
	store     store.Store
	ownsStore bool
}

// New returns a WeCom sender.
func New(cfg Config) *Sender {
	s := &Sender{
		corpID:  cfg.CorpID,
		secret:  cfg.Secret,
		agentID: cfg.AgentID,
		toUser:  cmp.Or(cfg.ToUser, "@all"),
		baseURL: strings.TrimSuffix(cmp.Or(cfg.BaseURL, wecomAPI), "/"),
		httpc:   cfg.HTTPClient,
		slog:    cfg.Logger,
		store:   cfg.Store,
	}
	if s.httpc == nil {
		s.httpc = request.DefaultClient
	}
	if s.slog == nil {
		s.slog = slog.Default()
	}
	if s.store == nil {
		s.store = store.NewMemStore(context.Background(), time.Hour)
		s.ownsStore = true
	}
	return s
}

// Name implements [notify.Sender].
func (s *Sender) Name() string { return "wecom" }

// Close releases the token cache if the sender created it.
func (s *Sender) Close() error {
	if s.ownsStore {
		return s.store.Close()
	}
	return nil
}

type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (r apiResponse) err() error {
	if r.ErrCode == 0 {
		return nil
	}
	return &APIError{Code: r.ErrCode, Message: r.ErrMsg}
}

// APIError is an error reported by the WeCom API in the response body.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("wecom: errcode %d: %s", e.Code, e.Message) }

type tokenResponse struct {
	apiResponse
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type textMessage struct {
	ToUser  string `json:"touser"`
	MsgType string `json:"msgtype"`
	AgentID int    `json:"agentid"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
	Safe int `json:"safe"`
}

// Send delivers text to the configured recipients, split into chunks that
// fit into a single WeCom text message.
func (s *Sender) Send(ctx context.Context, text string) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("getting access token: %w", err)
	}

	for _, chunk := range notify.Split(text, maxMessageLen, notify.Bytes) {
		err := s.sendText(ctx, token, chunk)
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == errcodeInvalidToken || apiErr.Code == errcodeTokenExpired) {
			s.slog.Warn("access token rejected, fetching a new one", slog.Int("errcode", apiErr.Code))
			if err := s.store.Delete(ctx, s.tokenKey()); err != nil {
				return err
			}
			if token, err = s.fetchToken(ctx); err != nil {
				return fmt.Errorf("getting access token: %w", err)
			}
			err = s.sendText(ctx, token, chunk)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendText(ctx context.Context, token, content string) error {
	msg := textMessage{
		ToUser:  s.toUser,
		MsgType: "text",
		AgentID: s.agentID,
		Safe:    0,
	}
	msg.Text.Content = content

	resp, err := request.Make[apiResponse](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        s.baseURL + "/cgi-bin/message/send?access_token=" + url.QueryEscape(token),
		Body:       msg,
		HTTPClient: s.httpc,
		Scrubber:   s.scrubber(token),
	})
	if err != nil {
		return err
	}
	return resp.err()
}

func (s *Sender) tokenKey() string { return "wecom/token/" + s.corpID + "/" + strconv.Itoa(s.agentID) }

func (s *Sender) accessToken(ctx context.Context) (string, error) {
	b, err := s.store.Get(ctx, s.tokenKey())
	if err != nil {
		return "", err
	}
	if len(b) > 0 {
		return string(b), nil
	}
	return s.fetchToken(ctx)
}

func (s *Sender) fetchToken(ctx context.Context) (string, error) {
	q := url.Values{"corpid": {s.corpID}, "corpsecret": {s.secret}}
	resp, err := request.Make[tokenResponse](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        s.baseURL + "/cgi-bin/gettoken?" + q.Encode(),
		HTTPClient: s.httpc,
		Scrubber:   s.scrubber(""),
	})
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		if apiErr := resp.err(); apiErr != nil {
			return "", fmt.Errorf("%w: %v", ErrNoAccessToken, apiErr)
		}
		return "", ErrNoAccessToken
	}

	// Refresh a few minutes before WeCom expires the token.
	ttl := time.Duration(resp.ExpiresIn)*time.Second - 5*time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	if err := s.store.Set(ctx, s.tokenKey(), []byte(resp.AccessToken), ttl); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (s *Sender) scrubber(token string) *strings.Replacer {
	var oldnew []string
	if s.secret != "" {
		oldnew = append(oldnew, s.secret, "[EXPUNGED]", url.QueryEscape(s.secret), "[EXPUNGED]")
	}
	if token != "" {
		oldnew = append(oldnew, token, "[EXPUNGED]", url.QueryEscape(token), "[EXPUNGED]")
	}
	return strings.NewReplacer(oldnew...)
}

var _ notify.Sender = (*Sender)(nil)
