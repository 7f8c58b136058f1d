// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package weather produces the current weather and air quality report from
// the QWeather API.
package weather

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/learning/dailypush/internal/content"
	"github.com/learning/dailypush/internal/request"
)

// Fallback is rendered when the weather could not be fetched.
const Fallback = "❌ 获取天气失败\n"

// Token lifetime and clock skew allowance.
const (
	tokenTTL  = time.Hour
	clockSkew = 30 * time.Second
)

// ErrNoData is returned when the API response has no current conditions.
var ErrNoData = errors.New("no current data in response")

// Config configures a [Producer].
type Config struct {
	// KeyID is the credential ID, sent as the JWT "kid" header.
	KeyID string
	// ProjectID is the project ID, sent as the JWT "sub" claim.
	ProjectID string
	// PrivateKey is the PEM-encoded Ed25519 private key.
	PrivateKey string
	// APIHost is the account-specific API host, e.g. abc.re.qweatherapi.com.
	APIHost string
	// Location is a location ID or "lon,lat".
	Location string

	// BaseURL overrides https://APIHost. Used in tests.
	BaseURL string
	// HTTPClient is used for outgoing requests. Defaults to
	// request.DefaultClient.
	HTTPClient *http.Client
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Producer fetches the weather report.
type Producer struct {
	c   Config
	key crypto.PrivateKey
}

// New returns a new Producer. It fails if the private key can't be parsed.
func New(c Config) (*Producer, error) {
	key, err := jwt.ParseEdPrivateKeyFromPEM([]byte(normalizePEM(c.PrivateKey)))
	if err != nil {
		return nil, fmt.Errorf("parsing weather private key: %w", err)
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://" + c.APIHost
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Producer{c: c, key: key}, nil
}

// normalizePEM restores line breaks in keys passed through environment
// variables as a single line with literal "\n".
func normalizePEM(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `\n`, "\n")
}

// Now is the current conditions.
type Now struct {
	ObsTime   string `json:"obsTime"`
	Text      string `json:"text"`
	Temp      string `json:"temp"`
	FeelsLike string `json:"feelsLike"`
	Precip    string `json:"precip"`
	WindDir   string `json:"windDir"`
	WindScale string `json:"windScale"`
	WindSpeed string `json:"windSpeed"`
	Humidity  string `json:"humidity"`
	Pressure  string `json:"pressure"`
	Vis       string `json:"vis"`
	Cloud     string `json:"cloud"`
	Dew       string `json:"dew"`
}

// Air is the current air quality.
type Air struct {
	AQI      string `json:"aqi"`
	Category string `json:"category"`
	Primary  string `json:"primary"`
}

// Report is the combined weather and air quality report.
type Report struct {
	UpdateTime    string
	AirUpdateTime string
	Now           Now
	Air           Air
}

type response[T any] struct {
	Code       string `json:"code"`
	UpdateTime string `json:"updateTime"`
	Now        *T     `json:"now"`
}

// Produce implements [content.Producer].
func (p *Producer) Produce(ctx context.Context) (string, error) {
	r, err := p.Report(ctx)
	if err != nil {
		return "", err
	}
	return Format(r), nil
}

// Report fetches the current weather and air quality.
func (p *Producer) Report(ctx context.Context) (*Report, error) {
	token, err := p.token()
	if err != nil {
		return nil, err
	}

	now, err := get[Now](ctx, p, token, "/v7/weather/now")
	if err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}
	air, err := get[Air](ctx, p, token, "/v7/air/now")
	if err != nil {
		return nil, fmt.Errorf("air quality: %w", err)
	}

	return &Report{
		UpdateTime:    now.UpdateTime,
		AirUpdateTime: air.UpdateTime,
		Now:           *now.Now,
		Air:           *air.Now,
	}, nil
}

// token returns a signed JWT for the API.
func (p *Producer) token() (string, error) {
	now := p.c.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": p.c.ProjectID,
		"iat": now.Add(-clockSkew).Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})
	t.Header["kid"] = p.c.KeyID
	s, err := t.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("signing weather token: %w", err)
	}
	return s, nil
}

func get[T any](ctx context.Context, p *Producer, token, path string) (*response[T], error) {
	q := url.Values{}
	q.Set("location", p.c.Location)
	q.Set("lang", "zh")

	resp, err := request.Make[response[T]](ctx, request.Params{
		Method: http.MethodGet,
		URL:    p.c.BaseURL + path + "?" + q.Encode(),
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
		},
		HTTPClient: p.c.HTTPClient,
		Scrubber:   strings.NewReplacer(token, "[EXPUNGED]"),
	})
	if err != nil {
		return nil, err
	}
	if resp.Code != "200" {
		return nil, fmt.Errorf("api returned code %q", resp.Code)
	}
	if resp.Now == nil {
		return nil, ErrNoData
	}
	return &resp, nil
}

var weatherIcons = []struct {
	substr, icon string
}{
	{"晴", "☀️"},
	{"多云", "⛅"},
	{"阴", "☁️"},
	{"雷", "⛈️"},
	{"雨", "🌧️"},
	{"雪", "❄️"},
}

// Icon returns an emoji for the weather description.
func Icon(text string) string {
	for _, wi := range weatherIcons {
		if strings.Contains(text, wi.substr) {
			return wi.icon
		}
	}
	return "🌡️"
}

var airIcons = map[string]string{
	"优":    "🟢",
	"良":    "🟡",
	"轻度污染": "🟠",
	"中度污染": "🔴",
	"重度污染": "🟣",
	"严重污染": "⚫",
}

// AirIcon returns an emoji for the air quality category.
func AirIcon(category string) string {
	if icon, ok := airIcons[category]; ok {
		return icon
	}
	return "❓"
}

// Format renders r as the weather section.
func Format(r *Report) string {
	n, a := r.Now, r.Air
	or := content.Or

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 天气: %s\n", Icon(n.Text), or(n.Text))
	fmt.Fprintf(&sb, "温度: %s ℃  |  体感温度: %s ℃\n", or(n.Temp), or(n.FeelsLike))
	fmt.Fprintf(&sb, "降水量: %s mm\n", or(n.Precip))
	fmt.Fprintf(&sb, "风向: %s  风力: %s级  风速: %s km/h\n", or(n.WindDir), or(n.WindScale), or(n.WindSpeed))
	fmt.Fprintf(&sb, "湿度: %s %%  |  气压: %s hPa\n", or(n.Humidity), or(n.Pressure))
	fmt.Fprintf(&sb, "能见度: %s km  |  云量: %s %%  |  露点: %s ℃\n", or(n.Vis), or(n.Cloud), or(n.Dew))
	sb.WriteString("\n空气质量:\n")
	fmt.Fprintf(&sb, "%s AQI: %s  |  主要污染物: %s  |  空气等级: %s\n", AirIcon(a.Category), or(a.AQI), or(a.Primary), or(a.Category))
	if r.UpdateTime != "" {
		fmt.Fprintf(&sb, "更新时间: %s\n", r.UpdateTime)
	}
	sb.WriteString(strings.Repeat("-", 30) + "\n\n")
	return sb.String()
}
