// Package fetch downloads daily bars from the quote API the original
// dataset came from and feeds them into the store. Requests are rate
// limited; the endpoint tolerates polite clients and bans greedy ones.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"rotation/market"
)

const defaultBase = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

// kline field list: date, open, close, high, low, volume, amount.
const klineFields = "f51,f52,f53,f54,f55,f56,f57"

type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient builds a client for base (empty means the default endpoint)
// capped at rps requests per second.
func NewClient(base string, rps float64, log zerolog.Logger) *Client {
	if base == "" {
		base = defaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log.With().Str("component", "fetch").Logger(),
	}
}

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// DailyBars fetches forward-adjusted daily bars for one code.
func (c *Client) DailyBars(ctx context.Context, code string, start, end time.Time) ([]market.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("secid", secID(code))
	q.Set("klt", "101")  // daily
	q.Set("fqt", "1")    // forward adjusted
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", klineFields)
	q.Set("beg", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", code, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var kr klineResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("fetch %s: decode: %w", code, err)
	}
	if kr.Data == nil {
		return nil, fmt.Errorf("fetch %s: no data", code)
	}

	bars := make([]market.Bar, 0, len(kr.Data.Klines))
	for _, line := range kr.Data.Klines {
		b, err := parseKline(code, line)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", code, err)
		}
		bars = append(bars, b)
	}
	c.log.Debug().Str("code", code).Int("bars", len(bars)).Msg("fetched")
	return bars, nil
}

// parseKline decodes one comma-joined kline row. The field order is the
// API's, not ours: date, open, close, high, low, volume, amount.
func parseKline(code, line string) (market.Bar, error) {
	var b market.Bar
	parts := strings.Split(line, ",")
	if len(parts) < 7 {
		return b, fmt.Errorf("short kline row %q", line)
	}
	d, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return b, fmt.Errorf("bad kline date %q", parts[0])
	}
	vals := make([]float64, 6)
	for i := 1; i <= 6; i++ {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return b, fmt.Errorf("bad kline field %q in %q", parts[i], line)
		}
		vals[i-1] = v
	}
	b.Code = code
	b.Date = d
	b.Open = vals[0]
	b.Close = vals[1]
	b.High = vals[2]
	b.Low = vals[3]
	b.Volume = int64(vals[4])
	b.Turnover = vals[5]
	return b, nil
}

// secID maps an exchange code to the API's market-prefixed id: Shanghai
// listings (6xx) are market 1, Shenzhen everything else.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}
