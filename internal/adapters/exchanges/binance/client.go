package binance

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

	"github.com/shopspring/decimal"

	"tradeserver/internal/adapters/exchanges"
	"tradeserver/internal/adapters/exchanges/ratelimit"
	"tradeserver/internal/metrics"
	"tradeserver/pkg/errors"
)

const (
	defaultBaseURL     = "https://fapi.binance.com"
	defaultInterval    = "15m"
	defaultCandleLimit = 1000
	defaultHTTPTimeout = 10 * time.Second
)

// Config configures the Binance USD-M futures client.
type Config struct {
	BaseURL       string
	QuoteCurrency string
	Interval      string
	CandleLimit   int

	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
}

// NewClient creates a new Binance price source.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USDT"
	}
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = defaultCandleLimit
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// Client talks to the Binance futures REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func (c *Client) Name() string {
	return "binance"
}

// CurrentPrice returns the latest futures price for the coin.
func (c *Client) CurrentPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	params := url.Values{"symbol": []string{c.symbol(coin)}}

	data, err := c.get(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrPriceUnavailable, "ticker %s: %v", coin, err)
	}

	var res struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrPriceUnavailable, "ticker %s: %v", coin, err)
	}

	price, err := decimal.NewFromString(res.Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrPriceUnavailable, "ticker %s: bad price %q", coin, res.Price)
	}

	return price, nil
}

// Candles returns OHLC candles covering [startSec, endSec].
func (c *Client) Candles(ctx context.Context, coin string, startSec, endSec int64) ([]exchanges.Candle, error) {
	params := url.Values{
		"symbol":    []string{c.symbol(coin)},
		"interval":  []string{c.cfg.Interval},
		"startTime": []string{strconv.FormatInt(startSec*1000, 10)},
		"endTime":   []string{strconv.FormatInt(endSec*1000, 10)},
		"limit":     []string{strconv.Itoa(c.cfg.CandleLimit)},
	}

	data, err := c.get(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrPriceUnavailable, "klines %s: %v", coin, err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(errors.ErrPriceUnavailable, "klines %s: %v", coin, err)
	}

	candles := make([]exchanges.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, exchanges.Candle{
			OpenTime: toInt64(row[0]),
			Open:     parseDecimal(fmt.Sprint(row[1])),
			High:     parseDecimal(fmt.Sprint(row[2])),
			Low:      parseDecimal(fmt.Sprint(row[3])),
			Close:    parseDecimal(fmt.Sprint(row[4])),
		})
	}

	return candles, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (payload []byte, err error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer func() {
		metrics.RecordExchangeAPICall("binance", path, time.Since(start), err)
	}()

	reqURL := c.cfg.BaseURL + path
	if query := params.Encode(); query != "" {
		reqURL = reqURL + "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, payload)
	}

	return payload, nil
}

func (c *Client) symbol(coin string) string {
	return strings.ToUpper(strings.ReplaceAll(coin, "-", "")) + c.cfg.QuoteCurrency
}

func parseAPIError(status int, payload []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Code != 0 {
		if apiErr.Code == -1003 {
			return fmt.Errorf("%w: %s", errors.ErrRateLimitExceeded, apiErr.Msg)
		}
		return fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
	}
	return fmt.Errorf("binance http %d: %s", status, string(payload))
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int64:
		return val
	case json.Number:
		i, _ := val.Int64()
		return i
	default:
		num, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return num
	}
}
