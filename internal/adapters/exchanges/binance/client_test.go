package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeserver/pkg/errors"
)

func TestCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"50000.50","time":1700000000000}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	price, err := client.CurrentPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "50000.5", price.String())
}

func TestCurrentPriceUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.CurrentPrice(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPriceUnavailable))
}

func TestCurrentPriceGarbagePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"not-a-number"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.CurrentPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPriceUnavailable))
}

func TestCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ETHUSDT", q.Get("symbol"))
		assert.Equal(t, "15m", q.Get("interval"))
		assert.Equal(t, "1700000000000", q.Get("startTime"))
		assert.Equal(t, "1700003600000", q.Get("endTime"))
		assert.Equal(t, "1000", q.Get("limit"))
		w.Write([]byte(`[
			[1700000000000,"2000.0","2010.5","1995.0","2005.0","123.4",1700000899999,"0",0,"0","0","0"],
			[1700000900000,"2005.0","2020.0","2001.0","2018.5","99.9",1700001799999,"0",0,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	candles, err := client.Candles(context.Background(), "ETH", 1700000000, 1700003600)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
	assert.Equal(t, "2010.5", candles[0].High.String())
	assert.Equal(t, "1995", candles[0].Low.String())
	assert.Equal(t, "2005", candles[0].Close.String())
	assert.Equal(t, "2018.5", candles[1].Close.String())
}

func TestCandlesEmptyRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	candles, err := client.Candles(context.Background(), "BTC", 100, 200)
	require.NoError(t, err)
	assert.Empty(t, candles)
}
