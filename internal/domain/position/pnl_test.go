package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeserver/pkg/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuantity(t *testing.T) {
	qty, err := Quantity(d("1000"), d("50000"))
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("0.02")), "got %s", qty)
}

func TestQuantityZeroEntryPrice(t *testing.T) {
	_, err := Quantity(d("1000"), decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrZeroEntryPrice))
}

func TestGrossPnL(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		entry string
		mark  string
		qty   string
		want  string
	}{
		{"long gains when price rises", SideLong, "50000", "51000", "0.02", "20"},
		{"long loses when price falls", SideLong, "50000", "49000", "0.02", "-20"},
		{"short gains when price falls", SideShort, "50000", "49000", "0.02", "20"},
		{"short loses when price rises", SideShort, "50000", "51000", "0.02", "-20"},
		{"flat price is zero", SideLong, "50000", "50000", "0.02", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GrossPnL(tt.side, d(tt.entry), d(tt.mark), d(tt.qty))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestGrossPnLAntisymmetry(t *testing.T) {
	entry := d("2000")
	mark := d("2150.25")
	qty := d("0.5")

	long := GrossPnL(SideLong, entry, mark, qty)
	short := GrossPnL(SideShort, entry, mark, qty)
	assert.True(t, long.Equal(short.Neg()), "long %s, short %s", long, short)
}

func TestFee(t *testing.T) {
	// 2 bps per leg, charged on both legs
	assert.True(t, Fee(d("1000")).Equal(d("0.4")))
	assert.True(t, Fee(decimal.Zero).IsZero())
}

func TestNetPnL(t *testing.T) {
	// size 1000 at entry 50000 closed at 51000: qty 0.02, gross 20, fee 0.4
	net, err := NetPnL(SideLong, d("50000"), d("51000"), d("1000"))
	require.NoError(t, err)
	assert.True(t, net.Equal(d("19.6")), "got %s", net)

	net, err = NetPnL(SideShort, d("50000"), d("51000"), d("1000"))
	require.NoError(t, err)
	assert.True(t, net.Equal(d("-20.4")), "got %s", net)
}

func TestNetPnLZeroEntryPrice(t *testing.T) {
	_, err := NetPnL(SideLong, decimal.Zero, d("100"), d("1000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrZeroEntryPrice))
}

func TestUnrealizedPnL(t *testing.T) {
	pos := &Position{
		Side:       SideShort,
		EntryPrice: d("3000"),
		Size:       d("600"),
	}

	// qty 0.2, gross (3000-2900)*0.2 = 20, fee 600*0.0004 = 0.24
	pnl, err := pos.UnrealizedPnL(d("2900"))
	require.NoError(t, err)
	assert.True(t, pnl.Equal(d("19.76")), "got %s", pnl)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideShort, SideLong.Opposite())
	assert.Equal(t, SideLong, SideShort.Opposite())
}

func TestSideValid(t *testing.T) {
	assert.True(t, SideLong.Valid())
	assert.True(t, SideShort.Valid())
	assert.False(t, Side("long").Valid())
	assert.False(t, Side("").Valid())
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{CoinName: "BTC"}.IsZero())
	assert.False(t, Filter{Status: StatusOpen}.IsZero())
}
