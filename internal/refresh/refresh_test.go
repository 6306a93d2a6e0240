package refresh

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/readcache"
)

type call struct {
	at    time.Duration
	names []string
}

type recorder struct {
	mu    sync.Mutex
	clk   *clock.FakeClock
	start time.Time
	calls []call
}

func (r *recorder) Refetch(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{at: r.clk.Now().Sub(r.start), names: names})
}

func setup() (*Refresher, *recorder, *clock.FakeClock) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	rec := &recorder{clk: clk, start: start}
	return New(rec, clk, DefaultDelays(), logging.NewNopLogger()), rec, clk
}

func TestConfirmedDoubleRefresh(t *testing.T) {
	r, rec, clk := setup()
	r.Confirmed(common.HexToHash("0x01"))

	clk.Advance(999 * time.Millisecond)
	assert.Empty(t, rec.calls)

	clk.Advance(time.Millisecond)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, time.Second, rec.calls[0].at)
	assert.Empty(t, rec.calls[0].names, "first pass refetches every query")

	clk.Advance(500 * time.Millisecond)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, 1500*time.Millisecond, rec.calls[1].at)
	assert.Equal(t, []string{readcache.SellValue}, rec.calls[1].names)

	clk.Advance(time.Hour)
	assert.Len(t, rec.calls, 2)
	assert.Equal(t, 0, r.Pending())
}

func TestConfirmedOncePerHash(t *testing.T) {
	r, rec, clk := setup()
	h := common.HexToHash("0x02")
	r.Confirmed(h)
	r.Confirmed(h)
	clk.Advance(2 * time.Second)
	assert.Len(t, rec.calls, 2)

	r.Confirmed(common.HexToHash("0x03"))
	clk.Advance(2 * time.Second)
	assert.Len(t, rec.calls, 4)
}

func TestFinishedHashesAreForgotten(t *testing.T) {
	r, rec, clk := setup()
	h := common.HexToHash("0x04")
	r.Confirmed(h)
	clk.Advance(time.Second)

	r.mu.Lock()
	assert.Len(t, r.seen, 1, "tracked until the second pass")
	r.mu.Unlock()

	clk.Advance(500 * time.Millisecond)
	require.Len(t, rec.calls, 2)
	r.mu.Lock()
	assert.Empty(t, r.seen)
	r.mu.Unlock()
}

func TestSponsoredRefresh(t *testing.T) {
	r, rec, clk := setup()
	r.Sponsored()
	clk.Advance(1999 * time.Millisecond)
	assert.Empty(t, rec.calls)
	clk.Advance(time.Millisecond)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, readcache.SponsoredRefresh, rec.calls[0].names)
	assert.NotContains(t, rec.calls[0].names, readcache.WalletBalance)
	assert.NotContains(t, rec.calls[0].names, readcache.LastHatch)
}

func TestCloseCancelsPending(t *testing.T) {
	r, rec, clk := setup()
	r.Confirmed(common.HexToHash("0x04"))
	r.Sponsored()
	require.Equal(t, 2, r.Pending())

	r.Close()
	clk.Advance(time.Hour)
	assert.Empty(t, rec.calls)

	r.Confirmed(common.HexToHash("0x05"))
	clk.Advance(time.Hour)
	assert.Empty(t, rec.calls)
}

func TestCloseBetweenPasses(t *testing.T) {
	r, rec, clk := setup()
	r.Confirmed(common.HexToHash("0x06"))
	clk.Advance(time.Second)
	require.Len(t, rec.calls, 1)
	r.Close()
	clk.Advance(time.Second)
	assert.Len(t, rec.calls, 1, "second pass is dropped after Close")
}
