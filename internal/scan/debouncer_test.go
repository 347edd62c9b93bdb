package scan

import (
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/poslane/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestDebouncer() (*Debouncer, *fakeClock) {
	clock := &fakeClock{at: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	cfg := config.ScanConfig{
		DuplicateWindow: 2 * time.Second,
		MinGap:          500 * time.Millisecond,
		SettleHold:      300 * time.Millisecond,
	}
	return NewDebouncer(cfg, nil, clock.now), clock
}

func TestAcceptTrimsAndRejectsEmpty(t *testing.T) {
	d, _ := newTestDebouncer()

	code, ok, _ := d.Accept("  8901234567890  ")
	require.True(t, ok)
	assert.Equal(t, "8901234567890", code)

	_, ok, reason := d.Accept("   ")
	require.False(t, ok)
	assert.Equal(t, RejectEmpty, reason)
}

func TestDuplicateWindowRefreshesOnEveryRead(t *testing.T) {
	d, clock := newTestDebouncer()

	_, ok, _ := d.Accept("code-1")
	require.True(t, ok)
	d.Settle()
	clock.advance(time.Second)

	// Trigger held down: the same label keeps arriving just inside the
	// window and each read restarts it.
	for i := 0; i < 5; i++ {
		clock.advance(1500 * time.Millisecond)
		_, ok, reason := d.Accept("code-1")
		require.False(t, ok)
		assert.Equal(t, RejectDuplicate, reason)
	}

	clock.advance(2 * time.Second)
	_, ok, _ = d.Accept("code-1")
	assert.True(t, ok, "accepted again once the window finally elapses")
}

func TestMinGapSuppressesDistinctCodes(t *testing.T) {
	d, clock := newTestDebouncer()

	_, ok, _ := d.Accept("code-1")
	require.True(t, ok)
	d.Settle()

	clock.advance(400 * time.Millisecond)
	_, ok, reason := d.Accept("code-2")
	require.False(t, ok)
	assert.Equal(t, RejectRateLimited, reason)

	clock.advance(200 * time.Millisecond)
	_, ok, _ = d.Accept("code-2")
	assert.True(t, ok)
}

func TestInFlightGuardAndSettleHold(t *testing.T) {
	d, clock := newTestDebouncer()

	_, ok, _ := d.Accept("code-1")
	require.True(t, ok)

	clock.advance(10 * time.Second)
	_, ok, reason := d.Accept("code-2")
	require.False(t, ok, "nothing is accepted while a scan is in flight")
	assert.Equal(t, RejectBusy, reason)

	d.Settle()
	clock.advance(100 * time.Millisecond)
	_, ok, reason = d.Accept("code-3")
	require.False(t, ok, "the settle hold still guards right after completion")
	assert.Equal(t, RejectBusy, reason)

	clock.advance(300 * time.Millisecond)
	_, ok, _ = d.Accept("code-3")
	assert.True(t, ok)
}

func TestRecencyMapPrunesOldestFirst(t *testing.T) {
	d, clock := newTestDebouncer()

	for i := 0; i < recencyHighWater+1; i++ {
		clock.advance(3 * time.Second)
		code, ok, _ := d.Accept(fmt.Sprintf("code-%03d", i))
		require.True(t, ok, code)
		d.Settle()
	}

	assert.Len(t, d.lastSeen, recencyKeep)
	_, oldestKept := d.lastSeen[fmt.Sprintf("code-%03d", recencyHighWater+1-recencyKeep)]
	assert.True(t, oldestKept, "most recent codes survive the prune")
	_, oldestDropped := d.lastSeen["code-000"]
	assert.False(t, oldestDropped, "oldest codes are dropped")
}

func TestResetClearsSuppression(t *testing.T) {
	d, clock := newTestDebouncer()

	_, ok, _ := d.Accept("code-1")
	require.True(t, ok)
	d.Reset()

	clock.advance(time.Millisecond)
	_, ok, _ = d.Accept("code-1")
	assert.True(t, ok, "a fresh session starts with no history")
}
