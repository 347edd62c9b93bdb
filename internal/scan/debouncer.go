package scan

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/poslane/pkg/config"
	"github.com/angelmondragon/poslane/pkg/metrics"
)

// Rejection reasons reported by the debouncer.
const (
	RejectEmpty       = "empty"
	RejectBusy        = "busy"
	RejectDuplicate   = "duplicate"
	RejectRateLimited = "rate_limited"
)

const (
	recencyHighWater = 50
	recencyKeep      = 25
)

// Debouncer suppresses the noise a physical trigger produces: repeated reads
// of the same label, bursts faster than a human scans, and reads arriving
// while the previous scan is still being applied.
//
// Every observed code refreshes its recency stamp, so holding the trigger on
// one label keeps suppressing it instead of re-adding it once the window
// elapses.
type Debouncer struct {
	mu sync.Mutex

	duplicateWindow time.Duration
	minGap          time.Duration
	settleHold      time.Duration

	lastSeen     map[string]time.Time
	lastAccepted time.Time
	inFlight     bool
	guardUntil   time.Time

	now   func() time.Time
	stats *metrics.ScanPipelineMetrics
}

// NewDebouncer builds a debouncer from scan config. A nil now falls back to
// the wall clock.
func NewDebouncer(cfg config.ScanConfig, stats *metrics.ScanPipelineMetrics, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{
		duplicateWindow: cfg.DuplicateWindow,
		minGap:          cfg.MinGap,
		settleHold:      cfg.SettleHold,
		lastSeen:        map[string]time.Time{},
		now:             now,
		stats:           stats,
	}
}

// Accept evaluates one raw read. It returns the trimmed code and whether it
// cleared every suppression rule; rejected reads carry the reason.
func (d *Debouncer) Accept(raw string) (string, bool, string) {
	code := strings.TrimSpace(raw)
	if code == "" {
		d.stats.IncRejected(RejectEmpty)
		return "", false, RejectEmpty
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	previous, seen := d.lastSeen[code]
	d.lastSeen[code] = now
	d.prune()

	if d.inFlight || now.Before(d.guardUntil) {
		d.stats.IncRejected(RejectBusy)
		return code, false, RejectBusy
	}
	if seen && now.Sub(previous) < d.duplicateWindow {
		d.stats.IncRejected(RejectDuplicate)
		return code, false, RejectDuplicate
	}
	if !d.lastAccepted.IsZero() && now.Sub(d.lastAccepted) < d.minGap {
		d.stats.IncRejected(RejectRateLimited)
		return code, false, RejectRateLimited
	}

	d.lastAccepted = now
	d.inFlight = true
	d.stats.IncAccepted()
	return code, true, ""
}

// Settle marks the in-flight scan as applied. New reads stay suppressed for
// the settle hold so the trailing edge of the same trigger pull cannot slip
// through.
func (d *Debouncer) Settle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false
	d.guardUntil = d.now().Add(d.settleHold)
}

// Reset clears all suppression state, used when a capture session ends.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen = map[string]time.Time{}
	d.lastAccepted = time.Time{}
	d.inFlight = false
	d.guardUntil = time.Time{}
}

// prune bounds the recency map. Past the high-water mark only the most
// recently seen codes survive; a busy shift never grows it unbounded.
func (d *Debouncer) prune() {
	if len(d.lastSeen) <= recencyHighWater {
		return
	}

	type stamp struct {
		code string
		at   time.Time
	}
	stamps := make([]stamp, 0, len(d.lastSeen))
	for code, at := range d.lastSeen {
		stamps = append(stamps, stamp{code: code, at: at})
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].at.After(stamps[j].at) })

	kept := map[string]time.Time{}
	for _, s := range stamps[:recencyKeep] {
		kept[s.code] = s.at
	}
	d.lastSeen = kept
}
