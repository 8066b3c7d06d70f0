package gateway

import "time"

// slidingWindow counts calls in the trailing span. Callers hold the gateway lock.
type slidingWindow struct {
	limit int
	span  time.Duration
	calls []time.Time
}

func newSlidingWindow(limit int, span time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, span: span, calls: make([]time.Time, 0, limit)}
}

func (w *slidingWindow) prune(now time.Time) {
	keep := w.calls[:0]
	for _, ts := range w.calls {
		if now.Sub(ts) < w.span {
			keep = append(keep, ts)
		}
	}
	w.calls = keep
}

func (w *slidingWindow) allow(now time.Time) bool {
	w.prune(now)
	return len(w.calls) < w.limit
}

func (w *slidingWindow) record(now time.Time) {
	w.calls = append(w.calls, now)
}

func (w *slidingWindow) count(now time.Time) int {
	w.prune(now)
	return len(w.calls)
}

func (w *slidingWindow) remaining(now time.Time) int {
	if r := w.limit - w.count(now); r > 0 {
		return r
	}
	return 0
}
