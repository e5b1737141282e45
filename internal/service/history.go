package service

import "time"

// HistorySample is one recorded temperature/power point for an output.
type HistorySample struct {
	At    time.Time `json:"at"`
	TempC float64   `json:"temp_c"`
	Power int       `json:"power"`
}

// historyRing is a fixed-capacity buffer of samples. At capacity, a push
// silently overwrites the oldest entry. Reads are newest-first. Not safe for
// concurrent use; the owning service synchronizes.
type historyRing struct {
	buf   []HistorySample
	head  int // next write position
	count int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]HistorySample, capacity)}
}

func (r *historyRing) push(s HistorySample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *historyRing) len() int { return r.count }

// at returns the i-th newest sample; at(0) is the most recent push.
func (r *historyRing) at(i int) (HistorySample, bool) {
	if i < 0 || i >= r.count {
		return HistorySample{}, false
	}
	idx := (r.head - 1 - i + 2*len(r.buf)) % len(r.buf)
	return r.buf[idx], true
}

// newestFirst copies out up to max samples, newest first. max <= 0 means all.
func (r *historyRing) newestFirst(max int) []HistorySample {
	n := r.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]HistorySample, 0, n)
	for i := 0; i < n; i++ {
		s, _ := r.at(i)
		out = append(out, s)
	}
	return out
}
