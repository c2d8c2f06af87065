// Package feed keeps the bounded history of change records and fans them out
// to subscribers in emission order. Per-path failures travel on a separate
// side channel and never appear inside an UpdateInfo.
package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/models"
)

// DefaultMaxHistory is used when a Feed is created with a non-positive limit.
const DefaultMaxHistory = 1000

// PathFailure is the error state of one path.
type PathFailure struct {
	Path       string      `json:"path"`
	DocumentID string      `json:"document_id"`
	Kind       apperr.Kind `json:"kind"`
	Message    string      `json:"message"`
	At         time.Time   `json:"at"`
}

// Entry is one recorded UpdateInfo with its sequence number.
type Entry struct {
	Seq    uint64            `json:"seq"`
	Update models.UpdateInfo `json:"update"`
}

// Event is delivered to subscribers. Exactly one of Update and Failure is set.
// A Failure event with an empty Message clears the failure for that path.
type Event struct {
	Seq     uint64             `json:"seq"`
	Update  *models.UpdateInfo `json:"update,omitempty"`
	Failure *PathFailure       `json:"failure,omitempty"`
}

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Feed is safe for concurrent use.
type Feed struct {
	mu         sync.Mutex
	maxHistory int
	history    []Entry
	seq        uint64
	failures   map[string]PathFailure
	subs       map[int]*subscriber
	nextSub    int
	dropped    uint64
}

// New returns a feed keeping at most maxHistory records.
func New(maxHistory int) *Feed {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Feed{
		maxHistory: maxHistory,
		failures:   make(map[string]PathFailure),
		subs:       make(map[int]*subscriber),
	}
}

// Append records u, evicting the oldest record once the limit is exceeded,
// and publishes it. It returns the assigned sequence number.
func (f *Feed) Append(u models.UpdateInfo) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.history = append(f.history, Entry{Seq: f.seq, Update: u})
	if over := len(f.history) - f.maxHistory; over > 0 {
		f.history = append(f.history[:0:0], f.history[over:]...)
	}
	f.publishLocked(Event{Seq: f.seq, Update: &u})
	return f.seq
}

// Since returns records with a sequence number greater than seq, oldest first.
func (f *Feed) Since(seq uint64) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := sort.Search(len(f.history), func(i int) bool { return f.history[i].Seq > seq })
	return append([]Entry(nil), f.history[i:]...)
}

// Recent returns the last n records, oldest first.
func (f *Feed) Recent(n int) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.history) {
		n = len(f.history)
	}
	return append([]Entry(nil), f.history[len(f.history)-n:]...)
}

// ForDocument returns the retained records of one document, oldest first.
func (f *Feed) ForDocument(id string) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.history {
		if e.Update.DocumentID == id {
			out = append(out, e)
		}
	}
	return out
}

// Seq returns the sequence number of the latest record.
func (f *Feed) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Len returns the number of retained records.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// ReportFailure records the failure of a path and publishes it.
func (f *Feed) ReportFailure(pf PathFailure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[pf.Path] = pf
	f.publishLocked(Event{Seq: f.seq, Failure: &pf})
}

// ClearFailure drops the failure state of path. It reports whether one existed.
func (f *Feed) ClearFailure(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	pf, ok := f.failures[path]
	if !ok {
		return false
	}
	delete(f.failures, path)
	cleared := PathFailure{Path: path, DocumentID: pf.DocumentID}
	f.publishLocked(Event{Seq: f.seq, Failure: &cleared})
	return true
}

// Failures returns the current failure of every failing path, ordered by path.
func (f *Feed) Failures() []PathFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PathFailure, 0, len(f.failures))
	for _, pf := range f.failures {
		out = append(out, pf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Subscribe returns a channel receiving every later event in order. A
// subscriber whose buffer is full misses events instead of blocking the
// producer. cancel closes the channel.
func (f *Feed) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	s := &subscriber{ch: make(chan Event, buf)}
	f.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(s.ch)
		})
	}
}

// Dropped returns how many events were not delivered to slow subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Feed) publishLocked(ev Event) {
	for _, s := range f.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped++
			f.dropped++
		}
	}
}
