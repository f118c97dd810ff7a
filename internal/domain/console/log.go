package console

import (
	"sync"
	"time"
)

// EntryType classifies a log line.
type EntryType string

const (
	TypeLog      EntryType = "log"
	TypeInfo     EntryType = "info"
	TypeWarn     EntryType = "warn"
	TypeError    EntryType = "error"
	TypeOut      EntryType = "out"
	TypeCallback EntryType = "callback"
	TypeOther    EntryType = "other"
)

// DefaultRetention caps the log when no limit is configured.
const DefaultRetention = 5000

// Entry is one immutable log line.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Type      EntryType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only sequence of entries with bounded retention.
// Subscribers receive every entry appended after they subscribe.
type Log struct {
	mu        sync.RWMutex
	entries   []Entry
	retention int
	seq       uint64
	dropped   uint64

	subs    map[int]chan Entry
	nextSub int
	now     func() time.Time
}

// NewLog creates a log keeping at most retention entries. Zero or less
// uses DefaultRetention.
func NewLog(retention int) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Log{
		retention: retention,
		subs:      make(map[int]chan Entry),
		now:       time.Now,
	}
}

// Append adds an entry and fans it out to subscribers.
func (l *Log) Append(t EntryType, message string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e := Entry{Seq: l.seq, Type: t, Message: message, Timestamp: l.now()}
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.retention; over > 0 {
		l.entries = append([]Entry(nil), l.entries[over:]...)
		l.dropped += uint64(over)
	}

	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber, it can resync with Since
		}
	}
	return e
}

// Entries returns a copy of the retained entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Since returns retained entries with Seq greater than seq.
func (l *Log) Since(seq uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, e := range l.entries {
		if e.Seq > seq {
			return append([]Entry(nil), l.entries[i:]...)
		}
	}
	return nil
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Count returns the number of retained entries of type t.
func (l *Log) Count(t EntryType) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Dropped returns how many entries retention has evicted.
func (l *Log) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}

// Clear discards retained entries. Sequence numbers keep increasing.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Subscribe returns a channel of new entries and a cancel function. The
// channel is closed by cancel or by Close.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	l.mu.Lock()
	key := l.nextSub
	l.nextSub++
	l.subs[key] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			if c, ok := l.subs[key]; ok {
				delete(l.subs, key)
				close(c)
			}
			l.mu.Unlock()
		})
	}
}

// Close ends every subscription.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, ch := range l.subs {
		delete(l.subs, key)
		close(ch)
	}
}
