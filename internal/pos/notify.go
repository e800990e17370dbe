package pos

import (
	"sync"
	"time"

	"github.com/talkincode/toughpos/pkg/i18n"
	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient user-visible message produced by a store action
type Notification struct {
	Seq     uint64    `json:"seq"`
	Till    string    `json:"till,omitempty"`
	Level   Level     `json:"level"`
	Key     string    `json:"key"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the zap logger
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("namespace", "pos"),
		zap.String("till", n.Till),
		zap.String("key", n.Key),
	}
	switch n.Level {
	case LevelError:
		zap.L().Warn(n.Message, fields...)
	default:
		zap.L().Info(n.Message, fields...)
	}
}

// Feed keeps the most recent notifications for polling clients
// and forwards each one to next.
type Feed struct {
	mu    sync.Mutex
	seq   uint64
	size  int
	items []Notification
	next  Notifier
}

func NewFeed(size int, next Notifier) *Feed {
	if size <= 0 {
		size = 100
	}
	return &Feed{size: size, next: next}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	f.seq++
	n.Seq = f.seq
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	f.items = append(f.items, n)
	if len(f.items) > f.size {
		f.items = f.items[len(f.items)-f.size:]
	}
	f.mu.Unlock()

	if f.next != nil {
		f.next.Notify(n)
	}
}

// Seq is the sequence number of the latest notification
func (f *Feed) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Since returns notifications with Seq > after, optionally restricted to one till.
// Notifications without a till are visible to every till.
func (f *Feed) Since(after uint64, till string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]Notification, 0)
	for _, n := range f.items {
		if n.Seq <= after {
			continue
		}
		if till != "" && n.Till != "" && n.Till != till {
			continue
		}
		result = append(result, n)
	}
	return result
}

func (s *Store) notify(till string, level Level, key string, args map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Notification{
		Till:    till,
		Level:   level,
		Key:     key,
		Message: i18n.T(key, args),
		Time:    time.Now(),
	})
}
