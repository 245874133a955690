package service

import (
	"strings"
	"sync"
	"time"

	"github.com/aurachat/aurachat/pkg/event"
)

// doneMargin trails the last token before the terminal done event.
const doneMargin = 50 * time.Millisecond

// Streamer re-emits a completed text as an ordered, time-paced token
// stream: token i fires at i*interval, and done fires after the last token
// plus a small margin. Pacing is a post-hoc simulation over already
// complete text, not incremental generation.
//
// Timers are tracked per connection so a disconnect cancels everything
// still pending; a callback that fires into a closed connection is a no-op
// because the sink returns an error that is ignored.
type Streamer struct {
	interval time.Duration

	mu     sync.Mutex
	timers map[string][]*time.Timer
}

func NewStreamer(interval time.Duration) *Streamer {
	return &Streamer{
		interval: interval,
		timers:   make(map[string][]*time.Timer),
	}
}

// Stream splits text on whitespace and schedules one token event per word,
// then a done event. onDone, if set, runs after done is emitted (also when
// the text has no tokens). With a zero interval everything is emitted
// synchronously, in order.
func (s *Streamer) Stream(connID string, sink event.Sink, text string, onDone func()) {
	tokens := strings.Fields(text)

	if s.interval <= 0 {
		for _, tok := range tokens {
			_ = sink.Emit(event.TokenEvent{Token: tok})
		}
		_ = sink.Emit(event.DoneEvent{Success: true})
		if onDone != nil {
			onDone()
		}
		return
	}

	s.mu.Lock()
	for i, tok := range tokens {
		tok := tok
		timer := time.AfterFunc(time.Duration(i)*s.interval, func() {
			_ = sink.Emit(event.TokenEvent{Token: tok})
		})
		s.timers[connID] = append(s.timers[connID], timer)
	}
	final := time.AfterFunc(time.Duration(len(tokens))*s.interval+doneMargin, func() {
		_ = sink.Emit(event.DoneEvent{Success: true})
		if onDone != nil {
			onDone()
		}
		s.forget(connID)
	})
	s.timers[connID] = append(s.timers[connID], final)
	s.mu.Unlock()
}

// CancelAll stops every pending timer for the connection. Used on
// disconnect so stale callbacks never fire into a dead connection.
func (s *Streamer) CancelAll(connID string) {
	s.mu.Lock()
	timers := s.timers[connID]
	delete(s.timers, connID)
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

func (s *Streamer) forget(connID string) {
	s.mu.Lock()
	delete(s.timers, connID)
	s.mu.Unlock()
}
