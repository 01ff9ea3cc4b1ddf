package session

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/leandeep/marker-engine/internal/marker"
)

// UpdateType tags what an Update carries.
type UpdateType string

const (
	UpdateActivation UpdateType = "activation"
	UpdateEmotion    UpdateType = "emotion"
	UpdateDiagnostic UpdateType = "diagnostic"
)

// Update is one session-scoped notification. Exactly one of Event,
// Emotion and Skipped is set, matching Type.
type Update struct {
	Type      UpdateType           `json:"type" yaml:"type"`
	SessionID string               `json:"session_id" yaml:"session_id"`
	Event     *marker.Event        `json:"event,omitempty" yaml:"event,omitempty"`
	Emotion   *marker.EmotionState `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Skipped   *marker.SkippedChunk `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// DefaultSubscriberBuffer is the channel capacity handed to
// subscribers that do not choose their own.
const DefaultSubscriberBuffer = 64

// Bus fans session updates out to subscribers. Delivery never blocks
// the publisher: a subscriber whose buffer is full loses the update
// and the drop counter advances.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Update
	closed      bool
	dropped     atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a buffered channel that receives every update
// published after the call. buffer <= 0 selects the default capacity.
// The channel is closed on Unsubscribe or Close.
func (b *Bus) Subscribe(buffer int) <-chan Update {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Update, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers = append(b.subscribers, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Update) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if reflect.ValueOf(sub).Pointer() == target {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// Publish delivers an update to every subscriber that has buffer room.
func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		select {
		case sub <- u:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many updates were lost to full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}
