package executor

import (
	"sync"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Reply is what the client of an action gets back once it has run.
type Reply struct {
	Version    uint64
	DistinctID uint64
	Results    []action.Result
	Err        string
}

func newReply(a *action.Action) *Reply {
	return &Reply{
		Version:    a.Version,
		DistinctID: a.DistinctID,
		Results:    append([]action.Result(nil), a.Results...),
		Err:        a.Err,
	}
}

// ResultSink routes replies to the clients named in an action's routing metadata. Deliver must not block.
type ResultSink interface {
	Deliver(machine uint64, channel string, r *Reply)
}

// LogSink writes every reply to the log.
type LogSink struct{}

func (LogSink) Deliver(machine uint64, channel string, r *Reply) {
	log.Debug("action result",
		zap.Uint64("machine", machine), zap.String("channel", channel),
		zap.Uint64("version", r.Version), zap.Uint64("id", r.DistinctID),
		zap.Int("results", len(r.Results)), zap.String("err", r.Err))
}

// Channels is the set of named data channels of one machine. Replies addressed to this machine are put on the
// channel of the same name. A reply is dropped if its channel does not exist, is full, or lives on another machine.
type Channels struct {
	machine  uint64
	capacity int

	mu       sync.RWMutex
	channels map[string]chan *Reply
}

// NewChannels creates the data channels of machine. Each channel buffers up to capacity replies.
func NewChannels(machine uint64, capacity int) *Channels {
	return &Channels{
		machine:  machine,
		capacity: capacity,
		channels: make(map[string]chan *Reply),
	}
}

// DataChannel returns the channel called name, creating it if needed.
func (c *Channels) DataChannel(name string) <-chan *Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[name]
	if !ok {
		ch = make(chan *Reply, c.capacity)
		c.channels[name] = ch
	}
	return ch
}

// CloseDataChannel removes the channel called name. Replies already buffered can still be received.
func (c *Channels) CloseDataChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[name]; ok {
		close(ch)
		delete(c.channels, name)
	}
}

func (c *Channels) Deliver(machine uint64, channel string, r *Reply) {
	if machine != c.machine {
		log.Warn("drop reply for remote machine",
			zap.Uint64("machine", machine), zap.String("channel", channel), zap.Uint64("version", r.Version))
		droppedReplyCounter.WithLabelValues("remote").Inc()
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[channel]
	if !ok {
		log.Warn("drop reply for unknown channel", zap.String("channel", channel), zap.Uint64("version", r.Version))
		droppedReplyCounter.WithLabelValues("unknown").Inc()
		return
	}
	select {
	case ch <- r:
	default:
		log.Warn("drop reply, channel is full", zap.String("channel", channel), zap.Uint64("version", r.Version))
		droppedReplyCounter.WithLabelValues("full").Inc()
	}
}
