package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
)

// Message is the `/channel/{topic}` websocket wire frame: a value-codec
// payload tagged with a send timestamp and the topic names it matched.
type Message struct {
	Payload   value.Value
	Timestamp int64
	Topics    []string
}

// EncodeMessage renders m as a value-codec Dict{payload, timestamp, topics}.
func EncodeMessage(m Message) []byte {
	d := value.NewDict()
	d.Set("payload", m.Payload)
	d.Set("timestamp", value.Int(m.Timestamp))
	topics := make([]value.Value, len(m.Topics))
	for i, t := range m.Topics {
		topics[i] = value.Text(t)
	}
	d.Set("topics", value.Array(topics))
	return value.Encode(nil, value.DictVal(d))
}

// channelSub is one websocket client's view onto a single named topic.
type channelSub struct {
	topic string
	ch    chan Message
}

// ChannelHub fans every train observed on a fabric Line out to websocket
// clients subscribed to that line's topic name, implementing
// queue.TrainObserver. Encoding reuses internal/train's Value codec so
// `/channel/*` frames and WAL records share one wire format.
type ChannelHub struct {
	mu   sync.Mutex
	subs map[string][]*channelSub
}

// NewChannelHub builds an empty hub.
func NewChannelHub() *ChannelHub {
	return &ChannelHub{subs: make(map[string][]*channelSub)}
}

// ObserveTrain implements queue.TrainObserver.
func (h *ChannelHub) ObserveTrain(lineID uint32, t *train.Train) {
	topic := lineTopic(lineID)
	h.mu.Lock()
	targets := h.subs[topic]
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}
	payload, _, err := value.Decode(train.Encode(t))
	if err != nil {
		return
	}
	msg := Message{
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		Topics:    []string{topic},
	}
	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Subscribe registers a channel for topic, buffered so a slow websocket
// write loop drops frames instead of stalling ObserveTrain's caller.
func (h *ChannelHub) Subscribe(topic string) (<-chan Message, func()) {
	sub := &channelSub{topic: topic, ch: make(chan Message, 64)}
	h.mu.Lock()
	h.subs[topic] = append(h.subs[topic], sub)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[topic]
		for i, s := range list {
			if s == sub {
				h.subs[topic] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
	return sub.ch, cancel
}

func lineTopic(lineID uint32) string {
	return "line-" + strconv.FormatUint(uint64(lineID), 10)
}
