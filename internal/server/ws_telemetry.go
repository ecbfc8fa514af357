package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/data-tracks/DataTracks/internal/telemetry"
)

const binaryMessage = websocket.BinaryMessage

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case sample, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case sample, ok := <-sub.Queues:
			if !ok {
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				return
			}
		}
	}
}

// statisticsSample merges a CountSample/ThroughputSample into one JSON
// object per spec.md §4.9's `statistics` topic shape.
type statisticsSample struct {
	Kind  string                      `json:"kind"`
	Count *telemetry.CountSample      `json:"count,omitempty"`
	Rate  *telemetry.ThroughputSample `json:"throughput,omitempty"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		var out statisticsSample
		select {
		case <-r.Context().Done():
			return
		case sample, ok := <-sub.Counts:
			if !ok {
				return
			}
			out = statisticsSample{Kind: "count", Count: &sample}
		case sample, ok := <-sub.Through:
			if !ok {
				return
			}
			out = statisticsSample{Kind: "throughput", Rate: &sample}
		}
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}
