package server

import (
	"encoding/json"
	"net/http"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/gorilla/mux"
)

// planSummary is the JSON shape returned by GET /plans — Plan's internal
// maps are unexported by design (arena-and-index ownership, see
// internal/plan), so the dashboard gets this flattened projection instead
// of marshaling *plan.Plan directly.
type planSummary struct {
	Name     string   `json:"name"`
	Stations []uint32 `json:"stations"`
	Lines    []uint32 `json:"lines"`
}

func summarize(name string, p *plan.Plan) planSummary {
	stations := p.Stations()
	lines := p.Lines()
	s := planSummary{Name: name, Stations: make([]uint32, len(stations)), Lines: make([]uint32, len(lines))}
	for i, st := range stations {
		s.Stations[i] = st.ID
	}
	for i, l := range lines {
		s.Lines[i] = l.ID
	}
	return s
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	names := s.plans.List()
	summaries := make([]planSummary, 0, len(names))
	for _, name := range names {
		if p, ok := s.plans.Get(name); ok {
			summaries = append(summaries, summarize(name, p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": summaries})
}

type createPlanRequest struct {
	Name string        `json:"name"`
	Plan plan.PlanSpec `json:"plan"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plan name is required"})
		return
	}

	p, err := s.plans.Create(req.Name, req.Plan)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if s.onPlanCreated != nil {
		s.onPlanCreated(req.Name, p)
	}
	writeJSON(w, http.StatusOK, summarize(req.Name, p))
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.channels.Subscribe(topic)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(binaryMessage, EncodeMessage(msg)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
