// Package plan implements the Plan graph (C4): the parser-boundary
// PlanSpec type, the validated in-memory Plan/Station/Line topology, and
// the validation rules that must hold before a plan is scheduled.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"
)

// WindowSpec describes a tumbling event-time window, syntax `[Ns]`.
type WindowSpec struct {
	SizeSeconds    uint32 `json:"size_seconds"`
	AllowedLateness uint32 `json:"allowed_lateness,omitempty"`
}

// TriggerSpec names the trigger(s) attached to a station's window, e.g.
// "@element", "@windowEnd", "@windowNext". Multiple names combine.
type TriggerSpec struct {
	Names []string `json:"names"`
}

// TransformSpec is `{language, query}` per spec.md §4.6.
type TransformSpec struct {
	Language string `json:"language"`
	Query    string `json:"query"`
}

// SchemaField is one field of a station's declared layout.
type SchemaField struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // e.g. "f", "s", "i", "b", "t"
	Optional bool   `json:"optional"`
}

// IngressBinding names a source driver URI bound to a station, e.g.
// "NATS{url=nats://localhost:4222,subject=trains}:1". The URI is parsed by
// internal/ingress.ParseBinding and the concrete Source is built by
// internal/ingress.NewSource.
type IngressBinding struct {
	URI string `json:"uri"`
}

// EgressBinding names a sink driver URI bound to a station.
type EgressBinding struct {
	URI string `json:"uri"`
}

// StationSpec is one station as delivered by the parser, prior to validation.
type StationSpec struct {
	ID        uint32           `json:"id"`
	Layout    []SchemaField    `json:"layout,omitempty"`
	Window    *WindowSpec      `json:"window,omitempty"`
	Trigger   *TriggerSpec     `json:"trigger,omitempty"`
	Transform *TransformSpec   `json:"transform,omitempty"`
	// TransformRef names an entry in PlanSpec.Transforms for cross-station
	// reuse (the DSL's `Transform` block, `$name:Driver{config}`).
	// Resolved to a concrete TransformSpec at Validate time (Open
	// Question (b)); never re-resolved at runtime.
	TransformRef string          `json:"transform_ref,omitempty"`
	Sources      []IngressBinding `json:"sources,omitempty"`
	Sinks        []EgressBinding  `json:"sinks,omitempty"`
	DeadLetter   *uint32          `json:"dead_letter,omitempty"` // line id
}

// LineSpec is one line as delivered by the parser.
type LineSpec struct {
	ID       uint32 `json:"id"`
	From     uint32 `json:"from"`
	To       uint32 `json:"to"`
	Capacity int    `json:"capacity,omitempty"`
}

// PlanSpec is the parser's output: the JSON-serializable boundary type
// between the (out-of-scope) DSL parser and this package. POST
// /plans/create decodes a PlanSpec directly from its request body.
type PlanSpec struct {
	Name        string                   `json:"name"`
	Stations    []StationSpec            `json:"stations"`
	Lines       []LineSpec               `json:"lines"`
	Transforms  map[string]TransformSpec `json:"transforms,omitempty"`
}

// ErrPlanInvalid reports a topology validation failure, spec.md's
// PlanInvalid{reason}.
type ErrPlanInvalid struct {
	Reason string
}

func (e *ErrPlanInvalid) Error() string { return "plan: invalid: " + e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ErrPlanInvalid{Reason: fmt.Sprintf(format, args...)}
}

// Station is a validated node in the plan graph.
type Station struct {
	ID         uint32
	Layout     []SchemaField
	Window     *WindowSpec
	Trigger    *TriggerSpec
	Transform  *TransformSpec
	Sources    []IngressBinding
	Sinks      []EgressBinding
	DeadLetter *uint32

	incoming []uint32 // line ids feeding this station
	outgoing []uint32 // line ids leaving this station, ascending by line id
}

// Incoming returns the ids of lines feeding this station, in the order
// they were declared — position N corresponds to transform placeholder $N+1.
func (s *Station) Incoming() []uint32 { return s.incoming }

// Outgoing returns the ids of lines leaving this station in ascending
// line-id order, matching spec.md §4.4's emit ordering requirement.
func (s *Station) Outgoing() []uint32 { return s.outgoing }

// Line is a validated directed edge between two stations.
type Line struct {
	ID       uint32
	From     uint32
	To       uint32
	Capacity int
}

// Plan is the validated, immutable acyclic multi-graph of Stations and
// Lines. Plans are built once by Validate and never mutated afterward —
// an arena-and-index ownership model: stations and lines are addressed by
// id through the maps below rather than via pointers into each other.
type Plan struct {
	Name     string
	stations map[uint32]*Station
	lines    map[uint32]*Line
}

// Station looks up a station by id.
func (p *Plan) Station(id uint32) (*Station, bool) {
	s, ok := p.stations[id]
	return s, ok
}

// Line looks up a line by id.
func (p *Plan) Line(id uint32) (*Line, bool) {
	l, ok := p.lines[id]
	return l, ok
}

// Stations returns every station, ordered by ascending id.
func (p *Plan) Stations() []*Station {
	ids := make([]uint32, 0, len(p.stations))
	for id := range p.stations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Station, len(ids))
	for i, id := range ids {
		out[i] = p.stations[id]
	}
	return out
}

// Lines returns every line, ordered by ascending id.
func (p *Plan) Lines() []*Line {
	ids := make([]uint32, 0, len(p.lines))
	for id := range p.lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Line, len(ids))
	for i, id := range ids {
		out[i] = p.lines[id]
	}
	return out
}

// ParsePlanSpec decodes a PlanSpec from JSON, as used by cmd/datatracks
// when loading the config's startup plan_file.
func ParsePlanSpec(data []byte) (PlanSpec, error) {
	var spec PlanSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return PlanSpec{}, invalid("malformed plan JSON: %v", err)
	}
	return spec, nil
}

// Validate checks PlanSpec against rules (a)-(e) of spec.md §4.3 and, if
// they all hold, returns the immutable Plan. Named transforms referenced
// via TransformRef are resolved here, once, and stored directly on the
// Station (Open Question (b)) — stations never re-resolve them at runtime.
func Validate(spec PlanSpec) (*Plan, error) {
	// (a) station ids unique.
	stations := make(map[uint32]*Station, len(spec.Stations))
	for _, ss := range spec.Stations {
		if _, dup := stations[ss.ID]; dup {
			return nil, invalid("duplicate station id %d", ss.ID)
		}
		st := &Station{
			ID:         ss.ID,
			Layout:     ss.Layout,
			Window:     ss.Window,
			Trigger:    ss.Trigger,
			Transform:  ss.Transform,
			Sources:    ss.Sources,
			Sinks:      ss.Sinks,
			DeadLetter: ss.DeadLetter,
		}
		if ss.TransformRef != "" {
			resolved, ok := spec.Transforms[ss.TransformRef]
			if !ok {
				return nil, invalid("station %d references unknown transform %q", ss.ID, ss.TransformRef)
			}
			st.Transform = &resolved
		}
		stations[ss.ID] = st
	}
	if len(stations) == 0 {
		return nil, invalid("plan has no stations")
	}

	// (b) every line endpoint resolves.
	lines := make(map[uint32]*Line, len(spec.Lines))
	for _, ls := range spec.Lines {
		if _, dup := lines[ls.ID]; dup {
			return nil, invalid("duplicate line id %d", ls.ID)
		}
		from, ok := stations[ls.From]
		if !ok {
			return nil, invalid("line %d: unresolved from-station %d", ls.ID, ls.From)
		}
		to, ok := stations[ls.To]
		if !ok {
			return nil, invalid("line %d: unresolved to-station %d", ls.ID, ls.To)
		}
		cap := ls.Capacity
		if cap <= 0 {
			cap = 1
		}
		lines[ls.ID] = &Line{ID: ls.ID, From: ls.From, To: ls.To, Capacity: cap}
		from.outgoing = append(from.outgoing, ls.ID)
		to.incoming = append(to.incoming, ls.ID)
	}
	for _, st := range stations {
		sort.Slice(st.outgoing, func(i, j int) bool { return st.outgoing[i] < st.outgoing[j] })
	}

	// (c) no cycles (DFS over the station graph).
	if err := checkAcyclic(stations, lines); err != nil {
		return nil, err
	}

	// (d) every ingress station has an outgoing line, every egress an incoming one.
	for _, st := range stations {
		if len(st.Sources) > 0 && len(st.outgoing) == 0 {
			return nil, invalid("ingress station %d has no outgoing line", st.ID)
		}
		if len(st.Sinks) > 0 && len(st.incoming) == 0 {
			return nil, invalid("egress station %d has no incoming line", st.ID)
		}
	}
	hasIngress, hasEgress := false, false
	for _, st := range stations {
		if len(st.Sources) > 0 {
			hasIngress = true
		}
		if len(st.Sinks) > 0 {
			hasEgress = true
		}
	}
	if !hasIngress {
		return nil, invalid("plan has no ingress station")
	}
	if !hasEgress {
		return nil, invalid("plan has no egress station")
	}

	// connectivity: every station must be reachable, treating lines as
	// undirected edges, from any single station.
	if err := checkConnected(stations, lines); err != nil {
		return nil, err
	}

	// (e) transform placeholders $N reference lines that actually feed
	// the station.
	for _, st := range stations {
		if st.Transform == nil {
			continue
		}
		if err := checkPlaceholders(st); err != nil {
			return nil, err
		}
	}

	return &Plan{Name: spec.Name, stations: stations, lines: lines}, nil
}

func checkAcyclic(stations map[uint32]*Station, lines map[uint32]*Line) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint32]int, len(stations))
	adj := make(map[uint32][]uint32, len(stations))
	for _, l := range lines {
		adj[l.From] = append(adj[l.From], l.To)
	}

	var visit func(id uint32) error
	visit = func(id uint32) error {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return invalid("cycle detected through station %d", next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]uint32, 0, len(stations))
	for id := range stations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkConnected(stations map[uint32]*Station, lines map[uint32]*Line) error {
	if len(stations) <= 1 {
		return nil
	}
	adj := make(map[uint32][]uint32, len(stations))
	for _, l := range lines {
		adj[l.From] = append(adj[l.From], l.To)
		adj[l.To] = append(adj[l.To], l.From)
	}
	var start uint32
	for id := range stations {
		start = id
		break
	}
	seen := map[uint32]bool{start: true}
	queue := []uint32{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	if len(seen) != len(stations) {
		return invalid("plan is not connected: %d of %d stations reachable", len(seen), len(stations))
	}
	return nil
}

func checkPlaceholders(st *Station) error {
	k := len(st.incoming)
	maxN := maxPlaceholder(st.Transform.Query)
	if maxN > k {
		return invalid("station %d transform references $%d but only %d lines feed it", st.ID, maxN, k)
	}
	return nil
}

// maxPlaceholder scans query for the highest $N placeholder referenced.
func maxPlaceholder(query string) int {
	max := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			continue
		}
		j := i + 1
		n := 0
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			n = n*10 + int(query[j]-'0')
			j++
		}
		if j > i+1 && n > max {
			max = n
		}
	}
	return max
}
