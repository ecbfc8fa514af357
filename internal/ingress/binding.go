// Package ingress implements the external ingress/egress port:
// parsing `Scheme{k=v,...}:stationID` binding URIs and, for the one
// scheme with a shipped driver, pumping trains between a NATS subject and
// a station's inbound line.
package ingress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// bindingPattern matches `Scheme{k=v,k2=v2}:stationID`, e.g.
// `NATS{url=nats://localhost:4222,subject=trains.in}:7`.
var bindingPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\{([^}]*)\}:(\d+)$`)

// Binding is a parsed ingress/egress endpoint reference: which driver
// scheme, its parameters, and the station id it feeds or drains.
type Binding struct {
	Scheme   string
	Params   map[string]string
	StationID uint32
}

// ErrBindingSyntax is returned when raw does not match the
// `Scheme{k=v,...}:stationID` grammar.
type ErrBindingSyntax struct {
	Raw string
}

func (e *ErrBindingSyntax) Error() string {
	return fmt.Sprintf("ingress: malformed binding %q, want Scheme{k=v,...}:stationID", e.Raw)
}

// ErrUnsupportedDriver is returned by NewSource/NewSink when a binding's
// scheme parses but has no concrete driver in this repo.
type ErrUnsupportedDriver struct {
	Scheme string
}

func (e *ErrUnsupportedDriver) Error() string {
	return fmt.Sprintf("ingress: no driver for scheme %q", e.Scheme)
}

// ParseBinding parses one ingress/egress binding URI. Param parsing
// tolerates an empty param list (`Scheme{}:stationID`) but rejects a
// malformed key=value pair.
func ParseBinding(raw string) (*Binding, error) {
	m := bindingPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, &ErrBindingSyntax{Raw: raw}
	}

	scheme, rawParams, rawStation := m[1], m[2], m[3]

	stationID, err := strconv.ParseUint(rawStation, 10, 32)
	if err != nil {
		return nil, &ErrBindingSyntax{Raw: raw}
	}

	params := map[string]string{}
	if strings.TrimSpace(rawParams) != "" {
		for _, pair := range strings.Split(rawParams, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
				return nil, &ErrBindingSyntax{Raw: raw}
			}
			params[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}

	return &Binding{Scheme: strings.ToUpper(scheme), Params: params, StationID: uint32(stationID)}, nil
}
