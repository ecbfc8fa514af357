package ingress

import "testing"

func TestParseBindingAcceptsNatsURI(t *testing.T) {
	b, err := ParseBinding("NATS{url=nats://localhost:4222,subject=trains.in}:7")
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	if b.Scheme != "NATS" {
		t.Fatalf("Scheme = %q, want NATS", b.Scheme)
	}
	if b.StationID != 7 {
		t.Fatalf("StationID = %d, want 7", b.StationID)
	}
	if b.Params["url"] != "nats://localhost:4222" || b.Params["subject"] != "trains.in" {
		t.Fatalf("Params = %+v", b.Params)
	}
}

func TestParseBindingAcceptsEmptyParamList(t *testing.T) {
	b, err := ParseBinding("TCP{}:3")
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	if len(b.Params) != 0 {
		t.Fatalf("Params = %+v, want empty", b.Params)
	}
}

func TestParseBindingRejectsMalformedSyntax(t *testing.T) {
	cases := []string{
		"NATS{url=nats://x}",           // missing :stationID
		"NATS:7",                       // missing {}
		"NATS{url}:7",                  // param without =
		"NATS{=x}:7",                   // empty key
		"nats{url=x}:abc",              // non-numeric station id
		"",
	}
	for _, raw := range cases {
		if _, err := ParseBinding(raw); err == nil {
			t.Errorf("ParseBinding(%q): want error, got nil", raw)
		}
	}
}

func TestNewSourceRejectsUnsupportedScheme(t *testing.T) {
	b, err := ParseBinding("MQTT{host=localhost}:1")
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	_, err = NewSource(b)
	if _, ok := err.(*ErrUnsupportedDriver); !ok {
		t.Fatalf("NewSource err = %v, want *ErrUnsupportedDriver", err)
	}
}

func TestNewSinkRejectsUnsupportedScheme(t *testing.T) {
	b, err := ParseBinding("TCP{host=localhost}:1")
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	_, err = NewSink(b)
	if _, ok := err.(*ErrUnsupportedDriver); !ok {
		t.Fatalf("NewSink err = %v, want *ErrUnsupportedDriver", err)
	}
}

func TestNewSourceRejectsNatsBindingMissingParams(t *testing.T) {
	b, err := ParseBinding("NATS{url=nats://localhost:4222}:1")
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	if _, err := NewSource(b); err == nil {
		t.Fatalf("NewSource: want error for missing subject param")
	}
}
