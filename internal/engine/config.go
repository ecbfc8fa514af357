package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/data-tracks/DataTracks/internal/value"
)

// DictFromJSON converts an Engine binding's raw JSON config object (as read
// from config.EngineBinding.Config) into the *value.Dict every adapter's
// Init expects, so config loading stays decoupled from the Value model.
func DictFromJSON(raw json.RawMessage) (*value.Dict, error) {
	if len(raw) == 0 {
		return value.NewDict(), nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("engine: decoding config: %w", err)
	}
	d := value.NewDict()
	for k, v := range fields {
		d.Set(k, jsonToValue(v))
	}
	return d, nil
}

func jsonToValue(v interface{}) value.Value {
	switch v := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(v)
	case string:
		return value.Text(v)
	case float64:
		if v == math.Trunc(v) {
			return value.Int(int64(v))
		}
		return value.FloatVal(int64(v*1e6), 6)
	default:
		return value.Text(fmt.Sprintf("%v", v))
	}
}

// stringField reads a required text field from an Engine binding's config Dict.
func stringField(cfg *value.Dict, key string) (string, error) {
	v, ok := cfg.Get(key)
	if !ok || v.Kind != value.KindText {
		return "", fmt.Errorf("engine: config missing required text field %q", key)
	}
	return v.Text, nil
}

// stringFieldOr reads an optional text field, returning def if absent.
func stringFieldOr(cfg *value.Dict, key, def string) string {
	v, ok := cfg.Get(key)
	if !ok || v.Kind != value.KindText {
		return def
	}
	return v.Text
}

// wagonToFields flattens one wagon's field map into a plain string-keyed
// map suitable for column-oriented backends.
func wagonToFields(wagon map[string]value.Value) map[string]string {
	out := make(map[string]string, len(wagon))
	for k, v := range wagon {
		out[k] = textOf(v)
	}
	return out
}

func textOf(v value.Value) string {
	switch v.Kind {
	case value.KindText:
		return v.Text
	case value.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case value.KindFloat:
		return fmt.Sprintf("%g", v.Float.AsFloat64())
	case value.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return fmt.Sprintf("%v", v.Kind)
	}
}
