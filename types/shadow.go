package types

import (
	"bytes"
	"encoding/json"

	"thingcode-go/errcode"
)

// Meta is the per-key metadata entry of a shadow document.
type Meta struct {
	Timestamp int64 `json:"timestamp"`
}

// Section holds desired and reported values. An empty desired section is
// still written out since readers require it.
type Section struct {
	Desired  map[string]any `json:"desired"`
	Reported map[string]any `json:"reported,omitempty"`
}

// MetaSection holds per-key change timestamps.
type MetaSection struct {
	Desired  map[string]Meta `json:"desired,omitempty"`
	Reported map[string]Meta `json:"reported,omitempty"`
}

// Document is the cloud-held shadow as fetched each cycle. It is read-only
// to the reconciliation core.
type Document struct {
	State       Section     `json:"state"`
	Metadata    MetaSection `json:"metadata,omitempty"`
	Version     int64       `json:"version,omitempty"`
	Timestamp   int64       `json:"timestamp,omitempty"`
	ClientToken string      `json:"clientToken,omitempty"`
}

// DecodeDocument parses a shadow and requires state.desired.
// Nested metadata (for object-valued keys) decodes with a zero timestamp.
func DecodeDocument(b []byte) (*Document, error) {
	var raw struct {
		State    Section `json:"state"`
		Metadata struct {
			Desired  map[string]json.RawMessage `json:"desired"`
			Reported map[string]json.RawMessage `json:"reported"`
		} `json:"metadata"`
		Version     int64  `json:"version"`
		Timestamp   int64  `json:"timestamp"`
		ClientToken string `json:"clientToken"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return nil, &errcode.E{C: errcode.Malformed, Op: "decode", Err: err}
	}
	if raw.State.Desired == nil {
		return nil, &errcode.E{C: errcode.Malformed, Op: "decode", Msg: "no state.desired"}
	}
	return &Document{
		State: raw.State,
		Metadata: MetaSection{
			Desired:  decodeMeta(raw.Metadata.Desired),
			Reported: decodeMeta(raw.Metadata.Reported),
		},
		Version:     raw.Version,
		Timestamp:   raw.Timestamp,
		ClientToken: raw.ClientToken,
	}, nil
}

func decodeMeta(in map[string]json.RawMessage) map[string]Meta {
	if in == nil {
		return nil
	}
	out := make(map[string]Meta, len(in))
	for k, v := range in {
		var m Meta
		_ = json.Unmarshal(v, &m)
		out[k] = m
	}
	return out
}

// DesiredTimestamp returns metadata.desired[key].timestamp, or 0.
func (d *Document) DesiredTimestamp(key string) int64 {
	if m, ok := d.Metadata.Desired[key]; ok {
		return m.Timestamp
	}
	return 0
}

// ReportedTimestamp returns metadata.reported[key].timestamp and whether
// the key had metadata at all.
func (d *Document) ReportedTimestamp(key string) (int64, bool) {
	m, ok := d.Metadata.Reported[key]
	return m.Timestamp, ok
}

// LastReported returns state.reported[key].
func (d *Document) LastReported(key string) (any, bool) {
	if d.State.Reported == nil {
		return nil, false
	}
	v, ok := d.State.Reported[key]
	return v, ok
}

// Reported is the cycle-scoped delta to transmit.
type Reported map[string]any

// SetIfChanged records v under key unless the document already reports an
// equal value. Re-sending equal values would bump the remote version.
func (r Reported) SetIfChanged(doc *Document, key string, v any) bool {
	if last, ok := doc.LastReported(key); ok && Equal(last, v) {
		return false
	}
	r[key] = v
	return true
}

// Body renders {"state":{"reported":{...}}} with sorted keys.
func (r Reported) Body() ([]byte, error) {
	type state struct {
		Reported map[string]any `json:"reported"`
	}
	return json.Marshal(struct {
		State state `json:"state"`
	}{State: state{Reported: r}})
}
