package types

import (
	"encoding/json"

	"thingcode-go/errcode"
)

// Update is an incoming shadow update: either section may be set.
type Update struct {
	State struct {
		Desired  map[string]any `json:"desired,omitempty"`
		Reported map[string]any `json:"reported,omitempty"`
	} `json:"state"`
	ClientToken string `json:"clientToken,omitempty"`
}

// DecodeUpdate parses an update body and requires at least one section.
func DecodeUpdate(b []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, &errcode.E{C: errcode.Malformed, Op: "decode_update", Err: err}
	}
	if u.State.Desired == nil && u.State.Reported == nil {
		return nil, &errcode.E{C: errcode.Malformed, Op: "decode_update", Msg: "no state section"}
	}
	return &u, nil
}

// ApplyUpdate merges u into d the way a device shadow service does: each
// top-level key is set and stamped with now, a null value deletes the key
// and its metadata, and the version advances once. Object values replace
// rather than merge.
func (d *Document) ApplyUpdate(u *Update, now int64) {
	if u.State.Desired != nil {
		if d.State.Desired == nil {
			d.State.Desired = map[string]any{}
		}
		if d.Metadata.Desired == nil {
			d.Metadata.Desired = map[string]Meta{}
		}
		merge(d.State.Desired, d.Metadata.Desired, u.State.Desired, now)
	}
	if u.State.Reported != nil {
		if d.State.Reported == nil {
			d.State.Reported = map[string]any{}
		}
		if d.Metadata.Reported == nil {
			d.Metadata.Reported = map[string]Meta{}
		}
		merge(d.State.Reported, d.Metadata.Reported, u.State.Reported, now)
	}
	d.Version++
	d.Timestamp = now
	d.ClientToken = u.ClientToken
}

func merge(dst map[string]any, meta map[string]Meta, src map[string]any, now int64) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			delete(meta, k)
			continue
		}
		dst[k] = v
		meta[k] = Meta{Timestamp: now}
	}
}

// Delta returns desired keys whose reported value differs or is missing.
func (d *Document) Delta() map[string]any {
	out := map[string]any{}
	for k, v := range d.State.Desired {
		if r, ok := d.LastReported(k); !ok || !Equal(r, v) {
			out[k] = v
		}
	}
	return out
}

// Clone deep-copies the document through its JSON form.
func (d *Document) Clone() *Document {
	b, err := json.Marshal(d)
	if err != nil {
		return &Document{}
	}
	var out Document
	_ = json.Unmarshal(b, &out)
	return &out
}
