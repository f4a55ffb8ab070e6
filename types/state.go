package types

// Unknown marks a parameter whose real value cannot be trusted. A tracked
// parameter holding Unknown never triggers a dispatch.
const Unknown = "unknown"

// Base parameter names every thing persists.
const (
	ParamSleep     = "sleep"
	ParamTest      = "test"
	ParamTestParam = "test_param"
	ParamPosition  = "position"
	ParamDuration  = "duration"
	ParamReverse   = "reverse"
	ParamThreshold = "threshold"
	ParamStatus    = "status"
)

// HistoryLen bounds the persisted operation history.
const HistoryLen = 2

// Params maps parameter name to value.
type Params map[string]any

// Clone makes a shallow copy (values are scalars).
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Int returns p[key] as int, or def if absent or not an integer.
func (p Params) Int(key string, def int) int {
	if n, ok := AsInt(p[key]); ok {
		return n
	}
	return def
}

// String returns p[key] as string, or def.
func (p Params) String(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// OperationRecord is one attempted state-changing operation. A record with
// Done == false found at start-up was interrupted before completion.
type OperationRecord struct {
	Op        string `json:"op"`
	Value     any    `json:"value"`
	Timestamp int64  `json:"timestamp"`
	Done      bool   `json:"done"`
	Status    string `json:"status,omitempty"`
}

// CurrentState is the device's believed real state, as persisted.
type CurrentState struct {
	Params  Params            `json:"params"`
	History []OperationRecord `json:"history"`
}

// Clone deep-copies params and history.
func (s CurrentState) Clone() CurrentState {
	out := CurrentState{Params: s.Params.Clone()}
	if len(s.History) > 0 {
		out.History = append([]OperationRecord(nil), s.History...)
	}
	return out
}

// Front returns the most recent record, if any.
func (s CurrentState) Front() (OperationRecord, bool) {
	if len(s.History) == 0 {
		return OperationRecord{}, false
	}
	return s.History[0], true
}

// BaseParams returns the defaults every thing starts from. sleep=0 keeps a
// device awake when it has never reached the shadow.
func BaseParams() Params {
	return Params{
		ParamSleep:     0,
		ParamTest:      "none",
		ParamTestParam: 0,
	}
}
