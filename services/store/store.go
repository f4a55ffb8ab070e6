// Package store persists the device's CurrentState between wake cycles.
//
// Two media are supported: a file (survives power loss) and a small
// battery-backed memory (survives deep sleep only). Both report an empty
// or damaged medium as "nothing restored" so a cycle can always proceed.
package store

import (
	"encoding/json"

	"thingcode-go/errcode"
	"thingcode-go/types"
)

// Store is the save/load contract. Load returns ok=false when nothing
// valid was persisted; err then carries the reason (Empty or Corrupt) and
// is informational only.
type Store interface {
	Load() (st types.CurrentState, ok bool, err error)
	Save(st types.CurrentState) error
}

func encode(st types.CurrentState) ([]byte, error) {
	if st.Params == nil {
		st.Params = types.Params{}
	}
	if st.History == nil {
		st.History = []types.OperationRecord{}
	}
	b, err := json.Marshal(st)
	if err != nil {
		return nil, errcode.Wrap(errcode.Error, "encode", err)
	}
	return b, nil
}

func decode(b []byte) (types.CurrentState, error) {
	if len(b) == 0 {
		return types.CurrentState{}, &errcode.E{C: errcode.Empty, Op: "load"}
	}
	var st types.CurrentState
	if err := json.Unmarshal(b, &st); err != nil {
		return types.CurrentState{}, errcode.Wrap(errcode.Corrupt, "load", err)
	}
	if st.Params == nil {
		return types.CurrentState{}, &errcode.E{C: errcode.Corrupt, Op: "load", Msg: "no params"}
	}
	if len(st.History) > types.HistoryLen {
		st.History = st.History[:types.HistoryLen]
	}
	return st, nil
}
