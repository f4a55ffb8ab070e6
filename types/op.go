package types

// Op enumerates state-changing operations. Each op is keyed by the desired
// parameter that triggers it. Dispatch order is the order of declaration.
type Op uint8

const (
	OpNone Op = iota
	OpTest
	OpTestParam
	OpPosition
	OpSignal
)

var opKeys = [...]string{
	OpNone:      "",
	OpTest:      "test",
	OpTestParam: "test_param",
	OpPosition:  "position",
	OpSignal:    "signal",
}

// Key is the shadow parameter name for the op.
func (o Op) Key() string {
	if int(o) < len(opKeys) {
		return opKeys[o]
	}
	return ""
}

func (o Op) String() string { return o.Key() }

// OpFromKey maps a parameter name back to its op, or OpNone.
func OpFromKey(key string) Op {
	for i, k := range opKeys {
		if k != "" && k == key {
			return Op(i)
		}
	}
	return OpNone
}

// Param is the parameter an interrupted op leaves indeterminate. Both test
// ops run the configured test, so both invalidate "test".
func (o Op) Param() string {
	if o == OpTestParam {
		return OpTest.Key()
	}
	return o.Key()
}
