// Package reconcile diffs a shadow's desired state against the device's
// persisted real state and dispatches at most one operation per cycle.
//
// Every dispatched operation is checkpointed as an unfinished history
// record before it runs. A record still unfinished at the next start-up
// means the device died mid-operation; it is reported as failed and never
// retried.
package reconcile

import (
	"fmt"
	"log/slog"

	"thingcode-go/errcode"
	"thingcode-go/services/store"
	"thingcode-go/types"
	"thingcode-go/x/logx"
)

// Request is what an operation sees: the fetched document and the
// current params, which the operation updates to reflect what it did.
type Request struct {
	Doc    *types.Document
	Params types.Params
}

// Desired returns state.desired[key].
func (r *Request) Desired(key string) (any, bool) {
	v, ok := r.Doc.State.Desired[key]
	return v, ok
}

// Device is a concrete thing: its extra params and its operations.
type Device interface {
	// Defaults are added to the base params before the restored ones.
	Defaults() types.Params
	// Operations lists device ops in dispatch order. Test ops are handled
	// by the engine and need not be listed.
	Operations() []types.Op
	// Perform runs op and returns the status to report. Errors are
	// reported as failures of op.
	Perform(op types.Op, req *Request) (string, error)
	// RunTest runs a named test; ok is false for tests it does not know.
	RunTest(name string, req *Request) (status string, ok bool)
}

const testNone = "none"

type Engine struct {
	store store.Store
	dev   Device
	log   *slog.Logger
	ops   []types.Op

	restored    types.CurrentState
	hasRestored bool
	hasHistory  bool
	cur         types.CurrentState
}

// New loads the restored state and seeds the current state from it. A
// store that cannot produce a state is treated as a first run.
func New(st store.Store, dev Device, log *slog.Logger) *Engine {
	e := &Engine{store: st, dev: dev, log: logx.OrDiscard(log)}
	e.ops = append([]types.Op{types.OpTest, types.OpTestParam}, dev.Operations()...)

	restored, ok, err := st.Load()
	if err != nil && errcode.Of(err) != errcode.Empty {
		e.log.Warn("restore failed; starting fresh", "err", err)
	}
	e.restored, e.hasRestored = restored, ok
	e.hasHistory = ok && len(restored.History) > 0

	params := types.BaseParams()
	for k, v := range dev.Defaults() {
		params[k] = v
	}
	for k, v := range restored.Params {
		params[k] = v
	}
	e.cur = types.CurrentState{Params: params}
	if e.hasHistory {
		e.cur.History = append([]types.OperationRecord(nil), restored.History...)
	}
	return e
}

// Apply reconciles doc and returns the delta to report. The returned error
// is non-nil only when the state could not be persisted; the delta is
// still valid.
func (e *Engine) Apply(doc *types.Document) (types.Reported, error) {
	desired := doc.State.Desired
	req := &Request{Doc: doc, Params: e.cur.Params}
	var perr error

	if v, ok := desired[types.ParamSleep]; ok {
		e.cur.Params[types.ParamSleep] = v
	}

	historyUpdated := false
	if last, ok := e.restored.Front(); ok && !last.Done {
		historyUpdated = true
		e.recoverInterrupted()
	} else {
		e.adoptUnknownTest(req)
		if op, ok := e.pending(doc); ok {
			historyUpdated = true
			perr = e.run(op, req)
		}
	}

	if !e.hasRestored || historyUpdated || e.paramsChanged() {
		if err := e.store.Save(e.cur); err != nil {
			perr = errcode.Wrap(errcode.Error, "persist", err)
		}
	}
	if perr != nil {
		e.log.Error("persist failed", "err", perr)
	}

	rep := types.Reported{}
	if historyUpdated {
		rep[types.ParamStatus] = e.cur.History[0].Status
	}
	for k, v := range desired {
		if cv, tracked := e.cur.Params[k]; tracked {
			rep.SetIfChanged(doc, k, cv)
		} else {
			rep.SetIfChanged(doc, k, v)
		}
	}
	return rep, perr
}

// recoverInterrupted closes out the unfinished front record and marks the
// parameter it was changing as unknown.
func (e *Engine) recoverInterrupted() {
	rec := e.restored.History[0]
	rec.Done = true
	rec.Status = fmt.Sprintf("Error: state change: %s: %s failed before completion", rec.Op, types.Format(rec.Value))
	e.cur.History = pushFront(rec, e.restored.History[1:])
	if op := types.OpFromKey(rec.Op); op != types.OpNone {
		e.cur.Params[op.Param()] = types.Unknown
	}
	e.log.Warn("interrupted operation", "op", rec.Op, "value", rec.Value)
}

// adoptUnknownTest takes the desired test as current after an interrupted
// test, so the same test is not re-run.
func (e *Engine) adoptUnknownTest(req *Request) {
	if s, _ := e.cur.Params[types.ParamTest].(string); s != types.Unknown {
		return
	}
	if v, ok := req.Desired(types.ParamTest); ok {
		e.cur.Params[types.ParamTest] = v
	}
	if v, ok := req.Desired(types.ParamTestParam); ok {
		e.cur.Params[types.ParamTestParam] = v
	}
}

// pending returns the first op whose desired value differs from the
// current one and whose desired version has not already been handled.
func (e *Engine) pending(doc *types.Document) (types.Op, bool) {
	for _, op := range e.ops {
		key := op.Key()
		dv, ok := doc.State.Desired[key]
		if !ok {
			continue
		}
		cv := e.cur.Params[key]
		if s, _ := cv.(string); s == types.Unknown {
			continue
		}
		if types.Equal(dv, cv) {
			continue
		}
		if last, ok := e.restored.Front(); ok && last.Op == key && last.Timestamp == doc.DesiredTimestamp(key) {
			continue
		}
		return op, true
	}
	return types.OpNone, false
}

// run checkpoints op as unfinished, dispatches it and records the result.
// Without a checkpoint a reset mid-operation could not be detected, so the
// op is not dispatched and the record carries the failure.
func (e *Engine) run(op types.Op, req *Request) error {
	key := op.Key()
	rec := types.OperationRecord{
		Op:        key,
		Value:     req.Doc.State.Desired[key],
		Timestamp: req.Doc.DesiredTimestamp(key),
	}
	var prior []types.OperationRecord
	if e.hasHistory {
		prior = e.restored.History
	}
	e.cur.History = pushFront(rec, prior)

	if err := e.store.Save(e.cur); err != nil {
		cerr := errcode.Wrap(errcode.Error, "checkpoint", err)
		e.cur.History[0].Status = fmt.Sprintf("Fail (%s): %v", op, cerr)
		e.cur.History[0].Done = true
		e.log.Error("operation skipped", "op", key, "err", cerr)
		return cerr
	}

	e.log.Info("dispatch", "op", key, "value", rec.Value)
	status := e.dispatch(op, req)
	e.cur.History[0].Status = status
	e.cur.History[0].Done = true
	e.log.Info("operation done", "op", key, "status", status)
	return nil
}

func (e *Engine) dispatch(op types.Op, req *Request) (status string) {
	defer func() {
		if r := recover(); r != nil {
			status = fmt.Sprintf("Fail (%s): %v", op, r)
		}
	}()
	switch op {
	case types.OpTest, types.OpTestParam:
		return e.runTest(req)
	default:
		s, err := e.dev.Perform(op, req)
		if err != nil {
			return fmt.Sprintf("Fail (%s): %v", op, err)
		}
		return s
	}
}

func (e *Engine) runTest(req *Request) string {
	req.Params[types.ParamTestParam] = 0
	if v, ok := req.Desired(types.ParamTestParam); ok {
		req.Params[types.ParamTestParam] = v
	}
	name := ""
	if v, ok := req.Desired(types.ParamTest); ok {
		name = types.Format(v)
	}
	req.Params[types.ParamTest] = name
	if name == testNone {
		return "pass: test 'none'"
	}
	if s, ok := e.dev.RunTest(name, req); ok {
		return s
	}
	return "Unrecognized test: " + name
}

func (e *Engine) paramsChanged() bool {
	for k, v := range e.cur.Params {
		rv, ok := e.restored.Params[k]
		if !ok || !types.Equal(v, rv) {
			return true
		}
	}
	return false
}

func pushFront(rec types.OperationRecord, prior []types.OperationRecord) []types.OperationRecord {
	out := make([]types.OperationRecord, 0, types.HistoryLen)
	out = append(out, rec)
	for _, r := range prior {
		if len(out) == types.HistoryLen {
			break
		}
		out = append(out, r)
	}
	return out
}

// State returns a copy of the current state.
func (e *Engine) State() types.CurrentState { return e.cur.Clone() }

// Restored reports whether a persisted state was loaded.
func (e *Engine) Restored() bool { return e.hasRestored }

// SleepSeconds is the current sleep parameter; below 1 means stay awake.
func (e *Engine) SleepSeconds() int { return e.cur.Params.Int(types.ParamSleep, 0) }
