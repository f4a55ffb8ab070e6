// Package cycle runs wake cycles: instantiate the thing and its engine,
// connect, get the time and the shadow, reconcile, add conditions and
// diagnostics, send the report, journal the outcome, then sleep.
//
// Transport and time failures abort the cycle before anything is
// reconciled. Everything after the document arrives completes and
// persists even when the final update fails.
package cycle

import (
	"context"
	"log/slog"
	"time"

	"thingcode-go/services/conditions"
	"thingcode-go/services/reconcile"
	"thingcode-go/services/store"
	"thingcode-go/services/timesrc"
	"thingcode-go/services/transport"
	"thingcode-go/types"
	"thingcode-go/x/logx"
	"thingcode-go/x/timex"
)

// Thing is a device the cycle can drive.
type Thing interface {
	reconcile.Device
	RegisterConditions(r *conditions.Reporter)
	Diagnostics(rep types.Reported)
	Blink(d time.Duration)
	Close()
}

// Recorder keeps the cycle history.
type Recorder interface {
	Record(ctx context.Context, e types.CycleEntry) (string, error)
}

const blink = 100 * time.Millisecond

type Runner struct {
	ThingID   string
	NewThing  func() (Thing, error)
	Store     store.Store
	Transport transport.Transport
	Time      timesrc.Source
	// Journal is optional.
	Journal Recorder
	Clock   timex.Clock
	Log     *slog.Logger
	// Timeout bounds each network step.
	Timeout time.Duration
}

type Result struct {
	Outcome  types.Outcome
	Status   string
	Reported types.Reported
	// Cause is why an aborted cycle stopped.
	Cause error
	// SleepS is the sleep parameter after reconciliation.
	SleepS  int
	Elapsed time.Duration
}

func (r *Runner) step(ctx context.Context) (context.Context, context.CancelFunc) {
	d := r.Timeout
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// RunOnce performs one wake cycle. Only a failure to build the thing is
// returned as an error; everything else is described by the Result.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	log := logx.OrDiscard(r.Log).With("thing", r.ThingID)
	clock := r.Clock
	if clock == nil {
		clock = timex.System{}
	}
	start := clock.Now()

	thing, err := r.NewThing()
	if err != nil {
		return Result{}, err
	}
	defer thing.Close()
	thing.Blink(blink)

	engine := reconcile.New(r.Store, thing, log)
	res := Result{Outcome: types.Aborted}
	finish := func() (Result, error) {
		res.SleepS = engine.SleepSeconds()
		res.Elapsed = clock.Now().Sub(start)
		if res.Cause != nil {
			log.Error("cycle aborted", "err", res.Cause)
		}
		r.record(ctx, start, res, log)
		return res, nil
	}

	sctx, cancel := r.step(ctx)
	err = r.Transport.Connect(sctx, r.ThingID)
	cancel()
	if err != nil {
		res.Cause = err
		return finish()
	}
	defer r.Transport.Disconnect()
	thing.Blink(blink)

	sctx, cancel = r.step(ctx)
	now, err := r.Time.Now(sctx)
	cancel()
	if err != nil {
		res.Cause = err
		return finish()
	}
	thing.Blink(blink)

	sctx, cancel = r.step(ctx)
	doc, err := r.Transport.Get(sctx)
	cancel()
	if err != nil {
		res.Cause = err
		return finish()
	}
	thing.Blink(blink)

	rep, perr := engine.Apply(doc)
	if perr != nil {
		log.Warn("state not persisted", "err", perr)
	}
	reporter := conditions.New(log)
	thing.RegisterConditions(reporter)
	if err := reporter.Report(doc, now, rep); err != nil {
		log.Warn("conditions", "err", err)
	}
	thing.Diagnostics(rep)

	res.Outcome = types.Reconciled
	res.Reported = rep
	res.Status, _ = rep[types.ParamStatus].(string)
	if len(rep) > 0 {
		body, err := rep.Body()
		if err == nil {
			sctx, cancel = r.step(ctx)
			err = r.Transport.Update(sctx, body)
			cancel()
		}
		if err != nil {
			res.Cause = err
		}
	}
	log.Info("cycle done", "status", res.Status, "reported", len(rep))
	return finish()
}

func (r *Runner) record(ctx context.Context, start time.Time, res Result, log *slog.Logger) {
	if r.Journal == nil {
		return
	}
	e := types.CycleEntry{
		Thing:     r.ThingID,
		StartedAt: start,
		Elapsed:   res.Elapsed,
		Outcome:   res.Outcome,
		Status:    res.Status,
		Reported:  res.Reported,
	}
	if res.Cause != nil {
		e.Cause = res.Cause.Error()
	}
	if _, err := r.Journal.Record(ctx, e); err != nil {
		log.Warn("journal", "err", err)
	}
}

// Loop runs cycles until ctx ends. Between cycles it calls sleep with the
// reconciled sleep period, or with resetTimeout when sleep is below one
// second and the device stays awake.
func (r *Runner) Loop(ctx context.Context, resetTimeout time.Duration, sleep func(context.Context, time.Duration) error) error {
	for {
		res, err := r.RunOnce(ctx)
		if err != nil {
			return err
		}
		d := time.Duration(res.SleepS) * time.Second
		if res.SleepS < 1 {
			logx.OrDiscard(r.Log).Info("staying awake", "reset_in", resetTimeout)
			d = resetTimeout
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// SleepContext waits for d or ctx, whichever ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return nil
}
