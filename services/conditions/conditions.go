// Package conditions adds sampled readings (battery, climate) to the
// outgoing report when they moved enough or have gone stale.
package conditions

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/types"
	"thingcode-go/x/logx"
	"thingcode-go/x/mathx"
)

// Sampler powers a sensor for the duration of a batch of reads.
type Sampler interface {
	Begin() error
	End() error
}

// Condition is one sampling rule. A zero Threshold or Interval is unset.
type Condition struct {
	Key       string
	Sampler   Sampler
	Get       func() (float64, error)
	Threshold float64
	Interval  time.Duration
}

type Reporter struct {
	conds []Condition
	log   *slog.Logger
}

func New(log *slog.Logger) *Reporter { return &Reporter{log: logx.OrDiscard(log)} }

// Register adds c. Conditions are evaluated in registration order.
func (r *Reporter) Register(c Condition) { r.conds = append(r.conds, c) }

func (r *Reporter) Len() int { return len(r.conds) }

// Report samples due conditions and writes the ones worth sending into
// rep. now is Unix seconds, the same domain as shadow metadata. Conditions
// sharing a Sampler are read inside one Begin/End. Failed reads are
// skipped and returned joined.
func (r *Reporter) Report(doc *types.Document, now int64, rep types.Reported) error {
	var errs []error
	done := make([]bool, len(r.conds))
	for i := range r.conds {
		if done[i] {
			continue
		}
		s := r.conds[i].Sampler
		batch := []int{}
		for j := i; j < len(r.conds); j++ {
			if !done[j] && r.conds[j].Sampler == s {
				done[j] = true
				if r.due(r.conds[j], doc, now) {
					batch = append(batch, j)
				}
			}
		}
		if len(batch) == 0 {
			continue
		}
		if err := r.sample(s, batch, doc, now, rep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) sample(s Sampler, batch []int, doc *types.Document, now int64, rep types.Reported) (err error) {
	if s != nil {
		if err := s.Begin(); err != nil {
			return errcode.Wrap(errcode.Sensor, "condition_begin", err)
		}
		defer func() {
			if eerr := s.End(); eerr != nil && err == nil {
				err = errcode.Wrap(errcode.Sensor, "condition_end", eerr)
			}
		}()
	}
	var errs []error
	for _, i := range batch {
		c := r.conds[i]
		v, gerr := c.Get()
		if gerr != nil {
			errs = append(errs, &errcode.E{C: errcode.Sensor, Op: "condition", Msg: c.Key, Err: gerr})
			continue
		}
		if r.emit(c, v, doc, now) {
			rep[c.Key] = value(v)
			r.log.Debug("condition", "key", c.Key, "value", v)
		}
	}
	return errors.Join(errs...)
}

// due reports whether c needs a fresh sample at all.
func (r *Reporter) due(c Condition, doc *types.Document, now int64) bool {
	if c.Threshold > 0 {
		return true
	}
	if _, ok := doc.LastReported(c.Key); !ok {
		return true
	}
	return c.Interval > 0 && stale(c, doc, now)
}

func (r *Reporter) emit(c Condition, v float64, doc *types.Document, now int64) bool {
	last, ok := doc.LastReported(c.Key)
	if !ok {
		return true
	}
	if c.Threshold > 0 {
		if lf, isNum := types.AsFloat(last); !isNum || mathx.AbsDiff(v, lf) > c.Threshold {
			return true
		}
	}
	return c.Interval > 0 && stale(c, doc, now)
}

// stale: no metadata, or the last report is older than the interval.
func stale(c Condition, doc *types.Document, now int64) bool {
	ts, ok := doc.ReportedTimestamp(c.Key)
	if !ok {
		return true
	}
	return now-ts > int64(c.Interval/time.Second)
}

func value(v float64) any {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return int64(v)
	}
	return v
}
