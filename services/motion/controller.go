package motion

import (
	"log/slog"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/services/hal"
	"thingcode-go/x/conv"
	"thingcode-go/x/logx"
	"thingcode-go/x/ramp"
	"thingcode-go/x/ring"
	"thingcode-go/x/timex"
)

// Sensor is the current sensor as seen by the control loop.
type Sensor interface {
	Start() error
	Stop() error
	CurrentMA() (int32, error)
}

// Motor is a bidirectional motor driver. Release leaves its outputs floating.
type Motor interface {
	Start(forward bool, speed int)
	Stop()
	Release()
}

// MotorFactory claims the motor outputs for one activation.
type MotorFactory func() (Motor, error)

type Config struct {
	StartSpeed     int
	SpeedStep      int
	SpeedTop       int
	SampleInterval time.Duration
	SubSamples     int
	SubSampleGap   time.Duration
	Settle         time.Duration
	// Averaging is the number of trailing samples compared to the stall limit.
	Averaging    int
	StartingSize int
	StoppingSize int
}

func DefaultConfig() Config {
	return Config{
		StartSpeed:     30,
		SpeedStep:      5,
		SpeedTop:       105, // past 100 the driver is full on
		SampleInterval: 10 * time.Millisecond,
		SubSamples:     4,
		SubSampleGap:   5 * time.Millisecond,
		Settle:         50 * time.Millisecond,
		Averaging:      4,
		StartingSize:   16,
		StoppingSize:   16,
	}
}

// Move is one activation request. Threshold is the per-sample stall
// current in mA.
type Move struct {
	DurationMs int
	Direction  Direction
	Reverse    int
	Threshold  int32
}

// Controller owns the motor rail, the current sensor and the sample rings
// for one wake cycle.
type Controller struct {
	cfg      Config
	clock    timex.Clock
	log      *slog.Logger
	sensor   Sensor
	motor    MotorFactory
	power    hal.GPIOPin
	charge   hal.GPIOPin
	starting *ring.Ring
	stopping *ring.Ring

	sum     int32
	limit   int32
	stalled bool
	ran     bool
}

// New builds a controller. power enables the motor rail when high; charge
// is held low while the motor runs to suspend battery charging.
func New(cfg Config, clock timex.Clock, sensor Sensor, motor MotorFactory, power, charge hal.GPIOPin, log *slog.Logger) *Controller {
	if cfg.SubSamples < 1 {
		cfg.SubSamples = 1
	}
	if cfg.Averaging < 1 {
		cfg.Averaging = 1
	}
	return &Controller{
		cfg:      cfg,
		clock:    clock,
		log:      logx.OrDiscard(log),
		sensor:   sensor,
		motor:    motor,
		power:    power,
		charge:   charge,
		starting: ring.New(cfg.StartingSize, ring.Fill),
		stopping: ring.New(cfg.StoppingSize, ring.Wrap),
	}
}

// Activate runs the motor for up to m.DurationMs and returns the on-time.
// The loop ends early when the trailing current sum crosses
// m.Threshold*Averaging. Outputs are always left de-energised and floating.
// A sensor failure mid-run stops the motor and is returned with the
// elapsed time so far. The sample rings are cleared first, so diagnostics
// always describe the latest run.
func (c *Controller) Activate(m Move) (elapsedMs int, err error) {
	if c.sensor == nil {
		return 0, &errcode.E{C: errcode.NoSensor, Op: "activate"}
	}
	c.starting.Reset()
	c.stopping.Reset()
	c.limit = m.Threshold * int32(c.cfg.Averaging)
	c.sum, c.stalled, c.ran = 0, false, true
	forward := (uint8(m.Direction) ^ uint8(m.Reverse&ReverseWiring)) == 1

	mot, err := c.motor()
	if err != nil {
		return 0, err
	}
	// Rails are floated after each run; reclaim them as outputs.
	if err := c.power.ConfigureOutput(true); err != nil {
		mot.Release()
		return 0, err
	}
	if err := c.charge.ConfigureOutput(false); err != nil {
		mot.Release()
		hal.Float(c.power)
		return 0, err
	}
	defer func() {
		mot.Release()
		c.power.Set(false)
		c.charge.Set(true)
		hal.Float(c.power)
		hal.Float(c.charge)
		if serr := c.sensor.Stop(); serr != nil && err == nil {
			err = errcode.Wrap(errcode.Sensor, "sensor_stop", serr)
		}
	}()
	c.clock.Sleep(c.cfg.Settle)

	if err := c.sensor.Start(); err != nil {
		return 0, errcode.Wrap(errcode.Sensor, "sensor_start", err)
	}
	speed := ramp.NewStep(c.cfg.StartSpeed, c.cfg.SpeedStep, c.cfg.SpeedTop)
	start := c.clock.Now()
	mot.Start(forward, speed.Level)
	c.log.Debug("motor start", "direction", m.Direction.String(), "forward", forward,
		"duration_ms", m.DurationMs, "limit", c.limit)

	for elapsedMs < m.DurationMs {
		t0 := c.clock.Now()
		sample, serr := c.sample()
		if serr != nil {
			mot.Stop()
			return timex.SinceMs(c.clock, start), errcode.Wrap(errcode.Sensor, "sample", serr)
		}
		c.starting.Push(sample)
		c.stopping.Push(sample)

		if sample < m.Threshold && speed.Up() {
			mot.Start(forward, speed.Level)
		}
		c.sum = c.stopping.TrailingSum(c.cfg.Averaging)
		if c.sum > c.limit {
			c.stalled = true
			elapsedMs = timex.SinceMs(c.clock, start)
			break
		}
		c.clock.Sleep(c.cfg.SampleInterval - c.clock.Now().Sub(t0))
		elapsedMs = timex.SinceMs(c.clock, start)
	}
	mot.Stop()
	c.log.Debug("motor stop", "elapsed_ms", elapsedMs, "stalled", c.stalled, "sum", c.sum)
	return elapsedMs, nil
}

// sample averages SubSamples back-to-back readings.
func (c *Controller) sample() (int32, error) {
	var sum int32
	for i := 0; i < c.cfg.SubSamples; i++ {
		if i > 0 {
			c.clock.Sleep(c.cfg.SubSampleGap)
		}
		v, err := c.sensor.CurrentMA()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / int32(c.cfg.SubSamples), nil
}

// Stall reports the last trailing sum and the limit it was compared to.
func (c *Controller) Stall() (sum, limit int32, stalled bool) {
	return c.sum, c.limit, c.stalled
}

// Diagnostics returns the starting samples in arrival order and the
// stopping samples oldest first. ok is false before any activation.
func (c *Controller) Diagnostics() (starting, stopping []int32, ok bool) {
	if !c.ran {
		return nil, nil, false
	}
	return c.starting.Samples(nil), c.stopping.Samples(nil), true
}

// FormatSamples renders samples space separated.
func FormatSamples(s []int32) string {
	b := make([]byte, 0, len(s)*5)
	for i, v := range s {
		if i > 0 {
			b = append(b, ' ')
		}
		b = conv.AppendInt(b, int64(v))
	}
	return string(b)
}
