// Package shade is the motorised window shade: a position operation
// driving the motion controller, bench tests, and battery/temperature
// conditions.
package shade

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thingcode-go/drivers/aht20"
	"thingcode-go/drivers/hbridge"
	"thingcode-go/drivers/ina219"
	"thingcode-go/drivers/lm75"
	"thingcode-go/errcode"
	"thingcode-go/services/conditions"
	"thingcode-go/services/hal"
	"thingcode-go/services/motion"
	"thingcode-go/services/reconcile"
	"thingcode-go/types"
	"thingcode-go/x/logx"
	"thingcode-go/x/mathx"
	"thingcode-go/x/timex"
)

// MaxMotorTestMs bounds the bench motor test.
const MaxMotorTestMs = 55000

type Pins struct {
	PowerEnable   int `yaml:"power_enable" toml:"power_enable"`
	ChargeDisable int `yaml:"charge_disable" toml:"charge_disable"`
	MotorIn1      int `yaml:"motor_in1" toml:"motor_in1"`
	MotorIn2      int `yaml:"motor_in2" toml:"motor_in2"`
	LED           int `yaml:"led" toml:"led"`
}

type Config struct {
	Pins        Pins
	Bus         string
	CurrentAddr uint16
	// TempAddr of zero means no thermometer is fitted.
	TempAddr uint16
	// HumidityAddr of zero means no hygrometer is fitted.
	HumidityAddr uint16

	DefaultThreshold  int
	VoltageThreshold  float64
	BatteryInterval   time.Duration
	TempThreshold     float64
	TempInterval      time.Duration
	HumidityThreshold float64
	HumidityInterval  time.Duration

	Motion motion.Config
}

func DefaultConfig() Config {
	return Config{
		Pins:              Pins{PowerEnable: 14, ChargeDisable: 3, MotorIn1: 15, MotorIn2: 2, LED: 25},
		Bus:               "i2c0",
		CurrentAddr:       0x45,
		DefaultThreshold:  500,
		VoltageThreshold:  200,
		BatteryInterval:   1200 * time.Second,
		TempThreshold:     2,
		TempInterval:      time.Hour,
		HumidityThreshold: 5,
		HumidityInterval:  time.Hour,
		Motion:            motion.DefaultConfig(),
	}
}

// Shade implements reconcile.Device.
type Shade struct {
	cfg   Config
	board *hal.Board
	clock timex.Clock
	log   *slog.Logger

	current *currentSensor
	temp    *thermometer
	humid   *hygrometer
	ctl     *motion.Controller
	power   hal.GPIOPin
	charge  hal.GPIOPin
	moved   bool
}

var _ reconcile.Device = (*Shade)(nil)

// New claims the rail pins and detects the sensors. A missing current
// sensor is not an error here; operations needing it report the failure.
func New(cfg Config, board *hal.Board, clock timex.Clock, log *slog.Logger) (*Shade, error) {
	s := &Shade{cfg: cfg, board: board, clock: clock, log: logx.OrDiscard(log)}

	var err error
	if s.power, err = hal.Output(board.Pins, cfg.Pins.PowerEnable, false); err != nil {
		return nil, err
	}
	if s.charge, err = hal.Output(board.Pins, cfg.Pins.ChargeDisable, true); err != nil {
		return nil, err
	}

	if bus, ok := board.I2C.ByID(cfg.Bus); ok {
		d := ina219.New(bus, cfg.CurrentAddr)
		if perr := d.Detect(); perr != nil {
			s.log.Warn("no current sensor", "bus", cfg.Bus, "addr", cfg.CurrentAddr, "err", perr)
		} else {
			s.current = &currentSensor{d: d, cfg: ina219.DefaultConfig()}
			if !d.StandbyAtDetect {
				s.log.Info("current sensor not in standby")
				_ = d.Stop()
			}
		}
		if cfg.TempAddr != 0 {
			t := lm75.New(bus, cfg.TempAddr)
			if _, terr := t.Config(); terr != nil {
				s.log.Warn("no thermometer", "addr", cfg.TempAddr, "err", terr)
			} else {
				s.temp = &thermometer{d: t, clock: clock}
			}
		}
		if cfg.HumidityAddr != 0 {
			h := aht20.New(bus, cfg.HumidityAddr, clock)
			if herr := h.Init(); herr != nil {
				s.log.Warn("no hygrometer", "addr", cfg.HumidityAddr, "err", herr)
			} else {
				s.humid = &hygrometer{d: h}
			}
		}
	} else {
		s.log.Warn("no i2c bus", "bus", cfg.Bus)
	}

	var sensor motion.Sensor
	if s.current != nil {
		sensor = s.current
	}
	s.ctl = motion.New(cfg.Motion, clock, sensor, s.newMotor, s.power, s.charge, s.log)
	return s, nil
}

func (s *Shade) newMotor() (motion.Motor, error) {
	in1, ok1 := s.board.PWM.ByPin(s.cfg.Pins.MotorIn1)
	in2, ok2 := s.board.PWM.ByPin(s.cfg.Pins.MotorIn2)
	if !ok1 || !ok2 {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "motor", Msg: "no pwm on motor pins"}
	}
	return hbridge.New(in1, in2)
}

func (s *Shade) Defaults() types.Params {
	return types.Params{types.ParamPosition: types.Unknown}
}

func (s *Shade) Operations() []types.Op { return []types.Op{types.OpPosition} }

func (s *Shade) Perform(op types.Op, req *reconcile.Request) (string, error) {
	switch op {
	case types.OpPosition:
		return s.position(req), nil
	default:
		return "", &errcode.E{C: errcode.Unsupported, Op: "perform", Msg: op.String()}
	}
}

func (s *Shade) RunTest(name string, req *reconcile.Request) (string, bool) {
	switch name {
	case "current":
		return s.testCurrent(), true
	case "motor":
		return s.testMotor(req), true
	case "set-position":
		return s.setPosition(req), true
	}
	return "", false
}

func (s *Shade) position(req *reconcile.Request) string {
	if s.current == nil {
		return "Fail (position): no current sensor"
	}
	dv, _ := req.Desired(types.ParamPosition)
	target := types.Format(dv)
	plan, err := motion.PlanMove(motion.Request{
		Current:   req.Params.String(types.ParamPosition, types.Unknown),
		Target:    target,
		DurationS: desiredInt(req, types.ParamDuration, 0),
		Reverse:   desiredInt(req, types.ParamReverse, 0),
	})
	if err != nil {
		var e *errcode.E
		if errors.As(err, &e) && e.Msg != "" {
			return "Error: " + e.Msg
		}
		return "Error: " + err.Error()
	}
	if plan.Already {
		return "Already in position: " + target
	}

	s.log.Info("moving", "target", target, "direction", plan.Direction.String(), "duration_ms", plan.DurationMs)
	elapsed, err := s.ctl.Activate(motion.Move{
		DurationMs: plan.DurationMs,
		Direction:  plan.Direction,
		Reverse:    desiredInt(req, types.ParamReverse, 0),
		Threshold:  int32(desiredInt(req, types.ParamThreshold, s.cfg.DefaultThreshold)),
	})
	s.moved = true
	if err != nil {
		if elapsed > 0 {
			req.Params[types.ParamPosition] = types.Unknown
		}
		return fmt.Sprintf("Error on position; I2C error: %v", err)
	}
	pos := plan.Resolve(target, elapsed)
	req.Params[types.ParamPosition] = pos
	status := fmt.Sprintf("Done: new position: %s; motor on for: %d msec", pos, elapsed)
	if sum, limit, stalled := s.ctl.Stall(); stalled {
		status += fmt.Sprintf("; Current: %d over Threshold: %d", sum, limit)
	}
	return status
}

// setPosition records the desired position without moving; the way out of
// an unknown position.
func (s *Shade) setPosition(req *reconcile.Request) string {
	dv, _ := req.Desired(types.ParamPosition)
	p := types.Format(dv)
	req.Params[types.ParamPosition] = p
	return "position set to: " + p
}

func (s *Shade) testCurrent() string {
	if s.current == nil {
		return "Fail (current test): no current sensor"
	}
	if err := s.current.Start(); err != nil {
		return fmt.Sprintf("Fail (current test): %v", err)
	}
	defer s.current.Stop()
	ma, err := s.current.CurrentMA()
	if err != nil {
		return fmt.Sprintf("Fail (current test): %v", err)
	}
	mv, err := s.current.d.BusMV()
	if err != nil {
		return fmt.Sprintf("Fail (current test): %v", err)
	}
	return fmt.Sprintf("Pass: Current: %d  BusVolts: %d", ma, mv)
}

// testMotor runs the motor for |test_param| ms; negative lowers.
func (s *Shade) testMotor(req *reconcile.Request) string {
	if s.current == nil {
		return "Fail (motor test): no current sensor"
	}
	d := desiredInt(req, types.ParamTestParam, 0)
	dir := motion.Raise
	if d < 0 {
		dir = motion.Lower
	}
	d = mathx.Abs(d)
	if d >= MaxMotorTestMs {
		return fmt.Sprintf("Fail: test_param too large for motor test: %d", d)
	}
	elapsed, err := s.ctl.Activate(motion.Move{
		DurationMs: d,
		Direction:  dir,
		Reverse:    desiredInt(req, types.ParamReverse, 0),
		Threshold:  int32(desiredInt(req, types.ParamThreshold, s.cfg.DefaultThreshold)),
	})
	s.moved = true
	if err != nil {
		return fmt.Sprintf("Fail: motor test: %v", err)
	}
	if elapsed >= d {
		return fmt.Sprintf("Pass: motor on for %d msec.", elapsed)
	}
	return fmt.Sprintf("Fail: motor on for %d msec.", elapsed)
}

// Diagnostics adds the motor current samples after a motor run.
func (s *Shade) Diagnostics(rep types.Reported) {
	if !s.moved {
		return
	}
	starting, stopping, ok := s.ctl.Diagnostics()
	if !ok {
		return
	}
	rep["starting_currents"] = motion.FormatSamples(starting)
	rep["stopping_currents"] = motion.FormatSamples(stopping)
}

// RegisterConditions adds battery, temperature and humidity readings.
func (s *Shade) RegisterConditions(r *conditions.Reporter) {
	if s.current != nil {
		r.Register(conditions.Condition{
			Key:       "batteryVoltage",
			Sampler:   s.current,
			Get:       s.current.busMV,
			Threshold: s.cfg.VoltageThreshold,
			Interval:  s.cfg.BatteryInterval,
		})
		r.Register(conditions.Condition{
			Key:      "batteryCurrent",
			Sampler:  s.current,
			Get:      s.current.currentMA,
			Interval: s.cfg.BatteryInterval,
		})
	}
	if s.temp != nil {
		r.Register(conditions.Condition{
			Key:       "temperature",
			Sampler:   s.temp,
			Get:       s.temp.celsius,
			Threshold: s.cfg.TempThreshold,
			Interval:  s.cfg.TempInterval,
		})
	}
	if s.humid != nil {
		r.Register(conditions.Condition{
			Key:       "humidity",
			Sampler:   s.humid,
			Get:       s.humid.relative,
			Threshold: s.cfg.HumidityThreshold,
			Interval:  s.cfg.HumidityInterval,
		})
	}
}

// Blink flashes the status LED and leaves the pin floating.
func (s *Shade) Blink(d time.Duration) {
	led, err := hal.Output(s.board.Pins, s.cfg.Pins.LED, false)
	if err != nil {
		return
	}
	s.clock.Sleep(d)
	hal.Float(led)
}

// Close floats the rail pins before sleep.
func (s *Shade) Close() {
	hal.Float(s.power)
	hal.Float(s.charge)
}

func desiredInt(req *reconcile.Request, key string, def int) int {
	v, ok := req.Desired(key)
	if !ok {
		return def
	}
	f, ok := types.AsFloat(v)
	if !ok {
		return def
	}
	return int(f)
}
