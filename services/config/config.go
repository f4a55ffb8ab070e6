// Package config loads device configuration from YAML or TOML and publishes
// the runtime sections on the bus as retained config/<section> messages.
package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"thingcode-go/bus"
	"thingcode-go/errcode"
	"thingcode-go/services/hal"
	"thingcode-go/services/shade"
	"thingcode-go/services/transport"
	"thingcode-go/x/logx"
)

//go:embed boards
var boards embed.FS

// Board names with an embedded configuration.
const (
	BoardPico = "pico-shade"
	BoardHost = "host-sim"
)

const configPrefix = "config"

type Thing struct {
	ID     string `yaml:"id" toml:"id"`
	Prefix string `yaml:"prefix" toml:"prefix"`
}

type Logging struct {
	Level string `yaml:"level" toml:"level"`
}

type Transport struct {
	Protocol    string                 `yaml:"protocol" toml:"protocol"`
	Endpoint    string                 `yaml:"endpoint" toml:"endpoint"`
	Region      string                 `yaml:"region" toml:"region"`
	Credentials *transport.Credentials `yaml:"credentials,omitempty" toml:"credentials,omitempty"`
}

type Time struct {
	// Source is system or sntp.
	Source  string `yaml:"source" toml:"source"`
	Server  string `yaml:"server" toml:"server"`
	Retries int    `yaml:"retries" toml:"retries"`
	// Y2K marks a source counting from 2000-01-01.
	Y2K bool `yaml:"y2k" toml:"y2k"`
}

type Store struct {
	// Kind is file or memory (battery-backed RAM).
	Kind string `yaml:"kind" toml:"kind"`
	Path string `yaml:"path" toml:"path"`
}

type Journal struct {
	Path string `yaml:"path" toml:"path"`
}

type Hub struct {
	Addr       string `yaml:"addr" toml:"addr"`
	HeartbeatS int    `yaml:"heartbeat_s" toml:"heartbeat_s"`
}

// Shade mirrors shade.Config with file-friendly units.
type Shade struct {
	Pins              shade.Pins `yaml:"pins" toml:"pins"`
	Bus               string     `yaml:"bus" toml:"bus"`
	CurrentAddr       uint16     `yaml:"current_addr" toml:"current_addr"`
	TempAddr          uint16     `yaml:"temp_addr" toml:"temp_addr"`
	HumidityAddr      uint16     `yaml:"humidity_addr" toml:"humidity_addr"`
	Threshold         int        `yaml:"threshold" toml:"threshold"`
	VoltageThreshold  float64    `yaml:"voltage_threshold" toml:"voltage_threshold"`
	BatteryIntervalS  int        `yaml:"battery_interval_s" toml:"battery_interval_s"`
	TempThreshold     float64    `yaml:"temp_threshold" toml:"temp_threshold"`
	TempIntervalS     int        `yaml:"temp_interval_s" toml:"temp_interval_s"`
	HumidityThreshold float64    `yaml:"humidity_threshold" toml:"humidity_threshold"`
	HumidityIntervalS int        `yaml:"humidity_interval_s" toml:"humidity_interval_s"`
}

type Loop struct {
	Enabled       bool `yaml:"enabled" toml:"enabled"`
	ResetTimeoutS int  `yaml:"reset_timeout_s" toml:"reset_timeout_s"`
}

// Device kinds.
const (
	DeviceShade  = "shade"
	DeviceSignal = "signal"
)

type Config struct {
	Board string `yaml:"board" toml:"board"`
	// Device selects the thing: shade or signal.
	Device    string    `yaml:"device" toml:"device"`
	Thing     Thing     `yaml:"thing" toml:"thing"`
	Logging   Logging   `yaml:"logging" toml:"logging"`
	Transport Transport `yaml:"transport" toml:"transport"`
	Time      Time      `yaml:"time" toml:"time"`
	Store     Store     `yaml:"store" toml:"store"`
	Journal   Journal   `yaml:"journal" toml:"journal"`
	Hub       Hub       `yaml:"hub" toml:"hub"`
	HAL       hal.Plan  `yaml:"hal" toml:"hal"`
	Shade     Shade     `yaml:"shade" toml:"shade"`
	Loop      Loop      `yaml:"loop" toml:"loop"`
}

// Default is the baseline every loaded file is decoded over.
func Default() Config {
	d := shade.DefaultConfig()
	return Config{
		Board:     BoardHost,
		Device:    DeviceShade,
		Logging:   Logging{Level: "info"},
		Transport: Transport{Protocol: transport.ProtoHTTP},
		Time:      Time{Source: "system", Retries: 6},
		Store:     Store{Kind: "file", Path: "state.json"},
		Hub:       Hub{Addr: "127.0.0.1:8787", HeartbeatS: 30},
		Shade: Shade{
			Pins:              d.Pins,
			Bus:               d.Bus,
			CurrentAddr:       d.CurrentAddr,
			Threshold:         d.DefaultThreshold,
			VoltageThreshold:  d.VoltageThreshold,
			BatteryIntervalS:  int(d.BatteryInterval / time.Second),
			TempThreshold:     d.TempThreshold,
			TempIntervalS:     int(d.TempInterval / time.Second),
			HumidityThreshold: d.HumidityThreshold,
			HumidityIntervalS: int(d.HumidityInterval / time.Second),
		},
		Loop: Loop{ResetTimeoutS: 120},
	}
}

// Load reads path, choosing the decoder by extension. An empty path loads
// the embedded configuration of board.
func Load(path, board string) (Config, error) {
	if path == "" {
		return Embedded(board)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(b, filepath.Ext(path))
}

// Embedded returns the built-in configuration for board.
func Embedded(board string) (Config, error) {
	for _, ext := range []string{".yaml", ".toml"} {
		b, err := boards.ReadFile("boards/" + board + ext)
		if err == nil {
			return Parse(b, ext)
		}
	}
	return Config{}, &errcode.E{C: errcode.Unsupported, Op: "config", Msg: "no embedded config for board " + board}
}

// Parse decodes b over Default and validates the result.
func Parse(b []byte, ext string) (Config, error) {
	c := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return Config{}, &errcode.E{C: errcode.Malformed, Op: "config", Err: err}
		}
	case ".toml":
		md, err := toml.Decode(string(b), &c)
		if err != nil {
			return Config{}, &errcode.E{C: errcode.Malformed, Op: "config", Err: err}
		}
		if un := md.Undecoded(); len(un) > 0 {
			return Config{}, &errcode.E{C: errcode.Malformed, Op: "config", Msg: "unknown key " + un[0].String()}
		}
	default:
		return Config{}, &errcode.E{C: errcode.Unsupported, Op: "config", Msg: "extension " + ext}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	bad := func(msg string) error { return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: msg} }
	if _, err := logx.ParseLevel(c.Logging.Level); err != nil {
		return bad(err.Error())
	}
	switch strings.ToLower(c.Transport.Protocol) {
	case transport.ProtoHTTP, "https", transport.ProtoWS, "websocket", transport.ProtoFile:
	default:
		return bad("transport.protocol: " + c.Transport.Protocol)
	}
	if c.Transport.Endpoint == "" {
		return bad("transport.endpoint is required")
	}
	switch c.Time.Source {
	case "system":
	case "sntp":
		if c.Time.Server == "" {
			return bad("time.server is required for sntp")
		}
	default:
		return bad("time.source: " + c.Time.Source)
	}
	switch c.Store.Kind {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return bad("store.path is required")
		}
	default:
		return bad("store.kind: " + c.Store.Kind)
	}
	if c.Device != DeviceShade && c.Device != DeviceSignal {
		return bad("device: " + c.Device)
	}
	if c.Shade.Threshold <= 0 {
		return bad("shade.threshold must be positive")
	}
	if c.Shade.CurrentAddr == 0 || c.Shade.CurrentAddr > 0x7f {
		return bad("shade.current_addr out of range")
	}
	if c.Shade.HumidityAddr > 0x7f || c.Shade.TempAddr > 0x7f {
		return bad("shade sensor address out of range")
	}
	if msg := c.pinClash(); msg != "" {
		return bad(msg)
	}
	if c.Loop.ResetTimeoutS <= 0 {
		return bad("loop.reset_timeout_s must be positive")
	}
	return nil
}

// pinClash names the first GPIO claimed by two functions, or returns "".
func (c Config) pinClash() string {
	type use struct {
		pin  int
		name string
	}
	var uses []use
	if u := c.HAL.Console; u != nil {
		uses = append(uses, use{u.TX, "hal.console.tx"}, use{u.RX, "hal.console.rx"})
	}
	for _, b := range c.HAL.I2C {
		uses = append(uses, use{b.SDA, b.ID + ".sda"}, use{b.SCL, b.ID + ".scl"})
	}
	p := c.Shade.Pins
	if c.Device == DeviceShade {
		uses = append(uses,
			use{p.PowerEnable, "shade.pins.power_enable"},
			use{p.ChargeDisable, "shade.pins.charge_disable"},
			use{p.MotorIn1, "shade.pins.motor_in1"},
			use{p.MotorIn2, "shade.pins.motor_in2"})
	}
	uses = append(uses, use{p.LED, "shade.pins.led"})

	seen := map[int]string{}
	for _, u := range uses {
		if prev, ok := seen[u.pin]; ok {
			return fmt.Sprintf("pin %d used by both %s and %s", u.pin, prev, u.name)
		}
		seen[u.pin] = u.name
	}
	return ""
}

// ShadeConfig converts the file section into the device configuration.
func (c Config) ShadeConfig() shade.Config {
	d := shade.DefaultConfig()
	s := c.Shade
	d.Pins = s.Pins
	d.Bus = s.Bus
	d.CurrentAddr = s.CurrentAddr
	d.TempAddr = s.TempAddr
	d.DefaultThreshold = s.Threshold
	d.VoltageThreshold = s.VoltageThreshold
	d.BatteryInterval = time.Duration(s.BatteryIntervalS) * time.Second
	d.TempThreshold = s.TempThreshold
	d.TempInterval = time.Duration(s.TempIntervalS) * time.Second
	d.HumidityAddr = s.HumidityAddr
	d.HumidityThreshold = s.HumidityThreshold
	d.HumidityInterval = time.Duration(s.HumidityIntervalS) * time.Second
	return d
}

// TransportOptions converts the transport section.
func (c Config) TransportOptions() transport.Options {
	t := c.Transport
	return transport.Options{Protocol: t.Protocol, Endpoint: t.Endpoint, Region: t.Region, Creds: t.Credentials}
}

// Publish puts the runtime sections on the bus as retained messages, one
// per section, for services that reconfigure while running.
func (c Config) Publish(conn *bus.Connection) {
	sections := map[string]any{
		"heartbeat": map[string]any{"interval": float64(c.Hub.HeartbeatS)},
		"logging":   map[string]any{"level": c.Logging.Level},
		"thing":     map[string]any{"id": c.Thing.ID, "prefix": c.Thing.Prefix},
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}
