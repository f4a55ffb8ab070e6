package cycle

import (
	"log/slog"
	"time"

	"thingcode-go/errcode"
	"thingcode-go/services/config"
	"thingcode-go/services/hal"
	"thingcode-go/services/shade"
	"thingcode-go/services/signal"
	"thingcode-go/services/store"
	"thingcode-go/services/timesrc"
	"thingcode-go/services/transport"
	"thingcode-go/x/timex"
)

// ThingID picks the configured id, else the hostname on a host, else one
// derived from the board's unique id.
func ThingID(cfg config.Config, board *hal.Board, hostname string) string {
	switch {
	case cfg.Thing.ID != "":
		return cfg.Thing.ID
	case hostname != "":
		return hostname
	case cfg.Thing.Prefix != "":
		return hal.ThingID(cfg.Thing.Prefix, board.UniqueID)
	}
	return hal.ThingID("thing-", board.UniqueID)
}

// Assemble builds a Runner from cfg. The journal is left for the caller.
func Assemble(cfg config.Config, board *hal.Board, clock timex.Clock, hostname string, log *slog.Logger) (*Runner, error) {
	tr, err := transport.New(cfg.TransportOptions())
	if err != nil {
		return nil, err
	}

	var st store.Store
	switch cfg.Store.Kind {
	case "memory":
		if board.Memory == nil {
			return nil, &errcode.E{C: errcode.Unsupported, Op: "assemble", Msg: "board has no retained memory"}
		}
		st = store.NewMemoryStore(board.Memory)
	default:
		st = store.NewFileStore(cfg.Store.Path)
	}

	var src timesrc.Source = timesrc.System{Clock: clock}
	if cfg.Time.Source == "sntp" {
		src = &timesrc.SNTP{Server: cfg.Time.Server, Retries: cfg.Time.Retries, Log: log}
	}
	if cfg.Time.Y2K {
		src = timesrc.FromY2K{Src: src}
	}

	newThing := func() (Thing, error) {
		if cfg.Device == config.DeviceSignal {
			return signal.New(board.Pins, cfg.Shade.Pins.LED, clock, log), nil
		}
		s, err := shade.New(cfg.ShadeConfig(), board, clock, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return &Runner{
		ThingID:   ThingID(cfg, board, hostname),
		NewThing:  newThing,
		Store:     st,
		Transport: tr,
		Time:      src,
		Clock:     clock,
		Log:       log,
		Timeout:   30 * time.Second,
	}, nil
}
