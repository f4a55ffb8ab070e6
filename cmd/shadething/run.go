package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"thingcode-go/drivers/aht20"
	"thingcode-go/drivers/i2csim"
	"thingcode-go/services/config"
	"thingcode-go/services/cycle"
	"thingcode-go/services/hal"
	"thingcode-go/services/journal"
	"thingcode-go/x/timex"
)

type RunOptions struct {
	*RootOptions
	Loop     bool
	Simulate bool
}

func NewRunCommand(root *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one wake cycle, or keep cycling with --loop",
		Example: `  shadething run --protocol file
  shadething run -c shade.yaml --loop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCycles(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Loop, "loop", false, "sleep between cycles instead of exiting (overrides loop.enabled)")
	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "attach simulated shade sensors to the configured i2c bus")
	return cmd
}

func runCycles(cmd *cobra.Command, opts *RunOptions) error {
	cfg := opts.Config
	host, _ := os.Hostname()
	board := hal.NewBoard(cfg.HAL)
	if opts.Simulate {
		board.I2C = hal.HostI2C{cfg.Shade.Bus: simulatedSensors(cfg.Shade)}
	}
	r, err := cycle.Assemble(cfg, board, timex.System{}, host, opts.Log)
	if err != nil {
		return err
	}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		r.Journal = j
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Loop || cfg.Loop.Enabled {
		reset := time.Duration(cfg.Loop.ResetTimeoutS) * time.Second
		return r.Loop(ctx, reset, cycle.SleepContext)
	}
	res, err := r.RunOnce(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "thing: %s\noutcome: %s\n", r.ThingID, res.Outcome)
	if res.Status != "" {
		fmt.Fprintf(out, "status: %s\n", res.Status)
	}
	if res.Cause != nil {
		fmt.Fprintf(out, "cause: %v\n", res.Cause)
	}
	fmt.Fprintf(out, "sleep: %ds\n", res.SleepS)
	return nil
}

// simulatedSensors answers like an idle shade: 50 mA at 12 V, 20 °C and
// 50 %RH.
func simulatedSensors(s config.Shade) *i2csim.Bus {
	b := i2csim.New()
	b.Attach(s.CurrentAddr, map[byte]uint16{0x00: 0x3998, 0x01: 500, 0x02: 12000 << 1})
	if s.TempAddr != 0 {
		b.Attach(s.TempAddr, map[byte]uint16{0x00: 0x1400, 0x01: 0x01})
	}
	if s.HumidityAddr != 0 {
		b.AttachFunc(s.HumidityAddr, i2csim.AHT20(aht20.Sample{RawHumidity: 0x80000, RawTemp: 0x60000}))
	}
	return b
}
