package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"thingcode-go/bus"
	"thingcode-go/services/shadowhub"
)

type HubOptions struct {
	*RootOptions
	Addr string
}

func NewHubCommand(root *RootOptions) *cobra.Command {
	opts := &HubOptions{RootOptions: root}
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Serve a local device shadow over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := opts.Addr
			if addr == "" {
				addr = opts.Config.Hub.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			b := bus.NewBus(32)
			opts.Config.Publish(b.NewConnection("config"))
			h := shadowhub.New(b, opts.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return h.Serve(ctx, ln, time.Duration(opts.Config.Hub.HeartbeatS)*time.Second)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides hub.addr)")
	return cmd
}
