package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"thingcode-go/errcode"
	"thingcode-go/services/store"
)

func NewStateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted device state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.Config.Store.Kind != "file" {
				return errors.New("state: only a file store can be read from a host")
			}
			st, ok, err := store.NewFileStore(root.Config.Store.Path).Load()
			if err != nil && errcode.Of(err) != errcode.Empty {
				return err
			}
			if !ok {
				cmd.Println("no persisted state")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
