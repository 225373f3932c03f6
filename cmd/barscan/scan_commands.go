package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"barscan/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Toggle symbol decoding",
	}

	scanCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start decoding frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EnableScan()
				if err != nil {
					return err
				}
				printScanToggle(cmd, resp, "enabled")
				return nil
			})
		},
	})
	scanCmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Stop decoding frames; capture keeps running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DisableScan()
				if err != nil {
					return err
				}
				printScanToggle(cmd, resp, "disabled")
				return nil
			})
		},
	})
	return scanCmd
}

func printScanToggle(cmd *cobra.Command, resp *ipc.ScanResponse, state string) {
	if resp.Changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning %s\n", state)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanning already %s\n", state)
}
