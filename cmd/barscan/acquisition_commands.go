package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"barscan/internal/api"
	"barscan/internal/ipc"
)

func newAcquisitionCommand(ctx *commandContext) *cobra.Command {
	acqCmd := &cobra.Command{
		Use:     "acquisition",
		Aliases: []string{"acq"},
		Short:   "Track acquisitions and their result snapshots",
	}

	acqCmd.AddCommand(&cobra.Command{
		Use:   "begin",
		Short: "Begin an acquisition and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BeginAcquisition()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Acquisition.ID)
				return nil
			})
		},
	})

	var completeJSON bool
	completeCmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an acquisition and snapshot the result fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CompleteAcquisition(args[0])
				if err != nil {
					return err
				}
				if completeJSON {
					return writeJSON(cmd, resp.Acquisition)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Acquisition %s completed at %s\n", resp.Acquisition.ID, resp.Acquisition.CompletedAt)
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, resultRows(resp.Acquisition.Results), nil))
				return nil
			})
		},
	}
	completeCmd.Flags().BoolVar(&completeJSON, "json", false, "Print the completed acquisition as JSON")
	acqCmd.AddCommand(completeCmd)

	acqCmd.AddCommand(&cobra.Command{
		Use:   "status <id>",
		Short: "Report whether an acquisition has completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AcquisitionStatus(args[0])
				if err != nil {
					return err
				}
				if resp.Completed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: completed at %s\n", resp.ID, resp.CompletedAt)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active\n", resp.ID)
				return nil
			})
		},
	})

	acqCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known acquisitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Acquisitions()
				if err != nil {
					return err
				}
				if len(resp.Acquisitions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No acquisitions")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Begun", "Completed", "Device", "Batch"},
					acquisitionRows(resp.Acquisitions),
					nil,
				))
				return nil
			})
		},
	})
	return acqCmd
}

func acquisitionRows(acqs []api.Acquisition) [][]string {
	rows := make([][]string, 0, len(acqs))
	for _, acq := range acqs {
		completed := acq.CompletedAt
		if acq.Active {
			completed = "active"
		}
		rows = append(rows, []string{
			acq.ID,
			acq.BegunAt,
			completed,
			acq.Results["device-id"],
			acq.Results["batch-id"],
		})
	}
	return rows
}
