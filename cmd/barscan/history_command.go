package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"barscan/internal/api"
	"barscan/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent detections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Detections)
				}
				if len(resp.Detections) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No detections recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Detected", "Type", "Data", "Device", "Frame"},
					detectionRows(resp.Detections),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of detections to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print detections as JSON")
	return cmd
}

func detectionRows(detections []api.Detection) [][]string {
	rows := make([][]string, 0, len(detections))
	for _, det := range detections {
		rows = append(rows, []string{
			strconv.FormatInt(det.ID, 10),
			det.DetectedAt,
			det.Type,
			det.Data,
			det.Device,
			strconv.FormatUint(det.FrameSeq, 10),
		})
	}
	return rows
}
