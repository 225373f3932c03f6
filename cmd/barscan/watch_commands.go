package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"barscan/internal/api"
	"barscan/internal/ipc"
	"barscan/internal/logs"
	"barscan/internal/logstream"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var kinds []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show daemon activity events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiClient, err := ctx.eventsClient()
			if err != nil {
				return err
			}
			// IPC is only needed when the HTTP API is unreachable.
			var fallback logstream.EventSource
			if client, dialErr := ctx.dialClient(); dialErr == nil {
				defer client.Close()
				fallback = client
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Watch(cmd.Context(), apiClient, fallback, logstream.Options{
				Lines:  lines,
				Follow: follow,
				Kinds:  kinds,
			}, func(evt api.Event) {
				if jsonOut {
					_ = writeJSON(cmd, evt)
					return
				}
				fmt.Fprintln(out, formatEvent(evt))
			})
			if errors.Is(err, logs.ErrAPIUnavailable) {
				return wrapDialError(os.ErrNotExist, ctx.socketPath())
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No activity yet")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of recent events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Only show events of this kind (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print events as JSON")
	return cmd
}

func formatEvent(evt api.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-16s", evt.Timestamp, kindLabel(evt.Kind))
	switch {
	case len(evt.Symbols) > 0:
		parts := make([]string, 0, len(evt.Symbols))
		for _, sym := range evt.Symbols {
			parts = append(parts, fmt.Sprintf("%s %q", sym.Type, sym.Data))
		}
		fmt.Fprintf(&b, " %s", strings.Join(parts, ", "))
	case len(evt.Results) > 0:
		fmt.Fprintf(&b, " %s", formatFields(evt.Results))
	case evt.Device != "":
		fmt.Fprintf(&b, " %s", evt.Device)
	}
	if evt.Message != "" {
		fmt.Fprintf(&b, " (%s)", evt.Message)
	}
	return b.String()
}

func formatFields(fields map[string]string) string {
	rows := resultRows(fields)
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, row[0]+"="+row[1])
	}
	return strings.Join(parts, " ")
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				_, err := logstream.Lines(cmd.Context(), client, logstream.Options{
					Lines:  lines,
					Follow: follow,
				}, func(line string) {
					fmt.Fprintln(out, line)
				})
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of log lines to show (0 for the whole file)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new lines")
	return cmd
}

func newFrameCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Save the latest preview frame as JPEG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.eventsClient()
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("frame preview needs the HTTP API; set paths.api_bind")
			}
			data, seq, err := client.Frame(cmd.Context())
			if err != nil {
				return err
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote frame %d to %s\n", seq, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "frame.jpg", "Destination file, or - for stdout")
	return cmd
}
