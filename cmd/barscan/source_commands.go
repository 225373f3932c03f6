package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"barscan/internal/api"
	"barscan/internal/faults"
	"barscan/internal/ipc"
)

func newSourceCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start [json]",
		Short: "Start capture on the daemon",
		Long: "Start capture on the daemon. Without an argument the configured [source] is used;\n" +
			"otherwise pass a source config such as the lines printed by `barscan device-caps`.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if len(args) == 1 {
				arg := strings.TrimSpace(args[0])
				if !json.Valid([]byte(arg)) {
					return faults.Wrap(faults.ErrConfiguration, "cli", "start", "argument is not valid JSON", nil)
				}
				raw = json.RawMessage(arg)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(raw)
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), "Capture started", resp.Session)
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop capture on the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Capture stopped")
				return nil
			})
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause capture without releasing the camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause()
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), "Capture paused", resp.Session)
				return nil
			})
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume paused capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume()
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), "Capture resumed", resp.Session)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, pauseCmd, resumeCmd}
}

func printSession(out io.Writer, heading string, session *api.SourceSession) {
	if session == nil {
		fmt.Fprintln(out, heading)
		return
	}
	fmt.Fprintf(out, "%s: %s %s @ %s fps (session %s)\n",
		heading, session.Device, session.Resolution, session.Framerate, session.SessionID)
}
