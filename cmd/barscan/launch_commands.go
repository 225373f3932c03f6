package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"barscan/internal/capture"
	"barscan/internal/config"
	"barscan/internal/decoder"
	"barscan/internal/faults"
	"barscan/internal/logging"
	"barscan/internal/results"
	"barscan/internal/scan"
)

type foregroundOptions struct {
	jsonOutput bool
	logLevel   string
}

func (o *foregroundOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "Print result fields as JSON when the scan ends")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "warn", "Log level for scanner diagnostics on stderr")
}

func newLaunchCommand(ctx *commandContext) *cobra.Command {
	var opts foregroundOptions
	var kind string
	var loop bool

	cmd := &cobra.Command{
		Use:   "launch [device]",
		Short: "Scan in the foreground without a daemon",
		Long: "Open the configured source (or the given device) and print symbols as they are\n" +
			"detected. Interrupt with Ctrl+C; file and stills sources end on their own.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := capture.ConfigFromSettings(cfg.Source)
			if len(args) == 1 {
				source.Device = strings.TrimSpace(args[0])
			}
			if k := strings.TrimSpace(kind); k != "" {
				source.Kind = capture.Kind(strings.ToLower(k))
			}
			if cmd.Flags().Changed("loop") {
				source.Loop = loop
			}
			if err := source.Validate(); err != nil {
				return err
			}
			return runForeground(cmd, cfg, source, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "Source kind override (v4l2, file, stills)")
	cmd.Flags().BoolVar(&loop, "loop", false, "Restart file and stills sources when they end")
	return cmd
}

func newFromJSONCommand(ctx *commandContext) *cobra.Command {
	var opts foregroundOptions

	cmd := &cobra.Command{
		Use:   "fromjson <json>",
		Short: "Scan in the foreground using a JSON source description",
		Long: "Accepts the objects printed by `barscan device-caps`, for example\n" +
			`{"device_name":"/dev/video0","width":640,"height":480,"framerate_num":30,"framerate_denom":1}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := capture.ParseJSON([]byte(args[0]))
			if err != nil {
				return err
			}
			return runForeground(cmd, cfg, source, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// runForeground drives a private scan controller until the source ends or
// the process is interrupted.
func runForeground(cmd *cobra.Command, cfg *config.Config, source capture.Config, opts foregroundOptions) error {
	logger, err := logging.New(logging.Options{
		Level:            opts.logLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	syms, err := decoder.ParseConfig(cfg.Scan.Symbologies)
	if err != nil {
		return err
	}
	dec, err := decoder.New(syms)
	if err != nil {
		return err
	}
	ctl := scan.New(
		capture.NewOpener(cfg.FFmpegBinary(), logger),
		dec,
		scan.WithLogger(logger),
		scan.WithInterval(cfg.ScanInterval()),
		scan.WithLocker(capture.NewFileLocker(cfg.Paths.LockDir)),
	)

	store := results.NewStore()
	symbolOut := cmd.OutOrStdout()
	if opts.jsonOutput {
		symbolOut = cmd.ErrOrStderr()
	}

	ended := make(chan scan.Event, 1)
	var endOnce sync.Once
	unsubscribe := ctl.Subscribe(func(_ context.Context, ev scan.Event) {
		switch ev.Kind {
		case scan.EventSymbolsFound:
			printSymbols(symbolOut, ev.Symbols)
			applySymbols(store, ev.Symbols, cfg.Results.StrictPayload, logger)
		case scan.EventSourceStopped:
			endOnce.Do(func() { ended <- ev })
		}
	})
	defer unsubscribe()

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl.EnableScan()
	if _, err := ctl.Start(signalCtx, &source); err != nil {
		return err
	}

	var runErr error
	select {
	case <-signalCtx.Done():
	case ev := <-ended:
		if ev.Reason == scan.StopEndOfStream && ev.Err != nil && !errors.Is(ev.Err, capture.ErrEndOfStream) {
			runErr = ev.Err
		}
	}
	if err := ctl.Stop(context.Background()); err != nil && runErr == nil {
		runErr = err
	}

	if opts.jsonOutput {
		if err := writeJSON(cmd, store.Snapshot()); err != nil {
			return err
		}
	}
	return runErr
}

func printSymbols(out io.Writer, symbols scan.SymbolSet) {
	for _, sym := range symbols {
		fmt.Fprintf(out, "%s %s\n", sym.Type, sym.Data)
	}
}

func applySymbols(store *results.Store, symbols scan.SymbolSet, strict bool, logger *slog.Logger) {
	payloads := make([]results.Payload, 0, len(symbols))
	for _, sym := range symbols {
		payloads = append(payloads, results.Payload{Type: sym.Type, Data: sym.Data})
	}
	delta, err := results.Extract(payloads, strict)
	if err != nil {
		logger.Warn("payload rejected", logging.Args(
			logging.String(logging.FieldEventType, "payload_rejected"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, faults.Hint(err)),
		)...)
	}
	if _, err := store.Apply(delta); err != nil {
		logger.Warn("result update failed", logging.Args(logging.Error(err))...)
	}
}

func newDevicesCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "devices",
		Short:       "List video capture devices",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := capture.ListDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSONLines(out, devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}
			rows := make([][]string, 0, len(devices))
			for _, dev := range devices {
				name := dev.Name
				if name == "" {
					name = "-"
				}
				rows = append(rows, []string{dev.Path, name})
			}
			fmt.Fprint(out, renderTable([]string{"Device", "Name"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per device")
	return cmd
}

func newDeviceCapsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "device-caps <device>",
		Short: "List resolutions a device supports as fromjson input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			caps, err := capture.DeviceCaps(cmd.Context(), cfg.FFmpegBinary(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return writeJSONLines(cmd.OutOrStdout(), caps)
		},
	}
}

func writeJSONLines[T any](out io.Writer, items []T) error {
	enc := json.NewEncoder(out)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
