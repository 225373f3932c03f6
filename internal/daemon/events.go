package daemon

import (
	"context"

	"barscan/internal/activity"
	"barscan/internal/capture"
	"barscan/internal/decoder"
	"barscan/internal/faults"
	"barscan/internal/logging"
	"barscan/internal/results"
	"barscan/internal/scan"
)

// onScanEvent runs on the scan loop goroutine for every controller event.
func (d *Daemon) onScanEvent(_ context.Context, ev scan.Event) {
	switch ev.Kind {
	case scan.EventSymbolsFound:
		d.onSymbols(ev)
	case scan.EventSourceStopped:
		evt := activity.Event{
			Kind:      activity.KindSourceStopped,
			SessionID: ev.SessionID,
			Device:    ev.Device,
			Message:   string(ev.Reason),
		}
		if ev.Err != nil {
			evt.Message += ": " + ev.Err.Error()
		}
		d.hub.Publish(evt)
		if _, camera := d.cameraSessions.LoadAndDelete(ev.SessionID); camera && ev.Reason == scan.StopEndOfStream {
			reason := "end of stream"
			if ev.Err != nil {
				reason = ev.Err.Error()
			}
			d.hub.Publish(activity.Event{
				Kind:      activity.KindSourceLost,
				SessionID: ev.SessionID,
				Device:    ev.Device,
				Message:   reason,
			})
		}
	}
}

func (d *Daemon) onSymbols(ev scan.Event) {
	symbols := make([]activity.Symbol, 0, len(ev.Symbols))
	payloads := make([]results.Payload, 0, len(ev.Symbols))
	for _, sym := range ev.Symbols {
		symbols = append(symbols, activity.Symbol{Type: string(sym.Type), Data: sym.Data})
		payloads = append(payloads, results.Payload{Type: sym.Type, Data: sym.Data})
	}
	d.hub.Publish(activity.Event{
		Timestamp: ev.At,
		Kind:      activity.KindSymbolsFound,
		SessionID: ev.SessionID,
		Device:    ev.Device,
		FrameSeq:  ev.Frame.Seq,
		Symbols:   symbols,
	})

	delta, err := results.Extract(payloads, d.cfg.Results.StrictPayload)
	if err != nil {
		logging.WarnWithContext(d.logger, "malformed symbol payload skipped", "payload_malformed",
			logging.Error(err),
			logging.ScanSession(ev.SessionID),
			logging.FrameSeq(ev.Frame.Seq),
			logging.String(logging.FieldSymbology, string(decoder.QRCode)),
			logging.String(logging.FieldErrorHint, "QR payloads must look like #<device-id>%<batch-id>"),
			logging.String(logging.FieldImpact, "device-id and batch-id keep their previous values"),
		)
	}
	if len(delta) == 0 {
		return
	}
	changed, err := d.results.Apply(delta)
	if err != nil {
		logging.ErrorWithContext(d.logger, "failed to apply result fields", "results_apply_failed",
			logging.Error(err),
		)
		return
	}
	if changed {
		d.publishResults("symbols-found")
	}
}

// handleHotplug stops the session when its camera disappears and, with
// autostart, restarts it when the same node comes back.
func (d *Daemon) handleHotplug(ctx context.Context, ev capture.HotplugEvent) {
	kind := activity.KindDeviceAdded
	if ev.Action == capture.HotplugRemove {
		kind = activity.KindDeviceRemoved
	}
	d.hub.Publish(activity.Event{Kind: kind, Device: ev.Device})

	switch ev.Action {
	case capture.HotplugRemove:
		current := d.controller.Current()
		if current == nil || current.Device != ev.Device {
			return
		}
		d.hub.Publish(activity.Event{
			Kind:      activity.KindSourceLost,
			SessionID: current.SessionID,
			Device:    ev.Device,
			Message:   "camera removed",
		})
		d.logger.Info("bound camera removed; stopping scan session",
			logging.String(logging.FieldEventType, "camera_removed"),
			logging.Device(ev.Device),
		)
		if err := d.controller.Stop(ctx); err != nil {
			d.logger.Warn("failed to stop scan session", logging.Error(err))
		}
	case capture.HotplugAdd:
		if !d.cfg.Scan.Autostart || d.controller.Running() {
			return
		}
		target := d.sourceConfig()
		if target.Kind != capture.KindV4L2 || target.Device != ev.Device {
			return
		}
		if _, err := d.StartSource(ctx, &target); err != nil {
			logging.WarnWithContext(d.logger, "failed to restart scan session after camera returned", "camera_restart_failed",
				logging.Error(err),
				logging.Device(ev.Device),
				logging.String(logging.FieldErrorHint, faults.Hint(err)),
				logging.String(logging.FieldImpact, "scanner idle until started manually"),
			)
			return
		}
		d.logger.Info("bound camera returned; scan session restarted",
			logging.String(logging.FieldEventType, "camera_restarted"),
			logging.Device(ev.Device),
		)
	}
}
