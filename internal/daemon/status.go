package daemon

import "barscan/internal/api"

// StatusPayload converts a daemon status into its wire form.
func StatusPayload(status Status) api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:           status.Running,
		PID:               status.PID,
		LockFilePath:      status.LockFilePath,
		HistoryPath:       status.HistoryPath,
		Source:            api.FromHandle(status.Source, status.Paused),
		Scan:              api.FromScanState(status.Scan),
		Results:           status.Results,
		ActiveAcquisition: status.ActiveAcquisition,
		Hotplug:           status.Hotplug,
		Dependencies:      api.FromDependencies(status.Dependencies),
	}
	if payload.Results == nil {
		payload.Results = map[string]string{}
	}
	return payload
}
