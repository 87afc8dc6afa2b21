package domain

// RunState is the lifecycle state of a monitoring run.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateLoggedIn   RunState = "logged_in"
	RunStateMonitoring RunState = "monitoring"
	RunStateStopped    RunState = "stopped"
)

// RunStatus is the caller-facing snapshot of a run.
type RunStatus struct {
	State         RunState           `json:"state"`
	ResultCount   int                `json:"result_count"`
	LatestResults []ProcessingResult `json:"latest_results"`
}

// RunInfo identifies a live run in the registry listing.
type RunInfo struct {
	RunID            string   `json:"run_id"`
	Account          string   `json:"account"`
	MonitoredHandles []string `json:"monitored_handles"`
	State            RunState `json:"state"`
}
