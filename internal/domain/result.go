package domain

import "time"

// ResultStatus classifies the outcome of processing one account in a pass.
type ResultStatus string

const (
	StatusSuccess        ResultStatus = "success"
	StatusNoNewItems     ResultStatus = "no_new_items"
	StatusFailed         ResultStatus = "failed"
	StatusAccountMissing ResultStatus = "account_missing"
)

// ProcessingResult records what happened to a single account during one pass.
// Results are appended to a run's log and never mutated.
type ProcessingResult struct {
	Account   string       `json:"account"`
	Status    ResultStatus `json:"status"`
	Message   string       `json:"message"`
	Reposted  int          `json:"reposted"`
	Timestamp time.Time    `json:"timestamp"`
}

// PassStats holds statistics about one sweep over the full account set.
type PassStats struct {
	Processed int
	Reposted  int
	Failed    int
	Missing   int
	Duration  time.Duration
}
