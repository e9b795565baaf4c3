package constants

// RunStatus is the canonical status for rows in the runs table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING" // pipeline in progress
	RunStatusOK      RunStatus = "OK"      // items extracted
	RunStatusEmpty   RunStatus = "EMPTY"   // pipeline finished with zero items
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure
)

// IsTerminal reports whether a run in this status will not change again.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusOK || s == RunStatusEmpty || s == RunStatusFailed
}
