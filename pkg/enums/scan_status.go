package enums

// ScanStatus is the lifecycle of a queued scan intent. Items transition
// pending -> processing -> exactly one terminal status.
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusSuccess    ScanStatus = "success"
	ScanStatusError      ScanStatus = "error"
)

// Terminal reports whether the status ends the item's lifecycle.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusSuccess || s == ScanStatusError
}
