package constants

// RecordStatus is the derived outcome attached to every listed record.
type RecordStatus string

// Stable values (emitted verbatim in JSON output).
const (
	StatusSuccess RecordStatus = "success" // fields read or extracted
	StatusError   RecordStatus = "error"   // entry could not be read at all
)
