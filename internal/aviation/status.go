package aviation

import "strings"

// Severity of a status message
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// StatusMessage is a user facing result of a command
type StatusMessage struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func NewInfo(msg string) StatusMessage    { return StatusMessage{Severity: SeverityInfo, Message: msg} }
func NewWarning(msg string) StatusMessage { return StatusMessage{Severity: SeverityWarning, Message: msg} }
func NewError(msg string) StatusMessage   { return StatusMessage{Severity: SeverityError, Message: msg} }

// StatusMessageList collects status messages
type StatusMessageList []StatusMessage

// HasErrors reports whether any message has error severity
func (l StatusMessageList) HasErrors() bool {
	for _, m := range l {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (l StatusMessageList) String() string {
	parts := make([]string, 0, len(l))
	for _, m := range l {
		parts = append(parts, string(m.Severity)+": "+m.Message)
	}
	return strings.Join(parts, "; ")
}
