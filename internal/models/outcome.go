package models

// maxFailureReason caps the stored failure text so a backend stack trace
// never bloats the record.
const maxFailureReason = 300

// ModuleOutcome is the settled result of one pipeline sub-task: either
// generated text or a failure reason. A task failure never escapes its task
// boundary as an error; it travels to the assembler inside this value.
type ModuleOutcome struct {
	Content string `json:"content,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// TextOutcome wraps successful task output.
func TextOutcome(content string) ModuleOutcome {
	return ModuleOutcome{Content: content}
}

// FailedOutcome records a task failure with a truncated reason.
func FailedOutcome(reason string) ModuleOutcome {
	if len(reason) > maxFailureReason {
		reason = reason[:maxFailureReason]
	}
	return ModuleOutcome{Failed: true, Reason: reason}
}

// OK reports whether the task produced usable text.
func (o ModuleOutcome) OK() bool {
	return !o.Failed
}
