// Package tool defines the tool-call boundary of the engine: the wire
// types a graph exchanges with whatever executes tools, and a Registry
// that runs langchaingo tools behind that boundary.
//
// Tool-level failures are never returned as Go errors. They are
// captured in Result with Successful=false so the calling node can
// decide whether to feed the failure back to the model or escalate.
package tool

import (
	"encoding/json"
	"fmt"
)

// Call is a single tool invocation requested by the model.
type Call struct {
	// ID correlates the call with its result in the conversation.
	ID string `json:"id"`

	// Name is the registered tool name.
	Name string `json:"name"`

	// Arguments is the raw JSON argument payload from the model.
	Arguments string `json:"arguments"`
}

// Result is the outcome of executing a Call.
type Result struct {
	// CallID echoes the Call.ID this result answers.
	CallID string `json:"call_id"`

	// Name echoes the tool name.
	Name string `json:"name"`

	// Successful reports whether the tool ran without error.
	Successful bool `json:"successful"`

	// Result holds the tool output as JSON when Successful.
	Result json.RawMessage `json:"result,omitempty"`

	// ErrorMessage holds the failure description when not Successful.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Content returns the result payload as a plain string, suitable for
// feeding back to the model as a tool response message.
func (r Result) Content() string {
	if !r.Successful {
		return r.ErrorMessage
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

// Failure builds a failed Result for the given call.
func Failure(call Call, format string, v ...any) Result {
	return Result{
		CallID:       call.ID,
		Name:         call.Name,
		Successful:   false,
		ErrorMessage: fmt.Sprintf(format, v...),
	}
}

// Success builds a successful Result carrying the given output string.
func Success(call Call, output string) Result {
	raw, err := json.Marshal(output)
	if err != nil {
		// A string always marshals; keep the fallback anyway.
		raw = json.RawMessage(fmt.Sprintf("%q", output))
	}
	return Result{
		CallID:     call.ID,
		Name:       call.Name,
		Successful: true,
		Result:     raw,
	}
}

// ValidationError reports a malformed tool call: unknown tool name or
// arguments that do not parse. It is distinct from a tool failing at
// runtime, which is reported through Result instead.
type ValidationError struct {
	Call   Call
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tool call %q: %s", e.Call.Name, e.Reason)
}
