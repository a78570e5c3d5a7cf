package operation

// CompletionSignal is the message delivered to a running operation when the
// export backend reaches a terminal state. OutputLocation is only set on
// success and may legitimately be empty.
type CompletionSignal struct {
	Success        bool
	OutputLocation string
}
