package ir

// NOTE: These are store-layer records, not part of the object graph.
// They are persisted per stream and never hashed into object ids.

// Placeholder links an application id to the host element that was
// created for it by the last successful receive into a stream.
type Placeholder struct {
	ApplicationID  string `json:"application_id" yaml:"application_id"`
	NativeHandleID string `json:"native_handle_id" yaml:"native_handle_id"`
}

// OperationRecord is one entry in a stream's send/receive history.
type OperationRecord struct {
	ID        string `json:"id"`
	StreamID  string `json:"stream_id"`
	Kind      string `json:"kind"`  // "send" or "receive"
	State     string `json:"state"` // terminal orchestrator state
	RootID    string `json:"root_id"`
	Converted int64  `json:"converted"`
	Skipped   int64  `json:"skipped"`
	Errors    int64  `json:"errors"`
	Seq       int64  `json:"seq"` // Logical clock
}
