package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the object wire format version.
	WireVersion = "1"

	// EngineVersion is the objsync engine version.
	EngineVersion = "0.1.0"
)
