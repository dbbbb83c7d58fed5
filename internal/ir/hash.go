package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainObject    = "objsync/object/v1"
	DomainOperation = "objsync/operation/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ObjectID computes the content id of a detached object from its kind,
// application id and fields. Two objects with equal content always share
// an id regardless of where in a graph they occur.
func ObjectID(o *Object) (string, error) {
	canonical, err := MarshalCanonical(o.identity())
	if err != nil {
		return "", fmt.Errorf("ObjectID: failed to marshal %s: %w", o.Kind, err)
	}
	return hashWithDomain(DomainObject, canonical), nil
}

// OperationID computes a stable id for a recorded sync operation.
func OperationID(streamID, kind, rootID string, seq int64) string {
	canonical, err := MarshalCanonical(IRObject{
		"stream_id": IRString(streamID),
		"kind":      IRString(kind),
		"root_id":   IRString(rootID),
		"seq":       IRInt(seq),
	})
	if err != nil {
		// Only strings and ints are involved.
		panic(fmt.Sprintf("OperationID: %v", err))
	}
	return hashWithDomain(DomainOperation, canonical)
}

// MustObjectID is like ObjectID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustObjectID(o *Object) string {
	id, err := ObjectID(o)
	if err != nil {
		panic(err)
	}
	return id
}
