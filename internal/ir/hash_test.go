package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelObject(appID string) *Object {
	return &Object{
		Kind:          "Level",
		ApplicationID: appID,
		Fields: []Field{
			{Name: "name", Value: IRString("L1")},
			{Name: "elevation", Value: IRFloat(3)},
		},
	}
}

// Known-answer vectors: sha256("objsync/object/v1" + 0x00 + canonical JSON).
func TestObjectIDKnownAnswer(t *testing.T) {
	assert.Equal(t,
		"9e40b93e90e82ab5280bb1a8b81f6027ae11d07deeb39000bb634d6c5490b17d",
		MustObjectID(levelObject("")))
	assert.Equal(t,
		"cd853f7cef20e705873d63591afa1e6c888b2fb2184a11fa13a5273984301377",
		MustObjectID(levelObject("lvl-1")))
}

func TestObjectIDIgnoresClosureAndID(t *testing.T) {
	a := levelObject("")
	b := levelObject("")
	b.ID = "whatever"
	b.Closure = map[string]int{"x": 1}
	assert.Equal(t, MustObjectID(a), MustObjectID(b))
}

func TestObjectIDFieldOrderMatters(t *testing.T) {
	a := levelObject("")
	b := levelObject("")
	b.Fields[0], b.Fields[1] = b.Fields[1], b.Fields[0]
	assert.NotEqual(t, MustObjectID(a), MustObjectID(b))
}

func TestObjectIDIntAndFloatDiffer(t *testing.T) {
	a := &Object{Kind: "P", Fields: []Field{{Name: "x", Value: IRInt(3)}}}
	b := &Object{Kind: "P", Fields: []Field{{Name: "x", Value: IRFloat(3)}}}
	assert.NotEqual(t, MustObjectID(a), MustObjectID(b))
}

func TestObjectIDRejectsNonFinite(t *testing.T) {
	_, err := ObjectID(&Object{Kind: "P", Fields: []Field{{Name: "x", Value: IRFloat(nan())}}})
	require.Error(t, err)
	assert.Panics(t, func() {
		MustObjectID(&Object{Kind: "P", Fields: []Field{{Name: "x", Value: IRFloat(nan())}}})
	})
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"kind":"x"}`)
	assert.NotEqual(t, hashWithDomain(DomainObject, data), hashWithDomain(DomainOperation, data))

	// "foo" + 0x00 + "bar" must differ from "foob" + 0x00 + "ar".
	assert.NotEqual(t, hashWithDomain("foo", []byte("bar")), hashWithDomain("foob", []byte("ar")))
}

func TestOperationIDDeterminism(t *testing.T) {
	a := OperationID("stream-1", "receive", "root", 4)
	assert.Equal(t, a, OperationID("stream-1", "receive", "root", 4))
	assert.NotEqual(t, a, OperationID("stream-1", "receive", "root", 5))
	assert.Len(t, a, 64)
	for _, c := range a {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'), "non-hex %c", c)
	}
}
