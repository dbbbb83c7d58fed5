package report

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t,
		"SKIPPED_TYPE: Annotation(n1): Skipping not supported type: Annotation",
		Skipped("Annotation(n1)", "Annotation").Error())
	assert.Equal(t,
		"FATAL_SETUP_FAILURE: no objects selected",
		FatalSetup("no objects selected").Error())
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("put: %w", TransferFailed("abc", cause, true))

	assert.Equal(t, CodeTransferFailure, CodeOf(err))
	assert.True(t, IsFatal(err))
	assert.False(t, IsSkip(err))
	assert.ErrorIs(t, err, cause)

	assert.True(t, IsSkip(Skipped("x", "y")))
	assert.False(t, IsFatal(ConversionFailed("x", cause)))
	assert.Equal(t, Code(""), CodeOf(cause))
}

func TestReportAccumulates(t *testing.T) {
	r := New()
	r.Add(nil)
	r.Add(Skipped("a", "Annotation"))
	r.Add(errors.New("plain"))
	r.Add(ReconciliationFailed("Wall(w1)", errors.New("locked")))
	r.Logf("converted %d", 3)

	require.Len(t, r.Errors(), 3)
	assert.Len(t, r.Failures(), 2)
	assert.Equal(t, CodeConversionFailure, r.Errors()[1].Code)
	assert.Equal(t, 1, r.Count(CodeSkippedType))
	assert.False(t, r.HasFatal())
	assert.Equal(t, []string{"converted 3"}, r.Logs())

	r.Add(FatalSetup("nothing to do"))
	assert.True(t, r.HasFatal())
}

func TestReportConcurrentAdd(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(ConversionFailed(fmt.Sprintf("el-%d", i), errors.New("x")))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count(CodeConversionFailure))
}

func TestMerge(t *testing.T) {
	a, b := New(), New()
	a.Add(Skipped("s", "S"))
	b.Add(ConversionFailed("c", errors.New("x")))
	b.Logf("note")
	a.Merge(b)
	a.Merge(a)
	a.Merge(nil)

	assert.Len(t, a.Errors(), 2)
	assert.Equal(t, []string{"note"}, a.Logs())
}
