package reason

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errSample = New(ClassEconomic, "Sample", "sample failure")

func TestWrappedReasonKeepsCode(t *testing.T) {
	err := fmt.Errorf("deposit: %w", errSample.With("value %d", 3))
	assert.ErrorIs(t, err, errSample)
	assert.Equal(t, "Sample", Code(err))
	assert.Equal(t, ClassEconomic, Of(err).Class)
	assert.Contains(t, err.Error(), "value 3")

	assert.Equal(t, "", Code(errors.New("plain")))
}

func TestTimingErrorCarriesValidAt(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := fmt.Errorf("withdraw: %w", errSample.WithTiming(at))
	got, ok := ValidAt(err)
	assert.True(t, ok)
	assert.Equal(t, at, got)
	assert.ErrorIs(t, err, errSample)

	_, ok = ValidAt(errSample)
	assert.False(t, ok)
}

func TestGuardRejection(t *testing.T) {
	err := Reject("swap_router", "bad path")
	assert.ErrorIs(t, err, ErrGuardRejected)
	assert.Equal(t, "GuardRejected", Code(err))
	assert.Equal(t, "swap_router: bad path", err.Error())
}
