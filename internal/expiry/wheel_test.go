package expiry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAndDrainDueOrdersByExpiry(t *testing.T) {
	w := New()
	w.Schedule("a", 300)
	w.Schedule("b", 100)
	w.Schedule("c", 200)

	due := w.DrainDue(250)
	assert.Equal(t, []string{"b", "c"}, due)
	assert.Equal(t, 1, w.Len())
}

func TestCancelRetractsBeforeDue(t *testing.T) {
	w := New()
	w.Schedule("a", 100)
	w.Cancel("a")

	due := w.DrainDue(1000)
	assert.Empty(t, due)
	assert.Equal(t, 0, w.Len())
}

func TestCancelUnknownIDIsNoop(t *testing.T) {
	w := New()
	assert.NotPanics(t, func() { w.Cancel("missing") })
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	w := New()
	w.Schedule("a", 500)
	w.Schedule("a", 100)

	due := w.DrainDue(150)
	assert.Equal(t, []string{"a"}, due)
}

func TestDrainDueIsIdempotentAfterPop(t *testing.T) {
	w := New()
	w.Schedule("a", 100)
	first := w.DrainDue(200)
	second := w.DrainDue(200)

	assert.Equal(t, []string{"a"}, first)
	assert.Empty(t, second)
}
