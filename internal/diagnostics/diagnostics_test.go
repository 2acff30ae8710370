package diagnostics

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkWritesStructuredFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger)

	sink.Emit(Event{
		Kind:     InsufficientCombinations,
		Severity: Warning,
		Table:    "orders",
		Fields:   map[string]interface{}{"available": 9, "requested": 20},
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "orders", entry.Data["table"])
	assert.Equal(t, "insufficient_combinations", entry.Data["event"])
	assert.Equal(t, 9, entry.Data["available"])
	assert.Equal(t, 20, entry.Data["requested"])
}

func TestLogSinkLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger)

	sink.Emit(Event{Kind: GroupDiscovered, Table: "t"})
	sink.Emit(Event{Kind: PoolError, Severity: Error, Table: "t"})

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.InfoLevel, hook.AllEntries()[0].Level)
	assert.Equal(t, logrus.ErrorLevel, hook.AllEntries()[1].Level)
}

func TestRecorderAndTee(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sink := Tee(a, b, Discard)

	sink.Emit(Event{Kind: FanoutComputed, Table: "t"})
	sink.Emit(Event{Kind: RowsPreallocated, Table: "t"})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.Events(), 2)
	assert.Len(t, a.Find(FanoutComputed), 1)
	assert.Empty(t, a.Find(PoolError))
}
