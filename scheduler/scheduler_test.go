package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTickerRuns(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var runs atomic.Int32
	s.AddTicker("probe", 10*time.Millisecond, func() { runs.Add(1) })

	assert.Eventually(t, func() bool { return runs.Load() >= 2 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"probe"}, s.ListTickers())
}

func TestTickerReplaceAndRemove(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	s.AddTicker("task", time.Hour, func() {})
	s.AddTicker("task", time.Hour, func() {})
	assert.Len(t, s.ListTickers(), 1)

	s.Remove("task")
	assert.Empty(t, s.ListTickers())
}

func TestTaskPanicIsContained(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var after atomic.Int32
	s.AddTicker("panicky", 10*time.Millisecond, func() {
		if after.Add(1) == 1 {
			panic("boom")
		}
	})
	assert.Eventually(t, func() bool { return after.Load() >= 2 },
		time.Second, 5*time.Millisecond)
}

func TestStopIdempotent(t *testing.T) {
	s := New(zap.NewNop())
	s.Stop()
	s.Stop()
}
