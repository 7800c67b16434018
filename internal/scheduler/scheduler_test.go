package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct{ calls int32 }

func (c *countingSweeper) Sweep() int {
	atomic.AddInt32(&c.calls, 1)
	return 1
}

func TestSchedulerRunsSweeper(t *testing.T) {
	sw := &countingSweeper{}
	s := New(20*time.Millisecond, sw)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&sw.calls) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerWithoutSweeper(t *testing.T) {
	s := New(time.Second, nil)
	assert.NoError(t, s.Start())
	s.Stop()
}
