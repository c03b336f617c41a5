package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	stats := p.Stats()
	assert.Equal(t, int64(20), stats.SubmittedTasks)
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)

	p.Release()
	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolNonblockingOverload(t *testing.T) {
	p, err := NewPool("test", &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		Nonblocking:    true,
	})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(func() {
		defer wg.Done()
		<-block
	}))

	// 池满且非阻塞，提交被拒绝
	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolOverload)

	close(block)
	wg.Wait()
}

func TestPoolPanicRecovered(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2, ExpiryDuration: time.Second})
	require.NoError(t, err)

	require.NoError(t, p.Submit(func() {
		panic("boom")
	}))
	require.NoError(t, p.ReleaseTimeout(2*time.Second))

	assert.Equal(t, int64(1), p.Stats().PanicRecovered)
}

func TestBackgroundGlobalPool(t *testing.T) {
	done := make(chan struct{})
	require.NoError(t, SubmitBackground(func() {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not run")
	}
}
