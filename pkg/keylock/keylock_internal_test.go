package keylock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	unlock := releaseOnce(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	unlock()

	assert.Equal(t, int32(1), calls.Load())
}
