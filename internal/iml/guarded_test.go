package iml

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuarded_SerialisesConcurrentCalls(t *testing.T) {
	f, err := New(identityConfig(), 1)
	require.NoError(t, err)
	g := NewGuarded(f)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = g.SetInput(0, float64(i%2))
			_ = g.Process()
		}(i)
	}
	wg.Wait()

	out := g.GetOutputs()
	assert.Len(t, out, 1)
}
