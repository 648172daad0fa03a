package capture

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendKeepsOrderAndCopies(t *testing.T) {
	b := NewBuffer(0)
	chunk := []byte("abc")
	require.True(t, b.Append(chunk))
	chunk[0] = 'X'
	require.True(t, b.Append([]byte("def")))

	assert.Equal(t, [][]byte{[]byte("abc"), []byte("def")}, b.Chunks())
	assert.Equal(t, []byte("abcdef"), b.Bytes())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 6, b.Size())
}

func TestBufferIgnoresEmptyChunks(t *testing.T) {
	b := NewBuffer(0)
	assert.True(t, b.Append(nil))
	assert.True(t, b.Append([]byte{}))
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Chunks())
	assert.Empty(t, b.Bytes())
}

func TestBufferDropsChunksPastLimit(t *testing.T) {
	b := NewBuffer(5)
	assert.True(t, b.Append([]byte("123")))
	assert.False(t, b.Append([]byte("456")))
	assert.True(t, b.Append([]byte("78")))

	assert.Equal(t, []byte("12378"), b.Bytes())
	assert.Equal(t, 1, b.Dropped())
}

func TestBufferChunksIsDeepCopy(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte("abc"))
	out := b.Chunks()
	out[0][0] = 'Z'
	assert.Equal(t, []byte("abc"), b.Bytes())
}

func TestBufferConcurrentAppend(t *testing.T) {
	b := NewBuffer(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Append([]byte{1, 2})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
	assert.Equal(t, 100, b.Size())
}
