package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCodec(t *testing.T) {
	codec, err := NewPayloadCodec(64)
	require.NoError(t, err)

	small := map[string]any{"itemCount": float64(2)}
	enc, err := codec.Encode(small)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, enc.Algo)
	assert.Nil(t, enc.Compressed)

	var got map[string]any
	require.NoError(t, codec.Decode(enc, &got))
	assert.Equal(t, small, got)

	large := map[string]any{"comment": strings.Repeat("crown 11-21 ", 100)}
	enc, err = codec.Encode(large)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, enc.Algo)
	assert.Nil(t, enc.JSON)
	assert.Less(t, len(enc.Compressed), 1200)

	got = nil
	require.NoError(t, codec.Decode(enc, &got))
	assert.Equal(t, large, got)

	enc, err = codec.Encode(nil)
	require.NoError(t, err)
	got = nil
	require.NoError(t, codec.Decode(enc, &got))
	assert.Nil(t, got)
}
