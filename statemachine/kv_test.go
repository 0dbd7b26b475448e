package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPutThenGet(t *testing.T) {
	kv := NewKV()
	require.NoError(t, kv.Apply([]byte("PUT x 10")))

	v, ok := kv.Get("x")
	require.True(t, ok)
	assert.Equal(t, "10", v)
}

func TestApplyPutJoinsMultiWordValue(t *testing.T) {
	kv := NewKV()
	require.NoError(t, kv.Apply([]byte("PUT greeting hello there")))

	v, ok := kv.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello there", v)
}

func TestApplyDelRemovesKey(t *testing.T) {
	kv := NewKV()
	require.NoError(t, kv.Apply([]byte("PUT x 10")))
	require.NoError(t, kv.Apply([]byte("DEL x")))

	_, ok := kv.Get("x")
	assert.False(t, ok)
}

func TestApplyRejectsMalformedCommand(t *testing.T) {
	kv := NewKV()
	assert.Error(t, kv.Apply([]byte("PUT onlykey")))
	assert.Error(t, kv.Apply([]byte("DEL")))
	assert.Error(t, kv.Apply([]byte("FROBNICATE x")))
	assert.Error(t, kv.Apply([]byte("")))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	kv := NewKV()
	require.NoError(t, kv.Apply([]byte("PUT x 1")))

	snap := kv.Snapshot()
	snap["x"] = "mutated"

	v, _ := kv.Get("x")
	assert.Equal(t, "1", v, "mutating the snapshot must not affect the store")
}
