package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper(t *testing.T) {
	t.Parallel()

	// check interface compliance
	var _ Record = &Wrapper{}

	w, err := NewWrapper([]byte(`{"name": "Marcus Aurelius", "born": 121, "address": {"city": "Rome"}}`))
	require.NoError(t, err)

	value, ok := w.Get("born")
	assert.True(t, ok)
	assert.Equal(t, float64(121), value)
	address, ok := w.Get("address")
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"city": "Rome"}, address)
	_, ok = w.Get("address.city")
	assert.False(t, ok, "keys are field names, not paths")

	name, ok := w.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "Marcus Aurelius", name)
	_, ok = w.GetString("born")
	assert.False(t, ok)
	born, ok := w.GetInt("born")
	assert.True(t, ok)
	assert.Equal(t, int64(121), born)

	assert.Equal(t, []string{"address", "born", "name"}, w.Keys())
}

func TestWrapperSetDelete(t *testing.T) {
	t.Parallel()

	w, err := NewWrapper([]byte(`{"a": 1}`))
	require.NoError(t, err)

	require.NoError(t, w.Set("b.c", "dotted"))
	value, ok := w.Get("b.c")
	assert.True(t, ok)
	assert.Equal(t, "dotted", value)
	_, ok = w.Get("b")
	assert.False(t, ok)

	require.NoError(t, w.Delete("b.c"))
	require.NoError(t, w.Delete("missing"))
	assert.Equal(t, []string{"a"}, w.Keys())
}

func TestWrapperMerge(t *testing.T) {
	t.Parallel()

	w, err := NewWrapper([]byte(`{"name": "Marcus Aurelius", "born": 121}`))
	require.NoError(t, err)

	require.NoError(t, w.Merge(map[string]interface{}{
		"born":    1893,
		"city":    "Shaoshan",
		"a/b":     false,
		"tilde~x": "",
	}, []string{"name", "missing"}))

	born, ok := w.GetInt("born")
	assert.True(t, ok)
	assert.Equal(t, int64(1893), born)
	value, ok := w.Get("a/b")
	assert.True(t, ok)
	assert.Equal(t, false, value)
	value, ok = w.Get("tilde~x")
	assert.True(t, ok)
	assert.Equal(t, "", value)
	assert.Equal(t, []string{"a/b", "born", "city", "tilde~x"}, w.Keys())

	// empty merge is a no-op
	before := w.String()
	require.NoError(t, w.Merge(nil, []string{"missing"}))
	assert.Equal(t, before, w.String())
}

func TestWrapperMergeIsAtomic(t *testing.T) {
	t.Parallel()

	w, err := NewWrapper([]byte(`{"born": 121}`))
	require.NoError(t, err)
	before := w.Data()

	err = w.Merge(map[string]interface{}{
		"born":   1893,
		"broken": make(chan int),
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, before, w.Data())
}

func TestNewWrapperErrors(t *testing.T) {
	t.Parallel()

	_, err := NewWrapper([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
	_, err = NewWrapper([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestPointer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/born", pointer("born"))
	assert.Equal(t, "/a~1b", pointer("a/b"))
	assert.Equal(t, "/t~0x", pointer("t~x"))
	assert.Equal(t, `b\.c`, escapePath("b.c"))
}
