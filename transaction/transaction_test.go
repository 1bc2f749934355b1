package transaction

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/deltatx/calc"
	"github.com/safing/deltatx/config"
	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/overlay"
	"github.com/safing/deltatx/record"
)

var errBoom = errors.New("boom")

func newMarcus() *record.Map {
	return record.NewMap(map[string]interface{}{
		"name": "Marcus Aurelius",
		"born": 121,
	})
}

func TestMarcusAurelius(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, tx := Start(base, nil)

	require.NoError(t, view.Set("born", 1893))
	require.NoError(t, view.Set("city", "Shaoshan"))

	d, err := tx.Delta()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"born": 1893, "city": "Shaoshan"}, d.Changes)
	assert.Empty(t, d.Deletes)

	require.NoError(t, tx.Commit())
	assert.Equal(t, map[string]interface{}{
		"name": "Marcus Aurelius",
		"born": 1893,
		"city": "Shaoshan",
	}, base.Data())

	require.NoError(t, view.Set("born", 1976))
	require.NoError(t, tx.Rollback())
	born, ok := base.Get("born")
	assert.True(t, ok)
	assert.Equal(t, 1893, born)

	value, err := view.Get("born")
	require.NoError(t, err)
	assert.Equal(t, 1893, value)
}

func TestIsolation(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, _ := Start(base, nil)

	require.NoError(t, view.Set("born", 1893))
	require.NoError(t, view.Set("city", "Shaoshan"))
	require.NoError(t, view.Delete("name"))

	assert.Equal(t, map[string]interface{}{"name": "Marcus Aurelius", "born": 121}, base.Data())

	value, err := view.Get("born")
	require.NoError(t, err)
	assert.Equal(t, 1893, value)
}

func TestCollapseToBase(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)

	require.NoError(t, view.Set("born", 1893))
	require.NoError(t, view.Set("born", 121))

	d, err := tx.Delta()
	require.NoError(t, err)
	assert.True(t, d.Empty())

	// a deleted field set back to its base value is no longer deleted
	require.NoError(t, view.Delete("name"))
	require.NoError(t, view.Set("name", "Marcus Aurelius"))
	d, err = tx.Delta()
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestCollapseToJSONBase(t *testing.T) {
	t.Parallel()

	base, err := record.NewWrapper([]byte(`{"name":"Marcus Aurelius","born":121}`))
	require.NoError(t, err)
	view, tx := Start(base, nil)

	// JSON numbers are float64, the int still matches
	require.NoError(t, view.Set("born", 121))
	d, err := tx.Delta()
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestCollapseToNestedJSONBase(t *testing.T) {
	t.Parallel()

	base, err := record.NewWrapper([]byte(`{"born":121,"tags":[1,2],"address":{"zip":12345,"lines":["Palatine",1]}}`))
	require.NoError(t, err)
	view, tx := Start(base, nil)

	require.NoError(t, view.Set("born", 121))
	require.NoError(t, view.Set("tags", []interface{}{1, 2}))
	require.NoError(t, view.Set("address", map[string]interface{}{
		"zip":   12345,
		"lines": []interface{}{"Palatine", 1},
	}))

	d, err := tx.Delta()
	require.NoError(t, err)
	assert.True(t, d.Empty(), "delta: %+v", d)

	require.NoError(t, view.Set("tags", []interface{}{2, 1}))
	d, err = tx.Delta()
	require.NoError(t, err)
	assert.Len(t, d.Changes, 1)
}

func TestCommitEmptyOverlay(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	_, tx := Start(base, nil)

	var seen []events.Phase
	for _, register := range []func(events.Channel, events.Listener){tx.Before, tx.On, tx.After} {
		register(events.Commit, func(ev *events.Event) error {
			seen = append(seen, ev.Phase)
			return nil
		})
	}

	require.NoError(t, tx.Commit())
	assert.Equal(t, []events.Phase{events.Before, events.On, events.After}, seen)
	assert.Equal(t, map[string]interface{}{"name": "Marcus Aurelius", "born": 121}, base.Data())
}

func TestRollbackRestoresReadThrough(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, tx := Start(base, nil)

	require.NoError(t, view.Set("born", 1893))
	require.NoError(t, view.Delete("name"))
	require.NoError(t, view.Set("city", "Shaoshan"))
	require.NoError(t, tx.Rollback())

	for key, expected := range base.Data() {
		value, err := view.Get(key)
		require.NoError(t, err)
		assert.Equal(t, expected, value, key)
	}
	city, err := view.Get("city")
	require.NoError(t, err)
	assert.True(t, IsUndefined(city))

	assert.Equal(t, RolledBack, tx.LastResolution())
	assert.Equal(t, Open, tx.State())
}

func TestDeleteThenRead(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, tx := Start(base, nil)

	require.NoError(t, view.Delete("name"))
	value, err := view.Get("name")
	require.NoError(t, err)
	assert.True(t, IsUndefined(value))
	assert.Equal(t, "undefined", fmt.Sprint(value))

	keys, err := view.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"born"}, keys)

	// deleting a field the base does not have is fine
	require.NoError(t, view.Delete("city"))
	require.NoError(t, tx.Commit())
	assert.Equal(t, map[string]interface{}{"born": 121}, base.Data())
}

func TestKeys(t *testing.T) {
	t.Parallel()

	view, _ := Start(newMarcus(), calc.Fields{
		"age": func(record.Reader) (interface{}, error) { return 1, nil },
	})

	require.NoError(t, view.Set("city", "Shaoshan"))
	require.NoError(t, view.Set("born", 1893))
	keys, err := view.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"born", "city", "name"}, keys)
}

func TestClone(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	_, tx := Start(base, nil)
	require.NoError(t, tx.Set("tags", []interface{}{"emperor"}))
	require.NoError(t, tx.Delete("born"))

	cloned, err := tx.Clone()
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID(), cloned.ID())
	assert.Same(t, base, cloned.Base())
	assert.False(t, cloned.TimeoutArmed())

	d, err := cloned.Delta()
	require.NoError(t, err)
	assert.Equal(t, []string{"born"}, d.Deletes)

	// changes to the clone do not reach the original
	require.NoError(t, cloned.Set("city", "Rome"))
	tags, err := cloned.Get("tags")
	require.NoError(t, err)
	tags.([]interface{})[0] = "philosopher"

	original, err := tx.Get("tags")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"emperor"}, original)
	city, err := tx.Get("city")
	require.NoError(t, err)
	assert.True(t, IsUndefined(city))

	// listeners are not carried over
	tx.On(events.Commit, func(*events.Event) error { return errBoom })
	require.NoError(t, cloned.Commit())
	assert.Equal(t, "Rome", base.Data()["city"])

	// the original is still staged
	original, err = tx.Get("born")
	require.NoError(t, err)
	assert.True(t, IsUndefined(original))
}

func TestCalculatedFieldPrecedence(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, tx := Start(base, calc.Fields{
		"born": func(record.Reader) (interface{}, error) {
			return "calculated", nil
		},
		"century": func(view record.Reader) (interface{}, error) {
			born, ok := view.Get("born")
			if !ok {
				return nil, errors.New("born unknown")
			}
			return born.(int)/100 + 1, nil
		},
	})

	for _, value := range []interface{}{1893, "1976", nil} {
		require.NoError(t, view.Set("born", value))
		got, err := view.Get("born")
		require.NoError(t, err)
		assert.Equal(t, "calculated", got)
	}

	// calculated fields see the stored values
	require.NoError(t, view.Set("born", 1893))
	century, err := view.Get("century")
	require.NoError(t, err)
	assert.Equal(t, 19, century)

	require.NoError(t, view.Delete("born"))
	_, err = view.Get("century")
	assert.Error(t, err)

	// calculated fields are never stored
	require.NoError(t, tx.Rollback())
	require.NoError(t, view.Set("century", 3))
	require.NoError(t, tx.Commit())
	assert.Equal(t, 3, base.Data()["century"])
	century, err = view.Get("century")
	require.NoError(t, err)
	assert.Equal(t, 2, century)
}

func TestExpressionField(t *testing.T) {
	t.Parallel()

	view, _ := Start(newMarcus(), calc.Fields{
		"title": calc.MustExpression(`name + " of " + (city ?? "Rome")`),
	})

	title, err := view.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Marcus Aurelius of Rome", title)

	require.NoError(t, view.Set("city", "Shaoshan"))
	title, err = view.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Marcus Aurelius of Shaoshan", title)
}

func TestEventOrderAndView(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)

	var seen []string
	note := func(ev *events.Event) error {
		assert.Equal(t, tx.ID(), ev.Transaction)
		assert.Equal(t, events.Set, ev.Channel)
		born, _ := ev.View.Get("born")
		seen = append(seen, fmt.Sprintf("%s:%v:%d", ev.Phase, born, len(ev.View.Delta().Changes)))
		return nil
	}
	tx.After(events.Set, note)
	tx.On(events.Set, note)
	tx.Before(events.Set, note)
	tx.Before(events.Get, func(*events.Event) error {
		seen = append(seen, "get")
		return nil
	})

	require.NoError(t, view.Set("born", 1893))
	_, err := view.Get("born")
	require.NoError(t, err)

	assert.Equal(t, []string{"before:121:0", "on:1893:1", "after:1893:1", "get"}, seen)
}

func TestRegisterByName(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)

	var count int
	inc := events.Notify(func() { count++ })
	tx.BeforeName("SET", inc)
	tx.OnName("set", inc)
	tx.AfterName("set", inc)
	tx.OnName("explode", inc)
	tx.On(events.Channel(42), inc)
	tx.On(events.Set, nil)

	require.NoError(t, view.Set("born", 1893))
	assert.Equal(t, 3, count)
}

func TestListenerFailureAbortsOperation(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)

	var later bool
	tx.Before(events.Set, func(*events.Event) error { return errBoom })
	tx.Before(events.Set, events.Notify(func() { later = true }))

	err := view.Set("born", 1893)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	var le *events.ListenerError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, events.Before, le.Phase)
	assert.Equal(t, 0, le.Index)
	assert.False(t, later)

	born, err := view.Get("born")
	require.NoError(t, err)
	assert.Equal(t, 121, born)
}

func TestListenerPanic(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)
	tx.On(events.Get, func(*events.Event) error { panic("oops") })

	_, err := view.Get("born")
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrListenerPanic))
}

func TestCommitListenerFailureKeepsBaseWhole(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	view, tx := Start(base, nil)
	tx.On(events.Commit, func(*events.Event) error { return errBoom })

	require.NoError(t, view.Set("born", 1893))
	require.NoError(t, view.Set("city", "Shaoshan"))
	require.NoError(t, view.Delete("name"))

	err := tx.Commit()
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, map[string]interface{}{"born": 1893, "city": "Shaoshan"}, base.Data())
	assert.Equal(t, Open, tx.State())
	assert.Equal(t, Committed, tx.LastResolution())
}

type failingRecord struct {
	*record.Map
}

func (failingRecord) Merge(map[string]interface{}, []string) error {
	return errBoom
}

func TestCommitMergeFailure(t *testing.T) {
	t.Parallel()

	base := failingRecord{Map: newMarcus()}
	view, tx := Start(base, nil)

	var committed bool
	tx.On(events.Commit, events.Notify(func() { committed = true }))

	require.NoError(t, view.Set("born", 1893))
	err := tx.Commit()
	assert.True(t, errors.Is(err, errBoom))
	assert.False(t, committed)
	assert.Equal(t, Open, tx.LastResolution())

	d, err := tx.Delta()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"born": 1893}, d.Changes)
}

func TestStateDuringResolution(t *testing.T) {
	t.Parallel()

	_, tx := Start(newMarcus(), nil)

	var states []State
	note := func(*events.Event) error {
		states = append(states, tx.State())
		return nil
	}
	tx.Before(events.Commit, note)
	tx.On(events.Commit, note)
	tx.On(events.Rollback, note)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
	assert.Equal(t, []State{Open, Committed, RolledBack}, states)
	assert.Equal(t, Open, tx.State())
	assert.Equal(t, "rolled back", tx.LastResolution().String())
}

func TestRedundantDelete(t *testing.T) {
	t.Parallel()

	for _, skip := range []bool{false, true} {
		view, tx := Start(newMarcus(), nil, &config.Options{SkipRedundantDeleteEvents: skip})

		var count int
		tx.On(events.Set, events.Notify(func() { count++ }))

		require.NoError(t, view.Delete("name"))
		require.NoError(t, view.Delete("name"))

		expected := 2
		if skip {
			expected = 1
		}
		assert.Equal(t, expected, count, "skip=%v", skip)

		d, err := tx.Delta()
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, d.Deletes)
	}
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	base := record.NewMap(map[string]interface{}{})
	view, tx := Start(base, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("field%02d", i)
			assert.NoError(t, view.Set(key, i))
			_, err := view.Get(key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	d, err := tx.Delta()
	require.NoError(t, err)
	assert.Len(t, d.Changes, 20)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 20, base.Len())
}

func TestDeltaIsCopy(t *testing.T) {
	t.Parallel()

	view, tx := Start(newMarcus(), nil)
	require.NoError(t, view.Set("tags", map[string]interface{}{"role": "emperor"}))

	d, err := tx.Delta()
	require.NoError(t, err)
	d.Changes["tags"].(map[string]interface{})["role"] = "philosopher"
	d.Changes["other"] = true

	pending, err := tx.Delta()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"tags": map[string]interface{}{"role": "emperor"}}, pending.Changes)
	assert.True(t, overlay.Equal(pending.Changes["tags"], map[string]interface{}{"role": "emperor"}))
}

func TestReentrantCallsFail(t *testing.T) {
	t.Parallel()

	base := newMarcus()
	var view View
	var tx *Transaction
	view, tx = Start(base, calc.Fields{
		"self": func(record.Reader) (interface{}, error) {
			return view.Get("born")
		},
	})

	var errs []error
	tx.On(events.Commit, func(*events.Event) error {
		_, err := view.Get("born")
		errs = append(errs, err)
		errs = append(errs, tx.Commit())
		errs = append(errs, view.Set("born", 1))
		errs = append(errs, tx.Timeout(time.Second, true, nil))
		assert.False(t, tx.CancelTimeout())
		assert.Equal(t, Committed, tx.State())
		// registering is ignored
		tx.On(events.Commit, func(*events.Event) error { return errBoom })
		return nil
	})

	require.NoError(t, view.Set("born", 1893))

	done := make(chan error, 1)
	go func() {
		done <- tx.Commit()
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("commit did not return")
	}

	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrReentrantCall)
	}
	assert.False(t, tx.TimeoutArmed())
	assert.Equal(t, 1893, base.Data()["born"])

	// the listener registered during dispatch was dropped
	require.NoError(t, tx.Commit())

	_, err := view.Get("self")
	assert.ErrorIs(t, err, ErrReentrantCall)

	// plain calls work again after the dispatch
	born, err := view.Get("born")
	require.NoError(t, err)
	assert.Equal(t, 1893, born)
}
