package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/exp/slices"
)

// Wrapper is a record backed by a JSON object. Numbers are read back as
// float64, nested objects as map[string]interface{}.
type Wrapper struct {
	data []byte
	lock sync.RWMutex
}

// NewWrapper returns a new record wrapping a copy of the given JSON object.
func NewWrapper(data []byte) (*Wrapper, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, ErrNotObject
	}

	return &Wrapper{
		data: append([]byte(nil), data...),
	}, nil
}

// Get returns the value of the top-level field and whether it exists.
func (w *Wrapper) Get(key string) (interface{}, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	result, ok := lookup(w.data, key)
	if !ok {
		return nil, false
	}
	return result.Value(), true
}

// GetString returns the string found by the given key and whether it could be successfully extracted.
func (w *Wrapper) GetString(key string) (value string, ok bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	result, ok := lookup(w.data, key)
	if !ok || result.Type != gjson.String {
		return "", false
	}
	return result.String(), true
}

// GetInt returns the int found by the given key and whether it could be successfully extracted.
func (w *Wrapper) GetInt(key string) (value int64, ok bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	result, ok := lookup(w.data, key)
	if !ok || result.Type != gjson.Number {
		return 0, false
	}
	return result.Int(), true
}

// Keys returns the sorted names of all top-level fields.
func (w *Wrapper) Keys() []string {
	w.lock.RLock()
	defer w.lock.RUnlock()

	var keys []string
	gjson.ParseBytes(w.data).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Set sets the value of a top-level field.
func (w *Wrapper) Set(key string, value interface{}) error {
	if key == "" {
		return ErrEmptyKey
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	data, err := sjson.SetBytes(w.data, escapePath(key), value)
	if err != nil {
		return fmt.Errorf("record: failed to set %s: %w", key, err)
	}
	w.data = data
	return nil
}

// Delete removes a top-level field.
func (w *Wrapper) Delete(key string) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if _, ok := lookup(w.data, key); !ok {
		return nil
	}
	data, err := sjson.DeleteBytes(w.data, escapePath(key))
	if err != nil {
		return fmt.Errorf("record: failed to delete %s: %w", key, err)
	}
	w.data = data
	return nil
}

// Merge applies all changes and deletes as one JSON patch. If the patch
// fails, the document is left untouched.
func (w *Wrapper) Merge(changes map[string]interface{}, deletes []string) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	ops := make([]map[string]interface{}, 0, len(changes)+len(deletes))
	for _, key := range deletes {
		if _, ok := lookup(w.data, key); ok {
			ops = append(ops, map[string]interface{}{
				"op":   "remove",
				"path": pointer(key),
			})
		}
	}
	keys := make([]string, 0, len(changes))
	for key := range changes {
		if key == "" {
			return ErrEmptyKey
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		ops = append(ops, map[string]interface{}{
			"op":    "add",
			"path":  pointer(key),
			"value": changes[key],
		})
	}
	if len(ops) == 0 {
		return nil
	}

	encoded, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("record: failed to encode changes: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(encoded)
	if err != nil {
		return fmt.Errorf("record: failed to build patch: %w", err)
	}
	patched, err := patch.Apply(w.data)
	if err != nil {
		return fmt.Errorf("record: failed to apply patch: %w", err)
	}
	w.data = patched
	return nil
}

// Data returns a copy of the JSON document.
func (w *Wrapper) Data() []byte {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return append([]byte(nil), w.data...)
}

func (w *Wrapper) String() string {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return string(w.data)
}

// lookup finds a top-level field without interpreting the key as a path.
func lookup(data []byte, key string) (found gjson.Result, ok bool) {
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			ok = true
		}
		// Keep going, the last duplicate wins like in encoding/json.
		return true
	})
	return found, ok
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	"!", `\!`,
	"=", `\=`,
	"<", `\<`,
	">", `\>`,
	"%", `\%`,
)

// escapePath turns a field name into an sjson path addressing exactly that
// top-level field.
func escapePath(key string) string {
	return pathEscaper.Replace(key)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer returns the RFC 6901 pointer of a top-level field.
func pointer(key string) string {
	return "/" + pointerEscaper.Replace(key)
}
