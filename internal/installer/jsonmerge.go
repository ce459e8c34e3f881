package installer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// object is a JSON object that keeps its key order across a read-modify-write.
type object = *orderedmap.OrderedMap[string, json.RawMessage]

func newObject() object {
	return orderedmap.New[string, json.RawMessage]()
}

func parseObject(raw []byte) (object, error) {
	obj := newObject()
	if len(bytes.TrimSpace(raw)) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// readObject loads a JSON object from path. A missing file yields an empty object.
func readObject(path string) (obj object, found bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return newObject(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	obj, err = parseObject(raw)
	if err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", path, err)
	}
	return obj, true, nil
}

func set(obj object, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	obj.Set(key, raw)
	return nil
}

// child returns obj[key] as an object; absent or non-object values yield an empty one.
func child(obj object, key string) object {
	raw, ok := obj.Get(key)
	if !ok {
		return newObject()
	}
	c, err := parseObject(raw)
	if err != nil {
		return newObject()
	}
	return c
}

// mergeSection sets every key of src[key] into dst[key]. src wins on conflict;
// keys only in dst keep their place, new keys are appended.
func mergeSection(dst, src object, key string) error {
	from, ok := src.Get(key)
	if !ok {
		return nil
	}
	incoming, err := parseObject(from)
	if err != nil {
		return fmt.Errorf("template %s: %w", key, err)
	}

	merged := child(dst, key)
	for pair := incoming.Oldest(); pair != nil; pair = pair.Next() {
		merged.Set(pair.Key, pair.Value)
	}
	return set(dst, key, merged)
}
