// Package store is the real-time key/value store that task and account
// records live in. Values are JSON documents addressed by two-level paths
// ("tasks" or "tasks/<key>"); subscribers receive the full current value
// at their path initially and after every change.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid store path")
	ErrClosed      = errors.New("store is closed")
)

type Store interface {
	// Subscribe calls fn with the current value at path and again after
	// every change. Calls for one subscription never overlap.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error)
	Read(ctx context.Context, path string) (Snapshot, error)
	Write(ctx context.Context, path string, value interface{}) error
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Append reserves a new unique, time-ordered child key under a
	// collection and returns its full path. Nothing is stored until the
	// caller writes to it.
	Append(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	Health(ctx context.Context) error
	Close() error
}

type Subscription interface {
	// Stop tears the subscription down. Once it returns no further
	// callbacks run. It must not be called from inside the callback.
	Stop()
}

type Path struct {
	Collection string
	Key        string
}

func ParsePath(p string) (Path, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return Path{}, ErrInvalidPath
	}
	parts := strings.Split(p, "/")
	switch len(parts) {
	case 1:
		return Path{Collection: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Path{}, ErrInvalidPath
		}
		return Path{Collection: parts[0], Key: parts[1]}, nil
	default:
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
}

func (p Path) IsCollection() bool { return p.Key == "" }

func (p Path) String() string {
	if p.Key == "" {
		return p.Collection
	}
	return p.Collection + "/" + p.Key
}

func (p Path) Child(key string) Path {
	return Path{Collection: p.Collection, Key: key}
}

func parseRecordPath(p string) (Path, error) {
	path, err := ParsePath(p)
	if err != nil {
		return Path{}, err
	}
	if path.IsCollection() {
		return Path{}, fmt.Errorf("%w: %q is a collection", ErrInvalidPath, p)
	}
	return path, nil
}

func parseCollectionPath(p string) (Path, error) {
	path, err := ParsePath(p)
	if err != nil {
		return Path{}, err
	}
	if !path.IsCollection() {
		return Path{}, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, p)
	}
	return path, nil
}

type Child struct {
	Key   string
	Value json.RawMessage
}

// Snapshot is the value at a path at one point in time. A collection
// snapshot lists its children ordered by key; a record snapshot carries
// the record itself.
type Snapshot struct {
	Path     string
	Exists   bool
	Value    json.RawMessage
	Children []Child
}

func (s Snapshot) Decode(dest interface{}) error {
	if !s.Exists || len(s.Value) == 0 {
		return fmt.Errorf("no value at %s", s.Path)
	}
	return json.Unmarshal(s.Value, dest)
}

func marshalValue(value interface{}) ([]byte, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("value is not valid JSON")
		}
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

// mergeFields applies fields on top of the JSON object in current. A
// missing or non-object current value is replaced by the fields alone.
func mergeFields(current []byte, fields map[string]interface{}) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &doc); err != nil {
			doc = map[string]json.RawMessage{}
		}
	}
	for name, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", name, err)
		}
		doc[name] = data
	}
	return json.Marshal(doc)
}
