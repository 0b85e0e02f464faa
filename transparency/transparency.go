// Package transparency exposes intermediate pipeline data to an optional sink.
package transparency

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

const MimeCBOR = "application/cbor"

// Keys under which the pipeline publishes its stages.
const (
	KeyNormalized   = "normalized"
	KeySegmentation = "segmentation"
	KeyOrientation  = "orientation"
	KeyFrequency    = "frequency"
	KeyFiltered     = "filtered"
	KeyBinarized    = "binarized"
	KeyThinned      = "thinned"
	KeyFeatures     = "features"
)

// Contents receives serialized stage outputs. Accepts is asked first so that
// unwanted stages are never encoded.
type Contents interface {
	Accepts(key string) bool
	Accept(key, mime string, data []byte) error
}

type Logger struct {
	contents Contents
}

// NewLogger wraps contents; a nil contents yields a logger that accepts nothing.
func NewLogger(contents Contents) *Logger {
	return &Logger{contents: contents}
}

func (l *Logger) Accepts(key string) bool {
	return l != nil && l.contents != nil && l.contents.Accepts(key)
}

// Log encodes the value produced by supplier as CBOR and hands it to the sink.
// supplier is only called when the key is accepted.
func (l *Logger) Log(key string, supplier func() any) error {
	if !l.Accepts(key) {
		return nil
	}
	data, err := cbor.Marshal(supplier())
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := l.contents.Accept(key, MimeCBOR, data); err != nil {
		return fmt.Errorf("failed to accept %s: %w", key, err)
	}
	return nil
}

// Recorder keeps accepted records in memory.
type Recorder struct {
	mu      sync.Mutex
	keys    map[string]bool
	records map[string][]byte
}

// NewRecorder accepts the listed keys, or every key when none are given.
func NewRecorder(keys ...string) *Recorder {
	r := &Recorder{records: make(map[string][]byte)}
	if len(keys) > 0 {
		r.keys = make(map[string]bool, len(keys))
		for _, k := range keys {
			r.keys[k] = true
		}
	}
	return r
}

func (r *Recorder) Accepts(key string) bool {
	return r.keys == nil || r.keys[key]
}

func (r *Recorder) Accept(key, mime string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = data
	return nil
}

func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.records))
	for k := range r.records {
		keys = append(keys, k)
	}
	return keys
}

// Decode unmarshals the record stored under key into v.
func (r *Recorder) Decode(key string, v any) error {
	r.mu.Lock()
	data, ok := r.records[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no record for %s", key)
	}
	return cbor.Unmarshal(data, v)
}
