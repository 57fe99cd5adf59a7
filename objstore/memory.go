package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store. It keeps whole objects in maps and lists in
// lexicographic key order, mirroring how the real stores behave. Safe for
// concurrent use.
type Memory struct {
	mu         sync.RWMutex
	containers map[string]map[string][]byte
	tags       map[string]map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		containers: make(map[string]map[string][]byte),
		tags:       make(map[string]map[string]string),
	}
}

// List implements Store.List with lexicographic ordering.
func (m *Memory) List(_ context.Context, container, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.containers[container]
	if !ok {
		return nil, nil
	}

	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := make([]Object, 0, len(keys))
	for _, key := range keys {
		result = append(result, Object{
			Key:          key,
			Size:         int64(len(objects[key])),
			LastModified: time.Now().UTC(),
		})
	}
	return result, nil
}

// Get implements Store.Get.
func (m *Memory) Get(_ context.Context, container, key string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.containers[container][key]
	if !ok {
		return nil, 0, fmt.Errorf("memory store: object %s/%s not found", container, key)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Put implements Store.Put.
func (m *Memory) Put(_ context.Context, container, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("memory store: read put body for %s/%s: %w", container, key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.containers[container] == nil {
		m.containers[container] = make(map[string][]byte)
	}
	m.containers[container][key] = data
	return nil
}

// SetTags implements Store.SetTags.
func (m *Memory) SetTags(_ context.Context, container, key string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[container][key]; !ok {
		return fmt.Errorf("memory store: object %s/%s not found", container, key)
	}
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	m.tags[container+"/"+key] = copied
	return nil
}

// Bytes returns a copy of an object's content, or nil when absent.
// Test helper.
func (m *Memory) Bytes(container, key string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.containers[container][key]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// Exists reports whether an object is present. Test helper.
func (m *Memory) Exists(container, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.containers[container][key]
	return ok
}

// Tags returns the tag set attached to an object, or nil. Test helper.
func (m *Memory) Tags(container, key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tags[container+"/"+key]
}
