// Copyright 2022 Metrika Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mbean

import (
	"context"
	"fmt"
	"os"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

type memoryObject struct {
	name  ObjectName
	attrs map[string]interface{}
}

// MemoryServer is a Server holding objects in memory. Queries return
// objects in registration order.
type MemoryServer struct {
	mu sync.RWMutex

	objects       []memoryObject
	queryFailures map[string]error
	readFailures  map[string]error
}

// NewMemoryServer returns an empty MemoryServer.
func NewMemoryServer() *MemoryServer {
	return &MemoryServer{
		queryFailures: map[string]error{},
		readFailures:  map[string]error{},
	}
}

// Register adds an object with the given attributes, replacing any
// object already registered under the same name.
func (m *MemoryServer) Register(name string, attrs map[string]interface{}) error {
	on, err := ParseObjectName(name)
	if err != nil {
		return err
	}
	if on.IsPattern() {
		return fmt.Errorf("%w: %q: cannot register a pattern", ErrMalformedName, name)
	}

	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.objects {
		if m.objects[i].name.String() == on.String() {
			m.objects[i].attrs = copied
			return nil
		}
	}
	m.objects = append(m.objects, memoryObject{name: on, attrs: copied})

	return nil
}

// FailQuery makes every query for pattern return err.
func (m *MemoryServer) FailQuery(pattern string, err error) error {
	on, err2 := ParseObjectName(pattern)
	if err2 != nil {
		return err2
	}

	m.mu.Lock()
	m.queryFailures[on.String()] = err
	m.mu.Unlock()

	return nil
}

// FailRead makes every attribute read of name return err.
func (m *MemoryServer) FailRead(name string, err error) error {
	on, err2 := ParseObjectName(name)
	if err2 != nil {
		return err2
	}

	m.mu.Lock()
	m.readFailures[on.String()] = err
	m.mu.Unlock()

	return nil
}

// QueryNames implements Server.
func (m *MemoryServer) QueryNames(ctx context.Context, pattern ObjectName) ([]ObjectName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.queryFailures[pattern.String()]; ok {
		return nil, err
	}

	names := []ObjectName{}
	for _, obj := range m.objects {
		if pattern.Match(obj.name) {
			names = append(names, obj.name)
		}
	}

	return names, nil
}

// GetAttributes implements Server.
func (m *MemoryServer) GetAttributes(ctx context.Context, name ObjectName, attrs []string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := name.String()
	if err, ok := m.readFailures[key]; ok {
		return nil, err
	}

	for _, obj := range m.objects {
		if obj.name.String() != key {
			continue
		}

		res := make(map[string]interface{}, len(attrs))
		for _, a := range attrs {
			if v, ok := obj.attrs[a]; ok {
				res[a] = v
			}
		}

		return res, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, key)
}

// MemoryFixture is the YAML layout accepted by LoadMemoryServer.
type MemoryFixture struct {
	Objects []struct {
		Name       string                 `yaml:"name"`
		Attributes map[string]interface{} `yaml:"attributes"`
	} `yaml:"objects"`
}

// LoadMemoryServer builds a MemoryServer from a YAML fixture file.
func LoadMemoryServer(path string) (*MemoryServer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fixture MemoryFixture
	if err := yaml.Unmarshal(content, &fixture); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}

	m := NewMemoryServer()
	for _, obj := range fixture.Objects {
		if err := m.Register(obj.Name, obj.Attributes); err != nil {
			return nil, err
		}
	}

	return m, nil
}
