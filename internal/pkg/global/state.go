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

package global

import (
	"sync/atomic"
	"time"
)

// ExporterRuntimeState state as observed by the last collection.
var ExporterRuntimeState *ExporterState

const (
	// BackendStateUnknown no collection has run yet.
	BackendStateUnknown int32 = iota

	// BackendStateUp the last collection completed every query.
	BackendStateUp

	// BackendStateDown the last collection was aborted by an error.
	BackendStateDown
)

func init() {
	ExporterRuntimeState = new(ExporterState)
	ExporterRuntimeState.Reset()
}

// ExporterState maintains available state.
type ExporterState struct {
	backendState  int32
	lastSuccessMs int64
}

// BackendState returns the current management backend state.
func (s *ExporterState) BackendState() int32 {
	return atomic.LoadInt32(&s.backendState)
}

// SetBackendState sets the management backend state. Moving to
// BackendStateUp also records the time of the successful collection.
func (s *ExporterState) SetBackendState(st int32) {
	atomic.StoreInt32(&s.backendState, st)
	if st == BackendStateUp {
		atomic.StoreInt64(&s.lastSuccessMs, time.Now().UnixMilli())
	}
}

// LastSuccess returns when a collection last completed, or the zero
// time if none has.
func (s *ExporterState) LastSuccess() time.Time {
	ms := atomic.LoadInt64(&s.lastSuccessMs)
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// Reset sets default values for all maintained state values.
func (s *ExporterState) Reset() {
	atomic.StoreInt32(&s.backendState, BackendStateUnknown)
	atomic.StoreInt64(&s.lastSuccessMs, 0)
}
