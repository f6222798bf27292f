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

// Package mbean describes the read-only management interface used to
// discover cache objects and read their statistics.
package mbean

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// ErrInstanceNotFound is returned when reading attributes of an object
// that is not registered.
var ErrInstanceNotFound = errors.New("instance not found")

// Server is a management backend able to list objects by pattern and
// bulk read their attributes.
type Server interface {
	// QueryNames returns the names of all objects matching pattern.
	QueryNames(ctx context.Context, pattern ObjectName) ([]ObjectName, error)

	// GetAttributes reads attrs from the named object. Attributes that
	// are missing or cannot be read are left out of the result.
	GetAttributes(ctx context.Context, name ObjectName, attrs []string) (map[string]interface{}, error)
}

// ToFloat64 converts numeric attribute values to float64. The second
// return value is false for anything that is not a number.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// WaitReady blocks until a query for probe succeeds, retrying with an
// exponential backoff for at most maxElapsed.
func WaitReady(ctx context.Context, s Server, probe ObjectName, maxElapsed time.Duration) error {
	log := zap.S()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	op := func() error {
		_, err := s.QueryNames(ctx, probe)
		return err
	}

	notify := func(err error, next time.Duration) {
		log.Warnw("management backend not ready", zap.Error(err), "retry_timer", next)
	}

	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
