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

// Package jolokia implements mbean.Server on top of a Jolokia agent,
// which exposes JMX over HTTP/JSON.
package jolokia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ispnexporter/pkg/mbean"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrStatus is returned when the agent reports a non-200 status.
var ErrStatus = errors.New("jolokia request failed")

// DefaultTimeout is used when Config.Timeout is not set.
const DefaultTimeout = 10 * time.Second

// Config Jolokia client configuration.
type Config struct {
	URL      string            `mapstructure:"url"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Client talks to a single Jolokia agent endpoint.
type Client struct {
	Config

	client *http.Client
	log    *zap.SugaredLogger
}

// NewClient Client constructor.
func NewClient(conf Config) (*Client, error) {
	if conf.URL == "" {
		return nil, errors.New("jolokia url is empty")
	}
	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}

	return &Client{
		Config: conf,
		client: &http.Client{Timeout: conf.Timeout},
		log:    zap.S().With("url", conf.URL),
	}, nil
}

type request struct {
	Type      string                 `json:"type"`
	MBean     string                 `json:"mbean"`
	Attribute []string               `json:"attribute,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

type response struct {
	Status    int             `json:"status"`
	Value     json.RawMessage `json:"value"`
	Error     string          `json:"error"`
	ErrorType string          `json:"error_type"`
}

func (c *Client) do(ctx context.Context, r request) (json.RawMessage, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "invalid jolokia request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "jolokia %s %s", r.Type, r.MBean)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading jolokia response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrStatus, resp.StatusCode)
	}

	var jr response
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&jr); err != nil {
		return nil, errors.Wrap(err, "decoding jolokia response")
	}

	if jr.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s %s", ErrStatus, jr.Status, jr.ErrorType, jr.Error)
	}

	return jr.Value, nil
}

// QueryNames implements mbean.Server using a Jolokia search request.
func (c *Client) QueryNames(ctx context.Context, pattern mbean.ObjectName) ([]mbean.ObjectName, error) {
	value, err := c.do(ctx, request{Type: "search", MBean: pattern.String()})
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding search result")
	}

	names := make([]mbean.ObjectName, 0, len(raw))
	for _, s := range raw {
		on, err := mbean.ParseObjectName(s)
		if err != nil {
			return nil, err
		}
		names = append(names, on)
	}
	c.log.Debugw("jolokia search", "pattern", pattern.String(), "found", len(names))

	return names, nil
}

// GetAttributes implements mbean.Server using a bulk Jolokia read.
// Attributes the agent fails to read are returned as error strings and
// null values are dropped.
func (c *Client) GetAttributes(ctx context.Context, name mbean.ObjectName, attrs []string) (map[string]interface{}, error) {
	value, err := c.do(ctx, request{
		Type:      "read",
		MBean:     name.String(),
		Attribute: attrs,
		Config:    map[string]interface{}{"ignoreErrors": true},
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "decoding attributes of %s", name)
	}

	res := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		res[k] = v
	}

	return res, nil
}
