/*
Copyright The indexctl Contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package instanceadmin contains the client of the administrative HTTP
// surface exposed by engine instances and log servers on their own port
package instanceadmin

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/indexctl/indexctl/pkg/management/log"
	"github.com/indexctl/indexctl/pkg/management/url"
)

const (
	// PingTimeout is the timeout of the health check
	PingTimeout = 30 * time.Second

	// UpdateTimeout is the timeout of a partial update: the engine answers
	// only once the update has been applied
	UpdateTimeout = 10 * time.Minute

	// RollLogTimeout is the timeout of a log server roll request
	RollLogTimeout = 200 * time.Second

	connectionTimeout = 2 * time.Second
)

// Interface is the administrative surface of a service component
type Interface interface {
	Ping(ctx context.Context, host string, port int) error
	ApplyUpdate(ctx context.Context, host string, port int) error
	RollLog(ctx context.Context, host string, port int) error
}

// An StatusError reports an unsuccessful answer of an instance
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error status code: %v, body: %v", e.StatusCode, e.Body)
}

// Client is an http client capable of calling the instance endpoints
type Client struct {
	*http.Client

	pingTimeout    time.Duration
	updateTimeout  time.Duration
	rollLogTimeout time.Duration
}

// NewClient returns a client with the default timeouts
func NewClient() *Client {
	// We want a connection timeout to prevent waiting for the default
	// TCP connection timeout on lost SYN packets
	dialer := &net.Dialer{
		Timeout: connectionTimeout,
	}

	return &Client{
		Client: &http.Client{
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		pingTimeout:    PingTimeout,
		updateTimeout:  UpdateTimeout,
		rollLogTimeout: RollLogTimeout,
	}
}

// WithTimeouts overrides the per-request timeouts
func (c *Client) WithTimeouts(ping, update, rollLog time.Duration) *Client {
	c.pingTimeout = ping
	c.updateTimeout = update
	c.rollLogTimeout = rollLog
	return c
}

// Ping is the lightweight health check telling whether the instance is
// alive and accepting queries
func (c *Client) Ping(ctx context.Context, host string, port int) error {
	return c.get(ctx, url.Admin(host, port, url.AdminOpPing), c.pingTimeout)
}

// ApplyUpdate asks the engine to apply the partial updates found in its
// update directory
func (c *Client) ApplyUpdate(ctx context.Context, host string, port int) error {
	return c.get(ctx, url.Admin(host, port, url.AdminOpUpdate), c.updateTimeout)
}

// RollLog asks the log server to roll its log
func (c *Client) RollLog(ctx context.Context, host string, port int) error {
	return c.get(ctx, url.Build(host, url.PathRoll, port), c.rollLogTimeout)
}

func (c *Client) get(ctx context.Context, requestURL string, timeout time.Duration) error {
	contextLogger := log.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			contextLogger.Error(err, "while closing body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}

var _ Interface = &Client{}
