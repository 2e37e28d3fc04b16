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

package controlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/indexctl/indexctl/pkg/management/log"
	mgmturl "github.com/indexctl/indexctl/pkg/management/url"
	"github.com/indexctl/indexctl/pkg/versions"
)

const (
	// requestAttempts is the number of times a transient failure is tried
	requestAttempts = 3

	// requestTimeout is the timeout of every request to the controller
	requestTimeout = 60 * time.Second

	connectionTimeout = 5 * time.Second
)

// ErrApplicationNotFound is returned when the application is not provisioned
var ErrApplicationNotFound = errors.New("application not found")

// Interface is the set of control service operations used by indexctl.
// Every Start* call returns the token of an asynchronous utility operation
// whose progress is read with GetUtilityStatus
type Interface interface {
	ListApplicationIDs(ctx context.Context) ([]string, error)
	GetApplication(ctx context.Context, appID string) (*ApplicationDefinition, error)

	GetComponentStatus(ctx context.Context, appID, componentID string) (Status, error)
	StartComponent(ctx context.Context, appID, componentID string) error
	StopComponent(ctx context.Context, appID, componentID string) error

	StartCopyFiles(ctx context.Context, appID string, req CopyRequest) (string, error)
	StartBackupFiles(ctx context.Context, appID string, req BackupRequest) (string, error)
	StartRollbackFiles(ctx context.Context, appID string, req RollbackRequest) (string, error)
	StartShell(ctx context.Context, appID string, req ShellRequest) (string, error)
	GetUtilityStatus(ctx context.Context, appID, token string) (Status, error)

	SetFlag(ctx context.Context, appID, flag string) (bool, error)
	RemoveFlag(ctx context.Context, appID, flag string) error
	RemoveAllFlags(ctx context.Context, appID string) error
	ListFlags(ctx context.Context, appID string) ([]string, error)
}

// An StatusError reports an unsuccessful answer of the controller
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error status code: %v, body: %v", e.StatusCode, e.Body)
}

// Client talks with the application controller over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewClient creates a client for the controller listening on host:port
func NewClient(host string, port int) *Client {
	dialer := &net.Dialer{
		Timeout: connectionTimeout,
	}

	return &Client{
		baseURL: mgmturl.Controller(host, port),
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
			Timeout: requestTimeout,
		},
	}
}

// NewClientWithHTTPClient creates a client for the controller at baseURL
// using the passed http client
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// IsTransient is true for the transport errors which are worth retrying
// immediately: request timeouts
func IsTransient(err error) bool {
	var netError net.Error
	return errors.As(err, &netError) && netError.Timeout()
}

// ListApplicationIDs lists the applications provisioned on the controller
func (c *Client) ListApplicationIDs(ctx context.Context) ([]string, error) {
	var result []string
	err := c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodGet, "applications", nil, &result)
	})
	return result, err
}

// GetApplication gets the definition of an application
func (c *Client) GetApplication(ctx context.Context, appID string) (*ApplicationDefinition, error) {
	var result ApplicationDefinition
	err := c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodGet, appPath(appID), nil, &result)
	})

	var statusError *StatusError
	if errors.As(err, &statusError) && statusError.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, appID)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetComponentStatus polls the status of a component
func (c *Client) GetComponentStatus(ctx context.Context, appID, componentID string) (Status, error) {
	var result Status
	err := c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodGet, componentPath(appID, componentID, "status"), nil, &result)
	})
	return result, err
}

// StartComponent asks the controller to start a component
func (c *Client) StartComponent(ctx context.Context, appID, componentID string) error {
	return c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodPost, componentPath(appID, componentID, "start"), nil, nil)
	})
}

// StopComponent asks the controller to stop a component
func (c *Client) StopComponent(ctx context.Context, appID, componentID string) error {
	return c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodPost, componentPath(appID, componentID, "stop"), nil, nil)
	})
}

// StartCopyFiles starts a file copy between two hosts
func (c *Client) StartCopyFiles(ctx context.Context, appID string, req CopyRequest) (string, error) {
	return c.startUtility(ctx, appID, "copy", req)
}

// StartBackupFiles starts the backup of a directory
func (c *Client) StartBackupFiles(ctx context.Context, appID string, req BackupRequest) (string, error) {
	return c.startUtility(ctx, appID, "backup", req)
}

// StartRollbackFiles starts the restore of the most recent backup of a directory
func (c *Client) StartRollbackFiles(ctx context.Context, appID string, req RollbackRequest) (string, error) {
	return c.startUtility(ctx, appID, "rollback", req)
}

// StartShell starts a shell command on a host
func (c *Client) StartShell(ctx context.Context, appID string, req ShellRequest) (string, error) {
	return c.startUtility(ctx, appID, "shell", req)
}

// GetUtilityStatus polls the status of a utility operation
func (c *Client) GetUtilityStatus(ctx context.Context, appID, token string) (Status, error) {
	var result Status
	err := c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodGet, utilityPath(appID, url.PathEscape(token), "status"), nil, &result)
	})
	return result, err
}

// SetFlag creates a flag. It returns false, without any error, when
// the flag was already set
func (c *Client) SetFlag(ctx context.Context, appID, flag string) (bool, error) {
	err := c.do(ctx, http.MethodPut, flagPath(appID, flag), nil, nil)

	var statusError *StatusError
	if errors.As(err, &statusError) && statusError.StatusCode == http.StatusConflict {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFlag removes a flag
func (c *Client) RemoveFlag(ctx context.Context, appID, flag string) error {
	return c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodDelete, flagPath(appID, flag), nil, nil)
	})
}

// RemoveAllFlags removes every flag of the application
func (c *Client) RemoveAllFlags(ctx context.Context, appID string) error {
	return c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodDelete, appPath(appID, "flags"), nil, nil)
	})
}

// ListFlags lists the flags of the application
func (c *Client) ListFlags(ctx context.Context, appID string) ([]string, error) {
	var result []string
	err := c.retrying(ctx, func() error {
		return c.do(ctx, http.MethodGet, appPath(appID, "flags"), nil, &result)
	})
	return result, err
}

// startUtility is never retried: a request that timed out may still have
// started the operation on the controller
func (c *Client) startUtility(ctx context.Context, appID, kind string, req interface{}) (string, error) {
	var result tokenResponse
	if err := c.do(ctx, http.MethodPost, utilityPath(appID, kind), req, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("controller returned an empty token for %s operation", kind)
	}
	return result.Token, nil
}

func (c *Client) retrying(ctx context.Context, f func() error) error {
	return retry.Do(
		f,
		retry.Context(ctx),
		retry.Attempts(requestAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			log.FromContext(ctx).Debug("Transient error talking with the controller, retrying",
				"attempt", n+1, "error", err)
		}),
	)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	contextLogger := log.FromContext(ctx)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", versions.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	contextLogger.Trace("Controller request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			contextLogger.Error(err, "while closing body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func appPath(appID string, elems ...string) string {
	result := "applications/" + url.PathEscape(appID)
	for _, elem := range elems {
		result += "/" + elem
	}
	return result
}

func componentPath(appID, componentID, action string) string {
	return appPath(appID, "components", url.PathEscape(componentID), action)
}

func utilityPath(appID string, elems ...string) string {
	return appPath(appID, append([]string{"utilities"}, elems...)...)
}

func flagPath(appID, flag string) string {
	return appPath(appID, "flags", url.PathEscape(flag))
}
