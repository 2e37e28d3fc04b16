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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/indexctl/indexctl/pkg/versions"
)

// DefaultWebhookTimeout is the timeout of a webhook request
const DefaultWebhookTimeout = 30 * time.Second

// WebhookError is raised when the webhook answers with a status code
// other than 2xx
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook answered with status code %d: %s", e.StatusCode, e.Body)
}

// WebhookNotifier posts every notification as a JSON document
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier posting to the passed URL
func NewWebhookNotifier(endpoint string) (*WebhookNotifier, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("while parsing webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported webhook URL scheme %q", parsed.Scheme)
	}

	return &WebhookNotifier{
		url:    endpoint,
		client: &http.Client{Timeout: DefaultWebhookTimeout},
	}, nil
}

// Notify implements Notifier
func (n *WebhookNotifier) Notify(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", versions.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("while posting notification: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &WebhookError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}
	return nil
}
