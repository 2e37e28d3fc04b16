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

package instanceadmin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instance admin client", func() {
	var (
		router *chi.Mux
		server *httptest.Server
		host   string
		port   int
		client *Client
	)

	BeforeEach(func() {
		router = chi.NewRouter()
		server = httptest.NewServer(router)

		serverURL, err := url.Parse(server.URL)
		Expect(err).ToNot(HaveOccurred())
		var rawPort string
		host, rawPort, err = net.SplitHostPort(serverURL.Host)
		Expect(err).ToNot(HaveOccurred())
		port, err = strconv.Atoi(rawPort)
		Expect(err).ToNot(HaveOccurred())

		client = NewClient().WithTimeouts(time.Second, 200*time.Millisecond, time.Second)
	})

	AfterEach(func() {
		server.Close()
	})

	It("pings the admin endpoint", func() {
		router.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("op") != "ping" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("pong"))
		})

		Expect(client.Ping(context.Background(), host, port)).To(Succeed())
	})

	It("reports a rejected update as a status error", func() {
		router.Get("/admin", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("update failed"))
		})

		err := client.ApplyUpdate(context.Background(), host, port)
		var statusError *StatusError
		Expect(errors.As(err, &statusError)).To(BeTrue())
		Expect(statusError.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("stops waiting for an update after its timeout", func() {
		router.Get("/admin", func(_ http.ResponseWriter, _ *http.Request) {
			time.Sleep(time.Second)
		})

		err := client.ApplyUpdate(context.Background(), host, port)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("rolls the log server log", func() {
		rolled := false
		router.Get("/roll", func(_ http.ResponseWriter, _ *http.Request) {
			rolled = true
		})

		Expect(client.RollLog(context.Background(), host, port)).To(Succeed())
		Expect(rolled).To(BeTrue())
	})

	It("fails when nothing listens on the instance port", func() {
		server.Close()
		Expect(client.Ping(context.Background(), host, port)).ToNot(Succeed())
	})
})
