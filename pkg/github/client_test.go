/*
Copyright 2025 The Github Deploy Key Operator contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
)

type request struct {
	name     string
	request  *http.Request
	response *http.Response
}

func buildTestServer(t *testing.T, requests ...request) (http.Handler, func() bool) {
	counter := 0
	assertExpectation := func() bool {
		return assert.Equal(t, len(requests), counter)
	}
	r := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			counter++
		}()
		if counter >= len(requests) {
			assert.Failf(t, "unexpected request", "%v", r)
			return
		}
		req := requests[counter]
		assert.Equal(t, req.request.URL.Path, r.URL.Path)
		assert.Equal(t, req.request.Method, r.Method)
		if req.request.ContentLength > 0 {
			defer r.Body.Close()
			defer req.request.Body.Close()
			body := map[string]interface{}{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("%s: unmarshal request failed: %v", req.name, err)
			}
			expected := map[string]interface{}{}
			if err := json.NewDecoder(req.request.Body).Decode(&expected); err != nil {
				t.Fatalf("%s: unmarshal expected body failed: %v", req.name, err)
			}
			assert.Equal(t, expected, body)
		}
		for name, values := range req.response.Header {
			for _, value := range values {
				w.Header().Add(name, value)
			}
		}
		w.WriteHeader(req.response.StatusCode)
		if req.response.Body != nil {
			defer req.response.Body.Close()
			_, err := io.Copy(w, req.response.Body)
			assert.Nil(t, err)
		}
	})
	return r, assertExpectation
}

func newTestClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	ts := httptest.NewServer(handler)

	client, err := NewClient(context.Background(), "token", ts.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client, ts
}

func jsonBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func rateLimitHeaders() http.Header {
	return http.Header{
		"X-Ratelimit-Limit":     []string{"60"},
		"X-Ratelimit-Remaining": []string{"0"},
		"X-Ratelimit-Reset":     []string{fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix())},
	}
}

func TestCreateKey(t *testing.T) {
	testCases := []struct {
		name      string
		repo      string
		title     string
		publicKey string
		readOnly  bool
		requests  []request
		expected  *Key
		transient bool
		permanent bool
	}{
		{
			name:      "register read-only key",
			repo:      "acme/widgets",
			title:     "k8s-operator:ci",
			publicKey: "ssh-rsa AAAAB3Nza comment\n",
			readOnly:  true,
			requests: []request{
				{
					name:     "create",
					request:  httptest.NewRequest(http.MethodPost, "/api/v3/repos/acme/widgets/keys", strings.NewReader(`{"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza comment","read_only":true}`)),
					response: &http.Response{StatusCode: http.StatusCreated, Body: jsonBody(`{"id":17,"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza comment","read_only":true,"verified":true}`)},
				},
			},
			expected: &Key{ID: 17, Title: "k8s-operator:ci", Key: "ssh-rsa AAAAB3Nza comment", ReadOnly: true},
		},
		{
			name:      "register read-write key",
			repo:      "acme/widgets",
			title:     "k8s-operator:pusher",
			publicKey: "ssh-rsa AAAAB3Nza",
			readOnly:  false,
			requests: []request{
				{
					name:     "create",
					request:  httptest.NewRequest(http.MethodPost, "/api/v3/repos/acme/widgets/keys", strings.NewReader(`{"title":"k8s-operator:pusher","key":"ssh-rsa AAAAB3Nza","read_only":false}`)),
					response: &http.Response{StatusCode: http.StatusCreated, Body: jsonBody(`{"id":18,"title":"k8s-operator:pusher","key":"ssh-rsa AAAAB3Nza","read_only":false}`)},
				},
			},
			expected: &Key{ID: 18, Title: "k8s-operator:pusher", Key: "ssh-rsa AAAAB3Nza", ReadOnly: false},
		},
		{
			name:      "key rejected as duplicate",
			repo:      "acme/widgets",
			title:     "k8s-operator:ci",
			publicKey: "ssh-rsa AAAAB3Nza",
			readOnly:  true,
			requests: []request{
				{
					name:     "create",
					request:  httptest.NewRequest(http.MethodPost, "/api/v3/repos/acme/widgets/keys", strings.NewReader(`{"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza","read_only":true}`)),
					response: &http.Response{StatusCode: http.StatusUnprocessableEntity, Body: jsonBody(`{"message":"Validation Failed","errors":[{"resource":"PublicKey","field":"key","code":"custom","message":"key is already in use"}]}`)},
				},
			},
			permanent: true,
		},
		{
			name:      "rate limited",
			repo:      "acme/widgets",
			title:     "k8s-operator:ci",
			publicKey: "ssh-rsa AAAAB3Nza",
			readOnly:  true,
			requests: []request{
				{
					name:     "create",
					request:  httptest.NewRequest(http.MethodPost, "/api/v3/repos/acme/widgets/keys", strings.NewReader(`{"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza","read_only":true}`)),
					response: &http.Response{StatusCode: http.StatusForbidden, Header: rateLimitHeaders(), Body: jsonBody(`{"message":"API rate limit exceeded"}`)},
				},
			},
			transient: true,
		},
		{
			name:      "server error",
			repo:      "acme/widgets",
			title:     "k8s-operator:ci",
			publicKey: "ssh-rsa AAAAB3Nza",
			readOnly:  true,
			requests: []request{
				{
					name:     "create",
					request:  httptest.NewRequest(http.MethodPost, "/api/v3/repos/acme/widgets/keys", strings.NewReader(`{"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza","read_only":true}`)),
					response: &http.Response{StatusCode: http.StatusBadGateway, Body: jsonBody(`{"message":"Server Error"}`)},
				},
			},
			transient: true,
		},
		{
			name:      "invalid repository",
			repo:      "widgets",
			title:     "k8s-operator:ci",
			publicKey: "ssh-rsa AAAAB3Nza",
			readOnly:  true,
			permanent: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler, assertExpectation := buildTestServer(t, tc.requests...)
			client, ts := newTestClient(t, handler)
			defer ts.Close()

			key, err := client.CreateKey(context.Background(), tc.repo, tc.title, tc.publicKey, tc.readOnly)
			if tc.transient || tc.permanent {
				assert.Error(t, err)
				assert.Equal(t, tc.transient, IsTransient(err))
				assert.Equal(t, tc.permanent, IsPermanent(err))
			} else {
				assert.Nil(t, err)
				if diff := deep.Equal(tc.expected, key); diff != nil {
					t.Errorf("unexpected key: %v", diff)
				}
			}
			assertExpectation()
		})
	}
}

func TestGetKey(t *testing.T) {
	testCases := []struct {
		name      string
		id        int64
		requests  []request
		expected  *Key
		transient bool
	}{
		{
			name: "key exists",
			id:   17,
			requests: []request{
				{
					name:     "get",
					request:  httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusOK, Body: jsonBody(`{"id":17,"title":"k8s-operator:ci","key":"ssh-rsa AAAAB3Nza","read_only":true}`)},
				},
			},
			expected: &Key{ID: 17, Title: "k8s-operator:ci", Key: "ssh-rsa AAAAB3Nza", ReadOnly: true},
		},
		{
			name: "key gone",
			id:   17,
			requests: []request{
				{
					name:     "get",
					request:  httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusNotFound, Body: jsonBody(`{"message":"Not Found"}`)},
				},
			},
			expected: nil,
		},
		{
			name: "server error",
			id:   17,
			requests: []request{
				{
					name:     "get",
					request:  httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusInternalServerError, Body: jsonBody(`{"message":"Server Error"}`)},
				},
			},
			transient: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler, assertExpectation := buildTestServer(t, tc.requests...)
			client, ts := newTestClient(t, handler)
			defer ts.Close()

			key, err := client.GetKey(context.Background(), "acme/widgets", tc.id)
			if tc.transient {
				assert.Error(t, err)
				assert.True(t, IsTransient(err))
			} else {
				assert.Nil(t, err)
				if diff := deep.Equal(tc.expected, key); diff != nil {
					t.Errorf("unexpected key: %v", diff)
				}
			}
			assertExpectation()
		})
	}
}

func TestListKeys(t *testing.T) {
	handler, assertExpectation := buildTestServer(t,
		request{
			name:    "first page",
			request: httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/widgets/keys", nil),
			response: &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Link": []string{`</api/v3/repos/acme/widgets/keys?page=2&per_page=100>; rel="next"`}},
				Body:       jsonBody(`[{"id":1,"title":"laptop","key":"ssh-rsa AAAA1","read_only":false}]`),
			},
		},
		request{
			name:     "second page",
			request:  httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/widgets/keys", nil),
			response: &http.Response{StatusCode: http.StatusOK, Body: jsonBody(`[{"id":2,"title":"k8s-operator:ci","key":"ssh-rsa AAAA2","read_only":true}]`)},
		},
	)
	client, ts := newTestClient(t, handler)
	defer ts.Close()

	keys, err := client.ListKeys(context.Background(), "acme/widgets")
	assert.Nil(t, err)

	expected := []Key{
		{ID: 1, Title: "laptop", Key: "ssh-rsa AAAA1", ReadOnly: false},
		{ID: 2, Title: "k8s-operator:ci", Key: "ssh-rsa AAAA2", ReadOnly: true},
	}
	if diff := deep.Equal(expected, keys); diff != nil {
		t.Errorf("unexpected keys: %v", diff)
	}
	assertExpectation()
}

func TestListKeysRepositoryMissing(t *testing.T) {
	handler, assertExpectation := buildTestServer(t,
		request{
			name:     "list",
			request:  httptest.NewRequest(http.MethodGet, "/api/v3/repos/acme/gone/keys", nil),
			response: &http.Response{StatusCode: http.StatusNotFound, Body: jsonBody(`{"message":"Not Found"}`)},
		},
	)
	client, ts := newTestClient(t, handler)
	defer ts.Close()

	keys, err := client.ListKeys(context.Background(), "acme/gone")
	assert.Nil(t, keys)
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))
	assertExpectation()
}

func TestDeleteKey(t *testing.T) {
	testCases := []struct {
		name      string
		requests  []request
		transient bool
		permanent bool
	}{
		{
			name: "delete succeeds",
			requests: []request{
				{
					name:     "delete",
					request:  httptest.NewRequest(http.MethodDelete, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusNoContent},
				},
			},
		},
		{
			name: "key already gone",
			requests: []request{
				{
					name:     "delete",
					request:  httptest.NewRequest(http.MethodDelete, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusNotFound, Body: jsonBody(`{"message":"Not Found"}`)},
				},
			},
		},
		{
			name: "permission denied",
			requests: []request{
				{
					name:     "delete",
					request:  httptest.NewRequest(http.MethodDelete, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusForbidden, Body: jsonBody(`{"message":"Must have admin rights to Repository."}`)},
				},
			},
			permanent: true,
		},
		{
			name: "server error",
			requests: []request{
				{
					name:     "delete",
					request:  httptest.NewRequest(http.MethodDelete, "/api/v3/repos/acme/widgets/keys/17", nil),
					response: &http.Response{StatusCode: http.StatusServiceUnavailable, Body: jsonBody(`{"message":"Server Error"}`)},
				},
			},
			transient: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler, assertExpectation := buildTestServer(t, tc.requests...)
			client, ts := newTestClient(t, handler)
			defer ts.Close()

			err := client.DeleteKey(context.Background(), "acme/widgets", 17)
			if tc.transient || tc.permanent {
				assert.Error(t, err)
				assert.Equal(t, tc.transient, IsTransient(err))
				assert.Equal(t, tc.permanent, IsPermanent(err))
			} else {
				assert.Nil(t, err)
			}
			assertExpectation()
		})
	}
}

func TestSplitRepository(t *testing.T) {
	testCases := []struct {
		repo  string
		owner string
		name  string
		err   bool
	}{
		{repo: "acme/widgets", owner: "acme", name: "widgets"},
		{repo: "acme/widgets.git", owner: "acme", name: "widgets.git"},
		{repo: "widgets", err: true},
		{repo: "acme/", err: true},
		{repo: "/widgets", err: true},
		{repo: "acme/widgets/docs", err: true},
		{repo: "", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.repo, func(t *testing.T) {
			owner, name, err := splitRepository(tc.repo)
			if tc.err {
				assert.Error(t, err)
				assert.True(t, IsPermanent(err))
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.name, name)
		})
	}
}
