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
	"errors"
	"net/http"

	gogithub "github.com/google/go-github/v55/github"
)

// transientError marks a failure that is expected to clear on its own:
// rate limits, 5xx answers, timeouts, connection resets.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// permanentError marks a failure that retrying cannot fix: bad credentials,
// missing permissions, an unknown repository, a rejected key.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Classify sorts an error coming from the GitHub API into the transient or
// the permanent bucket so callers can pick a retry strategy. Anything we
// cannot attribute to a definitive API answer (network errors, timeouts) is
// treated as transient.
func Classify(err error) error {
	var rateLimitErr *gogithub.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &transientError{err}
	}

	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &transientError{err}
	}

	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		if code >= 400 && code < 500 {
			return &permanentError{err}
		}

		return &transientError{err}
	}

	return &transientError{err}
}

// IsTransient reports whether err came from a failure that a later retry
// may succeed on.
func IsTransient(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}

// IsPermanent reports whether err came from a failure that requires a spec
// or credential change to clear.
func IsPermanent(err error) bool {
	var permanent *permanentError
	return errors.As(err, &permanent)
}

// IsNotFound reports whether err is GitHub's way of saying that the
// requested resource, usually the repository itself, does not exist.
func IsNotFound(err error) bool {
	var respErr *gogithub.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
}
