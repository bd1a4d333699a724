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

package diff

import (
	"time"

	"github.com/google/go-cmp/cmp"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ObjectDiff returns a diff between the two given objects, mostly used
// for Kubernetes resources in tests. An empty string means both objects
// are semantically identical.
func ObjectDiff(a, b interface{}) string {
	return cmp.Diff(a, b, timeComparer())
}

// metav1.Time loses sub-second precision when roundtripping through
// the API, so comparisons must not be more precise than 1 second.
func timeComparer() cmp.Option {
	return cmp.Comparer(func(a, b metav1.Time) bool {
		return a.Time.Truncate(time.Second).Equal(b.Time.Truncate(time.Second))
	})
}
