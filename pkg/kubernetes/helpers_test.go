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

package kubernetes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/odit-services/github-deploy-key-operator/pkg/test/diff"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestHasFinalizer(t *testing.T) {
	testcases := []struct {
		finalizers []string
		query      []string
		expected   bool
	}{
		{
			finalizers: []string{},
			query:      []string{},
			expected:   true,
		},
		{
			finalizers: []string{},
			query:      []string{"a"},
			expected:   false,
		},
		{
			finalizers: []string{"a"},
			query:      []string{"a"},
			expected:   true,
		},
		{
			finalizers: []string{"a"},
			query:      []string{"b"},
			expected:   false,
		},
		{
			finalizers: []string{"a", "b"},
			query:      []string{"a"},
			expected:   true,
		},
		{
			finalizers: []string{"a"},
			query:      []string{"a", "b"},
			expected:   false,
		},
		{
			finalizers: []string{"a", "b"},
			query:      []string{"b", "a"},
			expected:   true,
		},
	}

	for i, testcase := range testcases {
		t.Run(fmt.Sprintf("testcase %d", i), func(t *testing.T) {
			pod := corev1.Pod{}
			pod.SetFinalizers(testcase.finalizers)

			result := HasFinalizer(&pod, testcase.query...)
			if result != testcase.expected {
				t.Fatalf("Expected hasFinalizer(%v, %v) to be %v, but got the opposite", testcase.finalizers, testcase.query, testcase.expected)
			}
		})
	}
}

func TestAddRemoveFinalizer(t *testing.T) {
	pod := corev1.Pod{}
	pod.SetFinalizers([]string{"a", "b"})

	AddFinalizer(&pod, "c", "a")
	if d := diff.ObjectDiff([]string{"a", "b", "c"}, pod.Finalizers); d != "" {
		t.Fatalf("Finalizers differ:\n%v", d)
	}

	RemoveFinalizer(&pod, "b", "nonexistent")
	if d := diff.ObjectDiff([]string{"a", "c"}, pod.Finalizers); d != "" {
		t.Fatalf("Finalizers differ:\n%v", d)
	}
}

func makeRef(s string) metav1.OwnerReference {
	parts := strings.SplitN(s, "/", 3)
	name := ""
	if len(parts) >= 3 {
		name = parts[2]
	}

	return metav1.OwnerReference{
		APIVersion: parts[0],
		Kind:       parts[1],
		Name:       name,
	}
}

func makeRefs(s ...string) []metav1.OwnerReference {
	result := []metav1.OwnerReference{}

	for _, i := range s {
		result = append(result, makeRef(i))
	}

	return result
}

func TestRemoveOwnerReferenceKinds(t *testing.T) {
	startRefs := makeRefs("core/pod/a", "core/pod/2", "core/configmap/a", "core/configmap/x")

	testcases := []struct {
		name         string
		toRemove     []metav1.OwnerReference
		expectedRefs []metav1.OwnerReference
	}{
		{
			name:         "nop",
			toRemove:     makeRefs(),
			expectedRefs: startRefs,
		},
		{
			name:         "name should be ignored",
			toRemove:     makeRefs("core/pod/ignoreme"),
			expectedRefs: makeRefs("core/configmap/a", "core/configmap/x"),
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			fakeObj := &corev1.Pod{}
			fakeObj.SetOwnerReferences(startRefs)

			RemoveOwnerReferenceKinds(fakeObj, testcase.toRemove...)

			if d := diff.ObjectDiff(testcase.expectedRefs, fakeObj.OwnerReferences); d != "" {
				t.Fatalf("Objects differ:\n%v", d)
			}
		})
	}
}

func TestEnsureUniqueOwnerReference(t *testing.T) {
	testcases := []struct {
		name         string
		startRefs    []metav1.OwnerReference
		ref          metav1.OwnerReference
		expectedRefs []metav1.OwnerReference
	}{
		{
			name:         "add to empty list",
			startRefs:    makeRefs(),
			ref:          makeRef("core/pod/a"),
			expectedRefs: makeRefs("core/pod/a"),
		},
		{
			name:         "replace ref with same kind",
			startRefs:    makeRefs("core/pod/a", "core/configmap/a"),
			ref:          makeRef("core/pod/b"),
			expectedRefs: makeRefs("core/configmap/a", "core/pod/b"),
		},
		{
			name:         "re-adding the same ref moves it to the end",
			startRefs:    makeRefs("core/pod/a", "core/configmap/a"),
			ref:          makeRef("core/pod/a"),
			expectedRefs: makeRefs("core/configmap/a", "core/pod/a"),
		},
	}

	for _, testcase := range testcases {
		t.Run(testcase.name, func(t *testing.T) {
			fakeObj := &corev1.Pod{}
			fakeObj.SetOwnerReferences(testcase.startRefs)

			EnsureUniqueOwnerReference(fakeObj, testcase.ref)

			if !HasOwnerReference(fakeObj, testcase.ref) {
				t.Fatal("Expected object to have the new owner reference, but does not")
			}

			if d := diff.ObjectDiff(testcase.expectedRefs, fakeObj.OwnerReferences); d != "" {
				t.Fatalf("Objects differ:\n%v", d)
			}
		})
	}
}

func TestEnsureLabels(t *testing.T) {
	pod := corev1.Pod{}
	pod.SetLabels(map[string]string{"a": "1", "b": "2"})

	EnsureLabels(&pod, map[string]string{"b": "overridden", "c": "3"})

	expected := map[string]string{"a": "1", "b": "overridden", "c": "3"}
	if d := diff.ObjectDiff(expected, pod.Labels); d != "" {
		t.Fatalf("Labels differ:\n%v", d)
	}
}
