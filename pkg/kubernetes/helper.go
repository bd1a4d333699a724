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
	"context"
	"fmt"
	"maps"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/retry"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// HasFinalizer tells if a object has all the given finalizers.
func HasFinalizer(o metav1.Object, names ...string) bool {
	return sets.New(o.GetFinalizers()...).HasAll(names...)
}

// RemoveFinalizer removes the given finalizers from the object.
func RemoveFinalizer(obj metav1.Object, toRemove ...string) {
	set := sets.New(obj.GetFinalizers()...)
	set.Delete(toRemove...)
	obj.SetFinalizers(sets.List(set))
}

func TryRemoveFinalizer(ctx context.Context, client ctrlruntimeclient.Client, obj ctrlruntimeclient.Object, finalizers ...string) error {
	key := ctrlruntimeclient.ObjectKeyFromObject(obj)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		// fetch the current state of the object
		if err := client.Get(ctx, key, obj); err != nil {
			// finalizer removal normally happens during object cleanup, so if
			// the object is gone already, that is absolutely fine
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}

		original := obj.DeepCopyObject().(ctrlruntimeclient.Object)

		// modify it
		previous := sets.New(obj.GetFinalizers()...)
		RemoveFinalizer(obj, finalizers...)
		current := sets.New(obj.GetFinalizers()...)

		// save some work
		if previous.Equal(current) {
			return nil
		}

		// update the object
		return client.Patch(ctx, obj, ctrlruntimeclient.MergeFromWithOptions(original, ctrlruntimeclient.MergeFromWithOptimisticLock{}))
	})

	if err != nil {
		kind := obj.GetObjectKind().GroupVersionKind().Kind
		return fmt.Errorf("failed to remove finalizers %v from %s %s: %w", finalizers, kind, key, err)
	}

	return nil
}

// AddFinalizer will add the given finalizer to the object. It uses a StringSet to avoid duplicates.
func AddFinalizer(obj metav1.Object, finalizers ...string) {
	set := sets.New(obj.GetFinalizers()...)
	set.Insert(finalizers...)
	obj.SetFinalizers(sets.List(set))
}

func TryAddFinalizer(ctx context.Context, client ctrlruntimeclient.Client, obj ctrlruntimeclient.Object, finalizers ...string) error {
	key := ctrlruntimeclient.ObjectKeyFromObject(obj)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		// fetch the current state of the object
		if err := client.Get(ctx, key, obj); err != nil {
			return err
		}

		// cannot add new finalizers to deleted objects
		if obj.GetDeletionTimestamp() != nil {
			return nil
		}

		original := obj.DeepCopyObject().(ctrlruntimeclient.Object)

		// modify it
		previous := sets.New(obj.GetFinalizers()...)
		AddFinalizer(obj, finalizers...)
		current := sets.New(obj.GetFinalizers()...)

		// save some work
		if previous.Equal(current) {
			return nil
		}

		// update the object
		return client.Patch(ctx, obj, ctrlruntimeclient.MergeFromWithOptions(original, ctrlruntimeclient.MergeFromWithOptimisticLock{}))
	})

	if err != nil {
		kind := obj.GetObjectKind().GroupVersionKind().Kind
		return fmt.Errorf("failed to add finalizers %v to %s %s: %w", finalizers, kind, key, err)
	}

	return nil
}

func HasOwnerReference(o metav1.Object, ref metav1.OwnerReference) bool {
	for _, r := range o.GetOwnerReferences() {
		if equalOwnerRefs(r, ref) {
			return true
		}
	}

	return false
}

// RemoveOwnerReferenceKinds removes any reference with the same
// APIVersion and Kind, notably ignoring the name.
func RemoveOwnerReferenceKinds(o metav1.Object, refKindsToRemove ...metav1.OwnerReference) {
	removeOwnerReference(o, equalOwnerRefKinds, refKindsToRemove...)
}

func equalOwnerRefKinds(a, b metav1.OwnerReference) bool {
	return a.APIVersion == b.APIVersion && a.Kind == b.Kind
}

func equalOwnerRefs(a, b metav1.OwnerReference) bool {
	return equalOwnerRefKinds(a, b) && a.Name == b.Name
}

func removeOwnerReference(o metav1.Object, comparator func(a, b metav1.OwnerReference) bool, refs ...metav1.OwnerReference) {
	newRefs := []metav1.OwnerReference{}

	for _, r := range o.GetOwnerReferences() {
		valid := true
		for _, toRemove := range refs {
			if comparator(r, toRemove) {
				valid = false
				break
			}
		}

		if valid {
			newRefs = append(newRefs, r)
		}
	}

	o.SetOwnerReferences(newRefs)
}

// EnsureUniqueOwnerReference will remove any owner ref with the same
// APIVersion and Kind, and then add the given ref to the owner references.
// This ensures that only one ref with a given kind exists.
func EnsureUniqueOwnerReference(o metav1.Object, ref metav1.OwnerReference) {
	RemoveOwnerReferenceKinds(o, ref)

	refs := o.GetOwnerReferences()
	refs = append(refs, ref)
	o.SetOwnerReferences(refs)
}

func EnsureLabels(o metav1.Object, toEnsure map[string]string) {
	labels := maps.Clone(o.GetLabels())

	if labels == nil {
		labels = make(map[string]string)
	}
	for key, value := range toEnsure {
		labels[key] = value
	}
	o.SetLabels(labels)
}
