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

package util

import (
	"context"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"

	"k8s.io/apimachinery/pkg/types"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// EnqueueDeployKeyForOwnedSecret enqueues the deploy key that owns a
// Secret, if any. It is used to react to changes to the generated
// private key Secrets, e.g. when a user deletes one by accident.
func EnqueueDeployKeyForOwnedSecret() handler.EventHandler {
	return handler.EnqueueRequestsFromMapFunc(func(_ context.Context, a ctrlruntimeclient.Object) []reconcile.Request {
		for _, ref := range a.GetOwnerReferences() {
			if ref.APIVersion == githubv1alpha1.SchemeGroupVersion.String() && ref.Kind == githubv1alpha1.GithubDeployKeyKind {
				return []reconcile.Request{{NamespacedName: types.NamespacedName{
					Namespace: a.GetNamespace(),
					Name:      ref.Name,
				}}}
			}
		}

		return nil
	})
}
