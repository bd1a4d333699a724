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
	"reflect"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"

	"k8s.io/client-go/util/retry"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

type DeployKeyPatchFunc func(key *githubv1alpha1.GithubDeployKey)

// UpdateDeployKeyStatus will attempt to patch the status of the given
// deploy key.
func UpdateDeployKeyStatus(ctx context.Context, client ctrlruntimeclient.Client, deployKey *githubv1alpha1.GithubDeployKey, patch DeployKeyPatchFunc) error {
	key := ctrlruntimeclient.ObjectKeyFromObject(deployKey)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		// fetch the current state of the deploy key
		if err := client.Get(ctx, key, deployKey); err != nil {
			return err
		}

		// modify it
		original := deployKey.DeepCopy()
		patch(deployKey)

		// save some work
		if reflect.DeepEqual(original.Status, deployKey.Status) {
			return nil
		}

		// update the status
		return client.Status().Patch(ctx, deployKey, ctrlruntimeclient.MergeFrom(original))
	})
}
