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

package main

import (
	"fmt"

	"github.com/odit-services/github-deploy-key-operator/pkg/controller/deploykey"
)

func createAllControllers(ctrlCtx *controllerContext) error {
	if err := deploykey.Add(ctrlCtx.mgr, ctrlCtx.workerCount, ctrlCtx.log, ctrlCtx.githubClient, ctrlCtx.resyncPeriod); err != nil {
		return fmt.Errorf("failed to create deploykey controller: %w", err)
	}

	return nil
}
