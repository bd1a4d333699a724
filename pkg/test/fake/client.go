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

package fake

import (
	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	ctrlruntimefake "sigs.k8s.io/controller-runtime/pkg/client/fake"
)

// NewScheme returns a fully configured Scheme that contains both the
// standard Kubernetes types and this operator's own API types.
func NewScheme() *runtime.Scheme {
	sc := runtime.NewScheme()

	utilruntime.Must(scheme.AddToScheme(sc))
	utilruntime.Must(githubv1alpha1.AddToScheme(sc))

	return sc
}

// NewClientBuilder returns a fake client builder that has the scheme
// already configured and knows about the status subresource of our
// API types.
func NewClientBuilder() *ctrlruntimefake.ClientBuilder {
	return ctrlruntimefake.
		NewClientBuilder().
		WithScheme(NewScheme()).
		WithStatusSubresource(&githubv1alpha1.GithubDeployKey{})
}
