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

package collectors

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"
	"github.com/odit-services/github-deploy-key-operator/pkg/test/fake"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

func TestDeployKeyInfoMetric(t *testing.T) {
	fakeClient := fake.
		NewClientBuilder().
		WithObjects(
			&githubv1alpha1.GithubDeployKey{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "backend",
					Namespace: "team-a",
				},
				Spec: githubv1alpha1.GithubDeployKeySpec{
					Repository: "acme/backend",
				},
				Status: githubv1alpha1.GithubDeployKeyStatus{
					Phase: githubv1alpha1.DeployKeyPhaseReady,
				},
			},
			&githubv1alpha1.GithubDeployKey{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "frontend",
					Namespace: "team-a",
				},
				Spec: githubv1alpha1.GithubDeployKeySpec{
					Repository: "acme/frontend",
					ReadOnly:   ptr.To(false),
				},
				Status: githubv1alpha1.GithubDeployKeyStatus{
					Phase:         githubv1alpha1.DeployKeyPhaseDegraded,
					OrphanedKeyID: 12345,
				},
			},
		).
		Build()

	registry := prometheus.NewRegistry()
	if err := registry.Register(newDeployKeyCollector(fakeClient)); err != nil {
		t.Fatal(err)
	}

	expectedInfo := `
# HELP github_deploykey_info Additional deploy key information
# TYPE github_deploykey_info gauge
github_deploykey_info{name="backend",namespace="team-a",phase="Ready",read_only="true",repository="acme/backend"} 1
github_deploykey_info{name="frontend",namespace="team-a",phase="Degraded",read_only="false",repository="acme/frontend"} 1
`

	if err := testutil.CollectAndCompare(registry, strings.NewReader(expectedInfo), "github_deploykey_info"); err != nil {
		t.Fatal(err)
	}

	expectedOrphaned := `
# HELP github_deploykey_orphaned_keys Number of remote deploy keys that could not be cleaned up and require manual intervention
# TYPE github_deploykey_orphaned_keys gauge
github_deploykey_orphaned_keys 1
`

	if err := testutil.CollectAndCompare(registry, strings.NewReader(expectedOrphaned), "github_deploykey_orphaned_keys"); err != nil {
		t.Fatal(err)
	}
}
