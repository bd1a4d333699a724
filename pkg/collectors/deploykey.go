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
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"

	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	deployKeyPrefix = "github_deploykey_"
)

// DeployKeyCollector exports metrics for deploy key resources.
type DeployKeyCollector struct {
	client ctrlruntimeclient.Reader

	deployKeyCreated  *prometheus.Desc
	deployKeyInfo     *prometheus.Desc
	orphanedRemoteKey *prometheus.Desc
}

func newDeployKeyCollector(client ctrlruntimeclient.Reader) *DeployKeyCollector {
	return &DeployKeyCollector{
		client: client,
		deployKeyCreated: prometheus.NewDesc(
			deployKeyPrefix+"created",
			"Unix creation timestamp",
			[]string{"name", "namespace"},
			nil,
		),
		deployKeyInfo: prometheus.NewDesc(
			deployKeyPrefix+"info",
			"Additional deploy key information",
			[]string{
				"name",
				"namespace",
				"repository",
				"phase",
				"read_only",
			},
			nil,
		),
		orphanedRemoteKey: prometheus.NewDesc(
			deployKeyPrefix+"orphaned_keys",
			"Number of remote deploy keys that could not be cleaned up and require manual intervention",
			nil,
			nil,
		),
	}
}

// MustRegisterDeployKeyCollector registers the deploy key collector at the given prometheus registry.
func MustRegisterDeployKeyCollector(registry prometheus.Registerer, client ctrlruntimeclient.Reader) {
	registry.MustRegister(newDeployKeyCollector(client))
}

// Describe returns the metrics descriptors.
func (dc DeployKeyCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(dc, ch)
}

// Collect gets called by prometheus to collect the metrics.
func (dc DeployKeyCollector) Collect(ch chan<- prometheus.Metric) {
	deployKeys := &githubv1alpha1.GithubDeployKeyList{}
	if err := dc.client.List(context.Background(), deployKeys); err != nil {
		utilruntime.HandleError(fmt.Errorf("failed to list deploy keys in DeployKeyCollector: %w", err))
		return
	}

	orphaned := 0
	for _, deployKey := range deployKeys.Items {
		dc.collectDeployKey(ch, &deployKey)

		if deployKey.Status.OrphanedKeyID != 0 {
			orphaned++
		}
	}

	ch <- prometheus.MustNewConstMetric(
		dc.orphanedRemoteKey,
		prometheus.GaugeValue,
		float64(orphaned),
	)
}

func (dc *DeployKeyCollector) collectDeployKey(ch chan<- prometheus.Metric, key *githubv1alpha1.GithubDeployKey) {
	ch <- prometheus.MustNewConstMetric(
		dc.deployKeyCreated,
		prometheus.GaugeValue,
		float64(key.CreationTimestamp.Unix()),
		key.Name,
		key.Namespace,
	)

	ch <- prometheus.MustNewConstMetric(
		dc.deployKeyInfo,
		prometheus.GaugeValue,
		1,
		key.Name,
		key.Namespace,
		key.Spec.Repository,
		string(key.Status.Phase),
		strconv.FormatBool(key.IsReadOnly()),
	)
}
