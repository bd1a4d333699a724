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
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"
	"github.com/odit-services/github-deploy-key-operator/pkg/collectors"
	githubclient "github.com/odit-services/github-deploy-key-operator/pkg/github"
	operatorlog "github.com/odit-services/github-deploy-key-operator/pkg/log"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrlruntimelog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
	ctrlruntimemetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

const (
	controllerName = "github-deploy-key-operator"

	// githubTokenEnvVar overrides the token Secret for local development.
	githubTokenEnvVar = "GITHUB_TOKEN"

	// githubTokenSecretKey is the data key holding the token inside the
	// token Secret.
	githubTokenSecretKey = "GITHUB_TOKEN"
)

type controllerRunOptions struct {
	workerCount          int
	namespace            string
	githubTokenSecret    string
	githubEndpoint       string
	resyncPeriod         time.Duration
	requestTimeout       time.Duration
	enableLeaderElection bool
	metricsListenAddress string
	healthListenAddress  string
}

type controllerContext struct {
	ctx          context.Context
	mgr          manager.Manager
	log          *zap.SugaredLogger
	workerCount  int
	githubClient githubclient.Client
	resyncPeriod time.Duration
}

func main() {
	klog.InitFlags(nil)
	logOpts := operatorlog.NewDefaultOptions()
	logOpts.AddFlags(flag.CommandLine)

	runOpts := controllerRunOptions{}
	flag.IntVar(&runOpts.workerCount, "worker-count", 4, "Number of workers which process deploy keys in parallel.")
	flag.StringVar(&runOpts.namespace, "namespace", "github-deploy-key-operator", "The namespace the operator runs in, used to find the GitHub token Secret.")
	flag.StringVar(&runOpts.githubTokenSecret, "github-token-secret", "github-token", "Name of the Secret in -namespace holding the GitHub token under the GITHUB_TOKEN key.")
	flag.StringVar(&runOpts.githubEndpoint, "github-endpoint", "", "Base URL of a GitHub Enterprise instance; empty for the public GitHub API.")
	flag.DurationVar(&runOpts.resyncPeriod, "resync-period", time.Minute, "Interval at which every deploy key is re-examined for external drift.")
	flag.DurationVar(&runOpts.requestTimeout, "request-timeout", 30*time.Second, "Timeout for a single GitHub API request.")
	flag.BoolVar(&runOpts.enableLeaderElection, "enable-leader-election", true, "Enable leader election for the operator. "+
		"Enabling this will ensure there is only one active operator.")
	flag.StringVar(&runOpts.metricsListenAddress, "metrics-listen-address", "127.0.0.1:8085", "The address on which the /metrics endpoint will be served.")
	flag.StringVar(&runOpts.healthListenAddress, "health-listen-address", "127.0.0.1:8086", "The address on which the health endpoints will be served.")
	flag.Parse()

	if err := logOpts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	rawLog := operatorlog.New(logOpts.Debug, logOpts.Format)
	log := rawLog.Sugar()
	operatorlog.Logger = log

	// Set the logger used by sigs.k8s.io/controller-runtime
	ctrlruntimelog.SetLogger(zapr.NewLogger(rawLog.WithOptions(zap.AddCallerSkip(1))))

	ctx := signals.SetupSignalHandler()

	cfg := ctrlruntime.GetConfigOrDie()

	// the token is read once at startup; rotating it means restarting the
	// operator
	token, err := loadGithubToken(ctx, cfg, runOpts)
	if err != nil {
		log.Fatalw("Failed to load the GitHub token", zap.Error(err))
	}

	gh, err := githubclient.NewClient(ctx, token, runOpts.githubEndpoint, runOpts.requestTimeout)
	if err != nil {
		log.Fatalw("Failed to create the GitHub client", zap.Error(err))
	}

	mgr, err := manager.New(cfg, manager.Options{
		BaseContext: func() context.Context {
			return ctx
		},
		LeaderElection:          runOpts.enableLeaderElection,
		LeaderElectionNamespace: runOpts.namespace,
		LeaderElectionID:        controllerName + "-leader-election",
		Metrics:                 metricsserver.Options{BindAddress: runOpts.metricsListenAddress},
		HealthProbeBindAddress:  runOpts.healthListenAddress,
	})
	if err != nil {
		log.Fatalw("Failed to create Controller Manager instance", zap.Error(err))
	}

	if err := githubv1alpha1.AddToScheme(mgr.GetScheme()); err != nil {
		log.Fatalw("Failed to register scheme", zap.Stringer("api", githubv1alpha1.SchemeGroupVersion), zap.Error(err))
	}

	if err := mgr.AddHealthzCheck("ping", healthz.Ping); err != nil {
		log.Fatalw("Failed to add healthz check", zap.Error(err))
	}
	if err := mgr.AddReadyzCheck("ping", healthz.Ping); err != nil {
		log.Fatalw("Failed to add readyz check", zap.Error(err))
	}

	log.Debug("Starting deploy keys collector")
	collectors.MustRegisterDeployKeyCollector(ctrlruntimemetrics.Registry, mgr.GetAPIReader())

	ctrlCtx := &controllerContext{
		ctx:          ctx,
		mgr:          mgr,
		log:          log,
		workerCount:  runOpts.workerCount,
		githubClient: gh,
		resyncPeriod: runOpts.resyncPeriod,
	}

	if err := createAllControllers(ctrlCtx); err != nil {
		log.Fatalw("Could not create all controllers", zap.Error(err))
	}

	log.Info("Starting the github-deploy-key-operator...")
	if err := mgr.Start(ctx); err != nil {
		log.Fatalw("Problem running manager", zap.Error(err))
	}
}

// loadGithubToken returns the GITHUB_TOKEN environment variable if set,
// otherwise the token from the configured Secret. The manager's cached
// client is not running yet at this point, so a plain client is used.
func loadGithubToken(ctx context.Context, cfg *rest.Config, opts controllerRunOptions) (string, error) {
	if token := os.Getenv(githubTokenEnvVar); token != "" {
		return token, nil
	}

	client, err := ctrlruntimeclient.New(cfg, ctrlruntimeclient.Options{})
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}

	secret := &corev1.Secret{}
	key := types.NamespacedName{Namespace: opts.namespace, Name: opts.githubTokenSecret}
	if err := client.Get(ctx, key, secret); err != nil {
		return "", fmt.Errorf("failed to get Secret %q: %w", key, err)
	}

	token := strings.TrimSpace(string(secret.Data[githubTokenSecretKey]))
	if token == "" {
		return "", fmt.Errorf("secret %q has no %s key", key, githubTokenSecretKey)
	}

	return token, nil
}
