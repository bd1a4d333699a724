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

package deploykey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	githubv1alpha1 "github.com/odit-services/github-deploy-key-operator/pkg/apis/github/v1alpha1"
	controllerutil "github.com/odit-services/github-deploy-key-operator/pkg/controller/util"
	githubclient "github.com/odit-services/github-deploy-key-operator/pkg/github"
	kuberneteshelper "github.com/odit-services/github-deploy-key-operator/pkg/kubernetes"
	"github.com/odit-services/github-deploy-key-operator/pkg/sshkey"
	"k8c.io/reconciler/pkg/reconciling"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

const (
	ControllerName = "deploy-key-controller"

	// CleanupFinalizer blocks object deletion until the remote key and the
	// private key Secret are gone.
	CleanupFinalizer = "github.com/cleanup-deploy-key"

	// managedByValue is put into the well-known managed-by label of every
	// Secret this controller writes.
	managedByValue = "github-deploy-key-operator"

	// githubKnownHosts is the pinned host key of github.com, stored next to
	// the private key so Git clients can verify the host without a
	// trust-on-first-use prompt.
	githubKnownHosts = "github.com ecdsa-sha2-nistp256 AAAAE2VjZHNhLXNoYTItbmlzdHAyNTYAAAAIbmlzdHAyNTYAAABBBEmKSENjQEezOmxkZMy7opKgwFB9nkt5YRrYMjNuG5N87uRgg6CLrbo5wAdT/y6v0mKV0U2w0WZ2YB/++Tpockg=\n"
)

// Reconciler watches GithubDeployKey objects and keeps three things in
// sync for each of them: a generated SSH key pair, the public half
// registered as deploy key on a GitHub repository and the private half
// stored in a cluster Secret.
type Reconciler struct {
	ctrlruntimeclient.Client

	log          *zap.SugaredLogger
	recorder     record.EventRecorder
	github       githubclient.Client
	resyncPeriod time.Duration
}

func Add(mgr manager.Manager, numWorkers int, log *zap.SugaredLogger, githubClient githubclient.Client, resyncPeriod time.Duration) error {
	r := &Reconciler{
		Client:       mgr.GetClient(),
		log:          log.Named(ControllerName),
		recorder:     mgr.GetEventRecorderFor(ControllerName),
		github:       githubClient,
		resyncPeriod: resyncPeriod,
	}

	_, err := builder.ControllerManagedBy(mgr).
		Named(ControllerName).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: numWorkers,
		}).
		For(&githubv1alpha1.GithubDeployKey{}).
		Watches(&corev1.Secret{}, controllerutil.EnqueueDeployKeyForOwnedSecret()).
		Build(r)

	return err
}

func (r *Reconciler) Reconcile(ctx context.Context, request reconcile.Request) (reconcile.Result, error) {
	log := r.log.With("githubdeploykey", request.NamespacedName)
	log.Debug("Reconciling")

	deployKey := &githubv1alpha1.GithubDeployKey{}
	if err := r.Get(ctx, request.NamespacedName, deployKey); err != nil {
		if apierrors.IsNotFound(err) {
			return reconcile.Result{}, nil
		}

		return reconcile.Result{}, err
	}

	result, err := r.reconcile(ctx, log, deployKey)
	if err != nil {
		log.Errorw("Reconciling failed", zap.Error(err))
		r.recorder.Event(deployKey, corev1.EventTypeWarning, "ReconcilingError", err.Error())

		if recordErr := r.recordFailure(ctx, deployKey, err); recordErr != nil {
			log.Errorw("Failed to record failure in status", zap.Error(recordErr))
		}

		// permanent failures need a user to fix their cause, so they are
		// only retried on the periodic resync instead of a hot loop
		if githubclient.IsPermanent(err) {
			return reconcile.Result{RequeueAfter: r.resyncPeriod}, nil
		}
	}

	if result == nil {
		result = &reconcile.Result{}
	}

	return *result, err
}

func (r *Reconciler) reconcile(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) (*reconcile.Result, error) {
	if deployKey.DeletionTimestamp != nil {
		return nil, r.handleDeletion(ctx, log, deployKey)
	}

	if err := kuberneteshelper.TryAddFinalizer(ctx, r, deployKey, CleanupFinalizer); err != nil {
		return nil, fmt.Errorf("failed to add finalizer: %w", err)
	}

	if deployKey.Status.Phase == "" {
		err := controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
			k.Status.Phase = githubv1alpha1.DeployKeyPhasePending
		})
		if err != nil {
			return nil, err
		}
	}

	// retry a failed compensating delete before anything else, so the
	// orphan marker does not linger while the object otherwise converges
	if deployKey.Status.OrphanedKeyID != 0 {
		if err := r.cleanupOrphanedKey(ctx, log, deployKey); err != nil {
			return nil, err
		}
	}

	secret, err := r.getSecret(ctx, deployKey)
	if err != nil {
		return nil, err
	}

	if err := r.ensureDeployKey(ctx, log, deployKey, secret); err != nil {
		return nil, err
	}

	// drift on the GitHub side does not produce watch events, so every
	// deploy key is revisited periodically
	return &reconcile.Result{RequeueAfter: r.resyncPeriod}, nil
}

// ensureDeployKey compares the desired spec with the registered remote key
// and the private key Secret and picks the smallest action that moves the
// world towards the spec. The Secret is authoritative for the key material:
// the remote side is always repaired to match it, never the other way
// around.
func (r *Reconciler) ensureDeployKey(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, secret *corev1.Secret) error {
	publicKey := ""
	if secret != nil {
		publicKey = string(secret.Data[githubv1alpha1.PublicKeySecretKey])
		if publicKey == "" || len(secret.Data[githubv1alpha1.PrivateKeySecretKey]) == 0 {
			// a Secret missing either half of the pair is as good as no
			// Secret at all
			secret = nil
			publicKey = ""
		}
	}

	// after spec.repository changed, the registered key still lives on the
	// repository recorded in the status
	oldRepo := deployKey.Status.Repository
	repoChanged := oldRepo != "" && oldRepo != deployKey.Spec.Repository

	var remote *githubclient.Key
	if deployKey.Status.KeyID != 0 {
		lookupRepo := deployKey.Spec.Repository
		if repoChanged {
			lookupRepo = oldRepo
		}

		var err error
		remote, err = r.github.GetKey(ctx, lookupRepo, deployKey.Status.KeyID)
		if err != nil {
			if !githubclient.IsNotFound(err) {
				return fmt.Errorf("failed to fetch remote key %d: %w", deployKey.Status.KeyID, err)
			}

			remote = nil
		}
	}

	switch {
	case deployKey.Status.KeyID == 0 && secret == nil:
		return r.createKeyPair(ctx, log, deployKey)

	case deployKey.Status.KeyID == 0:
		// a previous run crashed after writing the Secret but before
		// recording the key id
		return r.repairRemoteKey(ctx, log, deployKey, secret)

	case secret == nil:
		return r.replaceLostKeyPair(ctx, log, deployKey)

	case remote == nil:
		// the remote key was deleted out-of-band; the pair in the Secret
		// is still good, so only the remote side needs fixing
		log.Infow("Remote deploy key is gone, registering it again", "keyID", deployKey.Status.KeyID)
		return r.repairRemoteKey(ctx, log, deployKey, secret)

	case repoChanged:
		return r.rotateKeyPair(ctx, log, deployKey, publicKey, oldRepo, remote.ID)

	case !sameKeyMaterial(remote.Key, publicKey):
		log.Infow("Remote deploy key does not match the stored pair", "keyID", remote.ID)
		return r.repairRemoteKey(ctx, log, deployKey, secret)

	case remote.ReadOnly != deployKey.IsReadOnly():
		// GitHub cannot change this flag on a live key
		return r.rotateKeyPair(ctx, log, deployKey, publicKey, deployKey.Spec.Repository, remote.ID)

	case remote.Title != deployKey.ManagedTitle():
		return r.retitleRemoteKey(ctx, log, deployKey, remote, publicKey)

	default:
		return r.ensureSteadyState(ctx, log, deployKey, secret, remote)
	}
}

// createKeyPair handles a deploy key that has neither a registered remote
// key nor a Secret: generate a pair, register the public half, store the
// private half, record the outcome. Keys with the managed title that exist
// remotely at this point are leftovers of a crashed attempt whose private
// half is lost, so they are removed first.
func (r *Reconciler) createKeyPair(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) error {
	if err := r.deleteManagedKeys(ctx, log, deployKey.Spec.Repository, deployKey.ManagedTitle(), 0); err != nil {
		return err
	}

	pair, err := sshkey.New()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	remote, err := r.registerKey(ctx, log, deployKey, strings.TrimSpace(string(pair.AuthorizedKey)))
	if err != nil {
		return err
	}

	if err := r.ensureSecret(ctx, deployKey, pair.PrivateKeyPEM, pair.AuthorizedKey); err != nil {
		return r.compensateRegistration(ctx, log, deployKey, remote.ID, err)
	}

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseReady
		k.Status.KeyID = remote.ID
		k.Status.Repository = k.Spec.Repository
		k.Status.Fingerprint = pair.Fingerprint
		k.Status.PublicKey = strings.TrimSpace(string(pair.AuthorizedKey))
		k.Status.SecretName = k.PrivateKeySecretName()
		k.Status.ObservedGeneration = k.Generation
		k.Status.LastFailure = nil
	})
}

// repairRemoteKey makes the remote side match the pair stored in the
// Secret. If a crashed earlier run registered the key already, that key is
// adopted instead of registered a second time; all other keys with the
// managed title are unusable leftovers and get removed.
func (r *Reconciler) repairRemoteKey(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, secret *corev1.Secret) error {
	publicKey := strings.TrimSpace(string(secret.Data[githubv1alpha1.PublicKeySecretKey]))

	managed, err := r.managedKeys(ctx, deployKey.Spec.Repository, deployKey.ManagedTitle())
	if err != nil {
		return err
	}

	var remote *githubclient.Key
	for i, key := range managed {
		if remote == nil && sameKeyMaterial(key.Key, publicKey) && key.ReadOnly == deployKey.IsReadOnly() {
			remote = &managed[i]
			continue
		}

		log.Infow("Deleting stale remote deploy key", "keyID", key.ID)

		if err := r.github.DeleteKey(ctx, deployKey.Spec.Repository, key.ID); err != nil {
			return fmt.Errorf("failed to delete stale remote key %d: %w", key.ID, err)
		}
	}

	if remote == nil {
		remote, err = r.registerKey(ctx, log, deployKey, publicKey)
		if err != nil {
			return err
		}
	} else {
		log.Infow("Adopted existing remote deploy key", "keyID", remote.ID)
	}

	// brings known_hosts, labels and the owner reference along as well
	err = r.ensureSecret(ctx, deployKey, secret.Data[githubv1alpha1.PrivateKeySecretKey], secret.Data[githubv1alpha1.PublicKeySecretKey])
	if err != nil {
		return fmt.Errorf("failed to reconcile the private key Secret: %w", err)
	}

	fingerprint, err := sshkey.Fingerprint(publicKey)
	if err != nil {
		return fmt.Errorf("failed to fingerprint the stored public key: %w", err)
	}

	keyID := remote.ID

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseReady
		k.Status.KeyID = keyID
		k.Status.Repository = k.Spec.Repository
		k.Status.Fingerprint = fingerprint
		k.Status.PublicKey = publicKey
		k.Status.SecretName = k.PrivateKeySecretName()
		k.Status.ObservedGeneration = k.Generation
		k.Status.LastFailure = nil
	})
}

// replaceLostKeyPair recovers from a deleted Secret. Without the private
// half the registered key is unusable, so it is removed and a fresh pair is
// set up from scratch.
func (r *Reconciler) replaceLostKeyPair(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) error {
	repo := deployKey.Status.Repository
	if repo == "" {
		repo = deployKey.Spec.Repository
	}

	log.Infow("Private key Secret is gone, replacing the remote key", "keyID", deployKey.Status.KeyID, "repository", repo)

	if err := r.github.DeleteKey(ctx, repo, deployKey.Status.KeyID); err != nil && !githubclient.IsNotFound(err) {
		return fmt.Errorf("failed to delete remote key %d: %w", deployKey.Status.KeyID, err)
	}

	err := controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhasePending
		k.Status.KeyID = 0
		k.Status.Fingerprint = ""
		k.Status.PublicKey = ""
	})
	if err != nil {
		return err
	}

	return r.createKeyPair(ctx, log, deployKey)
}

// rotateKeyPair replaces the key pair with a fresh one: register the new
// public half, overwrite the Secret and only then delete the key being
// replaced, so there is no moment without a working pair. oldRepo and
// oldID identify the replaced key, which still lives on the previous
// repository when spec.repository changed.
func (r *Reconciler) rotateKeyPair(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, storedPublicKey, oldRepo string, oldID int64) error {
	log.Infow("Rotating deploy key", "keyID", oldID, "repository", deployKey.Spec.Repository)

	err := controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseRotating
	})
	if err != nil {
		return err
	}

	managed, err := r.managedKeys(ctx, deployKey.Spec.Repository, deployKey.ManagedTitle())
	if err != nil {
		return err
	}

	sameRepo := oldRepo == deployKey.Spec.Repository

	// A crashed earlier rotation may have gotten as far as overwriting the
	// Secret. Its key is recognized by carrying the stored material and is
	// picked up where the crash left off; everything else with the managed
	// title (except the key being replaced) is a leftover.
	var next *githubclient.Key
	for i, key := range managed {
		if sameRepo && key.ID == oldID {
			continue
		}

		if next == nil && sameKeyMaterial(key.Key, storedPublicKey) && key.ReadOnly == deployKey.IsReadOnly() {
			next = &managed[i]
			continue
		}

		log.Infow("Deleting stale remote deploy key", "keyID", key.ID)

		if err := r.github.DeleteKey(ctx, deployKey.Spec.Repository, key.ID); err != nil {
			return fmt.Errorf("failed to delete stale remote key %d: %w", key.ID, err)
		}
	}

	fingerprint := ""
	publicKey := storedPublicKey

	if next == nil {
		pair, err := sshkey.New()
		if err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}

		next, err = r.registerKey(ctx, log, deployKey, strings.TrimSpace(string(pair.AuthorizedKey)))
		if err != nil {
			return err
		}

		if err := r.ensureSecret(ctx, deployKey, pair.PrivateKeyPEM, pair.AuthorizedKey); err != nil {
			return r.compensateRegistration(ctx, log, deployKey, next.ID, err)
		}

		fingerprint = pair.Fingerprint
		publicKey = string(pair.AuthorizedKey)
	} else {
		log.Infow("Continuing interrupted rotation", "keyID", next.ID)

		if fingerprint, err = sshkey.Fingerprint(storedPublicKey); err != nil {
			return fmt.Errorf("failed to fingerprint the stored public key: %w", err)
		}
	}

	// the new pair is live from here on; the old key is removed last so a
	// crash can never leave the object without a working pair
	if err := r.github.DeleteKey(ctx, oldRepo, oldID); err != nil && !githubclient.IsNotFound(err) {
		return fmt.Errorf("failed to delete replaced remote key %d: %w", oldID, err)
	}

	newID := next.ID

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseReady
		k.Status.KeyID = newID
		k.Status.Repository = k.Spec.Repository
		k.Status.Fingerprint = fingerprint
		k.Status.PublicKey = strings.TrimSpace(publicKey)
		k.Status.SecretName = k.PrivateKeySecretName()
		k.Status.ObservedGeneration = k.Generation
		k.Status.LastFailure = nil
	})
}

// retitleRemoteKey renames the remote key while keeping the pair. GitHub
// has no update call for deploy keys and rejects a second key with the
// same material, so the key is deleted and registered again under the new
// title.
func (r *Reconciler) retitleRemoteKey(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, remote *githubclient.Key, publicKey string) error {
	log.Infow("Renaming remote deploy key", "keyID", remote.ID, "title", deployKey.ManagedTitle())

	if err := r.github.DeleteKey(ctx, deployKey.Spec.Repository, remote.ID); err != nil {
		return fmt.Errorf("failed to delete remote key %d: %w", remote.ID, err)
	}

	// should registering fail now, the next run finds the remote key
	// missing and repairs it from the Secret, under the new title
	next, err := r.registerKey(ctx, log, deployKey, publicKey)
	if err != nil {
		return err
	}

	newID := next.ID

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseReady
		k.Status.KeyID = newID
		k.Status.ObservedGeneration = k.Generation
		k.Status.LastFailure = nil
	})
}

// ensureSteadyState runs when spec, remote key and Secret all agree. It
// sweeps leftovers of completed rotations, keeps the Secret's shape
// converged and refreshes the status bookkeeping.
func (r *Reconciler) ensureSteadyState(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, secret *corev1.Secret, remote *githubclient.Key) error {
	if err := r.deleteManagedKeys(ctx, log, deployKey.Spec.Repository, deployKey.ManagedTitle(), remote.ID); err != nil {
		return err
	}

	// restores known_hosts, labels and the owner reference if a user
	// edited the Secret
	err := r.ensureSecret(ctx, deployKey, secret.Data[githubv1alpha1.PrivateKeySecretKey], secret.Data[githubv1alpha1.PublicKeySecretKey])
	if err != nil {
		return fmt.Errorf("failed to reconcile the private key Secret: %w", err)
	}

	fingerprint := deployKey.Status.Fingerprint
	if fingerprint == "" {
		if fingerprint, err = sshkey.Fingerprint(remote.Key); err != nil {
			return fmt.Errorf("failed to fingerprint the public key: %w", err)
		}
	}

	keyID := remote.ID
	publicKey := strings.TrimSpace(string(secret.Data[githubv1alpha1.PublicKeySecretKey]))

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseReady
		k.Status.KeyID = keyID
		k.Status.Repository = k.Spec.Repository
		k.Status.Fingerprint = fingerprint
		k.Status.PublicKey = publicKey
		k.Status.SecretName = k.PrivateKeySecretName()
		k.Status.ObservedGeneration = k.Generation
		k.Status.LastFailure = nil
	})
}

// handleDeletion removes the remote key and the private key Secret, then
// releases the finalizer.
func (r *Reconciler) handleDeletion(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) error {
	if !kuberneteshelper.HasFinalizer(deployKey, CleanupFinalizer) {
		return nil
	}

	log.Info("Cleaning up deploy key")

	err := controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.Phase = githubv1alpha1.DeployKeyPhaseDeleting
	})
	if err != nil {
		return err
	}

	if err := r.cleanupRemoteKeys(ctx, log, deployKey); err != nil {
		return err
	}

	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{
		Name:      deployKey.PrivateKeySecretName(),
		Namespace: deployKey.Namespace,
	}}
	if err := r.Delete(ctx, secret); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete Secret: %w", err)
	}

	return kuberneteshelper.TryRemoveFinalizer(ctx, r, deployKey, CleanupFinalizer)
}

// cleanupRemoteKeys deletes every remote key belonging to the deploy key:
// the one recorded in the status, a possibly orphaned one and, because the
// id can be missing when deletion strikes mid-creation, everything
// matching the managed title. A repository that is gone counts as cleaned
// up.
func (r *Reconciler) cleanupRemoteKeys(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) error {
	repo := deployKey.Status.Repository
	if repo == "" {
		repo = deployKey.Spec.Repository
	}

	if id := deployKey.Status.KeyID; id != 0 {
		log.Infow("Deleting remote deploy key", "keyID", id, "repository", repo)

		if err := r.github.DeleteKey(ctx, repo, id); err != nil && !githubclient.IsNotFound(err) {
			return fmt.Errorf("failed to delete remote key %d: %w", id, err)
		}
	}

	if id := deployKey.Status.OrphanedKeyID; id != 0 {
		orphanRepo := deployKey.Status.OrphanedKeyRepository
		if orphanRepo == "" {
			orphanRepo = deployKey.Spec.Repository
		}

		log.Infow("Deleting orphaned remote deploy key", "keyID", id, "repository", orphanRepo)

		if err := r.github.DeleteKey(ctx, orphanRepo, id); err != nil && !githubclient.IsNotFound(err) {
			return fmt.Errorf("failed to delete orphaned remote key %d: %w", id, err)
		}
	}

	managed, err := r.managedKeys(ctx, deployKey.Spec.Repository, deployKey.ManagedTitle())
	if err != nil {
		if githubclient.IsNotFound(err) {
			return nil
		}

		return err
	}

	for _, key := range managed {
		log.Infow("Deleting remote deploy key", "keyID", key.ID, "repository", deployKey.Spec.Repository)

		if err := r.github.DeleteKey(ctx, deployKey.Spec.Repository, key.ID); err != nil {
			return fmt.Errorf("failed to delete remote key %d: %w", key.ID, err)
		}
	}

	return nil
}

// cleanupOrphanedKey retries the compensating delete that failed in an
// earlier run and clears the marker once the key is confirmed gone. The
// orphan is deleted on the repository recorded in the status, which can
// differ from spec.repository when the spec was edited in the meantime.
func (r *Reconciler) cleanupOrphanedKey(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey) error {
	id := deployKey.Status.OrphanedKeyID

	repo := deployKey.Status.OrphanedKeyRepository
	if repo == "" {
		repo = deployKey.Spec.Repository
	}

	log.Infow("Deleting orphaned remote deploy key", "keyID", id, "repository", repo)

	if err := r.github.DeleteKey(ctx, repo, id); err != nil && !githubclient.IsNotFound(err) {
		return fmt.Errorf("failed to delete orphaned remote key %d: %w", id, err)
	}

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.OrphanedKeyID = 0
		k.Status.OrphanedKeyRepository = ""
	})
}

// registerKey creates the remote deploy key and verifies that the id it
// was assigned resolves, so no unresolvable id is ever persisted.
func (r *Reconciler) registerKey(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, publicKey string) (*githubclient.Key, error) {
	remote, err := r.github.CreateKey(ctx, deployKey.Spec.Repository, deployKey.ManagedTitle(), publicKey, deployKey.IsReadOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to create remote key: %w", err)
	}

	log.Infow("Registered remote deploy key", "keyID", remote.ID, "repository", deployKey.Spec.Repository)

	verified, err := r.github.GetKey(ctx, deployKey.Spec.Repository, remote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify remote key %d: %w", remote.ID, err)
	}
	if verified == nil {
		return nil, fmt.Errorf("remote key %d vanished right after its creation", remote.ID)
	}

	return remote, nil
}

// compensateRegistration removes a freshly registered key whose private
// half never made it into the Secret. If even the delete fails, the key id
// is surfaced in the status so it can be removed manually.
func (r *Reconciler) compensateRegistration(ctx context.Context, log *zap.SugaredLogger, deployKey *githubv1alpha1.GithubDeployKey, keyID int64, cause error) error {
	log.Warnw("Removing remote key again, storing its private half failed", "keyID", keyID, zap.Error(cause))

	if err := r.github.DeleteKey(ctx, deployKey.Spec.Repository, keyID); err != nil {
		return &orphanedKeyError{keyID: keyID, repository: deployKey.Spec.Repository, err: err}
	}

	return fmt.Errorf("failed to store the private key: %w", cause)
}

// deleteManagedKeys removes every key carrying the managed title except
// keepID. Such keys are leftovers of crashed attempts or completed
// rotations; their private halves are lost.
func (r *Reconciler) deleteManagedKeys(ctx context.Context, log *zap.SugaredLogger, repo, managedTitle string, keepID int64) error {
	managed, err := r.managedKeys(ctx, repo, managedTitle)
	if err != nil {
		return err
	}

	for _, key := range managed {
		if key.ID == keepID {
			continue
		}

		log.Infow("Deleting stale remote deploy key", "keyID", key.ID)

		if err := r.github.DeleteKey(ctx, repo, key.ID); err != nil {
			return fmt.Errorf("failed to delete stale remote key %d: %w", key.ID, err)
		}
	}

	return nil
}

// managedKeys returns the repository's deploy keys carrying the given
// managed title, oldest first.
func (r *Reconciler) managedKeys(ctx context.Context, repo, managedTitle string) ([]githubclient.Key, error) {
	keys, err := r.github.ListKeys(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote keys on %s: %w", repo, err)
	}

	managed := make([]githubclient.Key, 0, len(keys))
	for _, key := range keys {
		if key.Title == managedTitle {
			managed = append(managed, key)
		}
	}

	sort.Slice(managed, func(i, j int) bool {
		return managed[i].ID < managed[j].ID
	})

	return managed, nil
}

func (r *Reconciler) ensureSecret(ctx context.Context, deployKey *githubv1alpha1.GithubDeployKey, privateKey, publicKey []byte) error {
	creators := []reconciling.NamedSecretReconcilerFactory{
		privateKeySecretReconciler(deployKey, privateKey, publicKey),
	}

	return reconciling.ReconcileSecrets(ctx, creators, deployKey.Namespace, r)
}

func privateKeySecretReconciler(deployKey *githubv1alpha1.GithubDeployKey, privateKey, publicKey []byte) reconciling.NamedSecretReconcilerFactory {
	return func() (string, reconciling.SecretReconciler) {
		return deployKey.PrivateKeySecretName(), func(existing *corev1.Secret) (*corev1.Secret, error) {
			existing.Type = corev1.SecretTypeOpaque
			existing.Data = map[string][]byte{
				githubv1alpha1.PrivateKeySecretKey: privateKey,
				githubv1alpha1.PublicKeySecretKey:  publicKey,
				githubv1alpha1.KnownHostsSecretKey: []byte(githubKnownHosts),
			}

			kuberneteshelper.EnsureLabels(existing, map[string]string{
				"app.kubernetes.io/managed-by": managedByValue,
			})

			kuberneteshelper.EnsureUniqueOwnerReference(existing, metav1.OwnerReference{
				APIVersion: githubv1alpha1.SchemeGroupVersion.String(),
				Kind:       githubv1alpha1.GithubDeployKeyKind,
				Name:       deployKey.Name,
				UID:        deployKey.UID,
				Controller: ptr.To(true),
			})

			return existing, nil
		}
	}
}

func (r *Reconciler) getSecret(ctx context.Context, deployKey *githubv1alpha1.GithubDeployKey) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	name := types.NamespacedName{Namespace: deployKey.Namespace, Name: deployKey.PrivateKeySecretName()}

	if err := r.Get(ctx, name, secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get private key Secret: %w", err)
	}

	return secret, nil
}

// recordFailure writes the failure into the status. Permanent failures
// also flip the phase to Degraded; transient ones keep the current phase
// so a hiccup does not hide the overall state.
func (r *Reconciler) recordFailure(ctx context.Context, deployKey *githubv1alpha1.GithubDeployKey, rerr error) error {
	failure := &githubv1alpha1.DeployKeyFailure{
		Message: rerr.Error(),
		Time:    metav1.Now(),
	}

	var phase githubv1alpha1.DeployKeyPhase
	var orphanedKeyID int64
	var orphanedKeyRepository string

	var orphaned *orphanedKeyError

	switch {
	case errors.As(rerr, &orphaned):
		failure.Kind = githubv1alpha1.DeployKeyFailureOrphanedRemoteKey
		phase = githubv1alpha1.DeployKeyPhaseDegraded
		orphanedKeyID = orphaned.keyID
		orphanedKeyRepository = orphaned.repository
	case githubclient.IsPermanent(rerr):
		failure.Kind = githubv1alpha1.DeployKeyFailurePermanentRemote
		phase = githubv1alpha1.DeployKeyPhaseDegraded
	case githubclient.IsTransient(rerr):
		failure.Kind = githubv1alpha1.DeployKeyFailureTransientRemote
	default:
		failure.Kind = githubv1alpha1.DeployKeyFailureTransientStore
	}

	return controllerutil.UpdateDeployKeyStatus(ctx, r, deployKey, func(k *githubv1alpha1.GithubDeployKey) {
		k.Status.LastFailure = failure
		if phase != "" {
			k.Status.Phase = phase
		}
		if orphanedKeyID != 0 {
			k.Status.OrphanedKeyID = orphanedKeyID
			k.Status.OrphanedKeyRepository = orphanedKeyRepository
		}
	})
}

// orphanedKeyError marks a remote key whose private half is lost and whose
// compensating delete failed as well.
type orphanedKeyError struct {
	keyID      int64
	repository string
	err        error
}

func (e *orphanedKeyError) Error() string {
	return fmt.Sprintf("remote key %d on %s is orphaned: %v", e.keyID, e.repository, e.err)
}

func (e *orphanedKeyError) Unwrap() error {
	return e.err
}

// sameKeyMaterial compares two public keys in authorized_keys format,
// ignoring whitespace and comment differences.
func sameKeyMaterial(a, b string) bool {
	fieldsA := strings.Fields(a)
	fieldsB := strings.Fields(b)

	if len(fieldsA) < 2 || len(fieldsB) < 2 {
		return strings.TrimSpace(a) == strings.TrimSpace(b) && strings.TrimSpace(a) != ""
	}

	return fieldsA[0] == fieldsB[0] && fieldsA[1] == fieldsB[1]
}
