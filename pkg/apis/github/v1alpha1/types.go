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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GithubDeployKeyResourceName represents "Resource" defined in Kubernetes.
	GithubDeployKeyResourceName = "githubdeploykeys"

	// GithubDeployKeyKind represents "Kind" defined in Kubernetes.
	GithubDeployKeyKind = "GithubDeployKey"

	// DefaultTitle is used when the spec does not name the key.
	DefaultTitle = "Kubernetes-managed deploy key"

	// ManagedTitlePrefix marks remote deploy keys as owned by this operator.
	// Keys carrying it and an unexpected id are subject to stale-key cleanup.
	ManagedTitlePrefix = "k8s-operator:"

	// PrivateKeySecretSuffix is appended to the object name to build the
	// name of the Secret holding the private key.
	PrivateKeySecretSuffix = "-private-key"

	// PrivateKeySecretKey is the Secret data key holding the PEM-encoded
	// private key.
	PrivateKeySecretKey = "identity"

	// PublicKeySecretKey is the Secret data key holding the public key in
	// authorized_keys format.
	PublicKeySecretKey = "identity.pub"

	// KnownHostsSecretKey is the Secret data key holding a pinned
	// known_hosts entry for github.com.
	KnownHostsSecretKey = "known_hosts"
)

// +kubebuilder:resource:scope=Namespaced
// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:JSONPath=".spec.repository",name="Repository",type="string"
// +kubebuilder:printcolumn:JSONPath=".spec.title",name="Title",type="string"
// +kubebuilder:printcolumn:JSONPath=".status.phase",name="Phase",type="string"
// +kubebuilder:printcolumn:JSONPath=".metadata.creationTimestamp",name="Age",type="date"

// GithubDeployKey declares a single SSH deploy key that the operator
// generates, registers on a GitHub repository and keeps in sync with a
// cluster Secret holding the private half.
type GithubDeployKey struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec describes the desired deploy key.
	Spec GithubDeployKeySpec `json:"spec"`

	// Status contains reconciliation information for the deploy key.
	Status GithubDeployKeyStatus `json:"status,omitempty"`
}

// GithubDeployKeySpec specifies the repository and properties of a
// managed deploy key.
type GithubDeployKeySpec struct {
	// Repository is the target repository in "owner/name" form. Changing it
	// on an existing object makes the operator remove the key from the old
	// repository and register a fresh one on the new repository.
	Repository string `json:"repository"`

	// Title is a human readable label for the remote key. The key is
	// registered on GitHub under the managed title, i.e. this value behind
	// the operator's title prefix. Defaults to "Kubernetes-managed deploy key".
	Title string `json:"title,omitempty"`

	// ReadOnly controls whether the deploy key grants only pull access.
	// Defaults to true. GitHub cannot change this flag on an existing key,
	// so flipping it rotates the key pair.
	ReadOnly *bool `json:"readOnly,omitempty"`
}

// GithubDeployKeyStatus stores the operator's view of the remote key and
// the private key Secret.
type GithubDeployKeyStatus struct {
	Phase DeployKeyPhase `json:"phase,omitempty"`

	// KeyID is the identifier GitHub assigned to the deploy key. Zero until
	// the first successful registration.
	KeyID int64 `json:"keyID,omitempty"`

	// Repository is the repository the key identified by KeyID lives on.
	// Kept so the old key can be removed after spec.repository changes.
	Repository string `json:"repository,omitempty"`

	// Fingerprint is the legacy MD5 fingerprint of the managed public key.
	Fingerprint string `json:"fingerprint,omitempty"`

	// PublicKey is the managed public key in authorized_keys format. It
	// allows re-registering the key after out-of-band deletion without
	// generating a new pair.
	PublicKey string `json:"publicKey,omitempty"`

	// SecretName is the name of the Secret holding the private key.
	SecretName string `json:"secretName,omitempty"`

	// ObservedGeneration is the generation last successfully applied.
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// OrphanedKeyID is set when a remote key could be left behind without a
	// recoverable private half (a compensating delete failed). Such keys
	// must be removed manually.
	OrphanedKeyID int64 `json:"orphanedKeyID,omitempty"`

	// OrphanedKeyRepository is the repository the key identified by
	// OrphanedKeyID was registered on. Kept next to the id because
	// spec.repository can change while the orphan still exists.
	OrphanedKeyRepository string `json:"orphanedKeyRepository,omitempty"`

	// LastFailure describes the most recent reconciliation failure. It is
	// cleared by the next fully successful reconciliation.
	LastFailure *DeployKeyFailure `json:"lastFailure,omitempty"`
}

// +kubebuilder:validation:Enum=Pending;Ready;Rotating;Degraded;Deleting

type DeployKeyPhase string

const (
	// DeployKeyPhasePending indicates that no remote key has been
	// registered yet.
	DeployKeyPhasePending DeployKeyPhase = "Pending"

	// DeployKeyPhaseReady indicates that the remote key and the Secret
	// exist and form a matching pair.
	DeployKeyPhaseReady DeployKeyPhase = "Ready"

	DeployKeyPhaseRotating DeployKeyPhase = "Rotating"

	// DeployKeyPhaseDegraded indicates a failure that is not retried on a
	// tight loop; details are in LastFailure.
	DeployKeyPhaseDegraded DeployKeyPhase = "Degraded"

	DeployKeyPhaseDeleting DeployKeyPhase = "Deleting"
)

// +kubebuilder:validation:Enum=TransientRemote;TransientStore;PermanentRemote;OrphanedRemoteKey

type DeployKeyFailureKind string

const (
	// DeployKeyFailureTransientRemote covers rate limits, timeouts and 5xx
	// answers from GitHub; retried with backoff.
	DeployKeyFailureTransientRemote DeployKeyFailureKind = "TransientRemote"

	// DeployKeyFailureTransientStore covers timeouts and write conflicts
	// against the cluster API; retried with backoff.
	DeployKeyFailureTransientStore DeployKeyFailureKind = "TransientStore"

	// DeployKeyFailurePermanentRemote covers rejected credentials, missing
	// repositories and validation errors; only retried on the periodic
	// resync so the operator does not hot-loop while a user fixes the cause.
	DeployKeyFailurePermanentRemote DeployKeyFailureKind = "PermanentRemote"

	// DeployKeyFailureOrphanedRemoteKey marks the case where a remote key
	// was registered but its private half was lost and the compensating
	// delete failed as well.
	DeployKeyFailureOrphanedRemoteKey DeployKeyFailureKind = "OrphanedRemoteKey"
)

// DeployKeyFailure describes a single reconciliation failure.
type DeployKeyFailure struct {
	Kind DeployKeyFailureKind `json:"kind"`
	// Human readable message indicating details about the failure.
	Message string `json:"message,omitempty"`
	// Time is when the failure was observed.
	Time metav1.Time `json:"time,omitempty"`
}

// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true

// GithubDeployKeyList specifies a list of deploy keys.
type GithubDeployKeyList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	// Items holds the list of deploy keys.
	Items []GithubDeployKey `json:"items"`
}

// PrivateKeySecretName returns the name of the Secret holding the private
// key for this deploy key.
func (k *GithubDeployKey) PrivateKeySecretName() string {
	return k.Name + PrivateKeySecretSuffix
}

// EffectiveTitle returns the spec title or the default when none is set.
func (k *GithubDeployKey) EffectiveTitle() string {
	if k.Spec.Title == "" {
		return DefaultTitle
	}

	return k.Spec.Title
}

// ManagedTitle returns the title the remote key is registered under,
// marking it as owned by this operator.
func (k *GithubDeployKey) ManagedTitle() string {
	return ManagedTitlePrefix + k.EffectiveTitle()
}

// IsReadOnly returns the effective read-only flag, defaulting to true.
func (k *GithubDeployKey) IsReadOnly() bool {
	if k.Spec.ReadOnly == nil {
		return true
	}

	return *k.Spec.ReadOnly
}
