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

package sshkey

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

const keyBits = 4096

// KeyPair is a freshly generated SSH key pair. The private half is never
// kept anywhere but the Secret it ends up in.
type KeyPair struct {
	// PrivateKeyPEM holds the private key, PKCS#8 PEM encoded.
	PrivateKeyPEM []byte
	// AuthorizedKey holds the public key in authorized_keys format,
	// including the trailing newline.
	AuthorizedKey []byte
	// Fingerprint is the legacy MD5 fingerprint of the public key.
	Fingerprint string
}

// New generates a 4096 bit RSA key pair.
func New() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize private key: %w", err)
	}

	privBuf := bytes.Buffer{}
	if err := pem.Encode(&privBuf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	return &KeyPair{
		PrivateKeyPEM: privBuf.Bytes(),
		AuthorizedKey: ssh.MarshalAuthorizedKey(pub),
		Fingerprint:   ssh.FingerprintLegacyMD5(pub),
	}, nil
}

// Fingerprint returns the legacy MD5 fingerprint for a public key in
// authorized_keys format.
func Fingerprint(authorizedKey string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}

	return ssh.FingerprintLegacyMD5(pub), nil
}
