/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService  = "SpellCards"
	keyringPassword = "postgres_password"
)

// ErrSecretNotFound is returned when the keyring holds no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore abstracts the keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var secretStore SecretStore = osKeyring{}

// SetSecretStore replaces the keyring backend and returns the previous one.
func SetSecretStore(s SecretStore) SecretStore {
	prev := secretStore
	secretStore = s
	return prev
}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) {
	v, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return v, err
}

func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }

func (osKeyring) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// StoragePassword reads the postgres password from the keyring.
func StoragePassword() (string, error) { return secretStore.Get(keyringService, keyringPassword) }

// SetStoragePassword stores the postgres password in the keyring.
func SetStoragePassword(pw string) error {
	return secretStore.Set(keyringService, keyringPassword, pw)
}

// ClearStoragePassword removes the postgres password from the keyring.
func ClearStoragePassword() error { return secretStore.Delete(keyringService, keyringPassword) }
