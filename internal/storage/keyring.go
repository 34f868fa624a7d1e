// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
)

// keyringService is the service name for rdbg keychain entries.
const keyringService = "rdbg"

// KeyringSessionStore keeps the session slot in the OS keychain (macOS
// Keychain, Linux Secret Service, Windows Credential Manager).
type KeyringSessionStore struct {
	service string
	account string
	logger  *slog.Logger
}

// KeyringConfig configures a KeyringSessionStore.
type KeyringConfig struct {
	// Service defaults to "rdbg".
	Service string

	// Account is the slot key; defaults to DefaultSlotKey.
	Account string

	Logger *slog.Logger
}

// NewKeyringSessionStore creates a keychain-backed session slot.
func NewKeyringSessionStore(cfg KeyringConfig) *KeyringSessionStore {
	service := cfg.Service
	if service == "" {
		service = keyringService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &KeyringSessionStore{
		service: service,
		account: slotKey(cfg.Account),
		logger:  log.WithComponent(logger, "keyring-store"),
	}
}

// Load reads the slot. A missing or unreadable entry yields EmptyHandle.
func (k *KeyringSessionStore) Load(_ context.Context) (debugger.SessionHandle, error) {
	value, err := keyring.Get(k.service, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return debugger.EmptyHandle{}, nil
	}
	if err != nil {
		return debugger.EmptyHandle{}, fmt.Errorf("failed to read keychain: %w", err)
	}

	h, err := debugger.DecodeHandle([]byte(value))
	if err != nil {
		k.logger.Warn("discarding unreadable session slot", slog.String("key", k.account), log.Error(err))
		return debugger.EmptyHandle{}, nil
	}
	return h, nil
}

// Save writes h to the slot. Saving EmptyHandle deletes the entry.
func (k *KeyringSessionStore) Save(_ context.Context, h debugger.SessionHandle) error {
	data, err := debugger.EncodeHandle(h)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if data == nil {
		err := keyring.Delete(k.service, k.account)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keychain entry: %w", err)
		}
		return nil
	}

	if err := keyring.Set(k.service, k.account, string(data)); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}
	return nil
}
