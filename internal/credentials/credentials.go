// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package credentials resolves the GitHub token used by the collector.
//
// A token is looked up in order from the --token flag, the configured
// environment variable and finally the operating system keychain, where
// it is stored per API host by the token command.
package credentials

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
)

// Service is the keychain service name tokens are stored under.
const Service = "sirseer-collect"

// Source names where a token was found.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// ErrNotFound is returned by Delete when no token is stored for the host.
var ErrNotFound = errors.New("no token stored")

// Resolver finds the token for one API endpoint.
type Resolver struct {
	// EnvVar is the environment variable holding the token.
	EnvVar string
	// Endpoint is the REST API endpoint; its host is the keychain account.
	Endpoint string

	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver reading envVar and the keychain entry of
// endpoint's host.
func NewResolver(envVar, endpoint string) *Resolver {
	return &Resolver{EnvVar: envVar, Endpoint: endpoint, lookupEnv: os.LookupEnv}
}

// Resolve returns the first non-empty token from flagToken, the
// environment and the keychain. A missing token wraps ErrInvalidToken.
func (r *Resolver) Resolve(flagToken string) (string, Source, error) {
	if t := strings.TrimSpace(flagToken); t != "" {
		return t, SourceFlag, nil
	}

	if r.EnvVar != "" {
		if t, ok := r.lookupEnv(r.EnvVar); ok && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t), SourceEnv, nil
		}
	}

	t, err := keyring.Get(Service, Account(r.Endpoint))
	switch {
	case err == nil && t != "":
		return t, SourceKeyring, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		// An unusable keychain is reported but treated like a missing entry.
		return "", "", fmt.Errorf("GitHub token not found in --token or %s, keychain unavailable (%v): %w",
			r.envName(), err, relaierrors.ErrInvalidToken)
	}

	return "", "", fmt.Errorf("GitHub token not found. Set %s, use --token or run 'collect token set': %w",
		r.envName(), relaierrors.ErrInvalidToken)
}

func (r *Resolver) envName() string {
	if r.EnvVar == "" {
		return "an environment variable"
	}
	return r.EnvVar
}

// Store saves token in the keychain for endpoint's host.
func Store(endpoint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to store an empty token")
	}
	if err := keyring.Set(Service, Account(endpoint), token); err != nil {
		return fmt.Errorf("failed to store token in keychain: %w", err)
	}
	return nil
}

// Delete removes the keychain token of endpoint's host.
func Delete(endpoint string) error {
	err := keyring.Delete(Service, Account(endpoint))
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s: %w", Account(endpoint), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete token from keychain: %w", err)
	}
	return nil
}

// Account returns the keychain account for an API endpoint, its host name.
// Endpoints that do not parse are used verbatim.
func Account(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return strings.ToLower(u.Host)
}
