package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables consulted when no explicit credential is given.
const (
	EnvIdentity = "SPACETRACK_ACCT"
	EnvPassword = "SPACETRACK_PASS"
)

// ErrMissingCredentials is wrapped by every CredentialError.
var ErrMissingCredentials = errors.New("missing Space-Track credentials")

// CredentialError names the credential that could not be resolved.
type CredentialError struct {
	Field string // "identity" or "password"
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%v: no %s from flag, spacetrack.%s, or %s", ErrMissingCredentials, e.Field, e.Field, e.envVar())
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredentials }

func (e *CredentialError) envVar() string {
	if e.Field == "password" {
		return EnvPassword
	}
	return EnvIdentity
}

// Credentials authenticate against Space-Track.
type Credentials struct {
	Identity string
	Password string
}

// ResolveCredentials picks each credential from the first non-empty
// source: explicit value, then the config file, then the environment.
// A .env file in the working directory is loaded into the environment
// first if present.
func ResolveCredentials(identity, password string, st SpaceTrackConfig) (Credentials, error) {
	_ = godotenv.Load()

	c := Credentials{
		Identity: firstNonEmpty(identity, st.Identity, os.Getenv(EnvIdentity)),
		Password: firstNonEmpty(password, st.Password, os.Getenv(EnvPassword)),
	}
	if c.Identity == "" {
		return c, &CredentialError{Field: "identity"}
	}
	if c.Password == "" {
		return c, &CredentialError{Field: "password"}
	}
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
