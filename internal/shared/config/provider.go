package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// ErrNoProviderSatisfied is wrapped by MissingKeyError.
var ErrNoProviderSatisfied = errors.New("no provider satisfied key")

// Provider is a named source of configuration values.
type Provider interface {
	Name() string
	Lookup(key string) (string, bool)
}

// MissingKeyError reports which keys were requested and which providers were consulted.
type MissingKeyError struct {
	Keys  []string
	Tried []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: %s (tried %s)", ErrNoProviderSatisfied, strings.Join(e.Keys, "|"), strings.Join(e.Tried, ", "))
}

func (e *MissingKeyError) Unwrap() error { return ErrNoProviderSatisfied }

// Chain consults providers in order; the first non-empty value wins.
type Chain []Provider

// Resolve returns the first non-empty value for key.
func (c Chain) Resolve(key string) (string, error) {
	return c.ResolveAny(key)
}

// ResolveAny tries every provider for each key in turn, so aliases are only
// consulted once the preferred key is absent everywhere.
func (c Chain) ResolveAny(keys ...string) (string, error) {
	for _, key := range keys {
		for _, p := range c {
			if p == nil {
				continue
			}
			if val, ok := p.Lookup(key); ok && strings.TrimSpace(val) != "" {
				return strings.TrimSpace(val), nil
			}
		}
	}
	return "", &MissingKeyError{Keys: keys, Tried: c.names()}
}

// Get returns the resolved value for key or def.
func (c Chain) Get(key, def string) string {
	val, err := c.Resolve(key)
	if err != nil {
		return def
	}
	return val
}

func (c Chain) names() []string {
	out := make([]string, 0, len(c))
	for _, p := range c {
		if p != nil {
			out = append(out, p.Name())
		}
	}
	return out
}

// EnvProvider reads the process environment.
type EnvProvider struct{}

func (EnvProvider) Name() string { return "env" }

func (EnvProvider) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// DotenvProvider serves values parsed from a dotenv file. A missing file yields no values.
type DotenvProvider struct {
	Path   string
	values map[string]string
}

// NewDotenvProvider parses path eagerly. Parse failures leave the provider empty.
func NewDotenvProvider(path string) *DotenvProvider {
	p := &DotenvProvider{Path: path}
	values, err := godotenv.Read(path)
	if err == nil {
		p.values = values
	}
	return p
}

func (p *DotenvProvider) Name() string { return "dotenv:" + p.Path }

func (p *DotenvProvider) Lookup(key string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	val, ok := p.values[key]
	return val, ok
}

// SecretsDirProvider reads one file per key from Dir, as mounted container secrets are laid out.
type SecretsDirProvider struct {
	Dir string
}

func (p SecretsDirProvider) Name() string { return "secrets:" + p.Dir }

func (p SecretsDirProvider) Lookup(key string) (string, bool) {
	if strings.TrimSpace(p.Dir) == "" || strings.ContainsAny(key, `/\`) {
		return "", false
	}
	for _, name := range []string{key, strings.ToLower(key)} {
		data, err := os.ReadFile(filepath.Join(p.Dir, name))
		if err == nil {
			return strings.TrimSpace(string(data)), true
		}
	}
	return "", false
}

// MapProvider serves static values.
type MapProvider struct {
	Label  string
	Values map[string]string
}

func (p MapProvider) Name() string {
	if p.Label == "" {
		return "map"
	}
	return p.Label
}

func (p MapProvider) Lookup(key string) (string, bool) {
	val, ok := p.Values[key]
	return val, ok
}

// DefaultChain is env, then local dotenv files, then the secrets directory.
func DefaultChain() Chain {
	chain := Chain{
		EnvProvider{},
		NewDotenvProvider(".env"),
		NewDotenvProvider(filepath.Join("cmd", ".env")),
	}
	secretsDir := os.Getenv("CONFIG_SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	return append(chain, SecretsDirProvider{Dir: secretsDir})
}
