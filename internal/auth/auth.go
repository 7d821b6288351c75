// Package auth stores backend API keys in the OS keychain and resolves the
// key to use for a run.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "fb2lingo"

// Source tells where a key came from.
type Source string

const (
	SourceNone     Source = ""
	SourceKeychain Source = "keychain"
	SourceEnv      Source = "environment"
	SourcePrompt   Source = "prompt"
)

// Mode restricts which sources Resolve may use.
type Mode int

const (
	KeychainOnly Mode = iota
	KeychainThenEnv
	EnvOnly
)

// ErrNoKey is returned when no source yields a key.
var ErrNoKey = errors.New("no API key configured")

var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	stdinFd      = func() int { return int(os.Stdin.Fd()) }
)

func account(p metadata.Provider) string {
	return string(p) + "-api-key"
}

// EnvVar returns the environment variable consulted for a provider.
func EnvVar(p metadata.Provider) string {
	if p == metadata.ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// GetKey looks the key up in the keychain and, when allowEnv is set, the
// environment.
func GetKey(p metadata.Provider, allowEnv bool) (string, Source) {
	if key, err := keyring.Get(serviceName, account(p)); err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), SourceKeychain
	}
	if allowEnv {
		if key, ok := GetEnvKey(p); ok {
			return key, SourceEnv
		}
	}
	return "", SourceNone
}

// GetEnvKey reads the key from the environment only.
func GetEnvKey(p metadata.Provider) (string, bool) {
	key := strings.TrimSpace(os.Getenv(EnvVar(p)))
	return key, key != ""
}

// Resolve finds a key according to mode, prompting on an interactive
// terminal as a last resort.
func Resolve(p metadata.Provider, mode Mode) (string, Source, error) {
	var (
		key string
		src Source
	)
	switch mode {
	case EnvOnly:
		if k, ok := GetEnvKey(p); ok {
			key, src = k, SourceEnv
		}
	case KeychainThenEnv:
		key, src = GetKey(p, true)
	default:
		key, src = GetKey(p, false)
	}
	if key != "" {
		return key, src, nil
	}
	if mode == EnvOnly || !isTerminal(stdinFd()) {
		return "", SourceNone, fmt.Errorf("%w for %s (run 'fb2lingo env setup --service %s' or set %s with --allow-env)", ErrNoKey, p, p, EnvVar(p))
	}
	key, err := PromptForAPIKey(fmt.Sprintf("Enter %s API key: ", p))
	if err != nil {
		return "", SourceNone, err
	}
	if key == "" {
		return "", SourceNone, fmt.Errorf("%w for %s", ErrNoKey, p)
	}
	return key, SourcePrompt, nil
}

// SaveKey stores the key in the OS keychain.
func SaveKey(p metadata.Provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to store an empty key")
	}
	return keyring.Set(serviceName, account(p), key)
}

// DeleteKey removes the key from the OS keychain.
func DeleteKey(p metadata.Provider) error {
	return keyring.Delete(serviceName, account(p))
}

// HasKey reports whether the keychain holds a key for the provider.
func HasKey(p metadata.Provider) bool {
	key, err := keyring.Get(serviceName, account(p))
	return err == nil && key != ""
}

// PromptForAPIKey reads a key from the terminal without echo.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := readPassword(stdinFd())
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
