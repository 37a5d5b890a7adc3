package cli

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/grantline/grantline/internal/grantcrypto"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// promptPassword reads a password with terminal echo disabled. The prompt
// goes to stderr so stdout stays clean for piped output. Callers zero the
// returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // syscall.Stdin is not int on all platforms
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword reads and confirms a new encryption password.
// Callers zero the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPassword("Enter encryption password: ")
	if err != nil {
		return nil, err
	}

	if len(password) < 8 {
		grantcrypto.ZeroBytes(password)
		return nil, granterr.WithSuggestion(
			granterr.ErrInvalidInput,
			"password must be at least 8 characters",
		)
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		grantcrypto.ZeroBytes(password)
		return nil, err
	}
	defer grantcrypto.ZeroBytes(confirm)

	if string(password) != string(confirm) {
		grantcrypto.ZeroBytes(password)
		return nil, granterr.WithSuggestion(
			granterr.ErrInvalidInput,
			"passwords do not match",
		)
	}

	return password, nil
}

// promptPassphrase reads an optional BIP39 seed passphrase. Empty input
// skips the passphrase entirely.
func promptPassphrase() (string, error) {
	outln(os.Stderr, "\nBIP39 passphrase (optional, press enter to skip):")
	outln(os.Stderr, "A lost passphrase makes the key unrecoverable even with the mnemonic.")

	passphrase, err := promptPassword("Enter passphrase: ")
	if err != nil {
		return "", err
	}

	if len(passphrase) == 0 {
		return "", nil
	}

	confirm, err := promptPassword("Confirm passphrase: ")
	if err != nil {
		grantcrypto.ZeroBytes(passphrase)
		return "", err
	}
	defer grantcrypto.ZeroBytes(confirm)

	if string(passphrase) != string(confirm) {
		grantcrypto.ZeroBytes(passphrase)
		return "", granterr.WithSuggestion(
			granterr.ErrInvalidInput,
			"passphrases do not match",
		)
	}

	return string(passphrase), nil
}
