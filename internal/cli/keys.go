package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantline/grantline/internal/grantcrypto"
	"github.com/grantline/grantline/internal/keystore"
	"github.com/grantline/grantline/internal/output"
	granterr "github.com/grantline/grantline/pkg/errors"
)

var (
	keysWords   int
	keysRestore bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the principal signing key",
	Long: `Create and inspect the signing key used to attest execution bundles.

The key is derived from a BIP39 mnemonic along m/44'/60'/0'/0/0 and stored
encrypted under a passphrase. The derived address is the principal identity
sessions are keyed by.`,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the signing key",
	Long: `Generate a new mnemonic (or restore from an existing one with --restore)
and store the derived key encrypted on disk. The mnemonic is shown once and
never stored; write it down.`,
	RunE: runKeysCreate,
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored key's address",
	RunE:  runKeysShow,
}

func runKeysCreate(cmd *cobra.Command, _ []string) error {
	ks := openKeystore()
	if ks.Exists() {
		return granterr.WithDetails(granterr.ErrKeyExists, map[string]string{
			"path": ks.Path(),
		})
	}

	var mnemonic string
	var err error
	if keysRestore {
		mnemonic, err = promptMnemonic(cmd)
	} else {
		mnemonic, err = keystore.GenerateMnemonic(keysWords)
	}
	if err != nil {
		return err
	}

	seedPassphrase, err := promptPassphrase()
	if err != nil {
		return err
	}

	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	defer grantcrypto.ZeroBytes(password)

	addr, err := ks.Create(mnemonic, seedPassphrase, string(password))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !keysRestore {
		outln(os.Stderr)
		output.Warning(os.Stderr, "Recovery phrase (shown once, never stored):")
		outln(os.Stderr, "  "+mnemonic)
		outln(os.Stderr)
	}

	if formatter.IsJSON() {
		return writeJSON(w, map[string]string{
			"address": addr.Hex(),
			"path":    ks.Path(),
		})
	}
	out(w, "Created signing key %s\n", addr.Hex())
	return nil
}

// promptMnemonic reads a mnemonic from stdin, suggesting corrections for
// unrecognized words before failing.
func promptMnemonic(cmd *cobra.Command) (string, error) {
	output.Notice(os.Stderr, "Enter your recovery phrase:")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", granterr.Wrap(err, "reading mnemonic")
	}
	mnemonic := strings.TrimSpace(line)

	if err := keystore.ValidateMnemonic(mnemonic); err != nil {
		if typos := keystore.DetectTypos(mnemonic); len(typos) > 0 {
			return "", granterr.WithSuggestion(err, keystore.FormatTypoSuggestions(typos))
		}
		return "", err
	}
	return mnemonic, nil
}

func runKeysShow(cmd *cobra.Command, _ []string) error {
	ks := openKeystore()
	addr, err := ks.Address()
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), map[string]string{
			"address": addr.Hex(),
			"path":    ks.Path(),
		})
	}
	out(cmd.OutOrStdout(), "%s\n", addr.Hex())
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	keysCreateCmd.Flags().IntVar(&keysWords, "words", 24, "mnemonic word count: 12 or 24")
	keysCreateCmd.Flags().BoolVar(&keysRestore, "restore", false, "restore from an existing mnemonic")

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysShowCmd)
	rootCmd.AddCommand(keysCmd)
}
