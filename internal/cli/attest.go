package cli

import (
	"encoding/json"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/grantline/grantline/internal/attest"
	"github.com/grantline/grantline/internal/fileutil"
	"github.com/grantline/grantline/internal/grantcrypto"
	"github.com/grantline/grantline/internal/intent"
	granterr "github.com/grantline/grantline/pkg/errors"
)

var (
	attestSession    uint64
	attestRecurring  bool
	attestValidAfter uint64
	attestValidUntil uint64
	attestPeriod     uint64
	attestLimit      uint64
	attestBudget     string
	attestReceiver   string
	attestAsset      string
	attestTo         string
	attestAmount     string
	attestOut        string
	attestBundle     string
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Create and validate signed execution bundles",
	Long: `Work with attestation bundles: signed statements binding the principal,
a session reference with its parameters, and one transfer payload.

'sign' builds and signs a bundle with the stored key. 'validate' evaluates a
bundle against the session store exactly as a host would, with no transfer
execution.`,
}

var attestSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign an attestation bundle",
	Long: `Build a bundle for one transfer and sign it with the stored key. The
signature covers the session reference, the inline session parameters, and
the exact payload, so none of them can be swapped afterwards.`,
	RunE: runAttestSign,
}

var attestValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an attestation bundle",
	Long: `Evaluate a signed bundle against the session store. When the referenced
session is unknown or unapproved and propose-on-unknown is enabled, a
pending session is recorded from the bundle's parameters and the attempt is
denied.`,
	RunE: runAttestValidate,
}

func runAttestSign(cmd *cobra.Command, _ []string) error {
	to, err := parseAddress("to", attestTo)
	if err != nil {
		return err
	}
	asset, err := parseAddress("asset", attestAsset)
	if err != nil {
		return err
	}
	amount, err := parseAmount(attestAmount)
	if err != nil {
		return err
	}
	receiver := to
	if attestReceiver != "" {
		receiver, err = parseAddress("receiver", attestReceiver)
		if err != nil {
			return err
		}
	}
	budget := amount.String()
	if attestBudget != "" {
		v, err := parseAmount(attestBudget)
		if err != nil {
			return err
		}
		budget = v.String()
	}

	ks := openKeystore()
	password, err := promptPassword("Enter encryption password: ")
	if err != nil {
		return err
	}
	defer grantcrypto.ZeroBytes(password)

	priv, principal, err := ks.Unlock(string(password))
	if err != nil {
		return err
	}
	defer priv.Destroy()

	bundle := &attest.Bundle{
		Principal: principal,
		SessionID: attestSession,
		Params: attest.InlineParams{
			Recurring:  attestRecurring,
			ValidAfter: attestValidAfter,
			ValidUntil: attestValidUntil,
			TimePeriod: attestPeriod,
			TimeLimit:  attestLimit,
			Amount:     budget,
			Receiver:   receiver,
			Asset:      asset,
		},
		Payload: intent.EncodeExecute(asset, big.NewInt(0), intent.EncodeTransfer(to, amount)),
	}
	if err := bundle.Sign(priv.Bytes()); err != nil {
		return err
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return granterr.Wrap(err, "encoding bundle")
	}
	data = append(data, '\n')

	if attestOut == "" || attestOut == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := fileutil.WriteAtomic(attestOut, data, 0o600); err != nil {
		return err
	}
	out(cmd.OutOrStdout(), "Wrote signed bundle to %s\n", attestOut)
	return nil
}

func runAttestValidate(cmd *cobra.Command, _ []string) error {
	data, err := readBundleInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	var bundle attest.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return granterr.Wrap(err, "decoding bundle")
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.Validate(&bundle)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, res)
	}
	if res.Authorized {
		outln(w, "Authorized")
		return nil
	}
	out(w, "Denied: %s\n", res.Reason)
	if res.ProposedSession != 0 {
		out(w, "Proposed pending session %d for principal approval\n", res.ProposedSession)
	}
	return nil
}

// readBundleInput reads the bundle from --bundle, or stdin when unset or "-".
func readBundleInput(stdin io.Reader) ([]byte, error) {
	if attestBundle == "" || attestBundle == "-" {
		return io.ReadAll(stdin)
	}

	data, exists, err := fileutil.ReadIfExists(attestBundle)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, granterr.WithDetails(granterr.ErrNotFound, map[string]string{
			"bundle": attestBundle,
		})
	}
	return data, nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	attestSignCmd.Flags().Uint64Var(&attestSession, "session", 0, "session id the bundle references")
	attestSignCmd.Flags().BoolVar(&attestRecurring, "recurring", false, "reference a recurring session")
	attestSignCmd.Flags().Uint64Var(&attestValidAfter, "valid-after", 0, "proposed window start (one-time)")
	attestSignCmd.Flags().Uint64Var(&attestValidUntil, "valid-until", 0, "proposed window end (one-time)")
	attestSignCmd.Flags().Uint64Var(&attestPeriod, "period", 0, "proposed interval length in seconds (recurring)")
	attestSignCmd.Flags().Uint64Var(&attestLimit, "limit", 0, "proposed absolute expiry (recurring)")
	attestSignCmd.Flags().StringVar(&attestBudget, "budget", "", "proposed session amount (default: transfer amount)")
	attestSignCmd.Flags().StringVar(&attestReceiver, "receiver", "", "proposed session receiver (default: transfer recipient)")
	attestSignCmd.Flags().StringVar(&attestAsset, "asset", "", "token contract address")
	attestSignCmd.Flags().StringVar(&attestTo, "to", "", "transfer recipient address")
	attestSignCmd.Flags().StringVar(&attestAmount, "amount", "", "transfer amount in token base units")
	attestSignCmd.Flags().StringVar(&attestOut, "out", "", "output file (default: stdout)")
	_ = attestSignCmd.MarkFlagRequired("session")
	_ = attestSignCmd.MarkFlagRequired("asset")
	_ = attestSignCmd.MarkFlagRequired("to")
	_ = attestSignCmd.MarkFlagRequired("amount")

	attestValidateCmd.Flags().StringVar(&attestBundle, "bundle", "", "bundle file (default: stdin)")

	attestCmd.AddCommand(attestSignCmd)
	attestCmd.AddCommand(attestValidateCmd)
	rootCmd.AddCommand(attestCmd)
}
