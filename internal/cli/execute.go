package cli

import (
	"math/big"

	"github.com/spf13/cobra"

	"github.com/grantline/grantline/internal/engine"
	"github.com/grantline/grantline/internal/intent"
)

var (
	execPrincipal string
	execSession   uint64
	execRecurring bool
	execTo        string
	execAsset     string
	execAmount    string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run an execution attempt through the approved path",
	Long: `Attempt a transfer under an approved session. The attempt is encoded as a
single transfer action, decoded and evaluated against the session, and the
quota or interval mutation is committed only when authorized.

A denial is reported as a result, not an error; malformed input is an error.`,
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, _ []string) error {
	principal, err := resolvePrincipal(execPrincipal)
	if err != nil {
		return err
	}

	to, err := parseAddress("to", execTo)
	if err != nil {
		return err
	}
	asset, err := parseAddress("asset", execAsset)
	if err != nil {
		return err
	}
	amount, err := parseAmount(execAmount)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	actions := []engine.Action{{
		Target: asset,
		Value:  big.NewInt(0),
		Data:   intent.EncodeTransfer(to, amount),
	}}

	res, err := eng.ExecuteScoped(cmd.Context(), principal, execSession, execRecurring, actions)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return writeJSON(w, res)
	}
	if res.Authorized {
		out(w, "Authorized: transfer of %s to %s delegated\n", amount.String(), to.Hex())
	} else {
		out(w, "Denied: %s\n", res.Reason)
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	executeCmd.Flags().StringVar(&execPrincipal, "principal", "", "principal address (default: stored signing key)")
	executeCmd.Flags().Uint64Var(&execSession, "session", 0, "session id")
	executeCmd.Flags().BoolVar(&execRecurring, "recurring", false, "execute against a recurring session")
	executeCmd.Flags().StringVar(&execTo, "to", "", "transfer recipient address")
	executeCmd.Flags().StringVar(&execAsset, "asset", "", "token contract address")
	executeCmd.Flags().StringVar(&execAmount, "amount", "", "transfer amount in token base units")
	_ = executeCmd.MarkFlagRequired("session")
	_ = executeCmd.MarkFlagRequired("to")
	_ = executeCmd.MarkFlagRequired("asset")
	_ = executeCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(executeCmd)
}
