package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/grantline/grantline/internal/output"
	"github.com/grantline/grantline/internal/session"
)

var (
	sessionPrincipal string
	sessionRecurring bool

	openValidAfter uint64
	openValidUntil uint64
	openAmount     string
	openReceiver   string
	openAsset      string

	openRecAmount string
	openRecPeriod uint64
	openRecLimit  uint64
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage spending sessions",
	Long: `Open, approve, and inspect spending sessions.

A session authorizes one counterparty to receive a bounded amount of one
token from the principal. One-time sessions hold a drawable budget inside a
time window; recurring sessions permit a fixed amount once per period until
an absolute expiry.`,
}

var sessionOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a one-time session",
	Long: `Open a one-time session: a drawable budget the receiver can consume in one
or more transfers during the validity window. The session starts pending and
must be approved before any execution succeeds.`,
	RunE: runSessionOpen,
}

var sessionOpenRecurringCmd = &cobra.Command{
	Use:   "open-recurring",
	Short: "Open a recurring session",
	Long: `Open a recurring session: a fixed subscription amount becomes transferable
once per period, starting now, until the absolute time limit. The session
starts pending and must be approved before any execution succeeds.`,
	RunE: runSessionOpenRecurring,
}

var sessionApproveCmd = &cobra.Command{
	Use:   "approve <session-id>",
	Short: "Approve a pending session",
	Long: `Approve a session, making it usable for execution. Approving an already
approved session is a no-op. Ids above the principal's counter are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionApprove,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the principal's sessions",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

func runSessionOpen(cmd *cobra.Command, _ []string) error {
	principal, err := resolvePrincipal(sessionPrincipal)
	if err != nil {
		return err
	}

	amount, err := parseAmount(openAmount)
	if err != nil {
		return err
	}
	receiver, err := parseAddress("receiver", openReceiver)
	if err != nil {
		return err
	}
	asset, err := parseAddress("asset", openAsset)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	id, err := eng.OpenSession(principal, session.OneTimeParams{
		ValidAfter: openValidAfter,
		ValidUntil: openValidUntil,
		Amount:     amount,
		Receiver:   receiver,
		Asset:      asset,
	})
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"principal":  principal.Hex(),
			"session_id": id,
			"kind":       session.KindOneTime.String(),
		})
	}
	out(cmd.OutOrStdout(), "Opened one-time session %d for %s (pending approval)\n", id, principal.Hex())
	return nil
}

func runSessionOpenRecurring(cmd *cobra.Command, _ []string) error {
	principal, err := resolvePrincipal(sessionPrincipal)
	if err != nil {
		return err
	}

	amount, err := parseAmount(openRecAmount)
	if err != nil {
		return err
	}
	receiver, err := parseAddress("receiver", openReceiver)
	if err != nil {
		return err
	}
	asset, err := parseAddress("asset", openAsset)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	id, err := eng.OpenRecurringSession(principal, session.RecurringParams{
		Amount:     amount,
		TimePeriod: openRecPeriod,
		TimeLimit:  openRecLimit,
		Receiver:   receiver,
		Asset:      asset,
	})
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"principal":  principal.Hex(),
			"session_id": id,
			"kind":       session.KindRecurring.String(),
		})
	}
	out(cmd.OutOrStdout(), "Opened recurring session %d for %s (pending approval)\n", id, principal.Hex())
	return nil
}

func runSessionApprove(cmd *cobra.Command, args []string) error {
	principal, err := resolvePrincipal(sessionPrincipal)
	if err != nil {
		return err
	}

	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	if sessionRecurring {
		err = eng.ApproveRecurring(principal, id)
	} else {
		err = eng.Approve(principal, id)
	}
	if err != nil {
		return err
	}

	return output.FormatSuccess(cmd.OutOrStdout(), "session approved", formatter.Format())
}

// sessionRow is one listed session in JSON output.
type sessionRow struct {
	ID       uint64 `json:"id"`
	Kind     string `json:"kind"`
	Approved bool   `json:"approved"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
	Asset    string `json:"asset"`
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	principal, err := resolvePrincipal(sessionPrincipal)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	oneTimes, err := eng.Store().ListOneTime(principal)
	if err != nil {
		return err
	}
	recurring, err := eng.Store().ListRecurring(principal)
	if err != nil {
		return err
	}

	var rows []sessionRow
	for id, s := range oneTimes {
		rows = append(rows, sessionRow{
			ID:       id,
			Kind:     session.KindOneTime.String(),
			Approved: s.Approved,
			Amount:   s.RemainingQuota,
			Receiver: s.Receiver.Hex(),
			Asset:    s.Asset.Hex(),
		})
	}
	for id, s := range recurring {
		rows = append(rows, sessionRow{
			ID:       id,
			Kind:     session.KindRecurring.String(),
			Approved: s.Approved,
			Amount:   s.AllowedAmount,
			Receiver: s.Receiver.Hex(),
			Asset:    s.Asset.Hex(),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].ID < rows[j].ID
	})

	if formatter.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"principal": principal.Hex(),
			"sessions":  rows,
		})
	}

	if len(rows) == 0 {
		outln(cmd.OutOrStdout(), "No sessions")
		return nil
	}

	tbl := output.NewTable("ID", "KIND", "APPROVED", "AMOUNT", "RECEIVER")
	for _, r := range rows {
		approved := "no"
		if r.Approved {
			approved = "yes"
		}
		tbl.AddRow(uintString(r.ID), r.Kind, approved, r.Amount, r.Receiver)
	}
	return tbl.Render(cmd.OutOrStdout())
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	principal, err := resolvePrincipal(sessionPrincipal)
	if err != nil {
		return err
	}

	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if sessionRecurring {
		s, err := eng.Store().GetRecurring(principal, id)
		if err != nil {
			return err
		}
		if formatter.IsJSON() {
			return writeJSON(w, s)
		}
		out(w, "Recurring session %d\n", id)
		out(w, "  approved:       %t\n", s.Approved)
		out(w, "  allowed amount: %s\n", s.AllowedAmount)
		out(w, "  period:         %d s\n", s.TimePeriod)
		out(w, "  next due:       %d\n", s.NextInterval)
		out(w, "  expires:        %d\n", s.TimeLimit)
		out(w, "  receiver:       %s\n", s.Receiver.Hex())
		out(w, "  asset:          %s\n", s.Asset.Hex())
		return nil
	}

	s, err := eng.Store().GetOneTime(principal, id)
	if err != nil {
		return err
	}
	if formatter.IsJSON() {
		return writeJSON(w, s)
	}
	out(w, "One-time session %d\n", id)
	out(w, "  approved:    %t\n", s.Approved)
	out(w, "  remaining:   %s\n", s.RemainingQuota)
	out(w, "  valid after: %d\n", s.ValidAfter)
	out(w, "  valid until: %d\n", s.ValidUntil)
	out(w, "  receiver:    %s\n", s.Receiver.Hex())
	out(w, "  asset:       %s\n", s.Asset.Hex())
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionPrincipal, "principal", "", "principal address (default: stored signing key)")

	sessionOpenCmd.Flags().Uint64Var(&openValidAfter, "valid-after", 0, "window start (unix seconds)")
	sessionOpenCmd.Flags().Uint64Var(&openValidUntil, "valid-until", 0, "window end (unix seconds)")
	sessionOpenCmd.Flags().StringVar(&openAmount, "amount", "", "budget in token base units")
	sessionOpenCmd.Flags().StringVar(&openReceiver, "receiver", "", "receiver address")
	sessionOpenCmd.Flags().StringVar(&openAsset, "asset", "", "token contract address")
	_ = sessionOpenCmd.MarkFlagRequired("valid-until")
	_ = sessionOpenCmd.MarkFlagRequired("amount")
	_ = sessionOpenCmd.MarkFlagRequired("receiver")
	_ = sessionOpenCmd.MarkFlagRequired("asset")

	sessionOpenRecurringCmd.Flags().StringVar(&openRecAmount, "amount", "", "per-period amount in token base units")
	sessionOpenRecurringCmd.Flags().Uint64Var(&openRecPeriod, "period", 0, "interval length in seconds")
	sessionOpenRecurringCmd.Flags().Uint64Var(&openRecLimit, "limit", 0, "absolute expiry (unix seconds)")
	sessionOpenRecurringCmd.Flags().StringVar(&openReceiver, "receiver", "", "receiver address")
	sessionOpenRecurringCmd.Flags().StringVar(&openAsset, "asset", "", "token contract address")
	_ = sessionOpenRecurringCmd.MarkFlagRequired("amount")
	_ = sessionOpenRecurringCmd.MarkFlagRequired("period")
	_ = sessionOpenRecurringCmd.MarkFlagRequired("limit")
	_ = sessionOpenRecurringCmd.MarkFlagRequired("receiver")
	_ = sessionOpenRecurringCmd.MarkFlagRequired("asset")

	sessionApproveCmd.Flags().BoolVar(&sessionRecurring, "recurring", false, "approve a recurring session")
	sessionShowCmd.Flags().BoolVar(&sessionRecurring, "recurring", false, "show a recurring session")

	sessionCmd.AddCommand(sessionOpenCmd)
	sessionCmd.AddCommand(sessionOpenRecurringCmd)
	sessionCmd.AddCommand(sessionApproveCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
