package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/keystore"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// out writes formatted text, ignoring write errors to terminals.
func out(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// outln writes a line of text, ignoring write errors to terminals.
func outln(w io.Writer, args ...interface{}) {
	_, _ = fmt.Fprintln(w, args...)
}

// writeJSON encodes the value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAddress parses a 0x-prefixed hex address.
func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			name: s,
		})
	}
	return common.HexToAddress(s), nil
}

// parseAmount parses a positive decimal token amount in base units.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"amount": s,
			"reason": "must be a positive decimal integer",
		})
	}
	return v, nil
}

// uintString formats an unsigned integer in decimal.
func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseSessionID parses a session id argument.
func parseSessionID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"session": s,
			"reason":  "must be a positive integer",
		})
	}
	return id, nil
}

// openKeystore returns the keystore at the configured path.
func openKeystore() *keystore.Keystore {
	return keystore.New(expandHome(cfg.Keystore.File))
}

// resolvePrincipal returns the principal address: the --principal flag if
// set, otherwise the stored signing key's address.
func resolvePrincipal(flag string) (common.Address, error) {
	if flag != "" {
		return parseAddress("principal", flag)
	}

	ks := openKeystore()
	addr, err := ks.Address()
	if err != nil {
		return common.Address{}, granterr.WithSuggestion(err,
			"create a signing key with 'grantline keys create' or pass --principal")
	}
	return addr, nil
}
