package intent

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	granterr "github.com/grantline/grantline/pkg/errors"
)

// DecodeTransfer decodes pre-structured ERC-20 transfer call data against a
// known asset contract. The call data must be exactly
// transfer(address,uint256): a 4-byte selector, the recipient padded into the
// first word, and the amount in the second word.
func DecodeTransfer(asset common.Address, callData []byte) (Intent, error) {
	if len(callData) < selectorSize {
		return Intent{}, malformed("call data shorter than a selector", len(callData))
	}

	if !hasSelector(callData, transferSelector) {
		return Intent{}, unsupported("selector is not transfer(address,uint256)", callData[:selectorSize])
	}

	if len(callData) != transferDataSize {
		return Intent{}, malformed("transfer call data must be exactly 68 bytes", len(callData))
	}

	recipient, err := addressWord(callData[selectorSize : selectorSize+wordSize])
	if err != nil {
		return Intent{}, err
	}

	amount := new(big.Int).SetBytes(callData[selectorSize+wordSize : transferDataSize])

	return Intent{
		Recipient: recipient,
		Amount:    amount,
		Asset:     asset,
	}, nil
}

// DecodeExecute decodes a self-describing execute bundle:
// execute(target, value, innerCallData) where innerCallData is ABI-encoded
// dynamic bytes holding a single ERC-20 transfer. Batch selectors and
// payloads carrying native value are rejected: only one transfer-shaped
// action is understood.
func DecodeExecute(payload []byte) (Intent, error) {
	if len(payload) < selectorSize {
		return Intent{}, malformed("payload shorter than a selector", len(payload))
	}

	for _, sel := range batchSelectors {
		if hasSelector(payload, sel) {
			return Intent{}, granterr.WithDetails(granterr.ErrUnsupportedIntentShape, map[string]string{
				"reason": "batch execution bundles are not supported",
			})
		}
	}

	if !hasSelector(payload, executeSelector) {
		return Intent{}, unsupported("selector is not execute(address,uint256,bytes)", payload[:selectorSize])
	}

	args := payload[selectorSize:]
	if len(args) < 3*wordSize {
		return Intent{}, malformed("truncated argument head", len(args))
	}

	target, err := addressWord(args[0:wordSize])
	if err != nil {
		return Intent{}, err
	}

	value := new(big.Int).SetBytes(args[wordSize : 2*wordSize])
	if value.Sign() != 0 {
		return Intent{}, granterr.WithDetails(granterr.ErrUnsupportedIntentShape, map[string]string{
			"reason": "bundle carries native value alongside the token transfer",
			"value":  value.String(),
		})
	}

	offset, err := uintWord(args[2*wordSize:3*wordSize], "call data offset")
	if err != nil {
		return Intent{}, err
	}

	if offset+wordSize > len(args) {
		return Intent{}, malformed("call data offset points past the payload", offset)
	}

	length, err := uintWord(args[offset:offset+wordSize], "call data length")
	if err != nil {
		return Intent{}, err
	}

	if offset+wordSize+length > len(args) {
		return Intent{}, malformed("declared call data length exceeds the payload", length)
	}

	inner := args[offset+wordSize : offset+wordSize+length]

	return DecodeTransfer(target, inner)
}

// EncodeTransfer builds transfer(address,uint256) call data. It is the exact
// inverse of DecodeTransfer and is used to construct test and CLI payloads.
func EncodeTransfer(recipient common.Address, amount *big.Int) []byte {
	data := make([]byte, transferDataSize)
	copy(data[:selectorSize], transferSelector[:])
	copy(data[selectorSize+12:selectorSize+wordSize], recipient.Bytes())

	amountBytes := amount.Bytes()
	copy(data[transferDataSize-len(amountBytes):], amountBytes)

	return data
}

// EncodeExecute builds an execute(address,uint256,bytes) bundle around inner
// call data, padding the dynamic bytes to a word boundary as the ABI does.
func EncodeExecute(target common.Address, value *big.Int, inner []byte) []byte {
	paddedLen := (len(inner) + wordSize - 1) / wordSize * wordSize
	data := make([]byte, selectorSize+3*wordSize+wordSize+paddedLen)

	copy(data[:selectorSize], executeSelector[:])
	args := data[selectorSize:]

	copy(args[12:wordSize], target.Bytes())

	valueBytes := value.Bytes()
	copy(args[2*wordSize-len(valueBytes):2*wordSize], valueBytes)

	// Dynamic bytes start right after the three head words
	binary.BigEndian.PutUint64(args[3*wordSize-8:3*wordSize], uint64(3*wordSize))
	binary.BigEndian.PutUint64(args[4*wordSize-8:4*wordSize], uint64(len(inner)))
	copy(args[4*wordSize:], inner)

	return data
}

// hasSelector reports whether data begins with the given selector.
func hasSelector(data []byte, sel [selectorSize]byte) bool {
	return len(data) >= selectorSize &&
		data[0] == sel[0] && data[1] == sel[1] && data[2] == sel[2] && data[3] == sel[3]
}

// addressWord extracts an address from a 32-byte ABI word, requiring the
// 12 padding bytes to be zero.
func addressWord(word []byte) (common.Address, error) {
	for _, b := range word[:12] {
		if b != 0 {
			return common.Address{}, granterr.WithDetails(granterr.ErrMalformedIntent, map[string]string{
				"reason": "address word has nonzero padding",
				"word":   hex.EncodeToString(word),
			})
		}
	}
	return common.BytesToAddress(word[12:]), nil
}

// uintWord extracts a small unsigned integer from a 32-byte ABI word. Values
// that do not fit in an int are rejected: they could never reference a valid
// position inside the payload.
func uintWord(word []byte, what string) (int, error) {
	for _, b := range word[:24] {
		if b != 0 {
			return 0, granterr.WithDetails(granterr.ErrMalformedIntent, map[string]string{
				"reason": fmt.Sprintf("%s overflows", what),
				"word":   hex.EncodeToString(word),
			})
		}
	}

	v := binary.BigEndian.Uint64(word[24:])
	if v > math.MaxInt32 {
		return 0, granterr.WithDetails(granterr.ErrMalformedIntent, map[string]string{
			"reason": fmt.Sprintf("%s overflows", what),
			"value":  fmt.Sprintf("%d", v),
		})
	}

	return int(v), nil
}

// malformed builds a MALFORMED_INTENT error with a reason and a size detail.
func malformed(reason string, n int) error {
	return granterr.WithDetails(granterr.ErrMalformedIntent, map[string]string{
		"reason": reason,
		"size":   fmt.Sprintf("%d", n),
	})
}

// unsupported builds an UNSUPPORTED_INTENT_SHAPE error carrying the selector.
func unsupported(reason string, sel []byte) error {
	return granterr.WithDetails(granterr.ErrUnsupportedIntentShape, map[string]string{
		"reason":   reason,
		"selector": hex.EncodeToString(sel),
	})
}
