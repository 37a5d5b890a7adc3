// Package intent extracts the proposed transfer (recipient, amount, asset)
// from opaque execution payloads. Two encodings are understood: pre-structured
// ERC-20 transfer call data, and a self-describing execute bundle whose inner
// call data is located through an ABI-style dynamic offset. Decoding validates
// every length and offset before slicing; malformed input yields a typed
// error, never an out-of-bounds read.
package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Intent is the decoded description of a proposed transfer.
type Intent struct {
	// Recipient is the address receiving the asset.
	Recipient common.Address

	// Amount is the transfer amount in the asset's smallest unit.
	Amount *big.Int

	// Asset is the token contract being called.
	Asset common.Address
}

// wordSize is the width of an ABI word in bytes.
const wordSize = 32

// selectorSize is the width of a function selector in bytes.
const selectorSize = 4

// transferDataSize is the exact length of transfer(address,uint256) call
// data: selector plus two words.
const transferDataSize = selectorSize + 2*wordSize

// Function selectors for the payload shapes the engine understands.
var (
	// transfer(address,uint256)
	transferSelector = [selectorSize]byte{0xa9, 0x05, 0x9c, 0xbb}

	// execute(address,uint256,bytes)
	executeSelector = [selectorSize]byte{0xb6, 0x1d, 0x27, 0xf6}

	// executeBatch(address[],bytes[]) and executeBatch(address[],uint256[],bytes[])
	batchSelectors = [][selectorSize]byte{
		{0x18, 0xdf, 0xb3, 0xc7},
		{0x47, 0xe1, 0xda, 0x2a},
	}
)

// TransferSelector returns the selector for transfer(address,uint256).
func TransferSelector() []byte {
	return append([]byte(nil), transferSelector[:]...)
}

// ExecuteSelector returns the selector for execute(address,uint256,bytes).
func ExecuteSelector() []byte {
	return append([]byte(nil), executeSelector[:]...)
}
