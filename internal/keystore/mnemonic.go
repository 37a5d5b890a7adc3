// Package keystore manages the principal's signing key: BIP39 mnemonic
// generation and validation, hierarchical derivation of the secp256k1 key,
// and passphrase-encrypted storage on disk.
package keystore

import (
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	bip39 "github.com/tyler-smith/go-bip39"

	granterr "github.com/grantline/grantline/pkg/errors"
)

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)

	// bulletListRegex matches bullet prefixes like "- " "* " "• "
	bulletListRegex = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// GenerateMnemonic creates a new BIP39 mnemonic phrase.
// wordCount must be 12 (128 bits entropy) or 24 (256 bits entropy).
func GenerateMnemonic(wordCount int) (string, error) {
	var bitSize int
	switch wordCount {
	case 12:
		bitSize = 128
	case 24:
		bitSize = 256
	default:
		return "", granterr.WithDetails(granterr.ErrInvalidMnemonic, map[string]string{
			"reason": "word count must be 12 or 24",
		})
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", granterr.Wrap(err, "generating entropy")
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", granterr.Wrap(err, "generating mnemonic")
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic phrase is valid according to BIP39.
// It verifies word count, word validity, and checksum.
func ValidateMnemonic(mnemonic string) error {
	if mnemonic == "" {
		return granterr.ErrInvalidMnemonic
	}

	normalized := NormalizeMnemonicInput(mnemonic)

	// Early exit: BIP39 only supports 12 or 24-word mnemonics.
	words := strings.Fields(normalized)
	if len(words) != 12 && len(words) != 24 {
		return granterr.ErrInvalidMnemonic
	}

	// MnemonicToByteArray validates word count, word validity, AND checksum
	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return granterr.ErrInvalidMnemonic
	}

	return nil
}

// NormalizeMnemonicInput cleans and normalizes mnemonic input by:
// - Converting to lowercase
// - Removing numbered list prefixes (1. 2) 3: etc.)
// - Removing bullet prefixes (- * •)
// - Replacing commas with spaces
// - Trimming leading and trailing whitespace
// - Collapsing multiple whitespace characters to single spaces
func NormalizeMnemonicInput(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// MnemonicToSeed converts a BIP39 mnemonic phrase to a 64-byte seed.
// The passphrase is optional (can be empty string).
// The returned seed should be handled securely and zeroed after use.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	normalized := NormalizeMnemonicInput(mnemonic)

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return nil, granterr.ErrInvalidMnemonic
	}

	return bip39.NewSeed(normalized, passphrase), nil
}

// WordList returns the BIP39 English word list.
func WordList() []string {
	return bip39.GetWordList()
}

// IsValidWord checks if a word is in the BIP39 word list.
func IsValidWord(word string) bool {
	word = strings.ToLower(word)
	for _, w := range bip39.GetWordList() {
		if w == word {
			return true
		}
	}
	return false
}

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
// Words with distance > 2 are considered too different to suggest.
const MaxTypoDistance = 2

// TypoInfo contains information about a detected typo and its suggestion.
type TypoInfo struct {
	// Index is the word position in the mnemonic (0-based).
	Index int
	// Word is the original (possibly misspelled) word.
	Word string
	// Suggestion is the closest BIP39 word, or empty if none found.
	Suggestion string
	// Distance is the Levenshtein distance to the suggestion.
	Distance int
}

// SuggestWord finds the closest BIP39 word to the input using Levenshtein distance.
// Returns empty string if no word is close enough (distance > MaxTypoDistance).
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string

	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
		// Early exit for exact match
		if dist == 0 {
			return word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// DetectTypos scans a mnemonic phrase and returns information about detected
// typos. It identifies words that are not in the BIP39 word list and
// suggests corrections.
func DetectTypos(mnemonic string) []TypoInfo {
	if mnemonic == "" {
		return nil
	}

	normalized := NormalizeMnemonicInput(mnemonic)
	var typos []TypoInfo

	for i, word := range strings.Fields(normalized) {
		if IsValidWord(word) {
			continue
		}
		suggestion := SuggestWord(word)
		distance := 0
		if suggestion != "" {
			distance = levenshtein.ComputeDistance(word, suggestion)
		}
		typos = append(typos, TypoInfo{
			Index:      i,
			Word:       word,
			Suggestion: suggestion,
			Distance:   distance,
		})
	}

	return typos
}

// FormatTypoSuggestions formats typo information into a human-readable
// suggestion string, one finding per line.
func FormatTypoSuggestions(typos []TypoInfo) string {
	if len(typos) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, typo := range typos {
		if i > 0 {
			sb.WriteString("\n")
		}
		if typo.Suggestion != "" {
			sb.WriteString("word ")
			sb.WriteString(strings.TrimSpace(typo.Word))
			sb.WriteString(" is not a BIP39 word; did you mean ")
			sb.WriteString(typo.Suggestion)
			sb.WriteString("?")
		} else {
			sb.WriteString("word ")
			sb.WriteString(strings.TrimSpace(typo.Word))
			sb.WriteString(" is not a BIP39 word")
		}
	}
	return sb.String()
}
