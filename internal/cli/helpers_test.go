package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	granterr "github.com/grantline/grantline/pkg/errors"
)

// TestParseAddress verifies hex address parsing and rejection.
func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid checksummed", "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", false},
		{"valid lowercase", "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", false},
		{"missing prefix", "7E5F4552091A69125d5DfCb7b8C2659029395Bdf", false},
		{"too short", "0x7E5F", true},
		{"not hex", "0xZZZZ4552091A69125d5DfCb7b8C2659029395Bdf", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			addr, err := parseAddress("to", tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, granterr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", addr.Hex())
		})
	}
}

// TestParseAmount verifies decimal amount parsing.
func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"small", "1", "1", false},
		{"large", "1000000000000000000000", "1000000000000000000000", false},
		{"zero", "0", "", true},
		{"negative", "-5", "", true},
		{"hex", "0x10", "", true},
		{"not a number", "ten", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := parseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, granterr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

// TestParseSessionID verifies session id argument parsing.
func TestParseSessionID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"one", "1", 1, false},
		{"large", "18446744073709551615", 18446744073709551615, false},
		{"zero", "0", 0, true},
		{"negative", "-1", 0, true},
		{"not a number", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := parseSessionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, granterr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

// TestWriteJSON verifies indented JSON encoding.
func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeJSON(&buf, map[string]any{"session_id": 1, "kind": "one-time"})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "\n")
	assert.Contains(t, output, "  ")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.InDelta(t, float64(1), decoded["session_id"], 0.0)
	assert.Equal(t, "one-time", decoded["kind"])
}

// TestExpandHome verifies tilde expansion.
func TestExpandHome(t *testing.T) {
	t.Parallel()

	expanded := expandHome("~/.grantline")
	assert.NotContains(t, expanded, "~")
	assert.Contains(t, expanded, ".grantline")

	// Absolute paths pass through untouched.
	assert.Equal(t, "/tmp/grantline", expandHome("/tmp/grantline"))
}

// TestUintString verifies decimal formatting of ids.
func TestUintString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", uintString(0))
	assert.Equal(t, "42", uintString(42))
	assert.Equal(t, "18446744073709551615", uintString(18446744073709551615))
}
