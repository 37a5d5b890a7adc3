package engine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/grantline/internal/intent"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

var (
	receiver = common.HexToAddress("0x1111111111111111111111111111111111111111")
	asset    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stranger = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func approvedOneTime() *session.OneTime {
	return &session.OneTime{
		Approved:       true,
		ValidAfter:     100,
		ValidUntil:     200,
		RemainingQuota: "100",
		Receiver:       receiver,
		Asset:          asset,
	}
}

func approvedRecurring() *session.Recurring {
	return &session.Recurring{
		Approved:      true,
		AllowedAmount: "50",
		TimePeriod:    86400,
		TimeLimit:     30 * 86400,
		NextInterval:  0,
		Receiver:      receiver,
		Asset:         asset,
	}
}

func transferIntent(amount int64) intent.Intent {
	return intent.Intent{Recipient: receiver, Amount: big.NewInt(amount), Asset: asset}
}

func TestApplyOneTimeDrawsDownQuota(t *testing.T) {
	t.Parallel()

	s := approvedOneTime()

	require.NoError(t, ApplyOneTime(s, transferIntent(60), 150, InclusiveClosed))
	assert.Equal(t, "40", s.RemainingQuota)

	// Second draw exceeds the remainder and must not touch the quota.
	err := ApplyOneTime(s, transferIntent(60), 160, InclusiveClosed)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAmount))
	assert.Equal(t, "40", s.RemainingQuota)

	// The remainder itself is still drawable.
	require.NoError(t, ApplyOneTime(s, transferIntent(40), 170, InclusiveClosed))
	assert.Equal(t, "0", s.RemainingQuota)

	// Exhausted sessions refuse any amount.
	err = ApplyOneTime(s, transferIntent(1), 180, InclusiveClosed)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAmount))
}

func TestApplyOneTimeDenials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(s *session.OneTime)
		in     intent.Intent
		now    uint64
		want   *granterr.GrantError
	}{
		{
			name:   "not approved",
			mutate: func(s *session.OneTime) { s.Approved = false },
			in:     transferIntent(10),
			now:    150,
			want:   granterr.ErrSessionNotApproved,
		},
		{
			name:   "before window",
			mutate: func(*session.OneTime) {},
			in:     transferIntent(10),
			now:    99,
			want:   granterr.ErrInvalidTime,
		},
		{
			name:   "after window",
			mutate: func(*session.OneTime) {},
			in:     transferIntent(10),
			now:    201,
			want:   granterr.ErrInvalidTime,
		},
		{
			name:   "wrong recipient",
			mutate: func(*session.OneTime) {},
			in:     intent.Intent{Recipient: stranger, Amount: big.NewInt(10), Asset: asset},
			now:    150,
			want:   granterr.ErrInvalidAddress,
		},
		{
			name:   "wrong asset",
			mutate: func(*session.OneTime) {},
			in:     intent.Intent{Recipient: receiver, Amount: big.NewInt(10), Asset: stranger},
			now:    150,
			want:   granterr.ErrInvalidAddress,
		},
		{
			name:   "zero amount",
			mutate: func(*session.OneTime) {},
			in:     intent.Intent{Recipient: receiver, Amount: big.NewInt(0), Asset: asset},
			now:    150,
			want:   granterr.ErrInvalidAmount,
		},
		{
			name:   "nil amount",
			mutate: func(*session.OneTime) {},
			in:     intent.Intent{Recipient: receiver, Asset: asset},
			now:    150,
			want:   granterr.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := approvedOneTime()
			tt.mutate(s)

			err := ApplyOneTime(s, tt.in, tt.now, InclusiveClosed)
			require.Error(t, err)
			assert.True(t, granterr.Is(err, tt.want), "got %v", err)
			assert.Equal(t, "100", s.RemainingQuota)
		})
	}
}

func TestWindowPolicyBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		window WindowPolicy
		now    uint64
		want   bool
	}{
		{name: "inclusive lower boundary", window: InclusiveClosed, now: 100, want: true},
		{name: "inclusive upper boundary", window: InclusiveClosed, now: 200, want: true},
		{name: "inclusive inside", window: InclusiveClosed, now: 150, want: true},
		{name: "inclusive below", window: InclusiveClosed, now: 99, want: false},
		{name: "strict lower boundary", window: StrictOpen, now: 100, want: false},
		{name: "strict upper boundary", window: StrictOpen, now: 200, want: false},
		{name: "strict inside", window: StrictOpen, now: 150, want: true},
		{name: "strict above", window: StrictOpen, now: 201, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := approvedOneTime()
			err := ApplyOneTime(s, transferIntent(10), tt.now, tt.window)
			if tt.want {
				require.NoError(t, err)
			} else {
				assert.True(t, granterr.Is(err, granterr.ErrInvalidTime), "got %v", err)
			}
		})
	}
}

func TestApplyRecurringSubscription(t *testing.T) {
	t.Parallel()

	s := approvedRecurring()

	// First execution at its due time advances by exactly one period.
	require.NoError(t, ApplyRecurring(s, transferIntent(50), 0))
	assert.Equal(t, uint64(86400), s.NextInterval)

	// One hour later the next interval is not due yet.
	err := ApplyRecurring(s, transferIntent(50), 3600)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidTime))
	assert.Equal(t, uint64(86400), s.NextInterval)

	// The next day it is.
	require.NoError(t, ApplyRecurring(s, transferIntent(50), 86400))
	assert.Equal(t, uint64(2*86400), s.NextInterval)
}

func TestApplyRecurringExactAmountOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount int64
	}{
		{name: "less than allowed", amount: 49},
		{name: "more than allowed", amount: 51},
		{name: "zero", amount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := approvedRecurring()
			err := ApplyRecurring(s, transferIntent(tt.amount), 0)
			require.Error(t, err)
			assert.True(t, granterr.Is(err, granterr.ErrInvalidAmount))
			assert.Equal(t, uint64(0), s.NextInterval)
		})
	}
}

func TestApplyRecurringExpiry(t *testing.T) {
	t.Parallel()

	s := approvedRecurring()

	// At the limit is still allowed; past it is not.
	s.NextInterval = s.TimeLimit
	require.NoError(t, ApplyRecurring(s, transferIntent(50), s.TimeLimit))

	err := ApplyRecurring(s, transferIntent(50), s.TimeLimit+1)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidTime))
}

func TestApplyRecurringNotApproved(t *testing.T) {
	t.Parallel()

	s := approvedRecurring()
	s.Approved = false

	err := ApplyRecurring(s, transferIntent(50), 0)
	assert.True(t, granterr.Is(err, granterr.ErrSessionNotApproved))
}

func TestApplyRecurringAddressMismatch(t *testing.T) {
	t.Parallel()

	s := approvedRecurring()
	err := ApplyRecurring(s, intent.Intent{Recipient: stranger, Amount: big.NewInt(50), Asset: asset}, 0)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAddress))
}

func TestWindowFromConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StrictOpen, WindowFromConfig("strict-open"))
	assert.Equal(t, InclusiveClosed, WindowFromConfig("inclusive-closed"))
	assert.Equal(t, InclusiveClosed, WindowFromConfig("bogus"))

	assert.Equal(t, "strict-open", StrictOpen.String())
	assert.Equal(t, "inclusive-closed", InclusiveClosed.String())
}
