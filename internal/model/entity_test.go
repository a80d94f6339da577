package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeApproval(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		in    sql.NullTime
		state ApprovalState
		when  *time.Time
	}{
		{"absent is pending", sql.NullTime{}, StatePending, nil},
		{"sentinel is rejected", sql.NullTime{Time: time.Unix(0, 0), Valid: true}, StateRejected, nil},
		{"real instant is approved", sql.NullTime{Time: at, Valid: true}, StateApproved, &at},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, when := DecodeApproval(tc.in)
			require.Equal(t, tc.state, state)
			require.Equal(t, tc.when, when)
		})
	}
}

func TestEncodeApprovalRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, st := range []ApprovalState{StatePending, StateApproved, StateRejected} {
		got, _ := DecodeApproval(EncodeApproval(st, at))
		require.Equal(t, st, got)
	}
}

func TestParseEntityType(t *testing.T) {
	for in, want := range map[string]EntityType{
		"applications":         EntitySellerApplication,
		" Seller_Application ": EntitySellerApplication,
		"products":             EntityProduct,
		"product":              EntityProduct,
	} {
		got, ok := ParseEntityType(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}

	_, ok := ParseEntityType("crops")
	require.False(t, ok)
}

func TestEntityRowDecode(t *testing.T) {
	row := EntityRow{
		ID:              "p-1",
		ApprovedAt:      sql.NullTime{Time: time.Now(), Valid: true},
		StatusID:        sql.NullInt64{Int64: int64(StatusSuspended), Valid: true},
		RejectionReason: sql.NullString{String: "policy violation", Valid: true},
	}
	e := row.Decode(EntityProduct)
	require.True(t, e.IsSuspended())
	require.False(t, e.IsActive())
	require.Equal(t, "policy violation", e.RejectionReason)
	require.Equal(t, "approved/suspended", StateLabel(e))

	p := row.Partial()
	require.True(t, p.ApprovedAt.Present)
	require.False(t, p.ApprovedAt.Null)
	require.Equal(t, int64(StatusSuspended), p.StatusID.Value)
}
