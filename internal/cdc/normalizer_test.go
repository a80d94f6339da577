package cdc

import (
	"testing"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/stretchr/testify/require"
)

const productsTopic = "marketplace.marketplace.products"

func TestNormalizeDebeziumUpdate(t *testing.T) {
	n := NewNormalizer("us", nil)
	raw := `{
	  "schema": {},
	  "payload": {
	    "before": {"id": "P1", "approved_at": null, "status_id": null, "rejection_reason": null},
	    "after":  {"id": "P1", "approved_at": 1709287200000000, "status_id": 1, "rejection_reason": null},
	    "op": "u",
	    "source": {"db": "marketplace", "table": "products"}
	  }
	}`

	ev, ok := n.Normalize([]byte(raw), productsTopic)
	require.True(t, ok)
	require.Equal(t, model.EntityProduct, ev.Type)
	require.Equal(t, model.OpUpdate, ev.Op)
	require.Equal(t, "P1", ev.EntityID())

	require.True(t, ev.Before.ApprovedAt.Present)
	require.True(t, ev.Before.ApprovedAt.Null)
	require.True(t, ev.After.ApprovedAt.Present)
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ev.After.ApprovedAt.Value)
	require.EqualValues(t, model.StatusActive, ev.After.StatusID.Value)
}

func TestNormalizePlainShape(t *testing.T) {
	n := NewNormalizer("ms", nil)
	raw := `{"table": "seller_applications", "operation": "INSERT", "before": null,
	         "after": {"id": 17, "approved_at": null, "rejection_reason": ""}}`

	ev, ok := n.Normalize([]byte(raw), "")
	require.True(t, ok)
	require.Equal(t, model.EntitySellerApplication, ev.Type)
	require.Equal(t, model.OpInsert, ev.Op)
	require.Nil(t, ev.Before)
	require.Equal(t, "17", ev.After.ID)
	require.Equal(t, model.Known(""), ev.After.RejectionReason)
}

func TestNormalizeSentinelAndStringTimes(t *testing.T) {
	n := NewNormalizer("ms", nil)

	ev, ok := n.Normalize([]byte(`{"op":"u","source":{"table":"products"},
		"before":{"id":"P3","approved_at":null},
		"after":{"id":"P3","approved_at":0,"rejection_reason":"fake listing"}}`), productsTopic)
	require.True(t, ok)
	require.True(t, model.IsRejectedSentinel(ev.After.ApprovedAt.Value))

	ev, ok = n.Normalize([]byte(`{"op":"u","source":{"table":"products"},
		"before":{"id":"P4"},
		"after":{"id":"P4","approved_at":"2024-03-01T10:00:00Z"}}`), productsTopic)
	require.True(t, ok)
	require.Equal(t, 2024, ev.After.ApprovedAt.Value.Year())
	require.False(t, ev.Before.ApprovedAt.Present, "omitted columns stay unknown")
}

func TestNormalizeUnreadableTimeIsUnknown(t *testing.T) {
	n := NewNormalizer("us", nil)
	ev, ok := n.Normalize([]byte(`{"op":"c","source":{"table":"products"},
		"after":{"id":"P5","approved_at":"yesterday","rejection_reason":null}}`), productsTopic)
	require.True(t, ok)
	require.False(t, ev.After.ApprovedAt.Present)
}

func TestNormalizeDelete(t *testing.T) {
	n := NewNormalizer("us", nil)
	ev, ok := n.Normalize([]byte(`{"payload":{"op":"d","source":{"table":"products"},
		"before":{"id":"P6","approved_at":null,"rejection_reason":null},"after":null}}`), productsTopic)
	require.True(t, ok)
	require.Equal(t, model.OpDelete, ev.Op)
	require.Nil(t, ev.After)
	require.Equal(t, "P6", ev.EntityID())
}

func TestNormalizeUpdateWithoutBeforeMarksUnknown(t *testing.T) {
	n := NewNormalizer("us", nil)
	ev, ok := n.Normalize([]byte(`{"op":"u","source":{"table":"products"},
		"after":{"id":"P7","approved_at":null,"rejection_reason":null}}`), productsTopic)
	require.True(t, ok)
	require.NotNil(t, ev.Before)
	require.Equal(t, "P7", ev.Before.ID)
	require.False(t, ev.Before.ApprovedAt.Present)
}

func TestNormalizeTableFromTopic(t *testing.T) {
	n := NewNormalizer("us", nil)
	ev, ok := n.Normalize([]byte(`{"op":"c","after":{"id":"A1","rejection_reason":null}}`),
		"marketplace.marketplace.seller_applications")
	require.True(t, ok)
	require.Equal(t, model.EntitySellerApplication, ev.Type)
}

func TestNormalizeDiscards(t *testing.T) {
	n := NewNormalizer("us", nil)
	cases := map[string]string{
		"tombstone":        ``,
		"not json":         `{"op":`,
		"untracked table":  `{"op":"c","source":{"table":"crops"},"after":{"id":"c1"}}`,
		"snapshot read":    `{"op":"r","source":{"table":"products"},"after":{"id":"P1"}}`,
		"unknown op":       `{"op":"t","source":{"table":"products"}}`,
		"insert no after":  `{"op":"c","source":{"table":"products"}}`,
		"delete no before": `{"op":"d","source":{"table":"products"}}`,
		"image not object": `{"op":"c","source":{"table":"products"},"after":"P1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := n.Normalize([]byte(raw), "")
			require.False(t, ok)
		})
	}
}
