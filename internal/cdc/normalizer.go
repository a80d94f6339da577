// Package cdc turns raw change-feed payloads (Debezium envelopes or the plain
// {table, operation, before, after} shape) into model.NormalizedEvent.
package cdc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/metrics"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"go.uber.org/zap"
)

type change struct {
	Before    map[string]json.RawMessage `json:"before"`
	After     map[string]json.RawMessage `json:"after"`
	Op        string                     `json:"op"`
	Operation string                     `json:"operation"`
	Table     string                     `json:"table"`
	Source    struct {
		Table string `json:"table"`
	} `json:"source"`
}

// envelope accepts both the schema-wrapped form ({"schema":..,"payload":{..}})
// and the unwrapped one.
type envelope struct {
	Payload *change `json:"payload"`
	change
}

type Normalizer struct {
	unit time.Duration
	log  *zap.Logger
}

// NewNormalizer builds a normalizer. unit is "ms" or "us" and selects how
// numeric temporal columns are interpreted.
func NewNormalizer(unit string, log *zap.Logger) *Normalizer {
	u := time.Microsecond
	if unit == "ms" {
		u = time.Millisecond
	}
	return &Normalizer{unit: u, log: logger.OrNop(log).Named("normalizer")}
}

// Normalize never fails loudly: anything it cannot use is logged at debug and
// reported with ok=false.
func (n *Normalizer) Normalize(value []byte, topic string) (model.NormalizedEvent, bool) {
	if len(bytes.TrimSpace(value)) == 0 {
		// tombstone
		return model.NormalizedEvent{}, false
	}

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		n.discard(topic, "bad json", zap.Error(err))
		return model.NormalizedEvent{}, false
	}
	ch := env.change
	if env.Payload != nil {
		ch = *env.Payload
	}

	table := ch.Source.Table
	if table == "" {
		table = ch.Table
	}
	if table == "" {
		table = topicTable(topic)
	}
	typ, ok := model.EntityTypeForTable(table)
	if !ok {
		return model.NormalizedEvent{}, false
	}

	opRaw := ch.Op
	if opRaw == "" {
		opRaw = ch.Operation
	}
	op, ok := parseOp(opRaw)
	if !ok {
		if opRaw != "r" {
			n.discard(topic, "unknown op", zap.String("op", opRaw))
		}
		return model.NormalizedEvent{}, false
	}

	ev := model.NormalizedEvent{Type: typ, Op: op}
	switch op {
	case model.OpInsert:
		if ch.After == nil {
			n.discard(topic, "insert without after image")
			return model.NormalizedEvent{}, false
		}
		ev.After = n.partial(ch.After)
	case model.OpDelete:
		if ch.Before == nil {
			n.discard(topic, "delete without before image")
			return model.NormalizedEvent{}, false
		}
		ev.Before = n.partial(ch.Before)
	case model.OpUpdate:
		if ch.After == nil {
			n.discard(topic, "update without after image")
			return model.NormalizedEvent{}, false
		}
		ev.After = n.partial(ch.After)
		if ch.Before != nil {
			ev.Before = n.partial(ch.Before)
		} else {
			// before image unknown; the aggregator will recount
			ev.Before = &model.PartialRow{ID: ev.After.ID}
		}
	}
	return ev, true
}

func (n *Normalizer) discard(topic, reason string, fields ...zap.Field) {
	metrics.FeedEventsTotal.WithLabelValues("unknown", "discarded").Inc()
	n.log.Debug("discarding change event", append(fields, zap.String("topic", topic), zap.String("reason", reason))...)
}

func parseOp(s string) (model.Operation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "create", "insert":
		return model.OpInsert, true
	case "u", "update":
		return model.OpUpdate, true
	case "d", "delete":
		return model.OpDelete, true
	default:
		// "r" is a snapshot read; initial state comes from reconciliation
		return "", false
	}
}

// topicTable takes the last segment of a Debezium topic (server.db.table).
func topicTable(topic string) string {
	if i := strings.LastIndexByte(topic, '.'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (n *Normalizer) partial(cols map[string]json.RawMessage) *model.PartialRow {
	p := &model.PartialRow{}
	if raw, ok := cols["id"]; ok {
		p.ID = decodeID(raw)
	}
	if raw, ok := cols["approved_at"]; ok {
		p.ApprovedAt = n.decodeTime(raw)
	}
	if raw, ok := cols["status_id"]; ok {
		p.StatusID = decodeInt(raw)
	}
	if raw, ok := cols["rejection_reason"]; ok {
		p.RejectionReason = decodeString(raw)
	}
	return p
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func decodeID(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func decodeString(raw json.RawMessage) model.Optional[string] {
	if isNull(raw) {
		return model.NullOf[string]()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Optional[string]{}
	}
	return model.Known(s)
}

func decodeInt(raw json.RawMessage) model.Optional[int64] {
	if isNull(raw) {
		return model.NullOf[int64]()
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if v, err := num.Int64(); err == nil {
			return model.Known(v)
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return model.Known(v)
		}
	}
	return model.Optional[int64]{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// decodeTime leaves the column unknown when the value cannot be read, so the
// caller falls back to a full read instead of guessing.
func (n *Normalizer) decodeTime(raw json.RawMessage) model.Optional[time.Time] {
	if isNull(raw) {
		return model.NullOf[time.Time]()
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if v, err := num.Int64(); err == nil {
			return model.Known(time.Unix(0, v*int64(n.unit)).UTC())
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return model.Known(t.UTC())
			}
		}
	}
	return model.Optional[time.Time]{}
}
