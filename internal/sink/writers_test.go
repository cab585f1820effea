package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
)

func testEvents(types ...envelope.Type) []Event {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := make([]Event, len(types))
	for i, typ := range types {
		out[i] = NewEvent(envelope.Envelope{
			Type:      typ,
			Timestamp: "2026-01-02T03:04:05",
			Raw:       json.RawMessage(`{"type":"` + string(typ) + `"}`),
		}, at)
	}
	return out
}

// fakeBatch answers each queued statement with the next tag.
type fakeBatch struct {
	queued []*pgx.QueuedQuery
	tags   []string
	err    error
	closed bool
}

func (f *fakeBatch) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.queued = b.QueuedQueries
	return f
}

func (f *fakeBatch) Exec() (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	tag := f.tags[0]
	f.tags = f.tags[1:]
	return pgconn.NewCommandTag(tag), nil
}

func (f *fakeBatch) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (f *fakeBatch) QueryRow() pgx.Row        { return nil }
func (f *fakeBatch) Close() error {
	f.closed = true
	return nil
}

func TestPostgres_Write(t *testing.T) {
	db := &fakeBatch{tags: []string{"INSERT 0 1", "INSERT 0 0"}}
	events := testEvents(envelope.TypeCostUpdate, envelope.TypeJobStatus)

	written, err := NewPostgres(db).Write(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.True(t, db.closed)

	require.Len(t, db.queued, 2)
	assert.Contains(t, db.queued[0].SQL, "INSERT INTO notification_events")
	assert.Contains(t, db.queued[0].SQL, "ON CONFLICT (id) DO NOTHING")
	assert.Equal(t, []any{
		events[0].ID,
		"cost_update",
		"2026-01-02T03:04:05",
		events[0].SentAt,
		events[0].ReceivedAt,
		[]byte(`{"type":"cost_update"}`),
	}, db.queued[0].Arguments)
}

func TestPostgres_WriteError(t *testing.T) {
	db := &fakeBatch{err: errors.New("connection refused")}

	_, err := NewPostgres(db).Write(context.Background(), testEvents(envelope.TypeCostUpdate))
	assert.ErrorContains(t, err, "connection refused")
	assert.True(t, db.closed)
}

// fakePublisher records publishes.
type fakePublisher struct {
	channels []string
	messages []string
	failOn   int // 1-based publish index to fail, 0 = never
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if f.failOn == len(f.channels)+1 {
		return redis.NewIntResult(0, errors.New("READONLY"))
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func TestRedis_Write(t *testing.T) {
	pub := &fakePublisher{}
	events := testEvents(envelope.TypeCostUpdate, envelope.TypeWasteDetected)

	written, err := NewRedis(pub, "notify").Write(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, []string{"notify:cost_update", "notify:waste_detected"}, pub.channels)
	assert.Equal(t, `{"type":"cost_update"}`, pub.messages[0])
}

func TestRedis_WriteStopsAtFailure(t *testing.T) {
	pub := &fakePublisher{failOn: 2}
	events := testEvents(envelope.TypeCostUpdate, envelope.TypeJobStatus, envelope.TypeAccountStatus)

	written, err := NewRedis(pub, "n").Write(context.Background(), events)
	assert.ErrorContains(t, err, "publish n:job_status")
	assert.Equal(t, 1, written)
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not-a-url", time.Second)
	assert.Error(t, err)
}

func TestLog_Write(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelInfo)

	n, err := l.Write(context.Background(), testEvents(envelope.TypeRecommendationReady))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "type=recommendation_ready")
	assert.Equal(t, "log", l.Name())
}
