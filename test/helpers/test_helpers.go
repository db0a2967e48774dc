package helpers

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/internal/repository"
	"github.com/hitchly/engagement-tracker/pkg/pg"
	"github.com/hitchly/engagement-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.RecipientEntity{},
		&repository.TrackingEventEntity{},
	)
	require.NoError(t, err)

	// Partial composite unique index that gorm tags cannot express.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_events_delivery_status
		ON tracking_events (tenant_id, message_sid, event_type)
		WHERE event_type IN ('message_delivered', 'message_read', 'message_failed')`).Error
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// NewRedisAdapter caches by connection name; key on the miniredis
	// address so each test gets its own adapter.
	adapter, err := redis.NewRedisAdapter("test-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestRecipient(t *testing.T, db *pg.DB, tenantID int64, name, mobile string) *repository.RecipientEntity {
	ctx := context.Background()
	rec := &repository.RecipientEntity{
		TenantID:  tenantID,
		Name:      name,
		Mobile:    mobile,
		CreatedAt: time.Now(),
	}
	err := db.Write(ctx).Create(rec).Error
	require.NoError(t, err)
	return rec
}

func CreateTestEvent(t *testing.T, db *pg.DB, ev *model.TrackingEvent) *repository.TrackingEventEntity {
	ctx := context.Background()
	meta := ""
	if !ev.Metadata.IsZero() {
		b, err := json.Marshal(ev.Metadata)
		require.NoError(t, err)
		meta = string(b)
	}
	row := &repository.TrackingEventEntity{
		TenantID:       ev.TenantID,
		RecipientID:    ev.RecipientID,
		EventType:      string(ev.EventType),
		Channel:        string(ev.Channel),
		MessageSID:     ev.MessageSID,
		Metadata:       meta,
		AdminTriggered: ev.AdminTriggered,
		Timestamp:      ev.Timestamp,
	}
	err := db.Write(ctx).Create(row).Error
	require.NoError(t, err)
	return row
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
