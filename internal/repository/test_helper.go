package repository

import (
	"reflect"
	"testing"

	"github.com/hitchly/engagement-tracker/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&RecipientEntity{}, &TrackingEventEntity{})
	require.NoError(t, err)

	// AutoMigrate cannot express the partial unique index the postgres
	// migration creates; sqlite accepts the same DDL.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_events_delivery_status
		ON tracking_events (tenant_id, message_sid, event_type)
		WHERE event_type IN ('message_delivered','message_read','message_failed')`).Error
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return &testDB{
		DB:    pgDB,
		rawDB: db,
	}
}
