package storage

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconerrors "github.com/recondor/recondor/internal/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStoreWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleRecord(t *testing.T) *ScanRecord {
	t.Helper()
	rec, err := NewScanRecord(KindPortScan, "example.com", "93.184.216.34", 2,
		map[string]any{"port_scan": map[string]any{"target": "example.com"}})
	require.NoError(t, err)
	return rec
}

func TestNewScanRecord(t *testing.T) {
	rec := sampleRecord(t)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, KindPortScan, rec.Kind)
	assert.Equal(t, "example.com", rec.Target)
	assert.Equal(t, 2, rec.OpenPorts)
	assert.False(t, rec.CreatedAt.IsZero())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Contains(t, payload, "port_scan")
}

func TestSaveScan(t *testing.T) {
	t.Run("inserts record", func(t *testing.T) {
		store, mock := newMockStore(t)
		rec := sampleRecord(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_history")).
			WithArgs(rec.ID, rec.Kind, rec.Target, rec.ResolvedIP,
				rec.OpenPorts, []byte(rec.Payload), rec.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.SaveScan(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps insert failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		rec := sampleRecord(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_history")).
			WillReturnError(errors.New("connection reset"))

		err := store.SaveScan(context.Background(), rec)
		require.Error(t, err)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeStorageQuery))
	})
}

func TestListScans(t *testing.T) {
	columns := []string{"id", "kind", "target", "resolved_ip", "open_ports", "payload", "created_at"}

	t.Run("returns records newest first", func(t *testing.T) {
		store, mock := newMockStore(t)

		now := time.Now().UTC()
		rows := sqlmock.NewRows(columns).
			AddRow(uuid.New(), KindPortScan, "a.example.com", "192.0.2.1", 3,
				[]byte(`{"port_scan":{}}`), now).
			AddRow(uuid.New(), KindDNSLookup, "b.example.com", "", 0,
				[]byte(`{"dns_lookup":{}}`), now.Add(-time.Hour))

		mock.ExpectQuery("SELECT .+ FROM scan_history").
			WithArgs(10).
			WillReturnRows(rows)

		records, err := store.ListScans(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a.example.com", records[0].Target)
		assert.Equal(t, KindDNSLookup, records[1].Kind)
	})

	t.Run("zero limit uses default", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT .+ FROM scan_history").
			WithArgs(DefaultListLimit).
			WillReturnRows(sqlmock.NewRows(columns))

		records, err := store.ListScans(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetScan(t *testing.T) {
	columns := []string{"id", "kind", "target", "resolved_ip", "open_ports", "payload", "created_at"}

	t.Run("returns record by id", func(t *testing.T) {
		store, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectQuery("SELECT .+ FROM scan_history").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(id, KindPortScan, "example.com", "93.184.216.34", 2,
					[]byte(`{"port_scan":{}}`), time.Now().UTC()))

		rec, err := store.GetScan(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "example.com", rec.Target)
	})

	t.Run("missing record reported as storage error", func(t *testing.T) {
		store, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectQuery("SELECT .+ FROM scan_history").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns))

		rec, err := store.GetScan(context.Background(), id)
		require.Error(t, err)
		assert.Nil(t, rec)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeStorageQuery))
	})
}
