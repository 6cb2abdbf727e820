package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobot/server/internal/model"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestMemoryStore_commitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	sess := model.NewSession("u1", now)
	p := model.NewProfile("u1", "en")
	p.BirthDate = strPtr("15061990")

	saved, err := s.Commit(ctx, sess, &p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	snap, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "15061990", *snap.Profile.BirthDate)
	assert.False(t, snap.Profile.CreatedAt.IsZero())

	// Loaded values are copies.
	*snap.Profile.BirthDate = "01011990"
	again, _ := s.Load(ctx, "u1")
	assert.Equal(t, "15061990", *again.Profile.BirthDate)
}

func TestMemoryStore_rejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := model.NewSession("u1", now)

	_, err := s.Commit(ctx, sess, nil)
	require.NoError(t, err)

	// A second writer that also started from "no session" loses.
	_, err = s.Commit(ctx, sess, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)

	sess.Version = 1
	saved, err := s.Commit(ctx, sess, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	_, err = s.Commit(ctx, sess, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

var sessionCols = []string{"stage", "menu_path", "last_activity_at", "usage_counters", "usage_period", "version"}

var profileCols = []string{"birth_date", "birth_time", "birth_time_skipped", "birth_place", "preferred_language",
	"subscription_tier", "subscription_status", "confirmed_at", "created_at", "updated_at"}

func TestPostgresStore_load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT stage, menu_path, last_activity_at").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("in_menu", "{chart}", now, `{"natal_chart":1}`, "2026-10", int64(4)))
	mock.ExpectQuery("SELECT birth_date, birth_time").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileCols).
			AddRow("15061990", nil, true, `{"name":"London, UK","latitude":51.5,"longitude":-0.12,"timezone":"Europe/London"}`,
				"es", "premium", "active", now, now, now))

	snap, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)

	require.NotNil(t, snap.Session)
	assert.Equal(t, model.InMenu(), snap.Session.Stage)
	assert.Equal(t, []string{"chart"}, snap.Session.MenuPath)
	assert.Equal(t, 1, snap.Session.UsageCounters["natal_chart"])
	assert.Equal(t, int64(4), snap.Session.Version)

	require.NotNil(t, snap.Profile)
	assert.Equal(t, "15061990", *snap.Profile.BirthDate)
	assert.Nil(t, snap.Profile.BirthTime)
	assert.True(t, snap.Profile.BirthTimeSkipped)
	assert.Equal(t, "Europe/London", snap.Profile.BirthPlace.Timezone)
	assert.Equal(t, model.TierPremium, snap.Profile.SubscriptionTier)
	assert.True(t, snap.Profile.Confirmed())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_loadUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT stage").WithArgs("nobody").WillReturnRows(sqlmock.NewRows(sessionCols))
	mock.ExpectQuery("SELECT birth_date").WithArgs("nobody").WillReturnRows(sqlmock.NewRows(profileCols))

	_, err = NewPostgresStore(db).Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_commitUpdatesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sess := model.NewSession("u1", now)
	sess.Version = 3
	p := model.NewProfile("u1", "en")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE sessions").
		WithArgs("u1", "greeting", sqlmock.AnyArg(), now, "{}", "2026-10", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := NewPostgresStore(db).Commit(context.Background(), sess, &p)
	require.NoError(t, err)
	assert.Equal(t, int64(4), saved.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_commitConflictRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sess := model.NewSession("u1", now)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = NewPostgresStore(db).Commit(context.Background(), sess, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
