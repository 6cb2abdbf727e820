package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/astrobot/server/internal/model"
)

type pgStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store over the sessions and profiles tables.
func NewPostgresStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Load(ctx context.Context, userID string) (Snapshot, error) {
	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	prof, err := s.loadProfile(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if sess == nil && prof == nil {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{Session: sess, Profile: prof}, nil
}

func (s *pgStore) loadSession(ctx context.Context, userID string) (*model.Session, error) {
	var (
		sess     = model.Session{UserID: userID}
		stage    string
		counters []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stage, menu_path, last_activity_at, usage_counters, usage_period, version
		FROM sessions
		WHERE user_id = $1
	`, userID).Scan(&stage, pq.Array(&sess.MenuPath), &sess.LastActivityAt, &counters, &sess.UsagePeriod, &sess.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.Stage = model.ParseStage(stage)
	sess.UsageCounters = map[string]int{}
	if len(counters) > 0 {
		if err := json.Unmarshal(counters, &sess.UsageCounters); err != nil {
			return nil, fmt.Errorf("decode usage counters: %w", err)
		}
	}
	if len(sess.MenuPath) == 0 {
		sess.MenuPath = nil
	}
	return &sess, nil
}

func (s *pgStore) loadProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var (
		p           = model.Profile{UserID: userID}
		date, tm    sql.NullString
		place       []byte
		tier, state string
		confirmedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT birth_date, birth_time, birth_time_skipped, birth_place, preferred_language,
		       subscription_tier, subscription_status, confirmed_at, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&date, &tm, &p.BirthTimeSkipped, &place, &p.PreferredLanguage,
		&tier, &state, &confirmedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	if date.Valid {
		p.BirthDate = &date.String
	}
	if tm.Valid {
		p.BirthTime = &tm.String
	}
	if len(place) > 0 {
		var pl model.Place
		if err := json.Unmarshal(place, &pl); err != nil {
			return nil, fmt.Errorf("decode birth place: %w", err)
		}
		p.BirthPlace = &pl
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	p.SubscriptionTier = model.ParseTier(tier)
	p.SubscriptionStatus = model.ParseSubscriptionStatus(state)
	return &p, nil
}

func (s *pgStore) Commit(ctx context.Context, session model.Session, profile *model.Profile) (model.Session, error) {
	counters, err := json.Marshal(session.UsageCounters)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode usage counters: %w", err)
	}
	path := session.MenuPath
	if path == nil {
		path = []string{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serializes writers for the same user across processes until COMMIT.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, session.UserID); err != nil {
		return model.Session{}, fmt.Errorf("advisory lock: %w", err)
	}

	var res sql.Result
	if session.Version == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (user_id, stage, menu_path, last_activity_at, usage_counters, usage_period, version)
			VALUES ($1, $2, $3, $4, $5, $6, 1)
			ON CONFLICT (user_id) DO NOTHING
		`, session.UserID, session.Stage.String(), pq.Array(path), session.LastActivityAt, string(counters), session.UsagePeriod)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE sessions
			SET stage = $2, menu_path = $3, last_activity_at = $4, usage_counters = $5,
			    usage_period = $6, version = version + 1
			WHERE user_id = $1 AND version = $7
		`, session.UserID, session.Stage.String(), pq.Array(path), session.LastActivityAt, string(counters), session.UsagePeriod, session.Version)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("write session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Session{}, ErrVersionConflict
	}

	if profile != nil {
		if err := upsertProfile(ctx, tx, profile); err != nil {
			return model.Session{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, fmt.Errorf("commit: %w", err)
	}
	session.Version++
	return session, nil
}

func upsertProfile(ctx context.Context, tx *sql.Tx, p *model.Profile) error {
	var place sql.NullString
	if p.BirthPlace != nil {
		b, err := json.Marshal(p.BirthPlace)
		if err != nil {
			return fmt.Errorf("encode birth place: %w", err)
		}
		place = sql.NullString{String: string(b), Valid: true}
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, birth_date, birth_time, birth_time_skipped, birth_place,
		                      preferred_language, subscription_tier, subscription_status,
		                      confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id) DO UPDATE
		SET birth_date = EXCLUDED.birth_date,
		    birth_time = EXCLUDED.birth_time,
		    birth_time_skipped = EXCLUDED.birth_time_skipped,
		    birth_place = EXCLUDED.birth_place,
		    preferred_language = EXCLUDED.preferred_language,
		    subscription_tier = EXCLUDED.subscription_tier,
		    subscription_status = EXCLUDED.subscription_status,
		    confirmed_at = EXCLUDED.confirmed_at,
		    updated_at = now()
	`, p.UserID, p.BirthDate, p.BirthTime, p.BirthTimeSkipped, place,
		p.PreferredLanguage, string(p.SubscriptionTier), string(p.SubscriptionStatus),
		p.ConfirmedAt, created)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
