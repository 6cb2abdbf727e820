package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/astrobot/server/internal/model"
)

type pgStore struct {
	db *sqlx.DB
}

// NewPostgresStore keeps states in the subscriptions table.
func NewPostgresStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

type subscriptionRow struct {
	UserID    string    `db:"user_id"`
	Tier      string    `db:"tier"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *pgStore) Get(ctx context.Context, userID string) (State, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, tier, status, updated_at FROM subscriptions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return FreeState, nil
	}
	if err != nil {
		return State{}, err
	}
	return State{Tier: model.ParseTier(row.Tier), Status: model.ParseSubscriptionStatus(row.Status)}, nil
}

func (s *pgStore) Set(ctx context.Context, userID string, st State) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, updated_at)
		VALUES (:user_id, :tier, :status, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		subscriptionRow{UserID: userID, Tier: string(st.Tier), Status: string(st.Status), UpdatedAt: time.Now().UTC()})
	return err
}
