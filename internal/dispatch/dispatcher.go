// Package dispatch runs inbound messages through the flow controller one user
// at a time and commits the result.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/flow"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/repo"
)

var (
	// ErrInvalidEnvelope is returned for envelopes without sender or id.
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrBusy means the user's lock could not be taken in time.
	ErrBusy = errors.New("user is busy")
)

type Config struct {
	// LockWait bounds how long a message queues behind another one from
	// the same user.
	LockWait time.Duration
	// DedupTTL is how long a message id is remembered.
	DedupTTL time.Duration
}

// Result is what the transport should deliver. Duplicate is set, and
// Intents empty, for a redelivered message.
type Result struct {
	Intents   []model.OutboundIntent `json:"intents"`
	Duplicate bool                   `json:"duplicate"`
}

// UsageRecorder counts metered features against a user's quota.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID, feature string) error
}

type Dispatcher struct {
	cfg     Config
	store   repo.Store
	flow    *flow.Controller
	usage   UsageRecorder
	seen    SeenSet
	locks   *KeyedLocker
	catalog *i18n.Catalog
	ids     *idGenerator
	now     func() time.Time
	logger  *zap.Logger
}

func New(cfg Config, store repo.Store, controller *flow.Controller, usage UsageRecorder, seen SeenSet,
	catalog *i18n.Catalog, now func() time.Time, logger *zap.Logger) *Dispatcher {
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		flow:    controller,
		usage:   usage,
		seen:    seen,
		locks:   NewKeyedLocker(),
		catalog: catalog,
		ids:     newIDGenerator(),
		now:     now,
		logger:  logger,
	}
}

// Dispatch handles one inbound message. Failures after validation are turned
// into notices for the user; the only error returned is ErrInvalidEnvelope.
func (d *Dispatcher) Dispatch(ctx context.Context, env model.Envelope) (Result, error) {
	if env.From == "" || env.ID == "" {
		return Result{}, ErrInvalidEnvelope
	}
	log := d.logger.With(
		zap.String("user_id", flow.MaskUserID(env.From)),
		zap.String("message_id", env.ID),
		zap.String("turn_id", uuid.NewString()),
	)

	if !env.IsText() {
		return d.notice(env, "", "notice.text_only"), nil
	}

	claimed, err := d.seen.Claim(ctx, env.ID, d.cfg.DedupTTL)
	if err != nil {
		log.Warn("seen set unavailable, processing without dedup", zap.Error(err))
		claimed = true
	}
	if !claimed {
		log.Info("duplicate message dropped")
		return Result{Duplicate: true}, nil
	}

	unlock, err := d.lock(ctx, env.From)
	if err != nil {
		log.Info("user busy", zap.Error(err))
		d.release(env.ID, log)
		return d.notice(env, "", "notice.please_wait"), nil
	}
	defer unlock()

	return d.turn(ctx, env, log), nil
}

func (d *Dispatcher) lock(ctx context.Context, userID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockWait)
	defer cancel()
	unlock, err := d.locks.Lock(lockCtx, userID)
	if err != nil {
		return nil, ErrBusy
	}
	return unlock, nil
}

// turn runs under the user's lock.
func (d *Dispatcher) turn(ctx context.Context, env model.Envelope, log *zap.Logger) Result {
	start := d.now()

	snap, err := d.store.Load(ctx, env.From)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Error("load failed", zap.Error(err))
		d.release(env.ID, log)
		return d.notice(env, "", "error.transient")
	}
	session := model.NewSession(env.From, start)
	if snap.Session != nil {
		session = *snap.Session
	}
	lang := d.language(snap.Profile)

	tr, err := d.flow.Step(ctx, flow.Input{
		Session: session,
		Profile: snap.Profile,
		Text:    env.Body(),
		Now:     start,
	})
	if err != nil {
		var failure *flow.AdapterFailure
		if errors.As(err, &failure) {
			log.Warn("adapter failed, transition discarded",
				zap.String("adapter", failure.Adapter), zap.Error(failure.Err))
			return d.notice(env, lang, "error.service_unavailable")
		}
		log.Error("turn failed", zap.Error(err))
		d.release(env.ID, log)
		return d.notice(env, lang, "error.transient")
	}

	var profile *model.Profile
	if tr.ProfileChanged {
		profile = tr.Profile
	}
	if _, err := d.store.Commit(ctx, tr.Session, profile); err != nil {
		d.release(env.ID, log)
		if errors.Is(err, repo.ErrVersionConflict) {
			log.Warn("session changed concurrently, transition discarded")
			return d.notice(env, lang, "notice.please_wait")
		}
		log.Error("commit failed, transition discarded", zap.Error(err))
		return d.notice(env, lang, "error.transient")
	}
	d.recordUsage(ctx, env.From, tr.Used, log)

	log.Info("turn",
		zap.String("stage_from", session.Stage.String()),
		zap.String("stage_to", tr.Session.Stage.String()),
		zap.Duration("duration", d.now().Sub(start)),
	)

	out := make([]model.OutboundIntent, len(tr.Replies))
	for i, r := range tr.Replies {
		out[i] = d.intent(env, r.Body, r.Kind, r.Options)
	}
	return Result{Intents: out}
}

// ResetSession puts a user back to Greeting, keeping the profile.
func (d *Dispatcher) ResetSession(ctx context.Context, userID string) error {
	unlock, err := d.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := d.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	session := model.NewSession(userID, d.now())
	if snap.Session != nil {
		session = *snap.Session
		session.Reset()
	}
	if _, err := d.store.Commit(ctx, session, nil); err != nil {
		return err
	}
	d.logger.Info("session reset by operator", zap.String("user_id", flow.MaskUserID(userID)))
	return nil
}

// recordUsage reports delivered features to the ledger. The session already
// counts them, so a ledger failure is logged and not surfaced.
func (d *Dispatcher) recordUsage(ctx context.Context, userID string, features []string, log *zap.Logger) {
	if d.usage == nil {
		return
	}
	for _, feature := range features {
		if err := d.usage.RecordUsage(ctx, userID, feature); err != nil {
			log.Warn("record usage failed", zap.String("feature", feature), zap.Error(err))
		}
	}
}

// release forgets a message id whose turn left no trace, so a redelivery
// gets processed.
func (d *Dispatcher) release(id string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.seen.Release(ctx, id); err != nil {
		log.Warn("release message id", zap.Error(err))
	}
}

func (d *Dispatcher) language(p *model.Profile) string {
	if p != nil && d.catalog.Has(p.PreferredLanguage) {
		return p.PreferredLanguage
	}
	return d.catalog.DefaultLanguage()
}

func (d *Dispatcher) notice(env model.Envelope, lang, key string) Result {
	if lang == "" {
		lang = d.catalog.DefaultLanguage()
	}
	body := d.catalog.T(lang, key, nil)
	return Result{Intents: []model.OutboundIntent{d.intent(env, body, model.IntentText, nil)}}
}

func (d *Dispatcher) intent(env model.Envelope, body string, kind model.IntentKind, options []string) model.OutboundIntent {
	return model.OutboundIntent{
		ID:      d.ids.next(d.now()),
		To:      env.From,
		Body:    body,
		Kind:    kind,
		Options: options,
		Context: env.Context,
	}
}
