package engagement

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
)

// ReputationStore is the persistence the ledger needs. *sqlite.Store and
// *sqlite.DB both satisfy it.
type ReputationStore interface {
	AddReputation(ctx context.Context, userID string, delta int) (int, error)
	AppendActivity(ctx context.Context, e domain.ActivityEntry) error
}

// Ledger applies reputation deltas and records an audit entry for each.
//
// The reputation update is authoritative. The audit append is best effort:
// if it fails the error is logged and the update stands.
type Ledger struct {
	store ReputationStore
	log   *zap.Logger
}

// NewLedger creates a ledger over store.
func NewLedger(store ReputationStore, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, log: log}
}

// WithStore returns a ledger bound to another store, typically one scoped
// to an open transaction.
func (l *Ledger) WithStore(store ReputationStore) *Ledger {
	return &Ledger{store: store, log: l.log}
}

// Apply looks up the scheduled points for action and applies them.
func (l *Ledger) Apply(ctx context.Context, userID string, action domain.Action, meta map[string]any) (int, error) {
	def, ok := action.Def()
	if !ok {
		return 0, domain.ErrUnknownAction.With(map[string]any{"action": string(action)})
	}
	return l.ApplyDelta(ctx, userID, action, def.Points, meta)
}

// ApplyDelta adds points (possibly negative) to the user's reputation and
// returns the new reputation. Unknown users yield domain.ErrUserNotFound.
func (l *Ledger) ApplyDelta(ctx context.Context, userID string, action domain.Action, points int, meta map[string]any) (int, error) {
	rep, err := l.store.AddReputation(ctx, userID, points)
	if err != nil {
		return 0, err
	}
	metrics.ObserveReputation(string(action), points)

	details := make(map[string]any, len(meta)+2)
	maps.Copy(details, meta)
	details["acao"] = string(action)
	details["pontos"] = points

	if err := l.store.AppendActivity(ctx, domain.ActivityEntry{
		UserID:  userID,
		Action:  domain.LogReputationChanged,
		Details: details,
	}); err != nil {
		l.log.Warn("reputation audit append failed",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Int("points", points),
			zap.Error(err),
		)
	}
	return rep, nil
}
