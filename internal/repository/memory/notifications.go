package memory

import (
	"context"
	"sort"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
)

func (l *Ledger) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	l.mu.RLock()
	out := make([]model.Notification, 0)
	for _, n := range l.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n int
	for _, note := range l.notes {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.notes[id]
	if !ok || n.UserID != userID {
		return errs.ErrNotFound
	}
	n.IsRead = true
	l.notes[id] = n
	return nil
}

func (l *Ledger) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var changed int64
	for id, n := range l.notes {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			l.notes[id] = n
			changed++
		}
	}
	return changed, nil
}

func (l *Ledger) Delete(_ context.Context, userID, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.notes[id]
	if !ok || n.UserID != userID {
		return errs.ErrNotFound
	}
	delete(l.notes, id)
	return nil
}
