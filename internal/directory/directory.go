// Package directory maps participant ids to display names.
//
// Participants are persisted as one JSON array under storage.KeyParticipants.
// Names are matched case-insensitively and are not unique at the storage
// layer; GetOrCreateByName is what keeps them deduplicated in practice.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"dividi/internal/core"
	"dividi/internal/storage"
)

// Directory is the participant registry.
type Directory struct {
	mu    sync.Mutex
	kv    storage.KV
	newID func() core.ParticipantID
}

// Option configures a Directory.
type Option func(*Directory)

// WithIDGenerator overrides UUID allocation.
func WithIDGenerator(fn func() core.ParticipantID) Option {
	return func(d *Directory) { d.newID = fn }
}

func New(kv storage.KV, opts ...Option) *Directory {
	d := &Directory{
		kv: kv,
		newID: func() core.ParticipantID {
			return core.ParticipantID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Directory) load(ctx context.Context) ([]core.Participant, error) {
	ps, err := storage.LoadOr(ctx, d.kv, storage.KeyParticipants, []core.Participant{})
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	return ps, nil
}

// List returns every participant in creation order.
func (d *Directory) List(ctx context.Context) ([]core.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(ctx)
}

// Get looks a participant up by id only.
func (d *Directory) Get(ctx context.Context, id core.ParticipantID) (core.Participant, error) {
	ps, err := d.List(ctx)
	if err != nil {
		return core.Participant{}, err
	}
	for _, p := range ps {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Participant{}, fmt.Errorf("participant %q: %w", id, core.ErrNotFound)
}

// Resolve matches ref against ids first, then names (case-insensitive).
func (d *Directory) Resolve(ctx context.Context, ref string) (core.Participant, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.Participant{}, fmt.Errorf("participant %q: %w", ref, core.ErrNotFound)
	}
	ps, err := d.List(ctx)
	if err != nil {
		return core.Participant{}, err
	}
	for _, p := range ps {
		if string(p.ID) == ref {
			return p, nil
		}
	}
	if p, ok := findByName(ps, ref); ok {
		return p, nil
	}
	return core.Participant{}, fmt.Errorf("participant %q: %w", ref, core.ErrNotFound)
}

// GetOrCreateByName returns the participant with a matching name, creating it if needed.
func (d *Directory) GetOrCreateByName(ctx context.Context, name string) (core.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Participant{}, core.ErrEmptyName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ps, err := d.load(ctx)
	if err != nil {
		return core.Participant{}, err
	}
	if p, ok := findByName(ps, name); ok {
		return p, nil
	}

	p := core.Participant{ID: d.newID(), Name: name}
	if err := d.kv.Save(ctx, storage.KeyParticipants, append(ps, p)); err != nil {
		return core.Participant{}, fmt.Errorf("save participants: %w", err)
	}

	slog.InfoContext(ctx, "Participant created", "participant_id", p.ID, "name", p.Name)
	return p, nil
}

// Rename changes a participant's display name. The id is unchanged.
func (d *Directory) Rename(ctx context.Context, id core.ParticipantID, name string) (core.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Participant{}, core.ErrEmptyName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ps, err := d.load(ctx)
	if err != nil {
		return core.Participant{}, err
	}
	for i := range ps {
		if ps[i].ID != id {
			continue
		}
		ps[i].Name = name
		if err := d.kv.Save(ctx, storage.KeyParticipants, ps); err != nil {
			return core.Participant{}, fmt.Errorf("save participants: %w", err)
		}
		return ps[i], nil
	}
	return core.Participant{}, fmt.Errorf("participant %q: %w", id, core.ErrNotFound)
}

// DisplayName never fails: unknown ids and storage errors fall back to the raw id.
func (d *Directory) DisplayName(ctx context.Context, id core.ParticipantID) string {
	p, err := d.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Display name lookup failed", "participant_id", id, "error", err)
		}
		return string(id)
	}
	return p.Name
}

// Names resolves display names for many ids with a single load.
func (d *Directory) Names(ctx context.Context) map[core.ParticipantID]string {
	ps, err := d.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Participant list failed", "error", err)
		return map[core.ParticipantID]string{}
	}
	out := make(map[core.ParticipantID]string, len(ps))
	for _, p := range ps {
		out[p.ID] = p.Name
	}
	return out
}

func findByName(ps []core.Participant, name string) (core.Participant, bool) {
	for _, p := range ps {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return p, true
		}
	}
	return core.Participant{}, false
}
