package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hoganho/kingsroom-sub012/internal/game"
)

// EntityStore persists entities and their venues.
type EntityStore struct {
	db *sqlx.DB
}

func NewEntityStore(db *sqlx.DB) *EntityStore {
	return &EntityStore{db: db}
}

// Get returns an entity by id, or ErrNotFound.
func (s *EntityStore) Get(ctx context.Context, id string) (*game.Entity, error) {
	var e game.Entity
	err := s.db.GetContext(ctx, &e, "SELECT * FROM entities WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	return &e, nil
}

// Upsert creates or replaces an entity row.
func (s *EntityStore) Upsert(ctx context.Context, e *game.Entity) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO entities (id, name, url_base) VALUES (:id, :name, :url_base)
		 ON CONFLICT(id) DO UPDATE SET name = :name, url_base = :url_base`, e)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

// Venues returns the venues owned by an entity.
func (s *EntityStore) Venues(ctx context.Context, entityID string) ([]game.Venue, error) {
	var venues []game.Venue
	err := s.db.SelectContext(ctx, &venues,
		"SELECT * FROM venues WHERE entity_id = ? ORDER BY name ASC", entityID)
	if err != nil {
		return nil, fmt.Errorf("listing venues: %w", err)
	}
	return venues, nil
}

// MatchVenue finds a venue whose name or alias appears in the hint text,
// case-insensitively. Returns nil when nothing matches.
func (s *EntityStore) MatchVenue(ctx context.Context, entityID, hint string) (*game.Venue, error) {
	if strings.TrimSpace(hint) == "" {
		return nil, nil
	}
	venues, err := s.Venues(ctx, entityID)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(hint)
	for i := range venues {
		v := &venues[i]
		if strings.Contains(lower, strings.ToLower(v.Name)) {
			return v, nil
		}
		for _, alias := range strings.Split(v.Aliases, ",") {
			alias = strings.TrimSpace(alias)
			if alias != "" && strings.Contains(lower, strings.ToLower(alias)) {
				return v, nil
			}
		}
	}
	return nil, nil
}
