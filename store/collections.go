package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devmarvs/yaade/db"
)

// Collection groups requests of one owner. Version starts at 1 and grows
// with every update.
type Collection struct {
	ID       string          `json:"id"`
	OwnerID  string          `json:"-"`
	Version  int64           `json:"version"`
	Data     json.RawMessage `json:"data"`
	Requests []Request       `json:"requests"`
}

// ListCollections returns the owner's collections with their requests,
// both in creation order.
func (s *Store) ListCollections(ctx context.Context, ownerID string) ([]Collection, error) {
	query, args, err := db.Select("id", "owner_id", "version", "data").
		From("collections").
		Where("owner_id = ?", ownerID).
		OrderBy("created_at, id").
		Build()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	collections := []Collection{}
	index := map[string]int{}
	for rows.Next() {
		var c Collection
		var data string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Version, &data); err != nil {
			rows.Close()
			return nil, err
		}
		c.Data = json.RawMessage(data)
		c.Requests = []Request{}
		index[c.ID] = len(collections)
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(collections) == 0 {
		return collections, nil
	}

	query, args, err = db.Select("id", "collection_id", "version", "data").
		From("requests").
		Where("collection_id IN (SELECT id FROM collections WHERE owner_id = ?)", ownerID).
		OrderBy("created_at, id").
		Build()
	if err != nil {
		return nil, err
	}
	rows, err = s.repo.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[r.CollectionID]; ok {
			collections[i].Requests = append(collections[i].Requests, r)
		}
	}
	return collections, rows.Err()
}

// CreateCollection inserts a collection at version 1.
func (s *Store) CreateCollection(ctx context.Context, ownerID string, data json.RawMessage) (Collection, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return Collection{}, err
	}
	c := Collection{ID: newID(), OwnerID: ownerID, Version: 1, Data: json.RawMessage(payload), Requests: []Request{}}
	query, args, err := db.Insert("collections").
		Columns("id", "owner_id", "version", "data", "created_at").
		Values(c.ID, c.OwnerID, c.Version, payload, s.now().UnixNano()).
		Build()
	if err != nil {
		return Collection{}, err
	}
	if _, err := s.repo.Exec(ctx, query, args...); err != nil {
		return Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// UpdateCollection replaces the data of a collection if version is current.
// Unknown or foreign ids yield ErrNotFound, a stale version ErrConflict.
func (s *Store) UpdateCollection(ctx context.Context, ownerID, id string, version int64, data json.RawMessage) (Collection, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return Collection{}, err
	}
	query, args, err := db.Update("collections").
		Set("data", payload).
		SetExpr("version = version + 1").
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Where("version = ?", version).
		Build()
	if err != nil {
		return Collection{}, err
	}

	var updated Collection
	err = s.repo.InTx(ctx, func(tx db.Repository) error {
		if err := updateVersioned(ctx, tx, query, args,
			"SELECT 1 FROM collections WHERE id = ? AND owner_id = ?", id, ownerID); err != nil {
			return err
		}
		updated, err = s.collection(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return Collection{}, fmt.Errorf("update collection %s: %w", id, err)
	}
	return updated, nil
}

// DeleteCollection removes a collection together with its requests.
func (s *Store) DeleteCollection(ctx context.Context, ownerID, id string) error {
	err := s.repo.InTx(ctx, func(tx db.Repository) error {
		found, err := exists(ctx, tx, "SELECT 1 FROM collections WHERE id = ? AND owner_id = ?", id, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		query, args, err := db.Delete("requests").Where("collection_id = ?", id).Build()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return err
		}
		query, args, err = db.Delete("collections").Where("id = ?", id).Build()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", id, err)
	}
	return nil
}

func (s *Store) collection(ctx context.Context, repo db.Repository, ownerID, id string) (Collection, error) {
	query, args, err := db.Select("id", "owner_id", "version", "data").
		From("collections").
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Build()
	if err != nil {
		return Collection{}, err
	}
	var c Collection
	var data string
	row, cancel := repo.QueryRow(ctx, query, args...)
	defer cancel()
	err = row.Scan(&c.ID, &c.OwnerID, &c.Version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, err
	}
	c.Data = json.RawMessage(data)
	return c, nil
}

// updateVersioned runs a compare-and-swap update and classifies a miss by
// probing whether the row is visible at all.
func updateVersioned(ctx context.Context, tx db.Repository, query string, args []any, probe string, probeArgs ...any) error {
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}
	found, err := exists(ctx, tx, probe, probeArgs...)
	if err != nil {
		return err
	}
	if found {
		return ErrConflict
	}
	return ErrNotFound
}
