package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devmarvs/yaade/db"
)

// Request is a saved HTTP request inside a collection.
type Request struct {
	ID           string          `json:"id"`
	CollectionID string          `json:"collectionId"`
	Version      int64           `json:"version"`
	Data         json.RawMessage `json:"data"`
}

const ownedRequest = "collection_id IN (SELECT id FROM collections WHERE owner_id = ?)"

// CreateRequest adds a request to one of the owner's collections.
func (s *Store) CreateRequest(ctx context.Context, ownerID, collectionID string, data json.RawMessage) (Request, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return Request{}, err
	}
	r := Request{ID: newID(), CollectionID: collectionID, Version: 1, Data: json.RawMessage(payload)}

	err = s.repo.InTx(ctx, func(tx db.Repository) error {
		found, err := exists(ctx, tx, "SELECT 1 FROM collections WHERE id = ? AND owner_id = ?", collectionID, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		query, args, err := db.Insert("requests").
			Columns("id", "collection_id", "version", "data", "created_at").
			Values(r.ID, r.CollectionID, r.Version, payload, s.now().UnixNano()).
			Build()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return Request{}, fmt.Errorf("create request in %s: %w", collectionID, err)
	}
	return r, nil
}

// UpdateRequest replaces the data of a request if version is current.
func (s *Store) UpdateRequest(ctx context.Context, ownerID, id string, version int64, data json.RawMessage) (Request, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return Request{}, err
	}
	query, args, err := db.Update("requests").
		Set("data", payload).
		SetExpr("version = version + 1").
		Where("id = ?", id).
		Where("version = ?", version).
		Where(ownedRequest, ownerID).
		Build()
	if err != nil {
		return Request{}, err
	}

	var updated Request
	err = s.repo.InTx(ctx, func(tx db.Repository) error {
		if err := updateVersioned(ctx, tx, query, args,
			"SELECT 1 FROM requests WHERE id = ? AND "+ownedRequest, id, ownerID); err != nil {
			return err
		}
		updated, err = s.request(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return Request{}, fmt.Errorf("update request %s: %w", id, err)
	}
	return updated, nil
}

// DeleteRequest removes one of the owner's requests.
func (s *Store) DeleteRequest(ctx context.Context, ownerID, id string) error {
	query, args, err := db.Delete("requests").
		Where("id = ?", id).
		Where(ownedRequest, ownerID).
		Build()
	if err != nil {
		return err
	}
	result, err := s.repo.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete request %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("delete request %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) request(ctx context.Context, repo db.Repository, ownerID, id string) (Request, error) {
	query, args, err := db.Select("id", "collection_id", "version", "data").
		From("requests").
		Where("id = ?", id).
		Where(ownedRequest, ownerID).
		Build()
	if err != nil {
		return Request{}, err
	}
	row, cancel := repo.QueryRow(ctx, query, args...)
	defer cancel()
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (Request, error) {
	var r Request
	var data string
	if err := row.Scan(&r.ID, &r.CollectionID, &r.Version, &data); err != nil {
		return Request{}, err
	}
	r.Data = json.RawMessage(data)
	return r, nil
}
