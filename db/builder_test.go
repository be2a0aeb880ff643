package db

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("id", "data").
		From("collections").
		Where("owner_id = ?", "u1").
		OrderBy("created_at").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if query != "SELECT id, data FROM collections WHERE owner_id = ? ORDER BY created_at" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 1 || args[0] != "u1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := Insert("users").
		Columns("id", "username").
		Values("a", "b").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if query != "INSERT INTO users (id, username) VALUES (?, ?)" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 2 || args[0] != "a" || args[1] != "b" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestUpdateBuilderSetExpr(t *testing.T) {
	query, args, err := Update("collections").
		Set("data", "{}").
		SetExpr("version = version + 1").
		Where("id = ?", "c1").
		Where("version = ?", int64(3)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "UPDATE collections SET data = ?, version = version + 1 WHERE id = ? AND version = ?"
	if query != want {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 3 || args[0] != "{}" || args[1] != "c1" || args[2] != int64(3) {
		t.Fatalf("unexpected args %v", args)
	}
	if got := Rebind(query, DialectDollar); got != "UPDATE collections SET data = $1, version = version + 1 WHERE id = $2 AND version = $3" {
		t.Fatalf("unexpected rebind: %s", got)
	}
}

func TestDeleteBuilder(t *testing.T) {
	query, args, err := Delete("requests").Where("collection_id = ?", "c1").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if query != "DELETE FROM requests WHERE collection_id = ?" || len(args) != 1 {
		t.Fatalf("unexpected query: %s %v", query, args)
	}
}

func TestInsertBuilderErrors(t *testing.T) {
	_, _, err := Insert("").Columns("name").Values("a").Build()
	if err != ErrMissingTable {
		t.Fatalf("expected missing table error")
	}
	_, _, err = Insert("users").Build()
	if err != ErrMissingColumns {
		t.Fatalf("expected missing columns error")
	}
	_, _, err = Insert("users").Columns("name").Build()
	if err != ErrMissingValues {
		t.Fatalf("expected missing values error")
	}
	_, _, err = Insert("users").Columns("name").Values("a", "b").Build()
	if err != ErrMismatchedValues {
		t.Fatalf("expected mismatched values error")
	}
}
