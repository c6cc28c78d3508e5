package store

import (
	"context"
	"errors"
	"testing"
)

func TestInsertAndGetUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	addUser(t, db, "alice", "Alice")

	u, err := db.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", u.Name)
	}
	if u.EmailOptedIn {
		t.Error("EmailOptedIn should default to false")
	}
	if u.CreatedAt == 0 {
		t.Error("CreatedAt should be set")
	}

	if _, err := db.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(nobody) err = %v, want ErrNotFound", err)
	}
}

func TestInsertUserDuplicateInviteCode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.InsertUser(ctx, &User{ID: "a", Email: "a@x.io", Name: "A", InviteCode: "ABCDEFGH"}); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	err := db.InsertUser(ctx, &User{ID: "b", Email: "b@x.io", Name: "B", InviteCode: "ABCDEFGH"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate invite code err = %v, want ErrConflict", err)
	}
}

func TestGetUserByInviteCode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.InsertUser(ctx, &User{ID: "a", Email: "a@x.io", Name: "A", InviteCode: "ABCDEFGH"}); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	u, err := db.GetUserByInviteCode(ctx, "ABCDEFGH")
	if err != nil {
		t.Fatalf("GetUserByInviteCode: %v", err)
	}
	if u.ID != "a" {
		t.Errorf("ID = %q, want a", u.ID)
	}

	if _, err := db.GetUserByInviteCode(ctx, "ZZZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code err = %v, want ErrNotFound", err)
	}
}

func TestSetEmailOptIn(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")

	if err := db.SetEmailOptIn(ctx, "alice", true); err != nil {
		t.Fatalf("SetEmailOptIn(true): %v", err)
	}
	u, _ := db.GetUser(ctx, "alice")
	if !u.EmailOptedIn {
		t.Error("EmailOptedIn = false, want true")
	}
	if u.EmailOptInConfirmedAt == nil {
		t.Error("EmailOptInConfirmedAt should be stamped when enabling")
	}

	if err := db.SetEmailOptIn(ctx, "alice", false); err != nil {
		t.Fatalf("SetEmailOptIn(false): %v", err)
	}
	u, _ = db.GetUser(ctx, "alice")
	if u.EmailOptedIn {
		t.Error("EmailOptedIn = true, want false")
	}
	if u.EmailOptInConfirmedAt != nil {
		t.Error("EmailOptInConfirmedAt should be cleared when disabling")
	}

	if err := db.SetEmailOptIn(ctx, "nobody", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEmailOptIn(nobody) err = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	db := testDB(t)
	addUser(t, db, "alice", "Alice")
	addUser(t, db, "bob", "Bob")

	users, err := db.ListUsers(context.Background(), []string{"alice", "bob", "ghost"})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users["bob"].Name != "Bob" {
		t.Errorf("users[bob].Name = %q, want Bob", users["bob"].Name)
	}

	empty, err := db.ListUsers(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListUsers(nil) = %v, %v; want empty, nil", empty, err)
	}
}
