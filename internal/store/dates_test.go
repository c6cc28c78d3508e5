package store

import (
	"context"
	"errors"
	"testing"
)

func TestReplaceDates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")

	want := []ImportantDate{
		{Label: "Anniversary", Month: 6, Day: 1},
		{Label: "Birthday", Month: 3, Day: 15},
	}
	if _, err := db.ReplaceDates(ctx, "alice", want); err != nil {
		t.Fatalf("ReplaceDates: %v", err)
	}
	// Second call with the same set must not duplicate.
	if _, err := db.ReplaceDates(ctx, "alice", want); err != nil {
		t.Fatalf("ReplaceDates again: %v", err)
	}

	got, err := db.ListDates(ctx, "alice")
	if err != nil {
		t.Fatalf("ListDates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d dates, want 2", len(got))
	}
	// Ordered by month, day.
	if got[0].Label != "Birthday" || got[1].Label != "Anniversary" {
		t.Errorf("order = [%s %s], want [Birthday Anniversary]", got[0].Label, got[1].Label)
	}
	if got[0].OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", got[0].OwnerID)
	}
}

func TestReplaceDatesKeepsIDsOfUnchangedEntries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")

	first, err := db.ReplaceDates(ctx, "alice", []ImportantDate{
		{Label: "Birthday", Month: 3, Day: 15},
		{Label: "Anniversary", Month: 6, Day: 1},
	})
	if err != nil {
		t.Fatalf("ReplaceDates: %v", err)
	}

	second, err := db.ReplaceDates(ctx, "alice", []ImportantDate{
		{Label: "Birthday", Month: 3, Day: 15},
		{Label: "Anniversary", Month: 6, Day: 2},
	})
	if err != nil {
		t.Fatalf("ReplaceDates again: %v", err)
	}
	if second[0].ID != first[0].ID {
		t.Errorf("unchanged Birthday ID = %s, want %s", second[0].ID, first[0].ID)
	}
	if second[0].CreatedAt != first[0].CreatedAt {
		t.Errorf("unchanged Birthday CreatedAt = %d, want %d", second[0].CreatedAt, first[0].CreatedAt)
	}
	if second[1].ID == first[1].ID {
		t.Errorf("moved Anniversary kept ID %s, want a fresh one", second[1].ID)
	}

	got, _ := db.ListDates(ctx, "alice")
	if len(got) != 2 {
		t.Fatalf("got %d dates, want 2", len(got))
	}
}

func TestReplaceDatesRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")

	if _, err := db.ReplaceDates(ctx, "alice", []ImportantDate{{Label: "Birthday", Month: 3, Day: 15}}); err != nil {
		t.Fatalf("ReplaceDates: %v", err)
	}

	// Month 13 violates the CHECK constraint; the delete must be rolled back.
	_, err := db.ReplaceDates(ctx, "alice", []ImportantDate{
		{Label: "Fine", Month: 1, Day: 1},
		{Label: "Broken", Month: 13, Day: 1},
	})
	if err == nil {
		t.Fatal("expected error for invalid month, got nil")
	}

	got, _ := db.ListDates(ctx, "alice")
	if len(got) != 1 || got[0].Label != "Birthday" {
		t.Errorf("dates after failed replace = %+v, want original Birthday only", got)
	}
}

func TestUpdateAndDeleteDateScopedToOwner(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")
	addUser(t, db, "bob", "Bob")

	d := &ImportantDate{OwnerID: "alice", Label: "Birthday", Month: 3, Day: 15}
	if err := db.InsertDate(ctx, d); err != nil {
		t.Fatalf("InsertDate: %v", err)
	}

	foreign := &ImportantDate{ID: d.ID, OwnerID: "bob", Label: "Hijack", Month: 1, Day: 1}
	if err := db.UpdateDate(ctx, foreign); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDate by non-owner err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteDate(ctx, "bob", d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDate by non-owner err = %v, want ErrNotFound", err)
	}

	d.Label = "Bday"
	if err := db.UpdateDate(ctx, d); err != nil {
		t.Fatalf("UpdateDate: %v", err)
	}
	got, err := db.GetDate(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDate: %v", err)
	}
	if got.Label != "Bday" {
		t.Errorf("Label = %q, want Bday", got.Label)
	}

	if err := db.DeleteDate(ctx, "alice", d.ID); err != nil {
		t.Fatalf("DeleteDate: %v", err)
	}
	if _, err := db.GetDate(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDate after delete err = %v, want ErrNotFound", err)
	}
}

func TestListDatesOn(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")
	addUser(t, db, "bob", "Bob")

	db.ReplaceDates(ctx, "alice", []ImportantDate{{Label: "Birthday", Month: 3, Day: 15}, {Label: "Leap", Month: 2, Day: 29}})
	db.ReplaceDates(ctx, "bob", []ImportantDate{{Label: "Birthday", Month: 3, Day: 16}})

	got, err := db.ListDatesOn(ctx, []MonthDay{{3, 15}})
	if err != nil {
		t.Fatalf("ListDatesOn: %v", err)
	}
	if len(got) != 1 || got[0].OwnerID != "alice" {
		t.Errorf("ListDatesOn(3/15) = %+v, want alice's birthday", got)
	}

	got, _ = db.ListDatesOn(ctx, []MonthDay{{2, 28}, {2, 29}})
	if len(got) != 1 || got[0].Label != "Leap" {
		t.Errorf("ListDatesOn(2/28, 2/29) = %+v, want Leap", got)
	}

	got, _ = db.ListDatesOn(ctx, nil)
	if len(got) != 0 {
		t.Errorf("ListDatesOn(nil) = %+v, want none", got)
	}
}

func TestListCircleDates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "alice", "Alice")
	addUser(t, db, "bob", "Bob")
	addUser(t, db, "carol", "Carol")

	db.ReplaceDates(ctx, "bob", []ImportantDate{{Label: "Birthday", Month: 5, Day: 2}})
	db.ReplaceDates(ctx, "carol", []ImportantDate{{Label: "Birthday", Month: 1, Day: 9}})

	if _, err := db.UpsertConfirmedConnection(ctx, "alice", "bob"); err != nil {
		t.Fatalf("UpsertConfirmedConnection: %v", err)
	}
	// Pending connections grant no visibility.
	if _, err := db.InsertPendingConnection(ctx, "carol", "alice"); err != nil {
		t.Fatalf("InsertPendingConnection: %v", err)
	}

	got, err := db.ListCircleDates(ctx, "alice")
	if err != nil {
		t.Fatalf("ListCircleDates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d circle dates, want 1", len(got))
	}
	if got[0].OwnerName != "Bob" {
		t.Errorf("OwnerName = %q, want Bob", got[0].OwnerName)
	}

	// Visibility is mutual.
	got, _ = db.ListCircleDates(ctx, "bob")
	if len(got) != 0 {
		t.Errorf("bob sees %d dates, want 0 (alice has none)", len(got))
	}
}
