package store

import "testing"

func TestMergeKeepsLastOccurrence(t *testing.T) {
	existing := []TaskRecord{
		{UID: "a", Name: "A old"},
		{UID: "b", Name: "B"},
	}
	fresh := []TaskRecord{
		{UID: "a", Name: "A new"},
		{UID: "c", Name: "C"},
	}

	merged := Merge(existing, fresh)
	if len(merged) != 3 {
		t.Fatalf("expected 3 records, got %d", len(merged))
	}
	if merged[0].UID != "a" || merged[0].Name != "A new" {
		t.Fatalf("updated record lost position or content: %+v", merged[0])
	}
	if merged[1].UID != "b" || merged[2].UID != "c" {
		t.Fatalf("order not preserved: %+v", merged)
	}
}

func TestMergeEmptyFreshIsIdentity(t *testing.T) {
	existing := []TaskRecord{{UID: "a"}, {UID: "b"}}
	merged := Merge(existing, nil)
	if len(merged) != 2 || merged[0].UID != "a" || merged[1].UID != "b" {
		t.Fatalf("merge with no fresh records changed the cache: %+v", merged)
	}
}

func TestMergeDeduplicatesWithinFresh(t *testing.T) {
	merged := Merge(nil, []TaskRecord{
		{UID: "a", Name: "first"},
		{UID: "a", Name: "second"},
	})
	if len(merged) != 1 || merged[0].Name != "second" {
		t.Fatalf("expected single record with last content, got %+v", merged)
	}
}
