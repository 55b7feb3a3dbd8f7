package model

import "testing"

func TestClampImportance(t *testing.T) {
	cases := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {3, 3}, {5, 5}, {9, 5},
	}
	for _, tc := range cases {
		if got := ClampImportance(tc.in); got != tc.want {
			t.Fatalf("ClampImportance(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSparseUpdatesIsZero(t *testing.T) {
	if !(MemoryUpdate{}).IsZero() || !(GoalUpdate{}).IsZero() || !(ProjectUpdate{}).IsZero() {
		t.Fatal("empty updates should be zero")
	}
	content := "x"
	if (MemoryUpdate{Content: &content}).IsZero() {
		t.Fatal("update with a field set reported zero")
	}
	status := GoalCompleted
	if (GoalUpdate{Status: &status}).IsZero() {
		t.Fatal("goal update with status reported zero")
	}
}
