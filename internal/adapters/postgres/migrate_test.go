package postgres

import (
	"strings"
	"testing"
)

func TestMigrations_SortedAndNonEmpty(t *testing.T) {
	t.Parallel()

	ms, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations() err=%v", err)
	}
	if len(ms) == 0 {
		t.Fatalf("Migrations() returned none")
	}
	for i, m := range ms {
		if strings.TrimSpace(m.SQL) == "" {
			t.Fatalf("migration %s is empty", m.Name)
		}
		if i > 0 && ms[i-1].Name >= m.Name {
			t.Fatalf("migrations out of order: %s before %s", ms[i-1].Name, m.Name)
		}
	}
	if !strings.Contains(ms[0].SQL, "CREATE TABLE profiles") {
		t.Fatalf("first migration does not create profiles")
	}
}
