package sqlxrepos

import (
	"strings"
	"testing"
)

func Test_updateUserQuery(t *testing.T) {
	tests := []struct {
		name     string
		row      userRow
		wantHash bool
	}{
		{name: "New hash is written", row: userRow{PasswordHash: []byte("$2a$10$hash")}, wantHash: true},
		{name: "Missing hash is left untouched", row: userRow{}, wantHash: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := updateUserQuery(tt.row)
			if got := strings.Contains(query, "password_hash = :password_hash"); got != tt.wantHash {
				t.Errorf("failed! sets password_hash = %v; want %v\nquery: %s", got, tt.wantHash, query)
			}
			if !strings.Contains(query, "WHERE id = :id") {
				t.Errorf("failed! missing id predicate\nquery: %s", query)
			}
		})
	}
}
