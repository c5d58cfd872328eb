package repomanager

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/EiDHindY/vaulture/internal/repositories/audit"
	"github.com/EiDHindY/vaulture/internal/repositories/contacts"
	"github.com/EiDHindY/vaulture/internal/repositories/entries"
	"github.com/EiDHindY/vaulture/internal/repositories/tokens"
	"github.com/EiDHindY/vaulture/internal/repositories/users"
)

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	m := NewSQLiteRepositoryManager()

	if _, ok := m.Users(db).(*users.SQLiteRepository); !ok {
		t.Fatal("Users() is not SQLite-backed")
	}
	if _, ok := m.Entries(db).(*entries.SQLiteRepository); !ok {
		t.Fatal("Entries() is not SQLite-backed")
	}
	if _, ok := m.Contacts(db).(*contacts.SQLiteRepository); !ok {
		t.Fatal("Contacts() is not SQLite-backed")
	}
	if _, ok := m.Tokens(db).(*tokens.SQLiteRepository); !ok {
		t.Fatal("Tokens() is not SQLite-backed")
	}
	if _, ok := m.Audit(db).(*audit.SQLiteRepository); !ok {
		t.Fatal("Audit() is not SQLite-backed")
	}
}
