package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/messagely/apiserver/types"
)

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewUserRepository(db), mock, db
}

func TestUserCreate_Success(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+users\s*\(username,\s*password_hash,\s*first_name,\s*last_name,\s*phone,\s*join_at,\s*last_login_at\)`

	mock.ExpectExec(q).
		WithArgs("alice", "hashed", "Alice", "Apple", "+14155550000", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	before := time.Now()
	got, err := repo.Create(context.Background(), types.User{
		Username:     "alice",
		PasswordHash: "hashed",
		FirstName:    "Alice",
		LastName:     "Apple",
		Phone:        "+14155550000",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.JoinAt.Before(before) || got.LastLoginAt.Before(before) {
		t.Fatalf("expected join_at/last_login_at stamped, got %+v", got)
	}
	if !got.JoinAt.Equal(got.LastLoginAt) {
		t.Fatalf("join_at and last_login_at should match at creation")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{Username: "alice"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestUserGetByUsername_Found(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"username", "password_hash", "first_name", "last_name", "phone", "join_at", "last_login_at"}).
		AddRow("alice", "hashed", "Alice", "Apple", "+14155550000", now, now)
	mock.ExpectQuery(`SELECT\s+username,\s*password_hash.+FROM\s+users\s+WHERE\s+username\s*=\s*\$1`).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.Username != "alice" || got.PasswordHash != "hashed" || got.Phone != "+14155550000" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+username,\s*password_hash.+FROM\s+users`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserTouchLogin_Success(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+last_login_at\s*=\s*current_timestamp`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLogin(context.Background(), "alice"); err != nil {
		t.Fatalf("TouchLogin error: %v", err)
	}
}

func TestUserTouchLogin_NotFound(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+last_login_at`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.TouchLogin(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserList_OrderedProfiles(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"username", "first_name", "last_name", "phone"}).
		AddRow("alice", "Alice", "Apple", "+14155550000").
		AddRow("bob", "Bob", "Banana", "+14155550001")
	mock.ExpectQuery(`SELECT\s+username,\s*first_name,\s*last_name,\s*phone\s+FROM\s+users\s+ORDER\s+BY\s+username`).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].Username != "alice" || got[1].Username != "bob" {
		t.Fatalf("unexpected profiles: %+v", got)
	}
}
