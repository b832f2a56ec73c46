package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"campuspass.org/internal/access"
	"campuspass.org/internal/queue"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/visitor"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, WithLocation(time.UTC)), mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "test_unique"}
}

func cardRows(number, kind, status string, issuedAt time.Time, expiresAt any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"number", "owner_id", "kind", "status", "issued_at", "expires_at"}).
		AddRow(number, "", kind, status, issuedAt, expiresAt)
}

func ticketRows(id, day string, number int, requester, status string, window int, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "service_day", "number", "requester_id", "purpose", "status", "window_number", "created_at", "called_at", "completed_at"}).
		AddRow(id, day, number, requester, "", status, window, createdAt, nil, nil)
}

func TestRegisterConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into cards").
		WithArgs("C-100", "s-1", "student", nil).
		WillReturnError(uniqueViolation())

	_, err := store.Register(context.Background(), "C-100", "s-1", registry.KindStudent, nil)
	if !errors.Is(err, registry.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIssueUsesCounterRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into queue_days").
		WithArgs("2026-03-09").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(4))
	mock.ExpectQuery("insert into queue_tickets").
		WillReturnRows(ticketRows("t1", "2026-03-09", 4, "s-7", "waiting", 0, now))
	mock.ExpectCommit()

	ticket, err := store.Issue(context.Background(), "s-7", "", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ticket.Number != 4 || ticket.ServiceDay != "2026-03-09" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIssueDuplicateNumberIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into queue_days").
		WithArgs("2026-03-09").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(2))
	mock.ExpectQuery("insert into queue_tickets").
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	_, err := store.Issue(context.Background(), "s-7", "", now)
	if !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("update queue_tickets").
		WithArgs("2026-03-09", 2, now.UTC()).
		WillReturnError(sql.ErrNoRows)

	_, err := store.CallNext(context.Background(), 2, now)
	if !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCallNextWindowBusy(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("update queue_tickets").
		WithArgs("2026-03-09", 1, now.UTC()).
		WillReturnError(uniqueViolation())

	_, err := store.CallNext(context.Background(), 1, now)
	if !errors.Is(err, queue.ErrWindowBusy) {
		t.Fatalf("expected ErrWindowBusy, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompleteNotServing(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("update queue_tickets").
		WithArgs("t1", now.UTC()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select status from queue_tickets").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("waiting"))

	_, err := store.Complete(context.Background(), "t1", now)
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordTapRejectsLostCard(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("select number, coalesce").
		WithArgs("C-100").
		WillReturnRows(cardRows("C-100", "student", "lost", now.Add(-time.Hour), nil))
	mock.ExpectRollback()

	_, err := store.RecordTap(context.Background(), "C-100", "main-gate", access.DirectionIn, "", now)
	if !errors.Is(err, registry.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordTapVisitorExitClosesSession(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("select number, coalesce").
		WithArgs("V-42").
		WillReturnRows(cardRows("V-42", "visitor", "active", now.Add(-time.Hour), now.Add(time.Hour)))
	mock.ExpectQuery("insert into access_events").
		WillReturnRows(sqlmock.NewRows([]string{"recorded_at", "sequence"}).AddRow(now, int64(9)))
	mock.ExpectExec("update visitor_sessions").
		WithArgs("V-42", now.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update cards set status = 'inactive'").
		WithArgs("V-42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ev, err := store.RecordTap(context.Background(), "V-42", "main-gate", access.DirectionOut, "g-1", now)
	if err != nil {
		t.Fatalf("RecordTap: %v", err)
	}
	if ev.Sequence != 9 {
		t.Fatalf("unexpected sequence: %d", ev.Sequence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompleteByCardIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("update visitor_sessions").
		WithArgs("V-42", now.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := store.CompleteByCard(context.Background(), "V-42", now); err != nil {
		t.Fatalf("CompleteByCard: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVisitorGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, card_number").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, visitor.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
