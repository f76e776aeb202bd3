package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMessageRepo_MarkStartedFirstEntry(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewMessageRepo(db)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET sending_started = $2, recipient_count = $3")).
		WithArgs("msg1", at, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	set, err := repo.MarkStarted(context.Background(), "msg1", at, 42)
	if err != nil {
		t.Fatalf("MarkStarted() error: %v", err)
	}
	if !set {
		t.Error("first MarkStarted() should perform the transition")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMessageRepo_MarkStartedAlreadyStarted(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewMessageRepo(db)
	at := time.Now()

	// sending_started IS NULL guard excludes the row: no transition.
	mock.ExpectExec(regexp.QuoteMeta("SET sending_started = $2, recipient_count = $3")).
		WithArgs("msg1", at, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	set, err := repo.MarkStarted(context.Background(), "msg1", at, 99)
	if err != nil {
		t.Fatalf("MarkStarted() error: %v", err)
	}
	if set {
		t.Error("repeated MarkStarted() must not move the snapshot")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMessageRepo_ReadyMessages(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewMessageRepo(db)
	added := time.Now()

	cols := []string{
		"id", "from_address", "subject", "body", "send_to_all", "include_subgroups",
		"include_mailing_list", "ready_to_send", "sending_started", "sending_complete",
		"recipient_count", "recipient_count_complete", "added",
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ready_to_send = TRUE AND sending_complete IS NULL")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("msg1", "felag@fel.ag", "News", "Hello", false, true,
				false, true, nil, nil, 0, 0, added))
	mock.ExpectQuery(regexp.QuoteMeta("FROM message_groups")).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "group_id"}).
			AddRow("msg1", "g1").
			AddRow("msg1", "g2"))

	out, err := repo.ReadyMessages(context.Background())
	if err != nil {
		t.Fatalf("ReadyMessages() error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d messages, want 1", len(out))
	}
	if len(out[0].MemberGroupIDs) != 2 {
		t.Errorf("group ids = %v, want 2 entries", out[0].MemberGroupIDs)
	}
	if out[0].SendingStarted != nil {
		t.Error("sending_started should scan as nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
