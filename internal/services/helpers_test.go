package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/cryptox"
	"finledger/internal/storage"
)

type testEnv struct {
	repo     *storage.SQLiteRepository
	codec    *cryptox.Codec
	notifier *Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finledger.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	codec, err := cryptox.NewCodec([]byte("test-passphrase"), []byte("test-salt-0123456789"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	return &testEnv{
		repo:     repo,
		codec:    codec,
		notifier: NewNotifier(repo, nil),
	}
}

// appendEncoded stores a transaction with the given amount already encoded.
func (e *testEnv) appendEncoded(t *testing.T, userID, category string, kind core.TransactionKind, cents int64) {
	t.Helper()

	encoded, err := e.codec.Encode(core.Money{Cents: cents})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = e.repo.AppendTransaction(context.Background(), core.Transaction{
		UserID:        userID,
		EncodedAmount: encoded,
		Category:      category,
		Kind:          kind,
		ExchangeRate:  1,
		Date:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func (e *testEnv) notifications(t *testing.T, userID string) []core.Notification {
	t.Helper()
	notifications, err := e.repo.ListNotificationsByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return notifications
}

func (e *testEnv) requireNotification(t *testing.T, userID, message string) {
	t.Helper()
	for _, n := range e.notifications(t, userID) {
		if n.Message == message {
			return
		}
	}
	t.Fatalf("notification %q not found for %s", message, userID)
}
