package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/SUNET/transcribe-backend/internal/notification/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// signalingSender reports each delivery on a channel so tests can observe
// the dispatch loop without touching shared state concurrently.
type signalingSender struct {
	delivered chan uuid.UUID
}

func (s *signalingSender) Send(ctx context.Context, notification *domain.Notification) error {
	s.delivered <- notification.ID
	return nil
}

func TestDispatcher_StartStopsOnCancel(t *testing.T) {
	repo := newFakeNotificationRepository()
	sender := &fakeSender{}
	dispatcher := newTestDispatcher(repo, sender, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}

func TestDispatcher_StartDeliversOnTick(t *testing.T) {
	repo := newFakeNotificationRepository()
	useCase := NewNotificationUseCase(repo, testLogger())
	job := completedJob()
	require.NoError(t, useCase.RecordJobEvent(context.Background(), job))

	sender := &signalingSender{delivered: make(chan uuid.UUID, 1)}
	dispatcher := newTestDispatcher(repo, sender, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Start(ctx)
	}()

	select {
	case <-sender.delivered:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not deliver the pending notification")
	}

	cancel()
	<-done

	notifications, err := repo.ListByUser(context.Background(), job.UserID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.DispatchStatusDispatched, notifications[0].DispatchStatus)
}
