package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-boomerang-push/internal/pipeline"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

func newLikeEvent() *boomerang.NotificationCreated {
	actor := "Ana"
	actorID := "actor-7"
	return &boomerang.NotificationCreated{
		EventID: "evt-1",
		UserID:  "user-1",
		ItemID:  "item-1",
		Item: boomerang.NotificationItem{
			Type:        boomerang.TypeLike,
			ActorName:   &actor,
			ActorUserID: &actorID,
		},
	}
}

func TestListener_OnNotificationCreated(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Fetch, build, send in order", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger)

		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{"t1", "t2"}, nil).Once()

		expectedMsg := boomerang.PushMessage{
			Title:   "New like",
			Body:    "Ana liked your boomerang",
			Data:    map[string]string{"type": "like", "actorUserId": "actor-7", "boomerangId": ""},
			APNS:    boomerang.APNSHints{Sound: "default", Badge: 1},
			Android: boomerang.AndroidHints{Sound: "default", Priority: "high"},
		}
		dispatcherMock.On("Dispatch", mock.Anything, []string{"t1", "t2"}, expectedMsg).Return([]boomerang.SendResult{
			{Token: "t1", Success: true},
			{Token: "t2", Success: true},
		}, nil).Once()

		report, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.NoError(t, err)
		assert.Equal(t, boomerang.SendReport{Sent: 2}, report)
		storeMock.AssertExpectations(t)
		dispatcherMock.AssertExpectations(t)
	})

	t.Run("No tokens means no provider call", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger)

		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{}, nil).Once()

		report, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.NoError(t, err)
		assert.Equal(t, boomerang.SendReport{}, report)
		dispatcherMock.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
		storeMock.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Token read failure is fatal", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger)
		readErr := errors.New("firestore unavailable")

		storeMock.On("Fetch", mock.Anything, "user-1").Return(nil, readErr).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.ErrorIs(t, err, readErr)
		dispatcherMock.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Send failure is fatal", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger)
		sendErr := errors.New("network down")

		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{"t1"}, nil).Once()
		dispatcherMock.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(nil, sendErr).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.ErrorIs(t, err, sendErr)
		assert.Contains(t, err.Error(), "failed to send push")
	})
}

func TestListener_DeliveryGuard(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Already claimed item is skipped", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		guardMock := new(mockGuard)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger, pipeline.WithDeliveryGuard(guardMock))

		guardMock.On("Claim", mock.Anything, "user-1", "item-1").Return(false, nil).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.NoError(t, err)
		storeMock.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("Successful delivery keeps the claim", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		guardMock := new(mockGuard)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger, pipeline.WithDeliveryGuard(guardMock))

		guardMock.On("Claim", mock.Anything, "user-1", "item-1").Return(true, nil).Once()
		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{"t1"}, nil).Once()
		dispatcherMock.On("Dispatch", mock.Anything, []string{"t1"}, mock.Anything).
			Return([]boomerang.SendResult{{Token: "t1", Success: true}}, nil).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.NoError(t, err)
		guardMock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Fatal failure releases the claim", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		guardMock := new(mockGuard)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger, pipeline.WithDeliveryGuard(guardMock))

		guardMock.On("Claim", mock.Anything, "user-1", "item-1").Return(true, nil).Once()
		guardMock.On("Release", mock.Anything, "user-1", "item-1").Return(nil).Once()
		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{"t1"}, nil).Once()
		dispatcherMock.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("network down")).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.Error(t, err)
		guardMock.AssertExpectations(t)
	})

	t.Run("Guard outage fails open", func(t *testing.T) {
		dispatcherMock := new(mockDispatcher)
		storeMock := new(mockTokenStore)
		guardMock := new(mockGuard)
		listener := pipeline.NewListener(storeMock, dispatcherMock, logger, pipeline.WithDeliveryGuard(guardMock))

		guardMock.On("Claim", mock.Anything, "user-1", "item-1").Return(false, errors.New("redis down")).Once()
		storeMock.On("Fetch", mock.Anything, "user-1").Return([]string{}, nil).Once()

		_, err := listener.OnNotificationCreated(ctx, newLikeEvent())

		require.NoError(t, err)
		storeMock.AssertExpectations(t)
	})
}
