package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Typed Mocks ---

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, tokens []string, msg boomerang.PushMessage) ([]boomerang.SendResult, error) {
	args := m.Called(ctx, tokens, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]boomerang.SendResult), args.Error(1)
}

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Fetch(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockTokenStore) Delete(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) Claim(ctx context.Context, userID, itemID string) (bool, error) {
	args := m.Called(ctx, userID, itemID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGuard) Release(ctx context.Context, userID, itemID string) error {
	return m.Called(ctx, userID, itemID).Error(0)
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) OnNotificationCreated(ctx context.Context, evt *boomerang.NotificationCreated) (boomerang.SendReport, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(boomerang.SendReport), args.Error(1)
}

// channelConsumer feeds pushed messages straight to the pipeline workers.
type channelConsumer struct {
	msgChan   chan messagepipeline.Message
	closeOnce sync.Once
}

func newChannelConsumer(bufferSize int) *channelConsumer {
	return &channelConsumer{msgChan: make(chan messagepipeline.Message, bufferSize)}
}

func (c *channelConsumer) Push(msg messagepipeline.Message) {
	c.msgChan <- msg
}

func (c *channelConsumer) Messages() <-chan messagepipeline.Message {
	return c.msgChan
}

func (c *channelConsumer) Start(_ context.Context) error {
	return nil
}

func (c *channelConsumer) Stop(_ context.Context) error {
	c.closeOnce.Do(func() { close(c.msgChan) })
	return nil
}

func (c *channelConsumer) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
