package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-boomerang-push/pkg/boomerang"
)

// Fragments of provider codes that mark a token as permanently invalid.
// Matching is by substring, so any future code containing one of these also
// counts; keep that in mind when the provider adds codes.
var permanentFailureFragments = []string{
	"registration-token-not-registered",
	"invalid-argument",
}

// IsPermanentFailure reports whether a provider classification code means the
// token will never be accepted again.
func IsPermanentFailure(code string) bool {
	for _, fragment := range permanentFailureFragments {
		if strings.Contains(code, fragment) {
			return true
		}
	}
	return false
}

// InvalidTokens picks the tokens whose send failed permanently.
func InvalidTokens(results []boomerang.SendResult) []string {
	var invalid []string
	for _, r := range results {
		if !r.Success && IsPermanentFailure(r.Code) {
			invalid = append(invalid, r.Token)
		}
	}
	return invalid
}

// SendAndCleanup sends msg to all tokens in one provider call, then deletes
// the tokens the provider rejected permanently. Deletions run concurrently
// and are all awaited. A failed send is returned and nothing is deleted;
// a failed deletion is logged and counted in the report.
func (l *Listener) SendAndCleanup(ctx context.Context, userID string, tokens []string, msg boomerang.PushMessage) (boomerang.SendReport, error) {
	var report boomerang.SendReport
	if len(tokens) == 0 {
		return report, nil
	}

	results, err := l.dispatcher.Dispatch(ctx, tokens, msg)
	if err != nil {
		return report, err
	}

	logger := l.logger.With("user_id", userID)
	for _, r := range results {
		if r.Success {
			report.Sent++
			continue
		}
		report.Failed++
		if !IsPermanentFailure(r.Code) {
			logger.Debug("Transient delivery failure; token kept", "token", r.Token, "code", r.Code)
		}
	}

	invalid := InvalidTokens(results)
	if len(invalid) > 0 {
		logger.Info("Cleaning up invalid device tokens", "count", len(invalid))
		report.DeleteFailures = l.deleteTokens(ctx, userID, invalid, logger)
		report.Deleted = len(invalid) - report.DeleteFailures
	}

	return report, nil
}

func (l *Listener) deleteTokens(ctx context.Context, userID string, tokens []string, logger *slog.Logger) int {
	var g errgroup.Group
	if l.maxConcurrentDeletes > 0 {
		g.SetLimit(l.maxConcurrentDeletes)
	}

	var failures atomic.Int64
	for _, token := range tokens {
		g.Go(func() error {
			if err := l.store.Delete(ctx, userID, token); err != nil {
				logger.Warn("Failed to delete device token", "token", token, "err", err)
				failures.Add(1)
			}
			// Failures are counted, not returned.
			return nil
		})
	}
	_ = g.Wait()

	return int(failures.Load())
}
