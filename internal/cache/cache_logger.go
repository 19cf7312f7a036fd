package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Invalidation failures never bubble up to callers: a stale entry ages
// out on its TTL, so logging is the only recourse worth taking.

func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "cache pattern invalidation failed", "pattern", pattern, "error", err)
	}
}

func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "cache delete failed", "keys", keys, "error", err)
	}
}

// InvalidateExamCache drops every cached view of one exam: the row
// itself, its question list, the join-code lookup, the creator's
// listings, and the exam's stats summary.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint, creatorID string) {
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%d", examID),
		fmt.Sprintf("questions:%d", examID))

	SafeInvalidatePattern(ctx, cm.Exam, "code:*")
	SafeInvalidatePattern(ctx, cm.Exam, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", examID))
}

// InvalidateQuestionCache drops one question's cached row and the
// listings it may appear in.
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, questionID uint, creatorID string) {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("id:%d", questionID))
	SafeInvalidatePattern(ctx, cm.Question, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Question, "list:*")
}
