package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	CalculatorKeyPrefix = "calculator:%d"
	SlugKeyPrefix       = "calculator:slug:%s"
)

const (
	UserTTL       = 5 * time.Minute
	CalculatorTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func CalculatorKey(calculatorID uint) string {
	return fmt.Sprintf(CalculatorKeyPrefix, calculatorID)
}

func SlugKey(slug string) string {
	return fmt.Sprintf(SlugKeyPrefix, slug)
}

// Invalidate drops key. Errors are ignored: a stale entry expires on its own.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateCalculator drops both the id and slug entries.
func InvalidateCalculator(ctx context.Context, calculatorID uint, slug string) {
	keys := []string{CalculatorKey(calculatorID)}
	if slug != "" {
		keys = append(keys, SlugKey(slug))
	}
	Invalidate(ctx, keys...)
}
