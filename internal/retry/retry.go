// Package retry は一時的な書き込み競合に対する再実行ポリシー。
package retry

import (
	"context"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 100 * time.Millisecond
)

// Policy は固定間隔で最大MaxAttempts回まで実行する。
// 使い切ったら最後のエラーをそのまま返す。
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// nilなら何もリトライしない
	Retryable func(error) bool
	// 再実行の直前に呼ばれる（attemptは次が何回目か）
	OnRetry func(attempt int, err error)
}

func New(maxAttempts int, delay time.Duration, retryable func(error) bool) Policy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return Policy{MaxAttempts: maxAttempts, Delay: delay, Retryable: retryable}
}

// Do はfnをポリシーに従って実行する。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	r := retrier.New(retrier.ConstantBackoff(attempts-1, p.Delay), classifier{retryable: p.Retryable})

	attempt := 0
	var lastErr error
	return r.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		lastErr = fn(ctx)
		return lastErr
	})
}

// Value は値を返すfn用のDo。
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type classifier struct {
	retryable func(error) bool
}

func (c classifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if c.retryable != nil && c.retryable(err) {
		return retrier.Retry
	}
	return retrier.Fail
}
