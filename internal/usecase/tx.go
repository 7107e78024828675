package usecase

import (
	"context"

	repo "onlinestore/internal/repository"
	"onlinestore/internal/retry"
)

// Tx全体を衝突時にやり直す
func retryTx(ctx context.Context, tx repo.TransactionManager, p retry.Policy, fn func(r repo.TxRepos) error) error {
	return p.Do(ctx, func(ctx context.Context) error {
		return tx.WithinTx(ctx, fn)
	})
}

func txValue[T any](ctx context.Context, tx repo.TransactionManager, p retry.Policy, fn func(r repo.TxRepos) (T, error)) (T, error) {
	return retry.Value(ctx, p, func(ctx context.Context) (T, error) {
		var out T
		err := tx.WithinTx(ctx, func(r repo.TxRepos) error {
			v, err := fn(r)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		return out, err
	})
}
