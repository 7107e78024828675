package usecase

import (
	"context"
	"errors"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"
)

// 認証基盤のユーザーをこちらのusersに写す
type UserUsecase struct {
	tx repo.TransactionManager
}

func NewUserUsecase(tx repo.TransactionManager) *UserUsecase {
	return &UserUsecase{tx: tx}
}

// Sync は未登録のユーザーだけ作る。emailが無ければ何もしない。
func (u *UserUsecase) Sync(ctx context.Context, userID int64, email string, role string) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Users().FindByID(ctx, userID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if email == "" {
			return nil
		}

		_, err = r.Users().Create(ctx, model.User{ID: userID, Email: email, Role: model.Role(role)})
		return err
	})
	// 同時リクエストで先に作られた
	if errors.Is(err, repo.ErrUniqueViolation) {
		return nil
	}
	return err
}
