package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 楽観ロックの更新件数0
	ErrVersionConflict = errors.New("version conflict")
	// 一意制約違反
	ErrUniqueViolation = errors.New("unique violation")
)

// リトライしてよい衝突かどうか
func IsTransientConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrUniqueViolation)
}
