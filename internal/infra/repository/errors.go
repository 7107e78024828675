package repository

import (
	"errors"
	"fmt"

	repo "onlinestore/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgresのエラーをrepositoryのエラーへ寄せる
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", repo.ErrUniqueViolation, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", repo.ErrUniqueViolation, pgErr.ConstraintName)
		// serialization_failure / deadlock_detected
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", repo.ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}
