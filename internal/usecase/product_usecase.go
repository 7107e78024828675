package usecase

import (
	"context"
	"errors"
	"strings"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

// 管理者が商品と初期在庫を登録する
type ProductUsecase struct {
	tx   repo.TransactionManager
	deps Deps
}

// DI
func NewProductUsecase(tx repo.TransactionManager, deps Deps) *ProductUsecase {
	return &ProductUsecase{tx: tx, deps: deps.withDefaults()}
}

type AdminCreateProductInput struct {
	Name         string
	Description  string
	Price        decimal.Decimal
	InitialStock int64
}

type ProductOutput struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
}

// AdminCreateProduct は商品と在庫行を同じTxで作る。
func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, in AdminCreateProductInput) (ProductOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ProductOutput{}, illegalArgument("name is required")
	}
	if !in.Price.IsPositive() {
		return ProductOutput{}, illegalArgument("price must be positive")
	}
	if in.InitialStock < 0 {
		return ProductOutput{}, illegalArgument("stock must not be negative")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:        name,
			Description: in.Description,
			Price:       in.Price.Round(2),
		})
		if err != nil {
			return err
		}

		st, err := r.Stocks().Create(ctx, model.Stock{ProductID: p.ID, Quantity: in.InitialStock})
		if err != nil {
			return err
		}

		out = ProductOutput{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price, Stock: st.Quantity}
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}

	u.deps.Logger.Infoj(log.JSON{"msg": "product created", "product_id": out.ID, "stock": out.Stock})
	return out, nil
}

// GetProduct は商品と現在の在庫を返す。
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (ProductOutput, error) {
	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound(ResourceProduct, productID)
		}
		if err != nil {
			return err
		}

		out = ProductOutput{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price}

		st, err := r.Stocks().FindByProductID(ctx, productID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		out.Stock = st.Quantity
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}
