package product

import "context"

type Repository interface {
	GetByID(ctx context.Context, id uint64) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error

	GetConfig(ctx context.Context, id uint64) (*RequestConfig, error)
	GetConfigByProduct(ctx context.Context, productID uint64) (*RequestConfig, error)
	ListConfigs(ctx context.Context) ([]RequestConfig, error)
	CreateConfig(ctx context.Context, c *RequestConfig) error
	SetAutoApprove(ctx context.Context, configID uint64, autoApprove bool) error
}
