package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/catalog/domain"
)

const maxPageSize = 100

// CatalogService 提供商品目录的查询与管理用例
type CatalogService struct {
	repo   domain.ProductRepository
	tracer trace.Tracer
}

func NewCatalogService(repo domain.ProductRepository, tracer trace.Tracer) *CatalogService {
	return &CatalogService{repo: repo, tracer: tracer}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.CreateProduct")
	defer span.End()

	p, err := domain.NewProduct(req.ID, req.Title, req.price(), req.StockQuantity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create product failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("product_id", p.ID).Msg("product created")
	return toProductResponse(p), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toProductResponse(p), nil
}

func (s *CatalogService) ListProducts(ctx context.Context, limit, offset int) ([]*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListProducts")
	defer span.End()

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	products, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp := make([]*ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	return resp, nil
}

// UpdateProduct 读取商品、合并补丁、写回
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, pp domain.ProductPatch) (*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := p.ApplyPatch(pp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update product failed")
		return nil, err
	}
	return toProductResponse(p), nil
}
