package service

import "github.com/Krosnoz/dialogue/internal/model"

// CatalogSource 提供 Provider 目录
type CatalogSource interface {
	Catalog() []model.ProviderInfo
}

// ProviderService Provider 目录查询
type ProviderService struct {
	source CatalogSource
}

// NewProviderService 创建 Provider 目录服务
func NewProviderService(source CatalogSource) *ProviderService {
	return &ProviderService{source: source}
}

// List 返回全部 Provider
func (s *ProviderService) List() *model.ProvidersResponse {
	items := s.source.Catalog()
	return &model.ProvidersResponse{Items: items, ItemsCount: len(items)}
}
