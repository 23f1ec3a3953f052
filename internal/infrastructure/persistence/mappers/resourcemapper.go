package mappers

import (
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/models"
	"github.com/orris-inc/storefront/internal/shared/mapper"
)

// ResourceMapper handles the conversion between catalog resources and persistence models.
type ResourceMapper interface {
	ToEntity(model *models.ResourceModel) (*catalog.Resource, error)
	ToModel(entity *catalog.Resource) (*models.ResourceModel, error)
	ToEntities(models []*models.ResourceModel) ([]*catalog.Resource, error)
}

// ResourceMapperImpl is the concrete implementation of ResourceMapper.
type ResourceMapperImpl struct{}

func NewResourceMapper() ResourceMapper {
	return &ResourceMapperImpl{}
}

// ToEntity converts a persistence model to a domain entity. Rows are trusted;
// they were validated on the way in.
func (m *ResourceMapperImpl) ToEntity(model *models.ResourceModel) (*catalog.Resource, error) {
	if model == nil {
		return nil, nil
	}
	return catalog.ReconstructResource(
		model.SID,
		model.MerchantID,
		model.Name,
		model.Link,
		catalog.OriginKind(model.OriginKind),
		catalog.ValueCategory(model.ValueCategory),
		model.PromoCode,
		model.Description,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	), nil
}

// ToModel converts a domain entity to a persistence model. The numeric ID is
// left zero; repositories resolve it by SID.
func (m *ResourceMapperImpl) ToModel(entity *catalog.Resource) (*models.ResourceModel, error) {
	if entity == nil {
		return nil, nil
	}
	return &models.ResourceModel{
		SID:            entity.ID(),
		MerchantID:     entity.MerchantID(),
		Name:           entity.Name(),
		NormalizedName: entity.NormalizedName(),
		Link:           entity.Link(),
		OriginKind:     entity.OriginKind().String(),
		ValueCategory:  entity.ValueCategory().String(),
		PromoCode:      entity.PromoCode(),
		Description:    entity.Description(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
		Version:        entity.Version(),
	}, nil
}

func (m *ResourceMapperImpl) ToEntities(modelList []*models.ResourceModel) ([]*catalog.Resource, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.ResourceModel) string { return model.SID })
}
