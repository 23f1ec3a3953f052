package mappers

import (
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/models"
	"github.com/orris-inc/storefront/internal/shared/mapper"
)

// FunnelMapper handles the conversion between funnels and persistence models.
type FunnelMapper interface {
	// ToEntity expects Resources.Resource to be preloaded.
	ToEntity(model *models.FunnelModel) (*funnel.Funnel, error)
	ToModel(entity *funnel.Funnel) (*models.FunnelModel, error)
	ToEntities(models []*models.FunnelModel) ([]*funnel.Funnel, error)
}

type FunnelMapperImpl struct{}

func NewFunnelMapper() FunnelMapper {
	return &FunnelMapperImpl{}
}

func (m *FunnelMapperImpl) ToEntity(model *models.FunnelModel) (*funnel.Funnel, error) {
	if model == nil {
		return nil, nil
	}

	assigned := make([]string, 0, len(model.Resources))
	for _, fr := range model.Resources {
		if fr.Resource.SID != "" {
			assigned = append(assigned, fr.Resource.SID)
		}
	}

	var flow funnel.Flow
	if len(model.GeneratedFlow) > 0 {
		flow = funnel.Flow(append([]byte(nil), model.GeneratedFlow...))
	}

	return funnel.ReconstructFunnel(
		model.SID,
		model.MerchantID,
		model.Name,
		assigned,
		flow,
		model.IsDeployed,
		model.DeployedAt,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	), nil
}

// ToModel converts the funnel row. Assignments are written separately.
func (m *FunnelMapperImpl) ToModel(entity *funnel.Funnel) (*models.FunnelModel, error) {
	if entity == nil {
		return nil, nil
	}
	model := &models.FunnelModel{
		SID:        entity.ID(),
		MerchantID: entity.MerchantID(),
		Name:       entity.Name(),
		IsDeployed: entity.IsDeployed(),
		DeployedAt: entity.DeployedAt(),
		CreatedAt:  entity.CreatedAt(),
		UpdatedAt:  entity.UpdatedAt(),
		Version:    entity.Version(),
	}
	if entity.HasFlow() {
		model.GeneratedFlow = []byte(entity.Flow())
	}
	return model, nil
}

func (m *FunnelMapperImpl) ToEntities(modelList []*models.FunnelModel) ([]*funnel.Funnel, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.FunnelModel) string { return model.SID })
}
