package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/models"
	"github.com/orris-inc/storefront/internal/shared/db"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// FunnelRepositoryImpl implements the funnel.Repository interface.
type FunnelRepositoryImpl struct {
	db     *gorm.DB
	txMgr  *db.TransactionManager
	mapper mappers.FunnelMapper
	logger logger.Interface
}

// NewFunnelRepository creates a new funnel repository instance.
func NewFunnelRepository(gdb *gorm.DB, logger logger.Interface) *FunnelRepositoryImpl {
	return &FunnelRepositoryImpl{
		db:     gdb,
		txMgr:  db.NewTransactionManager(gdb),
		mapper: mappers.NewFunnelMapper(),
		logger: logger,
	}
}

// Create inserts f. A SID is generated when f has none yet.
func (r *FunnelRepositoryImpl) Create(ctx context.Context, f *funnel.Funnel) (*funnel.Funnel, error) {
	model, err := r.mapper.ToModel(f)
	if err != nil {
		return nil, fmt.Errorf("failed to map funnel entity: %w", err)
	}
	if model.SID == "" {
		if model.SID, err = id.NewFunnelID(); err != nil {
			return nil, fmt.Errorf("failed to generate funnel ID: %w", err)
		}
	}
	model.Resources = nil

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create funnel in database", "name", model.Name, "error", err)
		return nil, fmt.Errorf("failed to create funnel: %w", err)
	}

	r.logger.Infow("funnel created successfully", "id", model.ID, "sid", model.SID, "name", model.Name)
	return r.mapper.ToEntity(model)
}

// Get retrieves a merchant's funnel with its assignments.
func (r *FunnelRepositoryImpl) Get(ctx context.Context, merchantID, sid string) (*funnel.Funnel, error) {
	var model models.FunnelModel

	if err := r.withResources(ctx).
		Where("merchant_id = ? AND sid = ?", merchantID, sid).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		r.logger.Errorw("failed to get funnel", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get funnel: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

// ListByMerchant returns the merchant's funnels in creation order.
func (r *FunnelRepositoryImpl) ListByMerchant(ctx context.Context, merchantID string) ([]*funnel.Funnel, error) {
	var modelList []*models.FunnelModel

	if err := r.withResources(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id ASC").
		Find(&modelList).Error; err != nil {
		r.logger.Errorw("failed to list funnels", "merchant_id", merchantID, "error", err)
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}

	entities, err := r.mapper.ToEntities(modelList)
	if err != nil {
		return nil, fmt.Errorf("failed to map funnels: %w", err)
	}
	return entities, nil
}

// SetAssignments replaces the funnel's assignment rows with resourceIDs.
// Every id must name a live resource of the funnel's merchant.
func (r *FunnelRepositoryImpl) SetAssignments(ctx context.Context, sid string, resourceIDs []string) error {
	err := r.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := db.GetTxFromContext(ctx, r.db)

		model, err := r.findBySID(tx, sid)
		if err != nil {
			return err
		}

		var rowIDs []uint
		if len(resourceIDs) > 0 {
			if err := tx.Model(&models.ResourceModel{}).
				Scopes(db.ForMerchant(model.MerchantID)).
				Where("sid IN ?", resourceIDs).
				Pluck("id", &rowIDs).Error; err != nil {
				return err
			}
			if len(rowIDs) != len(resourceIDs) {
				return shared.ErrNotFound
			}
		}

		if err := tx.Where("funnel_id = ?", model.ID).Delete(&models.FunnelResourceModel{}).Error; err != nil {
			return err
		}
		if len(rowIDs) > 0 {
			now := time.Now().UTC()
			rows := make([]models.FunnelResourceModel, 0, len(rowIDs))
			for _, rid := range rowIDs {
				rows = append(rows, models.FunnelResourceModel{FunnelID: model.ID, ResourceID: rid, CreatedAt: now})
			}
			if err := tx.Omit("Resource").Create(&rows).Error; err != nil {
				return err
			}
		}

		return r.bumpVersion(tx, model, nil)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		r.logger.Errorw("failed to set funnel assignments", "sid", sid, "count", len(resourceIDs), "error", err)
		return fmt.Errorf("failed to set funnel assignments: %w", err)
	}

	r.logger.Infow("funnel assignments saved", "sid", sid, "count", len(resourceIDs))
	return nil
}

// SaveFlow stores the generated flow document.
func (r *FunnelRepositoryImpl) SaveFlow(ctx context.Context, sid string, flow funnel.Flow) error {
	return r.update(ctx, sid, "save funnel flow", map[string]any{
		"generated_flow": datatypes.JSON(flow),
	})
}

// SetDeployed records the funnel's live status.
func (r *FunnelRepositoryImpl) SetDeployed(ctx context.Context, sid string, deployed bool, at time.Time) error {
	fields := map[string]any{"is_deployed": deployed}
	if deployed {
		fields["deployed_at"] = at.UTC()
	} else {
		fields["deployed_at"] = nil
	}
	return r.update(ctx, sid, "set funnel deployed", fields)
}

func (r *FunnelRepositoryImpl) update(ctx context.Context, sid, op string, fields map[string]any) error {
	err := r.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := db.GetTxFromContext(ctx, r.db)
		model, err := r.findBySID(tx, sid)
		if err != nil {
			return err
		}
		return r.bumpVersion(tx, model, fields)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		r.logger.Errorw("failed to "+op, "sid", sid, "error", err)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func (r *FunnelRepositoryImpl) withResources(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).
		Preload("Resources", func(tx *gorm.DB) *gorm.DB { return tx.Order("resource_id ASC") }).
		Preload("Resources.Resource")
}

func (r *FunnelRepositoryImpl) findBySID(tx *gorm.DB, sid string) (*models.FunnelModel, error) {
	var model models.FunnelModel
	if err := tx.Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &model, nil
}

// bumpVersion writes fields plus the next version, guarded by the current one.
func (r *FunnelRepositoryImpl) bumpVersion(tx *gorm.DB, model *models.FunnelModel, fields map[string]any) error {
	updates := map[string]any{
		"version":    model.Version + 1,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := tx.Model(&models.FunnelModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("funnel %s was modified concurrently", model.SID)
	}
	return nil
}
