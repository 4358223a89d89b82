package db

import (
	"context"
	"errors"
	"fmt"

	"itsmd/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceRequestRepository struct {
	db *gorm.DB
}

func NewServiceRequestRepository(db *gorm.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

func (r *ServiceRequestRepository) Create(ctx context.Context, sr domain.ServiceRequest) (domain.ServiceRequest, error) {
	if r.db == nil {
		return domain.ServiceRequest{}, errDBUnavailable
	}
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	model := toModel(sr)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ServiceRequest{}, domain.ErrConflict
		}
		return domain.ServiceRequest{}, err
	}
	return toDomain(model), nil
}

func (r *ServiceRequestRepository) GetBySrNo(ctx context.Context, srNo string) (domain.ServiceRequest, error) {
	if r.db == nil {
		return domain.ServiceRequest{}, errDBUnavailable
	}
	var model ServiceRequestModel
	err := r.db.WithContext(ctx).Where("sr_no = ?", srNo).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ServiceRequest{}, domain.ErrNotFound
		}
		return domain.ServiceRequest{}, err
	}
	return toDomain(model), nil
}

func (r *ServiceRequestRepository) Update(ctx context.Context, sr domain.ServiceRequest) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := toModel(sr)
	result := r.db.WithContext(ctx).Model(&ServiceRequestModel{}).
		Where("sr_no = ?", sr.SrNo).
		Select("*").Omit("id", "sr_no", "created_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ServiceRequestRepository) Delete(ctx context.Context, srNo string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Where("sr_no = ?", srNo).Delete(&ServiceRequestModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ServiceRequestRepository) List(ctx context.Context, filter domain.SrFilter) ([]domain.ServiceRequest, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.applyFilter(r.db.WithContext(ctx).Model(&ServiceRequestModel{}), filter).
		Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var models []ServiceRequestModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ServiceRequest, 0, len(models))
	for _, model := range models {
		out = append(out, toDomain(model))
	}
	return out, nil
}

func (r *ServiceRequestRepository) Count(ctx context.Context, filter domain.SrFilter) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&ServiceRequestModel{}), filter).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// NextSrNo allocates the next number under the month prefix, SR-YYMM-NNN.
func (r *ServiceRequestRepository) NextSrNo(ctx context.Context, prefix string) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&ServiceRequestModel{}).
		Where("sr_no LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (r *ServiceRequestRepository) applyFilter(query *gorm.DB, filter domain.SrFilter) *gorm.DB {
	if filter.Stage != "" {
		query = query.Where("stage = ?", string(filter.Stage))
	}
	if filter.RequesterID != "" {
		query = query.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.ChargerID != "" {
		query = query.Where("charger_id = ?", filter.ChargerID)
	}
	return query
}

func toModel(sr domain.ServiceRequest) ServiceRequestModel {
	return ServiceRequestModel{
		ID:              sr.ID,
		SrNo:            sr.SrNo,
		Title:           sr.Title,
		Content:         sr.Content,
		Urgency:         sr.Urgency,
		Prior:           sr.Prior,
		Stage:           string(sr.Stage),
		RequesterID:     sr.RequesterID,
		RequesterName:   sr.RequesterName,
		RequesterEmail:  sr.RequesterEmail,
		ChargerID:       sr.ChargerID,
		ChargerName:     sr.ChargerName,
		ConfirmerID:     sr.ConfirmerID,
		ProcessDetails:  sr.ProcessDetails,
		VerifyRequested: sr.VerifyRequested,
		EvalScore:       sr.EvalScore,
		EvalContent:     sr.EvalContent,
		ReRequestOf:     sr.ReRequestOf,
		ReceivedAt:      sr.ReceivedAt,
		ProcessAt:       sr.ProcessAt,
		FinishedAt:      sr.FinishedAt,
		CreatedBy:       sr.CreatedBy,
		UpdatedBy:       sr.UpdatedBy,
		CreatedAt:       sr.CreatedAt,
		UpdatedAt:       sr.UpdatedAt,
	}
}

func toDomain(model ServiceRequestModel) domain.ServiceRequest {
	return domain.ServiceRequest{
		ID:              model.ID,
		SrNo:            model.SrNo,
		Title:           model.Title,
		Content:         model.Content,
		Urgency:         model.Urgency,
		Prior:           model.Prior,
		Stage:           domain.SrStage(model.Stage),
		RequesterID:     model.RequesterID,
		RequesterName:   model.RequesterName,
		RequesterEmail:  model.RequesterEmail,
		ChargerID:       model.ChargerID,
		ChargerName:     model.ChargerName,
		ConfirmerID:     model.ConfirmerID,
		ProcessDetails:  model.ProcessDetails,
		VerifyRequested: model.VerifyRequested,
		EvalScore:       model.EvalScore,
		EvalContent:     model.EvalContent,
		ReRequestOf:     model.ReRequestOf,
		ReceivedAt:      model.ReceivedAt,
		ProcessAt:       model.ProcessAt,
		FinishedAt:      model.FinishedAt,
		CreatedBy:       model.CreatedBy,
		UpdatedBy:       model.UpdatedBy,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}
