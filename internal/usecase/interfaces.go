package usecase

import (
	"context"

	"itsmd/internal/domain"
)

type ServiceRequestRepository interface {
	Create(ctx context.Context, sr domain.ServiceRequest) (domain.ServiceRequest, error)
	GetBySrNo(ctx context.Context, srNo string) (domain.ServiceRequest, error)
	Update(ctx context.Context, sr domain.ServiceRequest) error
	Delete(ctx context.Context, srNo string) error
	List(ctx context.Context, filter domain.SrFilter) ([]domain.ServiceRequest, error)
	Count(ctx context.Context, filter domain.SrFilter) (int64, error)
	NextSrNo(ctx context.Context, prefix string) (string, error)
}
