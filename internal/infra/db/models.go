package db

import "time"

type ServiceRequestModel struct {
	ID   string `gorm:"type:uuid;primaryKey"`
	SrNo string `gorm:"uniqueIndex;not null"`

	Title   string `gorm:"not null"`
	Content string
	Urgency string
	Prior   string

	Stage string `gorm:"index;not null"`

	RequesterID    string `gorm:"index;not null"`
	RequesterName  string
	RequesterEmail string

	ChargerID      string `gorm:"index"`
	ChargerName    string
	ConfirmerID    string
	ProcessDetails string

	VerifyRequested bool `gorm:"not null;default:false"`
	EvalScore       string
	EvalContent     string
	ReRequestOf     string `gorm:"index"`

	ReceivedAt *time.Time
	ProcessAt  *time.Time
	FinishedAt *time.Time

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ServiceRequestModel) TableName() string {
	return "service_requests"
}
