package domain

import "time"

type SrStage string

const (
	StageRequest  SrStage = "request"
	StageReceive  SrStage = "receive"
	StageProcess  SrStage = "process"
	StageVerify   SrStage = "verify"
	StageFinish   SrStage = "finish"
	StageEvaluate SrStage = "evaluate"
)

// SrFilter narrows SR listings. Zero fields are ignored.
type SrFilter struct {
	Stage       SrStage
	RequesterID string
	ChargerID   string
	Limit       int
	Offset      int
}

// ServiceRequest is one SR record. SrNo is the public identifier in the
// SR-YYMM-NNN form; ID is the storage key.
type ServiceRequest struct {
	ID   string
	SrNo string

	Title   string
	Content string
	Urgency string
	Prior   string

	Stage SrStage

	RequesterID    string
	RequesterName  string
	RequesterEmail string

	ChargerID      string
	ChargerName    string
	ConfirmerID    string
	ProcessDetails string

	VerifyRequested bool
	EvalScore       string
	EvalContent     string
	ReRequestOf     string

	ReceivedAt *time.Time
	ProcessAt  *time.Time
	FinishedAt *time.Time

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
