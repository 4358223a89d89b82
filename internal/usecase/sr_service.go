package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"itsmd/internal/domain"
)

// CreateSrInput carries the requester-supplied fields of a new SR.
type CreateSrInput struct {
	Title   string
	Content string
	Urgency string
	Prior   string

	// Manager-created SRs can name a requester other than the caller.
	RequesterID    string
	RequesterName  string
	RequesterEmail string
}

// UpdateSrInput carries the fields a requester may change before receipt.
type UpdateSrInput struct {
	Title   string
	Content string
	Urgency string
	Prior   string
}

// ListResult pairs a page of SRs with the unpaged total.
type ListResult struct {
	Items []domain.ServiceRequest
	Total int64
}

// SrService implements the SR lifecycle. Every mutating operation re-checks
// the caller's user-type code through SrPolicy even though the route guard
// already ran; the two checks read the same Principal.
type SrService struct {
	repo   ServiceRequestRepository
	policy SrPolicy
	now    func() time.Time
}

func NewSrService(repo ServiceRequestRepository) *SrService {
	return &SrService{repo: repo, now: time.Now}
}

// Create opens a new SR at the request stage on behalf of the caller.
func (s *SrService) Create(ctx context.Context, caller domain.Principal, userTyCode string, in CreateSrInput) (domain.ServiceRequest, error) {
	if err := s.policy.CanCreate(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := validateCreate(in); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr := s.newRequest(caller, in)
	sr.RequesterID = caller.Username
	sr.RequesterName = caller.FirstName
	sr.RequesterEmail = caller.Email
	return s.persistNew(ctx, sr)
}

// CreateAsManager opens an SR for a named requester. Manager only.
func (s *SrService) CreateAsManager(ctx context.Context, caller domain.Principal, userTyCode string, in CreateSrInput) (domain.ServiceRequest, error) {
	if err := s.policy.CanCreateAsManager(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := validateCreate(in); err != nil {
		return domain.ServiceRequest{}, err
	}
	if strings.TrimSpace(in.RequesterID) == "" {
		return domain.ServiceRequest{}, fmt.Errorf("requester id is required: %w", domain.ErrInvalidArgument)
	}
	sr := s.newRequest(caller, in)
	sr.RequesterID = in.RequesterID
	sr.RequesterName = in.RequesterName
	sr.RequesterEmail = in.RequesterEmail
	return s.persistNew(ctx, sr)
}

// Get returns the SR if the caller is allowed to see it. Records outside the
// caller's visibility read as not found rather than forbidden, so existence
// does not leak.
func (s *SrService) Get(ctx context.Context, caller domain.Principal, srNo string) (domain.ServiceRequest, error) {
	sr, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if !visibleTo(caller, sr) {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}
	return sr, nil
}

// List returns the SRs visible to the caller, narrowed by the filter.
// Admins and managers see everything, handlers see their assignments, and
// everyone else sees what they requested.
func (s *SrService) List(ctx context.Context, caller domain.Principal, filter domain.SrFilter) (ListResult, error) {
	switch {
	case caller.HasAnyAuthority(domain.RoleAdmin, domain.RoleManager):
		// unrestricted
	case caller.HasAuthority(domain.RoleHandler):
		filter.ChargerID = caller.Username
	default:
		filter.RequesterID = caller.Username
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// UpdateRequest edits an SR that has not been received yet. Only the
// requester (or an admin/manager) may edit, and only at the request stage.
func (s *SrService) UpdateRequest(ctx context.Context, caller domain.Principal, srNo string, in UpdateSrInput) (domain.ServiceRequest, error) {
	sr, err := s.Get(ctx, caller, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if sr.ReceivedAt != nil || sr.Stage != domain.StageRequest {
		return domain.ServiceRequest{}, fmt.Errorf("service request %s already received: %w", srNo, domain.ErrConflict)
	}
	if sr.RequesterID != caller.Username && !caller.HasAnyAuthority(domain.RoleAdmin, domain.RoleManager) {
		return domain.ServiceRequest{}, denyf("only the requester can edit service request %s", srNo)
	}
	if strings.TrimSpace(in.Title) != "" {
		sr.Title = in.Title
	}
	if strings.TrimSpace(in.Content) != "" {
		sr.Content = in.Content
	}
	if in.Urgency != "" {
		sr.Urgency = in.Urgency
	}
	if in.Prior != "" {
		sr.Prior = in.Prior
	}
	return s.save(ctx, caller, sr)
}

// Receive assigns the SR to the calling handler and moves it to receive.
func (s *SrService) Receive(ctx context.Context, caller domain.Principal, userTyCode, srNo string) (domain.ServiceRequest, error) {
	if err := s.policy.CanReceive(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := requireStage(sr, domain.StageRequest); err != nil {
		return domain.ServiceRequest{}, err
	}
	now := s.now()
	sr.Stage = domain.StageReceive
	sr.ReceivedAt = &now
	sr.ChargerID = caller.Username
	sr.ChargerName = caller.FirstName
	return s.save(ctx, caller, sr)
}

// FirstResponse records the assigned handler's initial answer without
// advancing the stage.
func (s *SrService) FirstResponse(ctx context.Context, caller domain.Principal, userTyCode, srNo, details string) (domain.ServiceRequest, error) {
	if err := s.policy.CanProcess(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr, err := s.chargedTo(ctx, caller, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if sr.Stage != domain.StageReceive && sr.Stage != domain.StageProcess {
		return domain.ServiceRequest{}, stageConflict(sr)
	}
	sr.ProcessDetails = details
	return s.save(ctx, caller, sr)
}

// Process moves a received SR into active processing.
func (s *SrService) Process(ctx context.Context, caller domain.Principal, userTyCode, srNo, details string) (domain.ServiceRequest, error) {
	if err := s.policy.CanProcess(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr, err := s.chargedTo(ctx, caller, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := requireStage(sr, domain.StageReceive); err != nil {
		return domain.ServiceRequest{}, err
	}
	now := s.now()
	sr.Stage = domain.StageProcess
	sr.ProcessAt = &now
	if details != "" {
		sr.ProcessDetails = details
	}
	return s.save(ctx, caller, sr)
}

// Verify asks a confirmer to sign off on the processed work.
func (s *SrService) Verify(ctx context.Context, caller domain.Principal, userTyCode, srNo, confirmerID string) (domain.ServiceRequest, error) {
	if err := s.policy.CanVerify(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr, err := s.chargedTo(ctx, caller, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := requireStage(sr, domain.StageProcess); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr.Stage = domain.StageVerify
	sr.VerifyRequested = true
	sr.ConfirmerID = confirmerID
	return s.save(ctx, caller, sr)
}

// Finish closes a verified SR.
func (s *SrService) Finish(ctx context.Context, caller domain.Principal, srNo string) (domain.ServiceRequest, error) {
	sr, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := requireStage(sr, domain.StageVerify); err != nil {
		return domain.ServiceRequest{}, err
	}
	now := s.now()
	sr.Stage = domain.StageFinish
	sr.FinishedAt = &now
	return s.save(ctx, caller, sr)
}

// Evaluate records the requester's score on a finished SR.
func (s *SrService) Evaluate(ctx context.Context, caller domain.Principal, userTyCode, srNo, score, content string) (domain.ServiceRequest, error) {
	if err := s.policy.CanEvaluate(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	sr, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if sr.RequesterID != caller.Username {
		return domain.ServiceRequest{}, denyf("only the requester can evaluate service request %s", srNo)
	}
	if err := requireStage(sr, domain.StageFinish); err != nil {
		return domain.ServiceRequest{}, err
	}
	if strings.TrimSpace(score) == "" {
		return domain.ServiceRequest{}, fmt.Errorf("evaluation score is required: %w", domain.ErrInvalidArgument)
	}
	sr.Stage = domain.StageEvaluate
	sr.EvalScore = score
	sr.EvalContent = content
	return s.save(ctx, caller, sr)
}

// ReRequest reopens a finished SR as a fresh record that references the
// original through ReRequestOf.
func (s *SrService) ReRequest(ctx context.Context, caller domain.Principal, userTyCode, srNo, content string) (domain.ServiceRequest, error) {
	if err := s.policy.CanReRequest(userTyCode); err != nil {
		return domain.ServiceRequest{}, err
	}
	orig, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if orig.RequesterID != caller.Username {
		return domain.ServiceRequest{}, denyf("only the requester can re-request service request %s", srNo)
	}
	if orig.Stage != domain.StageFinish && orig.Stage != domain.StageEvaluate {
		return domain.ServiceRequest{}, stageConflict(orig)
	}
	now := s.now()
	sr := domain.ServiceRequest{
		Title:          orig.Title,
		Content:        orig.Content,
		Urgency:        orig.Urgency,
		Prior:          orig.Prior,
		Stage:          domain.StageRequest,
		RequesterID:    orig.RequesterID,
		RequesterName:  orig.RequesterName,
		RequesterEmail: orig.RequesterEmail,
		ReRequestOf:    orig.SrNo,
		CreatedBy:      caller.Username,
		UpdatedBy:      caller.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if strings.TrimSpace(content) != "" {
		sr.Content = content
	}
	return s.persistNew(ctx, sr)
}

// Delete removes an SR. Route guards restrict this to admins and managers.
func (s *SrService) Delete(ctx context.Context, srNo string) error {
	return s.repo.Delete(ctx, srNo)
}

func (s *SrService) newRequest(caller domain.Principal, in CreateSrInput) domain.ServiceRequest {
	now := s.now()
	return domain.ServiceRequest{
		Title:     in.Title,
		Content:   in.Content,
		Urgency:   in.Urgency,
		Prior:     in.Prior,
		Stage:     domain.StageRequest,
		CreatedBy: caller.Username,
		UpdatedBy: caller.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *SrService) persistNew(ctx context.Context, sr domain.ServiceRequest) (domain.ServiceRequest, error) {
	srNo, err := s.repo.NextSrNo(ctx, srNoPrefix(s.now()))
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	sr.SrNo = srNo
	return s.repo.Create(ctx, sr)
}

func (s *SrService) save(ctx context.Context, caller domain.Principal, sr domain.ServiceRequest) (domain.ServiceRequest, error) {
	sr.UpdatedBy = caller.Username
	sr.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, sr); err != nil {
		return domain.ServiceRequest{}, err
	}
	return sr, nil
}

// chargedTo loads the SR and checks the caller is its assigned handler.
func (s *SrService) chargedTo(ctx context.Context, caller domain.Principal, srNo string) (domain.ServiceRequest, error) {
	sr, err := s.repo.GetBySrNo(ctx, srNo)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if sr.ChargerID != caller.Username {
		return domain.ServiceRequest{}, denyf("service request %s is assigned to another handler", srNo)
	}
	return sr, nil
}

func visibleTo(caller domain.Principal, sr domain.ServiceRequest) bool {
	switch {
	case caller.HasAnyAuthority(domain.RoleAdmin, domain.RoleManager):
		return true
	case caller.HasAuthority(domain.RoleHandler):
		return sr.ChargerID == caller.Username || sr.RequesterID == caller.Username
	default:
		return sr.RequesterID == caller.Username
	}
}

func validateCreate(in CreateSrInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("content is required: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func requireStage(sr domain.ServiceRequest, want domain.SrStage) error {
	if sr.Stage != want {
		return stageConflict(sr)
	}
	return nil
}

func stageConflict(sr domain.ServiceRequest) error {
	return fmt.Errorf("service request %s is at stage %s: %w", sr.SrNo, sr.Stage, domain.ErrConflict)
}

// srNoPrefix builds the month prefix of the SR-YYMM-NNN numbering scheme.
func srNoPrefix(t time.Time) string {
	return fmt.Sprintf("SR-%s-", t.Format("0601"))
}
