package http

import (
	"net/http"
	"strconv"
	"time"

	"itsmd/internal/domain"
	"itsmd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type createSrRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Urgency string `json:"urgency"`
	Prior   string `json:"prior"`

	RequesterID    string `json:"requester_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
}

type updateSrRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Urgency string `json:"urgency"`
	Prior   string `json:"prior"`
}

type srActionRequest struct {
	Details     string `json:"details"`
	ConfirmerID string `json:"confirmer_id"`
	Score       string `json:"score"`
	Content     string `json:"content"`
}

type srResponse struct {
	SrNo    string `json:"sr_no"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Urgency string `json:"urgency,omitempty"`
	Prior   string `json:"prior,omitempty"`
	Stage   string `json:"stage"`

	RequesterID    string `json:"requester_id"`
	RequesterName  string `json:"requester_name,omitempty"`
	RequesterEmail string `json:"requester_email,omitempty"`
	ChargerID      string `json:"charger_id,omitempty"`
	ChargerName    string `json:"charger_name,omitempty"`
	ConfirmerID    string `json:"confirmer_id,omitempty"`

	ProcessDetails  string `json:"process_details,omitempty"`
	VerifyRequested bool   `json:"verify_requested,omitempty"`
	EvalScore       string `json:"eval_score,omitempty"`
	EvalContent     string `json:"eval_content,omitempty"`
	ReRequestOf     string `json:"re_request_of,omitempty"`

	ReceivedAt *string `json:"received_at,omitempty"`
	ProcessAt  *string `json:"process_at,omitempty"`
	FinishedAt *string `json:"finished_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type srListResponse struct {
	Items []srResponse `json:"items"`
	Total int64        `json:"total"`
}

func toSrResponse(sr domain.ServiceRequest) srResponse {
	return srResponse{
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
		ReceivedAt:      formatTimePtr(sr.ReceivedAt),
		ProcessAt:       formatTimePtr(sr.ProcessAt),
		FinishedAt:      formatTimePtr(sr.FinishedAt),
		CreatedAt:       sr.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       sr.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

// srService fetches the wired SR service or reports that persistence is off.
func (s *Server) srService(c *gin.Context) (*usecase.SrService, bool) {
	if s.srs == nil {
		writeEnvelope(c, http.StatusServiceUnavailable, "service request storage is not configured")
		return nil, false
	}
	return s.srs, true
}

func (s *Server) handleSrCreate(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req createSrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Create(c.Request.Context(), principal, userTypeCodeFrom(c), usecase.CreateSrInput{
		Title:   req.Title,
		Content: req.Content,
		Urgency: req.Urgency,
		Prior:   req.Prior,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSrResponse(sr))
}

func (s *Server) handleSrCreateAsManager(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req createSrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.CreateAsManager(c.Request.Context(), principal, userTypeCodeFrom(c), usecase.CreateSrInput{
		Title:          req.Title,
		Content:        req.Content,
		Urgency:        req.Urgency,
		Prior:          req.Prior,
		RequesterID:    req.RequesterID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSrResponse(sr))
}

func (s *Server) handleSrGet(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrList(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)
	filter := domain.SrFilter{
		Stage:  domain.SrStage(c.Query("stage")),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	result, err := srs.List(c.Request.Context(), principal, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]srResponse, 0, len(result.Items))
	for _, sr := range result.Items {
		items = append(items, toSrResponse(sr))
	}
	c.JSON(http.StatusOK, srListResponse{Items: items, Total: result.Total})
}

func (s *Server) handleSrUpdateRequest(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req updateSrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.UpdateRequest(c.Request.Context(), principal, c.Param("id"), usecase.UpdateSrInput{
		Title:   req.Title,
		Content: req.Content,
		Urgency: req.Urgency,
		Prior:   req.Prior,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrReceive(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Receive(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrFirstResponse(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req srActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.FirstResponse(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"), req.Details)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrProcess(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req srActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Process(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"), req.Details)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrVerify(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req srActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Verify(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"), req.ConfirmerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrFinish(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Finish(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrEvaluate(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req srActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.Evaluate(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"), req.Score, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSrResponse(sr))
}

func (s *Server) handleSrReRequest(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	var req srActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEnvelope(c, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := principalFrom(c)
	sr, err := srs.ReRequest(c.Request.Context(), principal, userTypeCodeFrom(c), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSrResponse(sr))
}

func (s *Server) handleSrDelete(c *gin.Context) {
	srs, ok := s.srService(c)
	if !ok {
		return
	}
	if err := srs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
