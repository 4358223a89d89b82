package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type userInfoResponse struct {
	Subject         string   `json:"subject"`
	Username        string   `json:"username"`
	Email           string   `json:"email,omitempty"`
	FirstName       string   `json:"first_name,omitempty"`
	UserTypeCodes   []string `json:"user_type_codes"`
	UserStatusCodes []string `json:"user_status_codes,omitempty"`
	DepartmentCodes []string `json:"department_codes,omitempty"`
	DepartmentNames []string `json:"department_names,omitempty"`
	Positions       []string `json:"positions,omitempty"`
	ClassNames      []string `json:"class_names,omitempty"`
	Authorities     []string `json:"authorities"`
	PrimaryTypeCode string   `json:"primary_type_code,omitempty"`
}

func (s *Server) handleUserInfo(c *gin.Context) {
	principal, _ := principalFrom(c)
	c.JSON(http.StatusOK, userInfoResponse{
		Subject:         principal.Subject,
		Username:        principal.Username,
		Email:           principal.Email,
		FirstName:       principal.FirstName,
		UserTypeCodes:   principal.UserTypeCodes,
		UserStatusCodes: principal.UserStatusCodes,
		DepartmentCodes: principal.DepartmentCodes,
		DepartmentNames: principal.DepartmentNames,
		Positions:       principal.Positions,
		ClassNames:      principal.ClassNames,
		Authorities:     principal.Authorities,
		PrimaryTypeCode: userTypeCodeFrom(c),
	})
}

// handleRoleProbe answers for the role-gated diagnostic endpoints; the guard
// has already done the real work by the time this runs.
func (s *Server) handleRoleProbe(area string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := principalFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"area":     area,
			"username": principal.Username,
		})
	}
}
