package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/ips-core/internal/account"
)

// loginRequest is the POST /login body. Absent fields stay nil and are
// looked up as NULL, which never matches a stored row.
type loginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// handleLogin checks the submitted credentials against the users table.
func (s *Server) handleLogin(r *http.Request) (*response, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequest(keyMessage, "Invalid JSON body")
	}

	user, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		s.logger.Warn("login failed", "username", deref(req.Username))
		return nil, unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, storeFailure(keyMessage, err)
	}

	s.logger.Info("login successful", "username", user.Username, "user_id", user.ID)
	return &response{
		status: http.StatusOK,
		body:   loginResponse{Message: "Login successful", UserID: user.ID},
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
