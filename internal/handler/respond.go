// Package handler provides the HTTP façade for ModFusion Accounts. The
// façade adds no semantics of its own: validation, authorization and session
// rules all live in the service layer; handlers only translate JSON.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/modfusion/accounts/internal/domain"
)

// accountView is the API shape of an account. The stored password is never
// exposed through the façade.
type accountView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	Avatar    string     `json:"avatar,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func viewOf(a *domain.Account) *accountView {
	if a == nil {
		return nil
	}
	return &accountView{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Role:      string(a.Role),
		Avatar:    a.Avatar,
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}

func viewsOf(accounts []*domain.Account) []*accountView {
	views := make([]*accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, viewOf(a))
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
