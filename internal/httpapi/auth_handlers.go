package httpapi

import (
	"net/http"

	"trusthub.org/internal/auth"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	sess, err := a.auth.Register(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    sess.User,
		"token":   sess.Token,
		"message": "registration successful",
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	sess, err := a.auth.Login(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    sess.User,
		"token":   sess.Token,
		"message": "login successful",
	})
}

// logout always succeeds; a missing or unknown token has nothing to revoke.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		if err := a.auth.Logout(r.Context(), token); err != nil {
			handleError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "logout successful"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
