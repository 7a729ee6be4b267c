package httpapi

import (
	"net/http"

	"trusthub.org/internal/disputes"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := a.auth.ListUsers(r.Context(), q.Get("role"), q.Get("kyc_status"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "total": len(users)})
}

func (a *API) verifyKYC(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user")
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.auth.VerifyKYC(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "message": "kyc verified"})
}

func (a *API) rejectKYC(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.auth.RejectKYC(r.Context(), id, body.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "message": "kyc rejected"})
}

func (a *API) openDispute(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var in disputes.OpenInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.disputes.Open(r.Context(), u.ID, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"dispute": d, "message": "dispute opened"})
}

func (a *API) listDisputes(w http.ResponseWriter, r *http.Request) {
	list, err := a.disputes.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": list, "total": len(list)})
}

func (a *API) getDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "dispute")
	if err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.disputes.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispute": d})
}

func (a *API) assignDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "dispute")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var body struct {
		ArbitratorID string `json:"arbitrator_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.disputes.Assign(r.Context(), id, body.ArbitratorID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispute": d, "message": "arbitrator assigned"})
}

func (a *API) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "dispute")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var in disputes.ResolveInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.disputes.Resolve(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispute": d, "message": "dispute resolved"})
}
