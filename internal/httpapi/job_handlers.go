package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/ids"
	"trusthub.org/internal/jobs"
)

// pathID returns the {id} URL parameter. Values that cannot be identifiers
// are reported as missing resources without touching the store.
func pathID(r *http.Request, resource string) (string, error) {
	id := chi.URLParam(r, "id")
	if !ids.Valid(id) {
		return "", apperr.NotFound("%s not found", resource)
	}
	return id, nil
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := a.jobs.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	j, err := a.jobs.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job": j, "message": "job created"})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job")
	if err != nil {
		handleError(w, r, err)
		return
	}
	d, err := a.jobs.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": d})
}

type jobTransition func(ctx context.Context, id string) (domain.Job, error)

// transitionHandler adapts a lifecycle operation that needs only the job id.
func (a *API) transitionHandler(op jobTransition, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "job")
		if err != nil {
			handleError(w, r, err)
			return
		}
		j, err := op(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job": j, "message": message})
	}
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	a.transitionHandler(a.jobs.Submit, "job submitted for approval")(w, r)
}

func (a *API) approveJob(w http.ResponseWriter, r *http.Request) {
	a.transitionHandler(a.jobs.Approve, "job approved")(w, r)
}

// asCaller binds an ownership-checked operation to the authenticated user.
func asCaller(r *http.Request, op func(ctx context.Context, actor domain.User, id string) (domain.Job, error)) jobTransition {
	return func(ctx context.Context, id string) (domain.Job, error) {
		u, err := currentUser(r)
		if err != nil {
			return domain.Job{}, err
		}
		return op(ctx, u, id)
	}
}

func (a *API) deliverJob(w http.ResponseWriter, r *http.Request) {
	a.transitionHandler(asCaller(r, a.jobs.Deliver), "job delivered")(w, r)
}

func (a *API) completeJob(w http.ResponseWriter, r *http.Request) {
	a.transitionHandler(asCaller(r, a.jobs.Complete), "job completed")(w, r)
}

func (a *API) closeJob(w http.ResponseWriter, r *http.Request) {
	a.transitionHandler(a.jobs.Close, "job closed")(w, r)
}

func (a *API) startJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExpertID string `json:"expert_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	a.transitionHandler(asCaller(r, func(ctx context.Context, actor domain.User, id string) (domain.Job, error) {
		return a.jobs.Start(ctx, actor, id, body.ExpertID)
	}), "job started")(w, r)
}

func (a *API) addMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job")
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := currentUser(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var in jobs.MilestoneInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	m, err := a.jobs.AddMilestone(r.Context(), u, id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"milestone": m, "message": "milestone added"})
}

func (a *API) listPendingJobs(w http.ResponseWriter, r *http.Request) {
	list, err := a.jobs.ListPending(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (a *API) createEscrow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	if body.JobID != "" && !ids.Valid(body.JobID) {
		handleError(w, r, apperr.NotFound("job not found"))
		return
	}
	e, err := a.escrow.Create(r.Context(), body.JobID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"escrow": e, "message": "escrow created"})
}
