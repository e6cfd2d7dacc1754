package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/manager"
	"multi-tenant-notes/internal/model"
)

// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server is running"})
}

// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body manager.Credentials true "Credentials"
// @Success 200 {object} manager.LoginResult
// @Failure 400 {object} errorBody
// @Router /auth/login [post]
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var body manager.Credentials
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.Accounts.Login(r.Context(), body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// @Summary Register a user in the caller's tenant
// @Tags Auth
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body manager.RegisterRequest true "New user"
// @Success 201 {object} messageBody
// @Failure 400 {object} errorBody
// @Router /auth/register [post]
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var body manager.RegisterRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	if _, err := a.Accounts.Register(r.Context(), p, body); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: "User registered successfully"})
}

// @Summary Current user
// @Tags Auth
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} map[string]model.UserView
// @Router /auth/me [get]
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	view, err := a.Accounts.Me(r.Context(), p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.UserView{"user": *view})
}

// @Summary List the tenant's notes
// @Tags Notes
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} manager.NoteList
// @Router /notes [get]
func (a *API) ListNotes(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	list, err := a.Notes.List(r.Context(), p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// @Summary Create a note
// @Tags Notes
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body manager.CreateNoteRequest true "Note"
// @Success 201 {object} model.Note
// @Failure 403 {object} errorBody "free plan limit reached"
// @Router /notes [post]
func (a *API) CreateNote(w http.ResponseWriter, r *http.Request) {
	var body manager.CreateNoteRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	note, err := a.Notes.Create(r.Context(), p, body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// @Summary Get a note
// @Tags Notes
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "Note UUID"
// @Success 200 {object} model.Note
// @Router /notes/{id} [get]
func (a *API) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	note, err := a.Notes.Get(r.Context(), p, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// @Summary Update a note
// @Tags Notes
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "Note UUID"
// @Param body body model.NotePatch true "Fields to change"
// @Success 200 {object} model.Note
// @Router /notes/{id} [put]
func (a *API) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var patch model.NotePatch
	if err := decodeOptionalJSON(r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	note, err := a.Notes.Update(r.Context(), p, id, patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// @Summary Delete a note
// @Tags Notes
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "Note UUID"
// @Success 200 {object} messageBody
// @Router /notes/{id} [delete]
func (a *API) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	if err := a.Notes.Delete(r.Context(), p, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Note deleted successfully"})
}

// @Summary Upgrade the caller's tenant to Pro
// @Tags Tenants
// @Security ApiKeyAuth
// @Produce json
// @Param slug path string true "Tenant slug"
// @Success 200 {object} upgradeResponse
// @Router /tenants/{slug}/upgrade [post]
func (a *API) UpgradeTenant(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	tenant, err := a.Tenants.Upgrade(r.Context(), p, chi.URLParam(r, "slug"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upgradeResponse{
		Message: "Subscription upgraded to Pro successfully",
		Tenant:  tenant.View(),
	})
}

type upgradeResponse struct {
	Message string           `json:"message"`
	Tenant  model.TenantView `json:"tenant"`
}

// noteID parses the path id. An unparsable id cannot name a note, so it is a 404.
func noteID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.NotFound("Note not found")
	}
	return id, nil
}
