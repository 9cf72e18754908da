package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"taskmanager/access"
	"taskmanager/blob"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
)

type ProjectHandler struct {
	store *store.Store
	blobs blob.Store
	log   *zap.Logger
}

func NewProjectHandler(st *store.Store, blobs blob.Store, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{store: st, blobs: blobs, log: log}
}

type projectRequest struct {
	Title       *string          `json:"title"`
	Description optional[string] `json:"description"`
	Members     *[]flexID        `json:"members"`
}

// apply copies the request onto p. With partial false the title is
// required. An absent description is left as it is.
func (req *projectRequest) apply(p *models.Project, partial bool) error {
	v := access.Validation{}
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
		if p.Title == "" {
			v.Add("title", "This field may not be blank.")
		} else if len(p.Title) > 200 {
			v.Add("title", "Ensure this field has no more than 200 characters.")
		}
	} else if !partial {
		v.Add("title", "This field is required.")
	}
	if req.Description.Set {
		p.Description = req.Description.Value
	}
	return v.Err()
}

func (req *projectRequest) memberIDs() *[]uint {
	if req.Members == nil {
		return nil
	}
	ids := flexIDs(*req.Members)
	return &ids
}

// load fetches a project and applies the read rule, so invisible
// projects are reported as not found.
func (h *ProjectHandler) load(r *http.Request) (*models.Project, error) {
	id, err := pathID(r, "project")
	if err != nil {
		return nil, err
	}
	p, err := h.store.ProjectByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.ProjectTarget(p), access.OpRead); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *ProjectHandler) taskCount(r *http.Request, id uint) (int64, error) {
	counts, err := h.store.TaskCounts(r.Context(), []uint{id})
	return counts[id], err
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	q := store.ProjectQuery{
		Search:   r.URL.Query().Get("search"),
		Ordering: r.URL.Query().Get("ordering"),
	}
	projects, err := h.store.ListVisibleProjects(r.Context(), identity, q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	ids := make([]uint, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	counts, err := h.store.TaskCounts(r.Context(), ids)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	out := make([]projectListView, len(projects))
	for i := range projects {
		out[i] = newProjectListView(&projects[i], counts[projects[i].ID])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if err := access.Authorize(identity, access.Target{Kind: access.KindProject}, access.OpCreate); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req projectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p := models.Project{OwnerID: identity.UserID}
	if err := req.apply(&p, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var members []uint
	if ids := req.memberIDs(); ids != nil {
		members = *ids
	}

	if err := h.store.CreateProject(r.Context(), &p, members); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectView(&p, 0))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	n, err := h.taskCount(r, p.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p, n))
}

func (h *ProjectHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := access.Authorize(identity, store.ProjectTarget(p), access.OpUpdate); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req projectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := req.apply(p, partial); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.UpdateProject(r.Context(), p, req.memberIDs()); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	n, err := h.taskCount(r, p.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p, n))
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r, false) }

func (h *ProjectHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) { h.update(w, r, true) }

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := access.Authorize(identity, store.ProjectTarget(p), access.OpDelete); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	keys, err := h.store.DeleteProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	removeBlobs(r, h.blobs, h.log, keys)
	h.log.Info("project deleted", zap.Uint("project_id", p.ID), zap.Uint("user_id", identity.UserID))
	w.WriteHeader(http.StatusNoContent)
}

type memberRequest struct {
	UserID flexID `json:"user_id"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (h *ProjectHandler) memberTarget(w http.ResponseWriter, r *http.Request, op access.Operation) (*models.Project, uint, bool) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return nil, 0, false
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.ProjectTarget(p), op); err != nil {
		writeError(w, r, h.log, err)
		return nil, 0, false
	}

	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return nil, 0, false
	}
	if req.UserID == 0 {
		writeError(w, r, h.log, access.Invalid("user_id", "user_id is required"))
		return nil, 0, false
	}
	return p, uint(req.UserID), true
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.memberTarget(w, r, access.OpAddMember)
	if !ok {
		return
	}
	user, err := h.store.AddMember(r.Context(), p.ID, userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("%s added to project", user.Email)})
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.memberTarget(w, r, access.OpRemoveMember)
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := access.AuthorizeRemoveMember(identity, store.ACLOf(p), userID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, err := h.store.RemoveMember(r.Context(), p.ID, userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("%s removed from project", user.Email)})
}
