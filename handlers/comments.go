package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskmanager/access"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
)

// referencedTask loads the task named in a request body or query and
// applies op against it. Tasks the caller cannot see are reported as
// missing on the given field.
func referencedTask(r *http.Request, st *store.Store, field string, taskID uint, kind access.Kind, op access.Operation) (*models.Task, error) {
	invalid := access.Invalid(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", taskID))
	t, err := st.TaskByID(r.Context(), taskID)
	if errors.Is(err, access.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	target := access.Target{Kind: kind, Project: store.ACLOf(&t.Project)}
	err = access.Authorize(middleware.IdentityFromContext(r.Context()), target, op)
	if errors.Is(err, access.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// scopedTask resolves the ?task= filter of comment and attachment lists.
// ok is false when the list should be empty.
func scopedTask(r *http.Request, st *store.Store, kind access.Kind) (taskID uint, ok bool, err error) {
	id, present, valid := queryID(r, "task")
	if !present {
		return 0, false, nil
	}
	if !valid {
		return 0, false, access.Invalid("task", "A valid integer is required.")
	}
	_, err = referencedTask(r, st, "task", id, kind, access.OpRead)
	if errors.Is(err, access.ErrValidation) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

type CommentHandler struct {
	store *store.Store
	log   *zap.Logger
}

func NewCommentHandler(st *store.Store, log *zap.Logger) *CommentHandler {
	return &CommentHandler{store: st, log: log}
}

type commentRequest struct {
	Task    *flexID `json:"task"`
	Content *string `json:"content"`
}

func (h *CommentHandler) load(r *http.Request, op access.Operation) (*models.Comment, error) {
	id, err := pathID(r, "comment")
	if err != nil {
		return nil, err
	}
	c, err := h.store.CommentByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.CommentTarget(c), op); err != nil {
		return nil, err
	}
	return c, nil
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID, ok, err := scopedTask(r, h.store, access.KindComment)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	comments := []models.Comment{}
	if ok {
		if comments, err = h.store.ListComments(r.Context(), taskID); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, comments)
}

func validContent(req *commentRequest, v access.Validation) string {
	if req.Content == nil {
		v.Add("content", "This field is required.")
		return ""
	}
	content := strings.TrimSpace(*req.Content)
	if content == "" {
		v.Add("content", "This field may not be blank.")
	}
	return content
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v := access.Validation{}
	if req.Task == nil || *req.Task == 0 {
		v.Add("task", "This field is required.")
	}
	content := validContent(&req, v)
	if err := v.Err(); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	t, err := referencedTask(r, h.store, "task", uint(*req.Task), access.KindComment, access.OpCreate)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	c := models.Comment{TaskID: t.ID, AuthorID: &identity.UserID, Content: content}
	if err := h.store.CreateComment(r.Context(), &c); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, &c)
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r, access.OpRead)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update replaces the content. The task a comment belongs to is fixed.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate leaves the content alone when the body omits it.
func (h *CommentHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CommentHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	c, err := h.load(r, access.OpUpdate)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.Content != nil || !partial {
		v := access.Validation{}
		content := validContent(&req, v)
		if err := v.Err(); err != nil {
			writeError(w, r, h.log, err)
			return
		}
		c.Content = content
	}

	if err := h.store.UpdateComment(r.Context(), c); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r, access.OpDelete)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.DeleteComment(r.Context(), c.ID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
