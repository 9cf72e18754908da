package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskmanager/access"
	"taskmanager/blob"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
)

type TaskHandler struct {
	store *store.Store
	blobs blob.Store
	log   *zap.Logger
}

func NewTaskHandler(st *store.Store, blobs blob.Store, log *zap.Logger) *TaskHandler {
	return &TaskHandler{store: st, blobs: blobs, log: log}
}

type taskRequest struct {
	Title       *string             `json:"title"`
	Description optional[string]    `json:"description"`
	Project     *flexID             `json:"project"`
	Status      *models.Status      `json:"status"`
	Priority    *models.Priority    `json:"priority"`
	DueDate     optional[time.Time] `json:"due_date"`
	Assignees   *[]flexID           `json:"assignees"`
	Tags        *[]flexID           `json:"tags"`
}

func (req *taskRequest) apply(t *models.Task, partial bool) error {
	v := access.Validation{}
	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
		if t.Title == "" {
			v.Add("title", "This field may not be blank.")
		} else if len(t.Title) > 200 {
			v.Add("title", "Ensure this field has no more than 200 characters.")
		}
	} else if !partial {
		v.Add("title", "This field is required.")
	}
	if req.Project != nil && *req.Project != 0 {
		t.ProjectID = uint(*req.Project)
	} else if !partial || req.Project != nil {
		v.Add("project", "This field is required.")
	}
	// Optional fields keep their value unless the body names them.
	if req.Description.Set {
		t.Description = req.Description.Value
	}
	if req.DueDate.Set {
		t.DueDate = req.DueDate.Value
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			v.Add("status", fmt.Sprintf("\"%s\" is not a valid choice.", *req.Status))
		}
		t.Status = *req.Status
	} else if !partial && t.Status == "" {
		t.Status = models.StatusTodo
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			v.Add("priority", fmt.Sprintf("\"%s\" is not a valid choice.", *req.Priority))
		}
		t.Priority = *req.Priority
	} else if !partial && t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	return v.Err()
}

func (req *taskRequest) links() store.TaskLinks {
	var l store.TaskLinks
	if req.Assignees != nil {
		ids := flexIDs(*req.Assignees)
		l.AssigneeIDs = &ids
	}
	if req.Tags != nil {
		ids := flexIDs(*req.Tags)
		l.TagIDs = &ids
	}
	return l
}

// requireProject checks the identity may place tasks in the project. A
// project the caller cannot see is reported exactly like a missing one.
func (h *TaskHandler) requireProject(r *http.Request, projectID uint, op access.Operation) error {
	invalid := access.Invalid("project", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", projectID))
	acl, err := h.store.ProjectACL(r.Context(), projectID)
	if errors.Is(err, access.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	err = access.Authorize(middleware.IdentityFromContext(r.Context()), access.Target{Kind: access.KindTask, Project: acl}, op)
	if errors.Is(err, access.ErrNotFound) {
		return invalid
	}
	return err
}

func (h *TaskHandler) load(r *http.Request) (*models.Task, error) {
	id, err := pathID(r, "task")
	if err != nil {
		return nil, err
	}
	t, err := h.store.TaskByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.TaskTarget(t), access.OpRead); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *TaskHandler) view(r *http.Request, t *models.Task) (taskView, error) {
	counts, err := h.store.CountsForTask(r.Context(), t.ID)
	if err != nil {
		return taskView{}, err
	}
	projectTasks, err := h.store.TaskCounts(r.Context(), []uint{t.ProjectID})
	if err != nil {
		return taskView{}, err
	}
	return newTaskView(t, counts, projectTasks[t.ProjectID]), nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.TaskFilter{
		Status:   models.Status(q.Get("status")),
		Priority: models.Priority(q.Get("priority")),
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}
	if id, present, ok := queryID(r, "project"); present {
		if !ok {
			writeError(w, r, h.log, access.Invalid("project", "A valid integer is required."))
			return
		}
		f.ProjectID = id
	}
	if id, present, ok := queryID(r, "assignee"); present {
		if !ok {
			writeError(w, r, h.log, access.Invalid("assignee", "A valid integer is required."))
			return
		}
		f.AssigneeID = id
	}

	tasks, err := h.store.ListTasks(r.Context(), middleware.IdentityFromContext(r.Context()), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]taskListView, len(tasks))
	for i := range tasks {
		out[i] = newTaskListView(&tasks[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var t models.Task
	if err := req.apply(&t, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.requireProject(r, t.ProjectID, access.OpCreate); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	t.CreatedByID = &identity.UserID
	if err := h.store.CreateTask(r.Context(), &t, req.links()); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v, err := h.view(r, &t)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Get returns the task with its comments and attachments.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v, err := h.view(r, t)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	comments, err := h.store.ListComments(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	attachments, err := h.store.ListAttachments(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	detail := taskDetailView{
		taskView:    v,
		Comments:    comments,
		Attachments: make([]attachmentView, len(attachments)),
	}
	if detail.Comments == nil {
		detail.Comments = []models.Comment{}
	}
	for i := range attachments {
		detail.Attachments[i] = newAttachmentView(&attachments[i])
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *TaskHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	t, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := access.Authorize(identity, store.TaskTarget(t), access.OpUpdate); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	previousProject := t.ProjectID
	if err := req.apply(t, partial); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	// Moving a task needs the same right on the destination project.
	if t.ProjectID != previousProject {
		if err := h.requireProject(r, t.ProjectID, access.OpCreate); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}

	if err := h.store.UpdateTask(r.Context(), t, req.links()); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v, err := h.view(r, t)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r, false) }

func (h *TaskHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) { h.update(w, r, true) }

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, err := h.load(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.TaskTarget(t), access.OpDelete); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	keys, err := h.store.DeleteTask(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	removeBlobs(r, h.blobs, h.log, keys)
	w.WriteHeader(http.StatusNoContent)
}
