package handlers

import (
	"net/http"
	"strings"

	"taskmanager/access"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
)

// TagHandler manages the shared tag catalogue. Any signed-in user may
// change it.
type TagHandler struct {
	store *store.Store
	log   *zap.Logger
}

func NewTagHandler(st *store.Store, log *zap.Logger) *TagHandler {
	return &TagHandler{store: st, log: log}
}

type tagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (req *tagRequest) apply(tag *models.Tag, partial bool) error {
	v := access.Validation{}
	if req.Name != nil {
		tag.Name = strings.TrimSpace(*req.Name)
		if tag.Name == "" {
			v.Add("name", "This field may not be blank.")
		} else if len(tag.Name) > 50 {
			v.Add("name", "Ensure this field has no more than 50 characters.")
		}
	} else if !partial {
		v.Add("name", "This field is required.")
	}
	if req.Color != nil {
		tag.Color = strings.TrimSpace(*req.Color)
	} else if !partial {
		tag.Color = models.DefaultTagColor
	}
	if !models.ValidColor(tag.Color) {
		v.Add("color", "Enter a valid hex color, e.g. #3498db.")
	}
	return v.Err()
}

func (h *TagHandler) authorize(r *http.Request, op access.Operation) error {
	return access.Authorize(middleware.IdentityFromContext(r.Context()), access.Target{Kind: access.KindTag}, op)
}

func (h *TagHandler) load(r *http.Request, op access.Operation) (*models.Tag, error) {
	if err := h.authorize(r, op); err != nil {
		return nil, err
	}
	id, err := pathID(r, "tag")
	if err != nil {
		return nil, err
	}
	return h.store.TagByID(r.Context(), id)
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, access.OpRead); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tags, err := h.store.ListTags(r.Context(), r.URL.Query().Get("search"), r.URL.Query().Get("ordering"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, access.OpCreate); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req tagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var tag models.Tag
	if err := req.apply(&tag, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.CreateTag(r.Context(), &tag); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, &tag)
}

func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag, err := h.load(r, access.OpRead)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	tag, err := h.load(r, access.OpUpdate)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req tagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := req.apply(tag, partial); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.UpdateTag(r.Context(), tag); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) { h.update(w, r, false) }

func (h *TagHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) { h.update(w, r, true) }

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tag, err := h.load(r, access.OpDelete)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.DeleteTag(r.Context(), tag.ID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
