package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"taskmanager/access"
	"taskmanager/blob"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
)

// multipartOverhead leaves room for the form boundaries and the task field
// on top of the file itself.
const multipartOverhead = 1 << 20

type AttachmentHandler struct {
	store    *store.Store
	blobs    blob.Store
	maxBytes int64
	log      *zap.Logger
}

func NewAttachmentHandler(st *store.Store, blobs blob.Store, maxBytes int64, log *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{store: st, blobs: blobs, maxBytes: maxBytes, log: log}
}

// removeBlobs deletes stored files after their rows are gone. Failures
// only leave orphans behind, so they are logged and not returned.
func removeBlobs(r *http.Request, blobs blob.Store, log *zap.Logger, keys []string) {
	ctx := context.WithoutCancel(r.Context())
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			log.Warn("remove blob", zap.String("key", key), zap.Error(err))
		}
	}
}

func (h *AttachmentHandler) load(r *http.Request, op access.Operation) (*models.TaskAttachment, error) {
	id, err := pathID(r, "attachment")
	if err != nil {
		return nil, err
	}
	a, err := h.store.AttachmentByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(middleware.IdentityFromContext(r.Context()), store.AttachmentTarget(a), op); err != nil {
		return nil, err
	}
	return a, nil
}

// parseUpload reads the multipart form and returns the "file" part
// without storing it.
func (h *AttachmentHandler) parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, h.tooLarge()
		}
		return nil, access.Invalid("file", "The submitted data was not a file. Check the encoding type on the form.")
	}
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, access.Invalid("file", "No file was submitted.")
	}
	if err != nil {
		return nil, err
	}
	f.Close()
	if header.Size > h.maxBytes {
		return nil, h.tooLarge()
	}
	return header, nil
}

// saveBlob copies a parsed file part into the blob store.
func (h *AttachmentHandler) saveBlob(r *http.Request, header *multipart.FileHeader) (key string, size int64, err error) {
	f, err := header.Open()
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return h.blobs.Put(r.Context(), header.Filename, f)
}

func (h *AttachmentHandler) tooLarge() error {
	return access.Invalid("file", fmt.Sprintf("File size cannot exceed %d bytes.", h.maxBytes))
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(path.Ext(header.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID, ok, err := scopedTask(r, h.store, access.KindAttachment)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := []attachmentView{}
	if ok {
		list, err := h.store.ListAttachments(r.Context(), taskID)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		for i := range list {
			out = append(out, newAttachmentView(&list[i]))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Create accepts multipart/form-data with "task" and "file" fields.
func (h *AttachmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	header, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	taskID, err := strconv.ParseUint(r.FormValue("task"), 10, 64)
	if err != nil || taskID == 0 {
		writeError(w, r, h.log, access.Invalid("task", "This field is required."))
		return
	}
	t, err := referencedTask(r, h.store, "task", uint(taskID), access.KindAttachment, access.OpCreate)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	key, size, err := h.saveBlob(r, header)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	a := models.TaskAttachment{
		TaskID:       t.ID,
		File:         key,
		Size:         size,
		ContentType:  contentTypeOf(header),
		UploadedByID: &identity.UserID,
	}
	if err := h.store.CreateAttachment(r.Context(), &a); err != nil {
		removeBlobs(r, h.blobs, h.log, []string{key})
		writeError(w, r, h.log, err)
		return
	}
	h.log.Info("attachment uploaded",
		zap.Uint("attachment_id", a.ID),
		zap.Uint("task_id", a.TaskID),
		zap.Int64("size", a.Size),
	)
	writeJSON(w, http.StatusCreated, newAttachmentView(&a))
}

func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r, access.OpRead)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttachmentView(a))
}

// Update replaces the stored file. The task an attachment belongs to is
// fixed.
func (h *AttachmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r, access.OpUpdate)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	header, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	key, size, err := h.saveBlob(r, header)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	a.File, a.Size, a.ContentType = key, size, contentTypeOf(header)
	previous, err := h.store.UpdateAttachment(r.Context(), a)
	if err != nil {
		removeBlobs(r, h.blobs, h.log, []string{key})
		writeError(w, r, h.log, err)
		return
	}
	removeBlobs(r, h.blobs, h.log, []string{previous})
	writeJSON(w, http.StatusOK, newAttachmentView(a))
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r, access.OpDelete)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	key, err := h.store.DeleteAttachment(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	removeBlobs(r, h.blobs, h.log, []string{key})
	w.WriteHeader(http.StatusNoContent)
}

// Download streams the stored file.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r, access.OpRead)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	f, err := h.blobs.Open(r.Context(), a.File)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, r, h.log, access.NotFound("file"))
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer f.Close()

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName()}))
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn("stream attachment", zap.Uint("attachment_id", a.ID), zap.Error(err))
	}
}
