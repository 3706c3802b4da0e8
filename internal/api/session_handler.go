package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"ecotrack/waste-app/internal/service"
	"ecotrack/waste-app/internal/session"

	"github.com/gin-gonic/gin"
)

// confirmedKey carries the client's confirmation flag through the request
// context so the session's injected Confirmer can read it.
type confirmedKey struct{}

func requestConfirmer(ctx context.Context, _ string) (bool, error) {
	confirmed, _ := ctx.Value(confirmedKey{}).(bool)
	return confirmed, nil
}

func withConfirmation(c *gin.Context) context.Context {
	confirmed := c.Query("confirm") == "true"
	return context.WithValue(c.Request.Context(), confirmedKey{}, confirmed)
}

// SessionHandler exposes the draft wizard over HTTP. Each operator owns the
// sessions they open; all mutating endpoints are routed through the session
// manager with an ownership check.
type SessionHandler struct {
	manager      *session.Manager
	draftService *service.DraftService
	refService   *service.ReferenceService
}

func NewSessionHandler(manager *session.Manager, draftService *service.DraftService, refService *service.ReferenceService) *SessionHandler {
	return &SessionHandler{
		manager:      manager,
		draftService: draftService,
		refService:   refService,
	}
}

// --- Request/Response Structs ---

type OpenSessionRequest struct {
	// DraftID opens an edit session over an existing draft; empty opens a
	// blank create session.
	DraftID string `json:"draftId"`
}

type FieldChangeRequest struct {
	Field string `json:"field" binding:"required"`
	Value any    `json:"value"`
}

type ConfirmedResponse struct {
	Confirmed bool `json:"confirmed"`
}

// --- Handler Methods ---

// OpenSession starts a new wizard session for the calling operator.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	bound := h.draftService.ForUser(userID)
	deps := session.Deps{
		Persistence: bound,
		Files:       bound,
		Loader:      bound,
		Confirm:     requestConfirmer,
	}

	var sess *session.FormSession
	if req.DraftID == "" {
		sess, err = session.NewCreateSession(deps)
	} else {
		sess, err = session.NewEditSession(c.Request.Context(), deps, req.DraftID)
	}
	if err != nil {
		var perr *session.PersistenceError
		switch {
		case errors.Is(err, service.ErrDraftNotFound):
			abortWithError(c, http.StatusNotFound, "Draft not found")
		case errors.Is(err, service.ErrDraftNotEditable):
			abortWithError(c, http.StatusConflict, "Record is no longer editable")
		case errors.As(err, &perr) && (errors.Is(perr.Err, service.ErrDraftNotFound) || errors.Is(perr.Err, service.ErrInvalidDraftID)):
			abortWithError(c, http.StatusNotFound, "Draft not found")
		case errors.As(err, &perr) && errors.Is(perr.Err, service.ErrDraftNotEditable):
			abortWithError(c, http.StatusConflict, "Record is no longer editable")
		default:
			abortWithError(c, http.StatusInternalServerError, "Could not open session")
		}
		return
	}

	h.manager.Put(userID.Hex(), sess)
	c.JSON(http.StatusCreated, sess.State())
}

// GetState returns the session's UI-visible snapshot.
func (h *SessionHandler) GetState(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// Review returns the state together with resolved display names for the
// selected reference fields, for the final confirmation step.
func (h *SessionHandler) Review(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	refs, err := h.refService.LoadReferenceData(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusBadGateway, "Failed to load reference data")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":         sess.State(),
		"selectedNames": sess.SelectedNames(refs),
	})
}

// ChangeField records one field edit.
func (h *SessionHandler) ChangeField(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	var req FieldChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := sess.HandleFieldChange(session.Field(req.Field), req.Value); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// Next validates the current step and advances on success.
func (h *SessionHandler) Next(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := sess.HandleNext(); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// Back moves to the previous step without validating.
func (h *SessionHandler) Back(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := sess.HandleBack(); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// SaveDraft persists the draft and reconciles pending files.
func (h *SessionHandler) SaveDraft(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := sess.HandleSaveDraft(c.Request.Context()); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// Submit runs full validation, persists, reconciles files and submits the
// record for review. On success the session is closed and dropped.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := sess.HandleSubmit(c.Request.Context()); err != nil {
		h.respondSessionError(c, err)
		return
	}
	h.manager.Drop(sess.ID())
	c.JSON(http.StatusOK, sess.State())
}

// Redo discards all local edits. Edit sessions reload the server state;
// create sessions reset to blank. Requires confirm=true.
func (h *SessionHandler) Redo(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	confirmed, err := sess.HandleRedo(withConfirmation(c))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	if !confirmed {
		c.JSON(http.StatusOK, ConfirmedResponse{Confirmed: false})
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// Cancel abandons the session. Requires confirm=true.
func (h *SessionHandler) Cancel(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	confirmed, err := sess.HandleCancel(withConfirmation(c))
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	if confirmed {
		h.manager.Drop(sess.ID())
	}
	c.JSON(http.StatusOK, ConfirmedResponse{Confirmed: confirmed})
}

// AddAttachments queues one or more files under a multi-file category. The
// multipart form carries the files plus "category" and "subType" fields.
func (h *SessionHandler) AddAttachments(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid multipart form: %v", err))
		return
	}
	cat := session.Category(c.PostForm("category"))
	sub := session.SubType(c.PostForm("subType"))

	headers := form.File["files"]
	if len(headers) == 0 {
		abortWithError(c, http.StatusBadRequest, "No files provided")
		return
	}
	sources, err := fileSources(headers, form.Value["lastModified"])
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := sess.AddFiles(cat, sub, sources); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// SetSingleAttachment sets or replaces the file in a single-slot category.
func (h *SessionHandler) SetSingleAttachment(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	cat := session.Category(c.Param("category"))
	header, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "No file provided")
		return
	}
	sources, err := fileSources([]*multipart.FileHeader{header}, []string{c.PostForm("lastModified")})
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := sess.SetSingleFile(cat, sources[0]); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// DeleteAttachment removes a file from the session. Uploaded files are also
// deleted remotely. Requires confirm=true.
func (h *SessionHandler) DeleteAttachment(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	cat := session.Category(c.Param("category"))
	identity := c.Param("identity")

	if err := sess.DeleteAttachment(withConfirmation(c), cat, identity); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// --- Helpers ---

func (h *SessionHandler) ownedSession(c *gin.Context) (*session.FormSession, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	sess, err := h.manager.Get(userID, c.Param("sessionId"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) respondSessionError(c *gin.Context, err error) {
	var verr *session.ValidationError
	var uerr *session.UploadError
	var derr *session.DeleteError
	var perr *session.PersistenceError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": verr.Fields,
			"step":   verr.Step,
		})
	case errors.As(err, &uerr):
		// The draft itself was saved; only file uploads failed.
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": uerr.Error()})
	case errors.As(err, &derr):
		abortWithError(c, http.StatusBadGateway, derr.Error())
	case errors.As(err, &perr):
		abortWithError(c, http.StatusBadGateway, perr.Error())
	case errors.Is(err, session.ErrBusy):
		abortWithError(c, http.StatusConflict, "Another save or submit is in progress")
	case errors.Is(err, session.ErrSessionClosed):
		abortWithError(c, http.StatusGone, "Session is closed")
	default:
		abortWithError(c, http.StatusBadRequest, err.Error())
	}
}

// fileSources reads the multipart payloads into FileSource values. The
// optional lastModified form values (unix millis, parallel to the files)
// feed the client-side file identity; missing values fall back to now.
func fileSources(headers []*multipart.FileHeader, lastModified []string) ([]*session.FileSource, error) {
	sources := make([]*session.FileSource, 0, len(headers))
	for i, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Filename, err)
		}

		modified := time.Now()
		if i < len(lastModified) && lastModified[i] != "" {
			if millis, err := strconv.ParseInt(lastModified[i], 10, 64); err == nil {
				modified = time.UnixMilli(millis)
			}
		}

		sources = append(sources, &session.FileSource{
			Name:         header.Filename,
			Size:         header.Size,
			LastModified: modified,
			ContentType:  header.Header.Get("Content-Type"),
			Data:         data,
		})
	}
	return sources, nil
}
