package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/driftbottle/internal/auth"
	"github.com/sujalbistaa/driftbottle/internal/keys"
	"github.com/sujalbistaa/driftbottle/internal/models"
	"github.com/sujalbistaa/driftbottle/internal/store"
	"github.com/sujalbistaa/driftbottle/internal/ws"
)

const (
	maxImages      = 10
	rateLimitRPS   = 1.0 / 3.0 // 1 request every 3 seconds
	rateLimitBurst = 5
)

// --- Structs for request binding ---

type reviewInput struct {
	Status string `json:"status" binding:"required"`
}

type commentInput struct {
	Content string `json:"content" binding:"required"`
}

type passwordInput struct {
	Password string `json:"password" binding:"required"`
}

// wsEvent is the JSON envelope pushed to live-feed clients.
type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Env bundles the handler dependencies.
type Env struct {
	Records  *store.Records
	Comments *store.Comments
	Keys     *keys.Issuer
	Admin    *auth.Admin
	Hub      *ws.Hub
}

// --- Key issuance ---

func (e *Env) IssueKey(c *gin.Context) {
	key, err := e.Keys.Issue(clientIP(c), userAgent(c))
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

// --- Records ---

func (e *Env) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form data"})
		return
	}

	key := c.PostForm("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key"})
		return
	}

	ip, ua := clientIP(c), userAgent(c)
	valid, err := e.Keys.Validate(key, ip, ua)
	if err != nil {
		e.fail(c, err)
		return
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key invalid, already used, or expired"})
		return
	}
	if _, err := e.Keys.Consume(key); err != nil {
		e.fail(c, err)
		return
	}

	uploads, err := readUploads(form.File["images"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	carrier, _ := strconv.Atoi(c.PostForm("carrier"))
	if carrier != 1 {
		carrier = 0
	}

	record, err := e.Records.Create(c.PostForm("text"), c.PostForm("title"), ip, carrier, uploads)
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "uploaded, awaiting review", "data": record})
}

func (e *Env) ListApproved(c *gin.Context) {
	records, err := e.Records.ListApproved()
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (e *Env) ListPending(c *gin.Context) {
	records, err := e.Records.ListPending()
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (e *Env) ReviewRecord(c *gin.Context) {
	var input reviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing status"})
		return
	}

	id := c.Param("id")
	status := models.Status(input.Status)
	if err := e.Records.Review(id, status); err != nil {
		e.fail(c, err)
		return
	}

	if status == models.StatusApproved {
		if record, err := e.Records.Get(id); err == nil {
			e.publish("record_approved", record)
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (e *Env) EditRecord(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form data"})
		return
	}

	var edit store.RecordEdit
	if v, ok := formValue(form, "text"); ok {
		edit.Text = &v
	}
	if v, ok := formValue(form, "title"); ok {
		edit.Title = &v
	}
	if v, ok := formValue(form, "fantasy"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			edit.Fantasy = &n
		}
	}
	edit.Images, err = readUploads(form.File["images"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := e.Records.Edit(c.Param("id"), edit, clientIP(c))
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (e *Env) DeleteRecord(c *gin.Context) {
	if err := e.Records.Delete(c.Param("id")); err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "record deleted"})
}

func (e *Env) RandomRecord(c *gin.Context) {
	record, err := e.Records.RandomApproved()
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records available"})
		return
	}
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// --- Comments ---

func (e *Env) AddComment(c *gin.Context) {
	var input commentInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment content must not be empty"})
		return
	}

	comment, err := e.Comments.Add(c.Param("id"), strings.TrimSpace(input.Content), clientIP(c))
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment added, awaiting review", "data": comment})
}

func (e *Env) ListComments(c *gin.Context) {
	comments, err := e.Comments.ApprovedFor(c.Param("id"))
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (e *Env) PendingComments(c *gin.Context) {
	comments, err := e.Comments.ListPending()
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (e *Env) ReviewComment(c *gin.Context) {
	var input reviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing status"})
		return
	}

	id := c.Param("id")
	status := models.Status(input.Status)
	if err := e.Comments.Review(id, status); err != nil {
		e.fail(c, err)
		return
	}

	if status == models.StatusApproved {
		if comment, err := e.Comments.Get(id); err == nil {
			e.publish("comment_approved", comment)
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (e *Env) DeleteComment(c *gin.Context) {
	if err := e.Comments.Delete(c.Param("id")); err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

// --- Admin ---

func (e *Env) AdminInit(c *gin.Context) {
	var input passwordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must not be empty"})
		return
	}
	if err := e.Admin.SetPassword(input.Password); err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "admin password set"})
}

func (e *Env) AdminLogin(c *gin.Context) {
	var input passwordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must not be empty"})
		return
	}

	ok, err := e.Admin.CheckPassword(input.Password)
	if err != nil {
		e.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	token, err := e.Admin.GenerateToken()
	if err != nil {
		e.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// --- Helpers ---

// fail maps store and auth errors to HTTP statuses: validation,
// invalid-state and conflict are 400, not-found 404, everything else 500.
// Internal details never reach the client.
func (e *Env) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrRecordNotApproved):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrNotEditable),
		errors.Is(err, keys.ErrUploadLimit),
		errors.Is(err, auth.ErrAlreadyInitialized):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// publish pushes a moderation event to the live feed without ever blocking
// the request handler.
func (e *Env) publish(eventType string, data interface{}) {
	if e.Hub == nil {
		return
	}
	msg, err := json.Marshal(wsEvent{Type: eventType, Data: data})
	if err != nil {
		log.Printf("marshal ws event: %v", err)
		return
	}
	select {
	case e.Hub.Broadcast <- msg:
	default:
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func userAgent(c *gin.Context) string {
	if ua := c.GetHeader("User-Agent"); ua != "" {
		return ua
	}
	return "unknown"
}

func formValue(form *multipart.Form, field string) (string, bool) {
	if vs, ok := form.Value[field]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

func readUploads(files []*multipart.FileHeader) ([]store.Upload, error) {
	if len(files) > maxImages {
		return nil, errors.New("at most 10 images per submission")
	}
	uploads := make([]store.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, store.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}
