package files

import (
	"os"
	"path/filepath"
	"strconv"

	"clusterchat/api/v1/middleware"
	"clusterchat/internal/httpx"
	"clusterchat/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles cluster file exchange. Files live on disk under one
// directory per cluster token; the database is not involved beyond auth.
type Handler struct {
	db      *gorm.DB
	dir     string
	sizeCap int64
}

// NewHandler creates a new files handler. sizeCap is in bytes.
func NewHandler(db *gorm.DB, dir string, sizeCap int64) *Handler {
	return &Handler{db: db, dir: dir, sizeCap: sizeCap}
}

// SendFile stores an uploaded file in the caller's cluster directory.
// Credentials arrive as form fields because the body is multipart, so the
// JSON auth middleware does not apply here.
// POST /api/send_file
func (h *Handler) SendFile(c *gin.Context) {
	member, appErr := h.formAuth(c)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		httpx.FailErr(c, httpx.ErrBadRequest("No file given"))
		return
	}
	if file.Size > h.sizeCap {
		httpx.FailErr(c, httpx.ErrBadRequest("The file is too large"))
		return
	}

	name, ok := safeName(file.Filename)
	if !ok {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid file name"))
		return
	}

	dir, appErr := h.clusterDir(member)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to store file", err))
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to store file", err))
		return
	}

	httpx.OK(c)
}

type getFileRequest struct {
	FileName string `json:"file_name"`
}

// GetFile streams a previously uploaded file from the caller's cluster
// directory.
// POST /api/get_file
func (h *Handler) GetFile(c *gin.Context) {
	member := middleware.Member(c)

	var req getFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileName == "" {
		httpx.FailErr(c, httpx.ErrBadRequest("No file name given"))
		return
	}

	name, ok := safeName(req.FileName)
	if !ok {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid file name"))
		return
	}

	dir, appErr := h.clusterDir(member)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}

	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		httpx.FailErr(c, httpx.ErrNotFound("File not found"))
		return
	}

	c.File(path)
}

// safeName reduces an uploaded filename to a bare name that cannot escape
// the cluster directory.
func safeName(filename string) (string, bool) {
	name := filepath.Base(filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", false
	}
	return name, true
}

// formAuth authenticates from multipart form fields.
func (h *Handler) formAuth(c *gin.Context) (*model.Member, *httpx.AppError) {
	token := c.PostForm("user_token")
	userID, err := strconv.ParseUint(c.PostForm("user_id"), 10, 64)
	if err != nil || token == "" {
		return nil, httpx.ErrBadRequest("Received incomplete data")
	}
	return middleware.Authenticate(h.db, uint(userID), token)
}

// clusterDir resolves the caller's per-cluster storage directory.
func (h *Handler) clusterDir(member *model.Member) (string, *httpx.AppError) {
	var cluster model.Cluster
	if err := h.db.First(&cluster, member.ClusterID).Error; err != nil {
		return "", httpx.ErrInternal("Failed to load cluster", err)
	}
	return filepath.Join(h.dir, cluster.Token), nil
}
