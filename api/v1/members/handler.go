package members

import (
	"strconv"
	"time"

	"clusterchat/api/v1/middleware"
	"clusterchat/internal/auth"
	"clusterchat/internal/httpx"
	"clusterchat/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler handles member registration and cluster membership.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new members handler.
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Auth mints a fresh member in a fresh cluster and returns both capability
// tokens. The member token is stored only as a hash; the cluster token is
// itself the join capability and stays plaintext.
// GET /api/auth
func (h *Handler) Auth(c *gin.Context) {
	userToken, userHash, err := auth.GenToken()
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to generate token", err))
		return
	}
	clusterToken, _, err := auth.GenToken()
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to generate token", err))
		return
	}

	var member model.Member
	err = h.db.Transaction(func(tx *gorm.DB) error {
		cluster := model.Cluster{Token: clusterToken}
		if err := tx.Create(&cluster).Error; err != nil {
			return err
		}
		member = model.Member{
			TokenHash:  userHash,
			ClusterID:  cluster.ID,
			LastOnline: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to register", err))
		return
	}

	logrus.WithFields(logrus.Fields{
		"member_id":  member.ID,
		"cluster_id": member.ClusterID,
	}).Info("New member registered")

	httpx.OKData(c, gin.H{
		"user_token":    userToken,
		"user_id":       member.ID,
		"cluster_token": clusterToken,
	})
}

type infoMessage struct {
	UserSent *uint     `json:"user_sent"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

type infoChat struct {
	Name     string        `json:"name"`
	Ready    bool          `json:"ready"`
	Messages []infoMessage `json:"messages"`
}

type infoMember struct {
	UserID     uint      `json:"user_id"`
	About      string    `json:"about"`
	LastOnline time.Time `json:"last_online"`
}

// Info returns the full cluster snapshot the agent polls for: every chat
// with its messages, every member, and the cluster join token. Chats are
// keyed by their id as a string.
// POST /api/info
func (h *Handler) Info(c *gin.Context) {
	member := middleware.Member(c)

	var cluster model.Cluster
	if err := h.db.First(&cluster, member.ClusterID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to load cluster", err))
		return
	}

	var chats []model.Chat
	if err := h.db.Where("cluster_id = ?", cluster.ID).Find(&chats).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to load chats", err))
		return
	}

	chatMap := make(map[string]infoChat, len(chats))
	for _, chat := range chats {
		var messages []model.Message
		err := h.db.Where("chat_id = ?", chat.ID).
			Order("created_at ASC").
			Find(&messages).Error
		if err != nil {
			httpx.FailErr(c, httpx.ErrInternal("Failed to load messages", err))
			return
		}
		entry := infoChat{
			Name:     chat.Name,
			Ready:    chat.Ready,
			Messages: make([]infoMessage, 0, len(messages)),
		}
		for _, m := range messages {
			entry.Messages = append(entry.Messages, infoMessage{
				UserSent: m.MemberID,
				Text:     m.Text,
				Time:     m.CreatedAt,
			})
		}
		chatMap[strconv.FormatUint(uint64(chat.ID), 10)] = entry
	}

	var peers []model.Member
	if err := h.db.Where("cluster_id = ?", cluster.ID).Find(&peers).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to load members", err))
		return
	}
	users := make([]infoMember, 0, len(peers))
	for _, p := range peers {
		users = append(users, infoMember{
			UserID:     p.ID,
			About:      p.About,
			LastOnline: p.LastOnline,
		})
	}

	httpx.OKData(c, gin.H{
		"user_id":       member.ID,
		"cluster_token": cluster.Token,
		"chats":         chatMap,
		"users":         users,
	})
}

type joinClusterRequest struct {
	ClusterToken string `json:"cluster_token"`
}

// JoinCluster moves the caller into the cluster identified by its join
// token. The old cluster keeps its chats and remaining members.
// POST /api/join_cluster
func (h *Handler) JoinCluster(c *gin.Context) {
	member := middleware.Member(c)

	var req joinClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ClusterToken == "" {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid cluster token"))
		return
	}

	var target model.Cluster
	err := h.db.Where("token = ?", req.ClusterToken).First(&target).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid cluster token"))
		return
	}

	err = h.db.Model(&model.Member{}).
		Where("id = ?", member.ID).
		Update("cluster_id", target.ID).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to join cluster", err))
		return
	}

	httpx.OK(c)
}

const aboutMaxLen = 500

type setAboutRequest struct {
	Text string `json:"text"`
}

// SetAbout updates the caller's machine description. The text is what the
// agent's roster prompt shows to the model, so it is length-capped.
// POST /api/set_about
func (h *Handler) SetAbout(c *gin.Context) {
	member := middleware.Member(c)

	var req setAboutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrBadRequest(""))
		return
	}
	if len(req.Text) > aboutMaxLen {
		httpx.FailErr(c, httpx.ErrBadRequest("The text is too long"))
		return
	}

	err := h.db.Model(&model.Member{}).
		Where("id = ?", member.ID).
		Update("about", req.Text).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to update about", err))
		return
	}

	httpx.OK(c)
}
