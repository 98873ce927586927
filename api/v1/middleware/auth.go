package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"clusterchat/internal/auth"
	"clusterchat/internal/httpx"
	"clusterchat/internal/liveness"
	"clusterchat/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const memberKey = "member"

// credentials are the auth fields every authenticated endpoint carries in
// its JSON body.
type credentials struct {
	UserToken string `json:"user_token"`
	UserID    uint   `json:"user_id"`
}

// AuthRequired validates the user_token/user_id pair in the request body,
// refreshes the member's last-seen timestamp and stores the member in the
// gin context. The body is re-buffered so handlers can bind it again.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			httpx.FailErr(c, httpx.ErrBadRequest("Received incomplete data"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))

		var creds credentials
		if err := json.Unmarshal(raw, &creds); err != nil || creds.UserToken == "" || creds.UserID == 0 {
			httpx.FailErr(c, httpx.ErrBadRequest("Received incomplete data"))
			c.Abort()
			return
		}

		member, appErr := Authenticate(db, creds.UserID, creds.UserToken)
		if appErr != nil {
			httpx.FailErr(c, appErr)
			c.Abort()
			return
		}

		c.Set(memberKey, member)
		c.Next()
	}
}

// Authenticate loads a member and checks the presented token against its
// stored hash. Used by the JSON middleware and by the multipart file
// endpoints, which carry credentials as form fields.
func Authenticate(db *gorm.DB, userID uint, token string) (*model.Member, *httpx.AppError) {
	var member model.Member
	if err := db.First(&member, userID).Error; err != nil {
		return nil, httpx.ErrBadRequest("Invalid auth token")
	}
	if !auth.ValidToken(token, member.TokenHash) {
		return nil, httpx.ErrBadRequest("Invalid auth token")
	}

	now := time.Now()
	if err := liveness.Touch(db, member.ID, now); err != nil {
		logrus.WithError(err).WithField("member_id", member.ID).Warn("failed to refresh last-seen")
	}
	member.LastOnline = now

	return &member, nil
}

// Member returns the authenticated member stored by AuthRequired.
func Member(c *gin.Context) *model.Member {
	v, _ := c.Get(memberKey)
	member, _ := v.(*model.Member)
	return member
}
