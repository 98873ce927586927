package ws

import (
	"fmt"
	"strconv"

	socketio "github.com/googollee/go-socket.io"
	"gorm.io/gorm"

	"clusterchat/internal/auth"
	"clusterchat/internal/model"
)

var db *gorm.DB

// memberFromHandshake authenticates a Socket.IO connection from its
// handshake query parameters (user_id, user_token), with the same HMAC
// check the HTTP endpoints use.
func memberFromHandshake(s socketio.Conn) (*model.Member, error) {
	u := s.URL()
	query := u.Query()

	rawID := query.Get("user_id")
	token := query.Get("user_token")
	if rawID == "" || token == "" {
		return nil, fmt.Errorf("missing credentials in handshake")
	}

	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid user_id")
	}

	var member model.Member
	if err := db.First(&member, id).Error; err != nil {
		return nil, fmt.Errorf("unknown member")
	}
	if !auth.ValidToken(token, member.TokenHash) {
		return nil, fmt.Errorf("invalid token")
	}

	return &member, nil
}
