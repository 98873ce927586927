package ws

import (
	"log"
	"time"
)

// NotifyCluster broadcasts an advisory update signal to every connected
// member of a cluster. Clients still fetch the authoritative snapshot via
// /info; the event only tells them not to wait for the next poll tick.
// A nil server (websockets disabled) is a no-op.
func NotifyCluster(clusterID uint) {
	if Server == nil {
		return
	}

	Server.BroadcastToRoom("/", clusterRoom(clusterID), "cluster_update", map[string]interface{}{
		"time": time.Now().Unix(),
	})
	log.Printf("[WebSocket] cluster_update broadcast to cluster %d", clusterID)
}
