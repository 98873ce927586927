package v1

import (
	"clusterchat/api/v1/chats"
	"clusterchat/api/v1/files"
	"clusterchat/api/v1/members"
	"clusterchat/api/v1/middleware"
	"clusterchat/api/v1/tasks"
	"clusterchat/internal/config"
	"clusterchat/internal/httpx"
	"clusterchat/internal/ledger"
	"clusterchat/internal/orchestrator"
	"clusterchat/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Per-endpoint request limits per minute. Registration is deliberately
// tight; everything else shares the default.
const (
	authLimit    = 1
	defaultLimit = 60
)

// SetupRouter registers the API routes.
func SetupRouter(r *gin.Engine, db *gorm.DB, limiter *ratelimit.Limiter,
	taskLedger *ledger.Ledger, orch *orchestrator.Orchestrator,
	notify func(clusterID uint), cfg *config.Config) {

	membersHandler := members.NewHandler(db)
	chatsHandler := chats.NewHandler(db, orch, notify)
	tasksHandler := tasks.NewHandler(db, taskLedger)
	filesHandler := files.NewHandler(db, cfg.FilesDir, cfg.FileSizeCap)

	api := r.Group("/api")
	{
		api.GET("/ping", pingHandler)
		api.GET("/auth", limiter.Middleware("auth", authLimit), membersHandler.Auth)

		// File upload is multipart, so it authenticates from form fields
		// instead of the JSON middleware.
		api.POST("/send_file",
			limiter.Middleware("send_file", defaultLimit),
			filesHandler.SendFile)

		authed := api.Group("")
		authed.Use(middleware.AuthRequired(db))
		{
			authed.POST("/info",
				limiter.Middleware("info", defaultLimit), membersHandler.Info)
			authed.POST("/join_cluster",
				limiter.Middleware("join_cluster", defaultLimit), membersHandler.JoinCluster)
			authed.POST("/set_about",
				limiter.Middleware("set_about", defaultLimit), membersHandler.SetAbout)

			authed.POST("/create_chat",
				limiter.Middleware("create_chat", defaultLimit), chatsHandler.Create)
			authed.POST("/edit_chat_name",
				limiter.Middleware("edit_chat_name", defaultLimit), chatsHandler.Rename)
			authed.POST("/delete_chat",
				limiter.Middleware("delete_chat", defaultLimit), chatsHandler.Delete)
			authed.POST("/send_message",
				limiter.Middleware("send_message", defaultLimit), chatsHandler.SendMessage)

			authed.POST("/get_tasks",
				limiter.Middleware("get_tasks", defaultLimit), tasksHandler.GetTasks)
			authed.POST("/complete_task",
				limiter.Middleware("complete_task", defaultLimit), tasksHandler.CompleteTask)

			authed.POST("/get_file",
				limiter.Middleware("get_file", defaultLimit), filesHandler.GetFile)
		}
	}
}

func pingHandler(c *gin.Context) {
	httpx.OKData(c, gin.H{"pong": true})
}
