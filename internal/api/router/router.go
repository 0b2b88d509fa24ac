package router

import (
	"context"
	"crypto/subtle"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册API路由
// 配置了api_key时，/api/v1 路由组启用Bearer令牌鉴权；健康检查始终公开
func RegisterRoutes(h *server.Hertz, cfg *config.Config, resumeHandler *handler.ResumeHandler) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, token string) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Server.APIKey)) == 1, nil
			}),
			keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
				ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权"})
			}),
		))
	}

	api.POST("/resume/upload", resumeHandler.HandleUpload)
	api.POST("/search", resumeHandler.HandleSearch)
	api.GET("/stats", resumeHandler.HandleStats)
}
