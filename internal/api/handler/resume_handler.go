package handler

import (
	"context"
	"errors"
	"io"

	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog/log"
)

// ResumeHandler 简历相关HTTP入口，薄封装，业务全部委托给服务层
type ResumeHandler struct {
	resumes  *processor.ResumeService
	searches *processor.SearchService
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(resumes *processor.ResumeService, searches *processor.SearchService) *ResumeHandler {
	return &ResumeHandler{resumes: resumes, searches: searches}
}

// SearchRequest 搜索请求体
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// HandleUpload 处理简历文件上传
func (h *ResumeHandler) HandleUpload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}

	if !h.resumes.AllowedFile(fileHeader.Filename) {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "不支持的文件类型，仅接受 pdf/docx/doc"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
		return
	}

	result, err := h.resumes.ProcessUpload(c, fileHeader.Filename, data)
	if err != nil {
		h.writeProcessError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, result)
}

// HandleSearch 处理候选人搜索
func (h *ResumeHandler) HandleSearch(c context.Context, ctx *app.RequestContext) {
	var req SearchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不合法"})
		return
	}
	if req.Query == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "query不能为空"})
		return
	}

	results, err := h.searches.Search(c, req.Query, req.Limit)
	if err != nil {
		log.Error().Err(err).Msg("搜索失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "搜索失败"})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"results": results,
		"count":   len(results),
	})
}

// HandleStats 返回简历库统计
func (h *ResumeHandler) HandleStats(c context.Context, ctx *app.RequestContext) {
	count, err := h.resumes.Stats(c)
	if err != nil {
		log.Error().Err(err).Msg("统计查询失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "统计查询失败"})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{"total_resumes": count})
}

// writeProcessError 把解析管线错误映射为HTTP响应
func (h *ResumeHandler) writeProcessError(ctx *app.RequestContext, err error) {
	var exhausted *types.AllModelsExhaustedError

	switch {
	case errors.Is(err, types.ErrExtractionFailed):
		ctx.JSON(consts.StatusUnprocessableEntity, utils.H{"error": "无法从文档提取有效文本"})
	case errors.As(err, &exhausted):
		log.Error().Err(err).Msg("全部候选模型失败")
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{
			"error":  "模型网关暂不可用",
			"reason": exhausted.LastReason(),
		})
	case errors.Is(err, types.ErrUnparsableOutput):
		ctx.JSON(consts.StatusUnprocessableEntity, utils.H{"error": "模型输出无法整理为候选人画像"})
	default:
		log.Error().Err(err).Msg("简历处理失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "简历处理失败"})
	}
}
