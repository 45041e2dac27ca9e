package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AccessController 学员访问判定与学习进度
type AccessController struct {
	AccessService   *service.AccessService
	ProgressService *service.ProgressService
}

func NewAccessController(accessService *service.AccessService, progressService *service.ProgressService) *AccessController {
	return &AccessController{
		AccessService:   accessService,
		ProgressService: progressService,
	}
}

// GetCourseProgress godoc
// @Summary 课程学习进度
// @Description 未报名时返回全零进度
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param userId query int false "查询指定学员（仅教师/管理员）"
// @Success 200 {object} util.Response{data=model.ProgressSummary}
// @Router /courses/{courseId}/progress [get]
func (c *AccessController) GetCourseProgress(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	progress, err := c.ProgressService.ComputeProgress(ctx.Request.Context(), subjectUserID(ctx), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// CheckCourseAccess godoc
// @Summary 课程访问判定
// @Description 拒绝访问时 hasAccess=false 并返回原因
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param userId query int false "查询指定学员（仅教师/管理员）"
// @Success 200 {object} util.Response{data=service.AccessResult}
// @Router /courses/{courseId}/access [get]
func (c *AccessController) CheckCourseAccess(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	result, err := c.AccessService.CheckCourseAccess(ctx.Request.Context(), courseID, subjectUserID(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// CheckLessonAccess godoc
// @Summary 课时访问判定
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Param lessonId path int true "课时ID"
// @Param userId query int false "查询指定学员（仅教师/管理员）"
// @Success 200 {object} util.Response{data=service.AccessResult}
// @Router /courses/{courseId}/lessons/{lessonId}/access [get]
func (c *AccessController) CheckLessonAccess(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "lessonId")
	if !ok {
		return
	}
	result, err := c.AccessService.CheckLessonAccess(ctx.Request.Context(), courseID, lessonID, subjectUserID(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// subjectUserID 默认查询当前用户，教师和管理员可以通过 userId 查询其他学员
func subjectUserID(ctx *gin.Context) uint {
	claims := util.GetUserFromContext(ctx)
	if claims.IsStaff() {
		if id := util.MustParseUint(ctx.Query("userId")); id != 0 {
			return id
		}
	}
	return claims.UserID
}
