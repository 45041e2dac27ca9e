package controller

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// EnrollmentController 报名管理接口
type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
	BulkService       *service.BulkEnrollmentService
	Sweeper           *service.ExpirationSweeper
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService, bulkService *service.BulkEnrollmentService, sweeper *service.ExpirationSweeper) *EnrollmentController {
	return &EnrollmentController{
		EnrollmentService: enrollmentService,
		BulkService:       bulkService,
		Sweeper:           sweeper,
	}
}

// CreateEnrollmentRequest 按用户 ID 报名
// swagger:model CreateEnrollmentRequest
type CreateEnrollmentRequest struct {
	UserID           uint       `json:"userId" binding:"required"`
	CourseID         uint       `json:"courseId" binding:"required"`
	EnrolledByID     uint       `json:"enrolledById"`
	PaymentConfirmed bool       `json:"paymentConfirmed"`
	ExpiresAt        *time.Time `json:"expiresAt"`
}

// ManualEnrollmentRequest 按邮箱报名
// swagger:model ManualEnrollmentRequest
type ManualEnrollmentRequest struct {
	UserEmail        string     `json:"userEmail" binding:"required,email"`
	CourseID         uint       `json:"courseId" binding:"required"`
	PaymentConfirmed bool       `json:"paymentConfirmed"`
	ExpiresAt        *time.Time `json:"expiresAt"`
}

type BulkEnrollmentUser struct {
	UserEmail string `json:"userEmail"`
}

// BulkEnrollmentRequest 批量报名，单个邮箱的错误在结果中返回
// swagger:model BulkEnrollmentRequest
type BulkEnrollmentRequest struct {
	CourseID         uint                 `json:"courseId" binding:"required"`
	Users            []BulkEnrollmentUser `json:"users" binding:"required,min=1"`
	PaymentConfirmed bool                 `json:"paymentConfirmed"`
	ExpiresAt        *time.Time           `json:"expiresAt"`
}

// UpdateEnrollmentRequest 部分更新
// swagger:model UpdateEnrollmentRequest
type UpdateEnrollmentRequest struct {
	Status           *model.EnrollmentStatus `json:"status" binding:"omitempty,oneof=ACTIVE SUSPENDED COMPLETED EXPIRED"`
	ExpiresAt        *time.Time              `json:"expiresAt"`
	ClearExpiresAt   bool                    `json:"clearExpiresAt"`
	PaymentConfirmed *bool                   `json:"paymentConfirmed"`
}

// ExtendEnrollmentRequest 延期月数
// swagger:model ExtendEnrollmentRequest
type ExtendEnrollmentRequest struct {
	Months int `json:"months" binding:"required,min=1,max=12"`
}

// CreateEnrollment godoc
// @Summary 创建报名
// @Description 为指定用户报名课程，enrolledById 缺省为当前用户
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateEnrollmentRequest true "报名信息"
// @Success 201 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 404 {object} util.Response "用户或课程不存在"
// @Failure 409 {object} util.Response "已报名"
// @Failure 422 {object} util.Response "参数校验失败"
// @Router /admin/enrollments [post]
func (c *EnrollmentController) CreateEnrollment(ctx *gin.Context) {
	var req CreateEnrollmentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	actor := util.GetUserFromContext(ctx)
	if req.EnrolledByID == 0 {
		req.EnrolledByID = actor.UserID
	}

	detail, err := c.EnrollmentService.Create(ctx.Request.Context(), service.CreateEnrollmentInput{
		UserID:           req.UserID,
		CourseID:         req.CourseID,
		EnrolledByID:     req.EnrolledByID,
		PaymentConfirmed: req.PaymentConfirmed,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, detail)
}

// CreateManualEnrollment godoc
// @Summary 按邮箱手动报名
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ManualEnrollmentRequest true "报名信息"
// @Success 201 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 404 {object} util.Response "用户或课程不存在"
// @Failure 409 {object} util.Response "已报名"
// @Router /admin/enrollments/manual [post]
func (c *EnrollmentController) CreateManualEnrollment(ctx *gin.Context) {
	var req ManualEnrollmentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	actor := util.GetUserFromContext(ctx)

	detail, err := c.EnrollmentService.CreateManual(ctx.Request.Context(), service.ManualEnrollmentInput{
		UserEmail:        req.UserEmail,
		CourseID:         req.CourseID,
		PaymentConfirmed: req.PaymentConfirmed,
		ExpiresAt:        req.ExpiresAt,
		EnrolledByID:     actor.UserID,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, detail)
}

// BulkEnroll godoc
// @Summary 批量报名
// @Description 逐个邮箱报名，部分失败不影响其他条目
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body BulkEnrollmentRequest true "批量报名信息"
// @Success 200 {object} util.Response{data=service.BulkEnrollmentResult}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/enrollments/bulk [post]
func (c *EnrollmentController) BulkEnroll(ctx *gin.Context) {
	var req BulkEnrollmentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	actor := util.GetUserFromContext(ctx)

	emails := make([]string, 0, len(req.Users))
	for _, u := range req.Users {
		emails = append(emails, u.UserEmail)
	}

	result, err := c.BulkService.BulkEnroll(ctx.Request.Context(), service.BulkEnrollmentInput{
		CourseID:         req.CourseID,
		UserEmails:       emails,
		PaymentConfirmed: req.PaymentConfirmed,
		ExpiresAt:        req.ExpiresAt,
		EnrolledByID:     actor.UserID,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListEnrollments godoc
// @Summary 报名列表
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(10)
// @Param sortBy query string false "排序字段" Enums(enrolledAt, expiresAt, status, updatedAt)
// @Param sortOrder query string false "排序方向" Enums(asc, desc)
// @Param userId query int false "用户ID"
// @Param courseId query int false "课程ID"
// @Param status query string false "状态" Enums(ACTIVE, SUSPENDED, COMPLETED, EXPIRED)
// @Param paymentConfirmed query bool false "是否已缴费"
// @Param expired query bool false "是否已过期"
// @Param search query string false "学员姓名、邮箱或课程标题"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Failure 422 {object} util.Response "参数校验失败"
// @Router /admin/enrollments [get]
func (c *EnrollmentController) ListEnrollments(ctx *gin.Context) {
	filter, err := parseEnrollmentFilter(ctx)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	opts := parseListOptions(ctx)

	details, total, err := c.EnrollmentService.FindAll(ctx.Request.Context(), filter, opts)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	opts = opts.Normalize()
	util.Success(ctx, util.PageResponse{List: details, Total: total, Page: opts.Page, Limit: opts.Limit})
}

// GetEnrollment godoc
// @Summary 报名详情
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 404 {object} util.Response "报名不存在"
// @Router /admin/enrollments/{id} [get]
func (c *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	detail, err := c.EnrollmentService.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateEnrollment godoc
// @Summary 更新报名
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param request body UpdateEnrollmentRequest true "更新字段"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 400 {object} util.Response "更新失败"
// @Failure 404 {object} util.Response "报名不存在"
// @Router /admin/enrollments/{id} [patch]
func (c *EnrollmentController) UpdateEnrollment(ctx *gin.Context) {
	var req UpdateEnrollmentRequest
	if !bindJSON(ctx, &req) {
		return
	}

	detail, err := c.EnrollmentService.Update(ctx.Request.Context(), ctx.Param("id"), service.EnrollmentPatch{
		Status:           req.Status,
		ExpiresAt:        req.ExpiresAt,
		ClearExpiresAt:   req.ClearExpiresAt,
		PaymentConfirmed: req.PaymentConfirmed,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// DeleteEnrollment godoc
// @Summary 删除报名
// @Description 同时删除学习记录、证书与缴费凭证
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=repository.DeleteResult}
// @Failure 404 {object} util.Response "报名不存在"
// @Router /admin/enrollments/{id} [delete]
func (c *EnrollmentController) DeleteEnrollment(ctx *gin.Context) {
	result, err := c.EnrollmentService.Remove(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ConfirmPayment godoc
// @Summary 确认缴费
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 400 {object} util.Response "已确认缴费"
// @Failure 404 {object} util.Response "报名不存在"
// @Router /admin/enrollments/{id}/confirm-payment [post]
func (c *EnrollmentController) ConfirmPayment(ctx *gin.Context) {
	c.transition(ctx, c.EnrollmentService.ConfirmPayment)
}

// ActivateEnrollment godoc
// @Summary 激活报名
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Router /admin/enrollments/{id}/activate [post]
func (c *EnrollmentController) ActivateEnrollment(ctx *gin.Context) {
	c.transition(ctx, c.EnrollmentService.Activate)
}

// SuspendEnrollment godoc
// @Summary 暂停报名
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Router /admin/enrollments/{id}/suspend [post]
func (c *EnrollmentController) SuspendEnrollment(ctx *gin.Context) {
	c.transition(ctx, c.EnrollmentService.Suspend)
}

// CompleteEnrollment godoc
// @Summary 标记完成
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Router /admin/enrollments/{id}/complete [post]
func (c *EnrollmentController) CompleteEnrollment(ctx *gin.Context) {
	c.transition(ctx, c.EnrollmentService.Complete)
}

// ExtendEnrollment godoc
// @Summary 延长有效期
// @Description 在当前到期时间基础上延长 1-12 个月
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param request body ExtendEnrollmentRequest true "延长月数"
// @Success 200 {object} util.Response{data=model.EnrollmentDetail}
// @Failure 422 {object} util.Response "月数超出范围"
// @Router /admin/enrollments/{id}/extend [post]
func (c *EnrollmentController) ExtendEnrollment(ctx *gin.Context) {
	var req ExtendEnrollmentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	detail, err := c.EnrollmentService.Extend(ctx.Request.Context(), ctx.Param("id"), req.Months)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// CleanupExpiredEnrollments godoc
// @Summary 清理过期报名
// @Description 立即执行一次过期清理
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.SweepResult}
// @Router /admin/enrollments/cleanup-expired [post]
func (c *EnrollmentController) CleanupExpiredEnrollments(ctx *gin.Context) {
	result, err := c.Sweeper.SweepExpired(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetEnrollmentStats godoc
// @Summary 报名统计
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.EnrollmentStats}
// @Router /admin/enrollments/stats [get]
func (c *EnrollmentController) GetEnrollmentStats(ctx *gin.Context) {
	stats, err := c.EnrollmentService.GetEnrollmentStats(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// GetCourseEnrollmentStats godoc
// @Summary 课程报名统计
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.CourseEnrollmentStats}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{courseId}/enrollment-stats [get]
func (c *EnrollmentController) GetCourseEnrollmentStats(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}
	stats, err := c.EnrollmentService.GetCourseEnrollmentStats(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// GetMyEnrollments godoc
// @Summary 我的报名
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "状态" Enums(ACTIVE, SUSPENDED, COMPLETED, EXPIRED)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /enrollments/my [get]
func (c *EnrollmentController) GetMyEnrollments(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	opts := parseListOptions(ctx)
	status := model.EnrollmentStatus(ctx.Query("status"))

	details, total, err := c.EnrollmentService.FindUserEnrollments(ctx.Request.Context(), user.UserID, status, opts)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	opts = opts.Normalize()
	util.Success(ctx, util.PageResponse{List: details, Total: total, Page: opts.Page, Limit: opts.Limit})
}

func (c *EnrollmentController) transition(ctx *gin.Context, fn func(context.Context, string) (*model.EnrollmentDetail, error)) {
	detail, err := fn(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// bindJSON 校验失败返回 422，请求体格式错误返回 400
func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			util.HandleError(ctx, util.ValidationError("%s", verrs.Error()))
		} else {
			util.HandleError(ctx, util.BadRequestError("invalid request body: %v", err))
		}
		return false
	}
	return true
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.HandleError(ctx, util.ValidationError("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func parseListOptions(ctx *gin.Context) repository.ListOptions {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	return repository.ListOptions{
		Page:      page,
		Limit:     limit,
		SortBy:    ctx.Query("sortBy"),
		SortOrder: ctx.Query("sortOrder"),
	}
}

func parseEnrollmentFilter(ctx *gin.Context) (repository.EnrollmentFilter, error) {
	filter := repository.EnrollmentFilter{
		UserID:   util.MustParseUint(ctx.Query("userId")),
		CourseID: util.MustParseUint(ctx.Query("courseId")),
		Status:   model.EnrollmentStatus(ctx.Query("status")),
		Search:   ctx.Query("search"),
	}

	var err error
	if filter.PaymentConfirmed, err = util.ParseOptionalBool(ctx.Query("paymentConfirmed")); err != nil {
		return filter, util.ValidationError("invalid paymentConfirmed %q", ctx.Query("paymentConfirmed"))
	}
	if filter.Expired, err = util.ParseOptionalBool(ctx.Query("expired")); err != nil {
		return filter, util.ValidationError("invalid expired %q", ctx.Query("expired"))
	}
	return filter, nil
}
