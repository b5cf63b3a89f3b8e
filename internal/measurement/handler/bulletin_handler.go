package handler

import (
	"strconv"

	"github.com/construtiva/obratrack/internal/measurement/service"
	"github.com/gin-gonic/gin"
)

// BulletinHandler exposes the bulletin lifecycle over HTTP.
type BulletinHandler struct {
	svc   *service.BulletinService
	accum *service.AccumulationService
}

func NewBulletinHandler(svc *service.BulletinService, accum *service.AccumulationService) *BulletinHandler {
	return &BulletinHandler{svc: svc, accum: accum}
}

// ListBulletins lists a tenant's bulletins.
func (h *BulletinHandler) ListBulletins(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"contract_id": c.Query("contract_id"),
		"status":      c.Query("status"),
		"start_date":  c.Query("start_date"),
		"end_date":    c.Query("end_date"),
		"sort":        c.Query("sort"),
		"order":       c.Query("order"),
	}

	items, total, err := h.svc.List(c.Request.Context(), GetTenantID(c), page, pageSize, filters)
	if err != nil {
		FromError(c, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// GetBulletin returns one bulletin with children, accumulated quantities
// and freshly computed figures.
func (h *BulletinHandler) GetBulletin(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), GetTenantID(c), c.Param("id"))
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, detail)
}

// GetAccumulated exposes the accumulation mapping standalone so editing UIs
// can preview figures before committing.
func (h *BulletinHandler) GetAccumulated(c *gin.Context) {
	beforeBm, err := strconv.Atoi(c.Query("before_bm"))
	if err != nil || beforeBm <= 0 {
		BadRequest(c, "before_bm must be a positive integer")
		return
	}

	result, err := h.accum.Accumulated(c.Request.Context(), GetTenantID(c), c.Param("contractId"), beforeBm)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, result)
}

// CreateBulletin creates a draft bulletin with its items and additives.
func (h *BulletinHandler) CreateBulletin(c *gin.Context) {
	var req service.CreateBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}

	b, err := h.svc.Create(c.Request.Context(), GetTenantID(c), GetUserID(c), GetRole(c), &req)
	if err != nil {
		FromError(c, err)
		return
	}
	Created(c, b)
}

// UpdateBulletin replaces the bulletin's children and editable header
// fields.
func (h *BulletinHandler) UpdateBulletin(c *gin.Context) {
	var req service.UpdateBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}

	b, err := h.svc.Update(c.Request.Context(), GetTenantID(c), GetRole(c), c.Param("id"), &req)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, b)
}

// SubmitBulletin moves a draft into the approval chain.
func (h *BulletinHandler) SubmitBulletin(c *gin.Context) {
	if err := h.svc.Submit(c.Request.Context(), GetTenantID(c), c.Param("id")); err != nil {
		FromError(c, err)
		return
	}
	Success(c, nil)
}

// ApproveBulletin records one stage decision.
func (h *BulletinHandler) ApproveBulletin(c *gin.Context) {
	var req service.ApproveBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}

	approval, nextStatus, err := h.svc.Approve(c.Request.Context(), GetTenantID(c), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		FromError(c, err)
		return
	}
	Created(c, gin.H{
		"approval": approval,
		"status":   nextStatus,
	})
}

// DeleteBulletin removes a draft bulletin (admin only).
func (h *BulletinHandler) DeleteBulletin(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetTenantID(c), GetRole(c), c.Param("id")); err != nil {
		FromError(c, err)
		return
	}
	Success(c, nil)
}

// PreviewFigures computes figures for an unsaved payload.
func (h *BulletinHandler) PreviewFigures(c *gin.Context) {
	var req service.PreviewFiguresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid payload: "+err.Error())
		return
	}

	f, err := h.svc.Preview(c.Request.Context(), GetTenantID(c), &req)
	if err != nil {
		FromError(c, err)
		return
	}
	Success(c, f)
}
