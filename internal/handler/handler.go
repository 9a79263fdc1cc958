// Package handler exposes the student dashboard over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studentdash/internal/attendance"
	"studentdash/internal/auth"
	"studentdash/internal/civil"
	"studentdash/internal/cloudinary"
	"studentdash/internal/dashboard"
	"studentdash/internal/dataservice"
	"studentdash/internal/internship"
	"studentdash/internal/model"
)

type Handler struct {
	dash      *dashboard.Builder
	att       *attendance.Service
	ds        dataservice.Service
	cloud     *cloudinary.Client // nil if Cloudinary not configured
	maxUpload int64
}

func New(dash *dashboard.Builder, att *attendance.Service, ds dataservice.Service, cloud *cloudinary.Client, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{dash: dash, att: att, ds: ds, cloud: cloud, maxUpload: maxUpload}
}

// Register mounts the routes. mw runs in front of every /v1 route and must
// include the bearer token check.
func (h *Handler) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", mw...)

	student := v1.Group("", auth.RequireRole(auth.RoleStudent))
	student.GET("/dashboard", h.Dashboard)
	student.GET("/dashboard/counters", h.DashboardCounters)
	student.POST("/attendance/check-in", h.CheckIn)
	student.POST("/attendance/check-out", h.CheckOut)
	student.POST("/reports", h.SubmitReport)
	student.POST("/uploads", h.Upload)

	admin := v1.Group("/students", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/:uid/attendance-status", h.AttendanceStatus)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------- Dashboard ----------

func (h *Handler) Dashboard(c *gin.Context) {
	view, err := h.dash.Build(c.Request.Context(), auth.StudentID(c))
	if err != nil {
		h.fail(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DashboardCounters returns the tracked counters without waiting for a computation.
func (h *Handler) DashboardCounters(c *gin.Context) {
	snap, loading := h.dash.Counters(auth.StudentID(c))
	c.JSON(http.StatusOK, gin.H{"counters": snap, "loading": loading})
}

// ---------- Attendance ----------

type checkInRequest struct {
	Mode     string `json:"mode"`
	Location string `json:"location"`
}

// CheckIn accepts an optional body; without a mode the internship's mode is used.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	// chunked bodies report ContentLength -1
	if body := c.Request.Body; body != nil && body != http.NoBody && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	studentID := auth.StudentID(c)
	rec, err := h.att.CheckIn(c.Request.Context(), studentID, req.Mode, req.Location)
	if err != nil {
		h.fail(c, "check-in", err)
		return
	}
	h.refreshCounters(studentID)
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) CheckOut(c *gin.Context) {
	studentID := auth.StudentID(c)
	rec, err := h.att.CheckOut(c.Request.Context(), studentID)
	if err != nil {
		h.fail(c, "check-out", err)
		return
	}
	h.refreshCounters(studentID)
	c.JSON(http.StatusOK, rec)
}

// ---------- Reports ----------

type reportRequest struct {
	Content       string `json:"content" binding:"required"`
	AttachmentURL string `json:"attachment_url"`
}

func (h *Handler) SubmitReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := h.att.SubmitReport(c.Request.Context(), auth.StudentID(c), req.Content, req.AttachmentURL)
	if err != nil {
		h.fail(c, "report", err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

// Upload stores a report attachment and returns its URL for a later report submission.
// Expects a multipart form with a single "file" field.
func (h *Handler) Upload(c *gin.Context) {
	if !h.cloud.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachments are not enabled"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	publicID := path.Join(auth.StudentID(c), uuid.NewString())
	res, err := h.cloud.Upload(c.Request.Context(), file, header.Filename, publicID)
	if err != nil {
		log.Printf("cloudinary upload error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload attachment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"url":           res.SecureURL,
		"public_id":     res.PublicID,
		"resource_type": res.ResourceType,
		"filename":      header.Filename,
	})
}

// ---------- Admin ----------

// AttendanceStatus renders the attendance cell of one student for ?date=YYYY-MM-DD,
// today when omitted.
func (h *Handler) AttendanceStatus(c *gin.Context) {
	ctx := c.Request.Context()
	uid := c.Param("uid")
	date := h.dash.Today()
	if q := c.Query("date"); q != "" {
		d, err := civil.Parse(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	internships, err := h.ds.GetStudentInternships(ctx, uid)
	if err != nil {
		h.fail(c, "attendance-status", err)
		return
	}
	row := attendance.StatusRow{UID: uid, Internships: internships}
	if cur, ok := internship.ResolveCurrent(internships, date); ok {
		rec, err := h.ds.GetInternshipAttendance(ctx, cur.ID, date)
		if err != nil {
			h.fail(c, "attendance-status", err)
			return
		}
		if rec != nil {
			row.Attendance = []model.AttendanceRecord{*rec}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"uid":    uid,
		"date":   date,
		"status": attendance.StatusFor(ctx, h.ds, row, date),
	})
}

// refreshCounters recomputes the student's counters after a mutation. The request
// does not wait for it.
func (h *Handler) refreshCounters(studentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := h.dash.RefreshCounters(ctx, studentID); err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
			log.Printf("refresh counters for %s: %v", studentID, err)
		}
	}()
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("%s for %s: %v", op, auth.StudentID(c), err)
		c.JSON(code, gin.H{"error": http.StatusText(code)})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrNoActiveInternship),
		errors.Is(err, attendance.ErrNoAttendanceRecord),
		errors.Is(err, attendance.ErrHoliday),
		errors.Is(err, attendance.ErrNotCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedOut):
		return http.StatusConflict
	case errors.Is(err, dataservice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}
