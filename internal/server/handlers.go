package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/export"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/process"
	"github.com/vendorlens/reconciler/internal/repository"
)

// maxUploadBytes bounds invoice document uploads.
const maxUploadBytes = 20 << 20

func (s *Server) handleProcess(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, common.ValidationErrorf("file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		s.respondError(c, common.ValidationErrorf("file exceeds %d byte limit", maxUploadBytes))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, common.WrapError(common.ErrInternal, "open upload"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		s.respondError(c, common.WrapError(common.ErrInternal, "read upload"))
		return
	}

	req := process.Request{
		Image:       data,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
	}
	if v := c.PostForm("vendor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("invalid vendor_id %q", v))
			return
		}
		req.VendorID = id
	}
	if v := c.PostForm("term_set_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("invalid term_set_id %q", v))
			return
		}
		req.TermSetID = &id
	}

	j, err := s.processor.StartJob(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": j.ID, "job": j})
}

// handleJobStatus returns the current snapshot. A failed job is still a 200;
// its failure is carried in the body, not the HTTP status.
func (s *Server) handleJobStatus(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	j, err := s.jobs.Snapshot(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (s *Server) handleJobCancel(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	if err := s.jobs.Cancel(id); err != nil {
		s.respondError(c, err)
		return
	}
	j, err := s.jobs.Snapshot(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (s *Server) handleJobRetry(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	snap, err := s.jobs.Snapshot(id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var j job.Job
	switch snap.Kind {
	case job.KindDocumentProcessing:
		j, err = s.processor.Retry(c.Request.Context(), id)
	case job.KindBulkExport:
		j, err = s.exporter.Retry(c.Request.Context(), id)
	default:
		err = common.JobStateErrorf("job %s has unknown kind %q", id, snap.Kind)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, j)
}

func (s *Server) handleExportStart(c *gin.Context) {
	var req export.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.ValidationErrorf("invalid export request body: %v", err))
		return
	}
	j, err := s.exporter.StartJob(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": j.ID, "job": j})
}

func (s *Server) handleExportDownload(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	name, contentType, data, err := s.jobs.Artifact(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleReportGet(c *gin.Context) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(c, common.ValidationErrorf("invalid report id %q", raw))
		return
	}
	r, err := s.reports.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleReportList(c *gin.Context) {
	f := repository.ReportFilter{
		Priority:   c.Query("priority"),
		Relevance:  c.Query("relevance"),
		ReadStatus: c.Query("read_status"),
	}
	if v := c.Query("vendor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("invalid vendor_id %q", v))
			return
		}
		f.VendorID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("invalid from date %q", v))
			return
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("invalid to date %q", v))
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}

	limit := intQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		s.respondError(c, common.ValidationErrorf("limit must be between 1 and 500"))
		return
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		s.respondError(c, common.ValidationErrorf("offset must not be negative"))
		return
	}

	ctx := c.Request.Context()
	total, err := s.reports.Count(ctx, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	items, err := s.reports.List(ctx, f, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "reports": items})
}

func (s *Server) jobID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(c, common.ValidationErrorf("invalid job id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrJobState):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("http.error", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
