package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/types"
)

type clickRequest struct {
	UserID          string `json:"userId"`
	SocialMediaType string `json:"socialMediaType"`
}

type clickData struct {
	UserID         string `json:"userId"`
	CreateDateTime string `json:"createDateTime"`
	TotalClicks    int64  `json:"totalClicks"`
}

type recordView struct {
	UserID         string `json:"userId"`
	CreateDateTime string `json:"createDateTime"`
	DateKey        string `json:"dateKey,omitempty"`
	RecordSort     string `json:"recordSort,omitempty"`
	ClickCount     int64  `json:"clickCount,omitempty"`
	TotalClicks    int64  `json:"totalClicks,omitempty"`
}

func viewOf(r *types.Record) recordView {
	return recordView{
		UserID:         r.PartitionKey,
		CreateDateTime: r.SortKey,
		DateKey:        r.DateKey,
		RecordSort:     r.RecordSort,
		ClickCount:     r.ClickCount,
		TotalClicks:    r.TotalClicks,
	}
}

func viewsOf(records []*types.Record) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, viewOf(r))
	}

	return out
}

func (s *Server) recordClick(c *gin.Context) {
	const failed = "Failed to record click"

	var req clickRequest

	// An empty body is treated as {}.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, failed, fmt.Errorf("%w: invalid JSON body: %w", types.ErrValidation, err))
		return
	}

	subjectID := strings.TrimSpace(req.UserID)
	if subjectID == "" {
		subjectID = s.opts.defaultSubjectID
	}

	if subjectID == "" {
		s.fail(c, failed, fmt.Errorf("%w: userId is required", types.ErrValidation))
		return
	}

	s.logger.Info("Recording click", "userId", subjectID, "socialMediaType", req.SocialMediaType)

	result, err := s.svc.RecordClick(c.Request.Context(), subjectID)
	if err != nil {
		s.fail(c, failed, err)
		return
	}

	s.ok(c, "Click recorded", clickData{
		UserID:         result.SubjectID,
		CreateDateTime: result.Timestamp,
		TotalClicks:    result.TotalClicks,
	})
}

func (s *Server) getTotal(c *gin.Context) {
	total, err := s.svc.GetTotalClicks(c.Request.Context())
	if err != nil {
		s.fail(c, "Failed to read total clicks", err)
		return
	}

	s.ok(c, "Total clicks", gin.H{"totalClicks": total})
}

func (s *Server) getDaily(c *gin.Context) {
	s.getStat(c, "daily", s.svc.GetDailyStat, c.Param("date"))
}

func (s *Server) getMonthly(c *gin.Context) {
	s.getStat(c, "monthly", s.svc.GetMonthlyStat, c.Param("month"))
}

// getStat answers a missing stat row with a zero total, like the all-time
// total.
func (s *Server) getStat(c *gin.Context, kind string, get func(context.Context, string) (*types.Record, error), period string) {
	record, err := get(c.Request.Context(), period)
	if err != nil {
		s.fail(c, "Failed to read "+kind+" clicks", err)
		return
	}

	var total int64
	if record != nil {
		total = record.TotalClicks
	}

	s.ok(c, "Clicks for "+period, gin.H{"period": period, "totalClicks": total})
}

func (s *Server) listForSubject(c *gin.Context) {
	const failed = "Failed to list clicks"

	subjectID := c.Param("userId")
	from, to := c.Query("from"), c.Query("to")

	var (
		records []*types.Record
		err     error
	)

	switch {
	case from == "" && to == "":
		records, err = s.svc.ListClicksForSubject(c.Request.Context(), subjectID)
	case from == "" || to == "":
		err = fmt.Errorf("%w: from and to must be given together", types.ErrValidation)
	default:
		records, err = s.svc.ListClicksInRange(c.Request.Context(), subjectID, from, to)
	}

	if err != nil {
		s.fail(c, failed, err)
		return
	}

	s.ok(c, "Clicks", viewsOf(records))
}

func (s *Server) listByDate(c *gin.Context) {
	records, err := s.svc.ListClicksByDate(c.Request.Context(), c.Param("date"))
	if err != nil {
		s.fail(c, "Failed to list clicks", err)
		return
	}

	s.ok(c, "Clicks", viewsOf(records))
}

var _ Service = (*clicks.Service)(nil)
