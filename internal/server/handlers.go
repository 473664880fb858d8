package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/duplicate"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/templates"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleScan(c echo.Context) error {
	image, err := readUpload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(image) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty upload")
	}

	result, err := s.processor.Scan(c.Request().Context(), image)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "scan failed")
	}
	return c.JSON(http.StatusOK, result)
}

func readUpload(c echo.Context) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxUploadBytes))
	}
	return io.ReadAll(io.LimitReader(c.Request().Body, maxUploadBytes))
}

type duplicateCheckRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	Merchant  string     `json:"merchant"`
	Amount    float64    `json:"amount"`
	Date      string     `json:"date"` // YYYY-MM-DD
	ExcludeID *uuid.UUID `json:"exclude_id,omitempty"`
}

func (s *Server) handleDuplicateCheck(c echo.Context) error {
	var req duplicateCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v := common.NewValidator().
		Field("user_id", req.UserID, common.NonNilUUID).
		Field("merchant", req.Merchant, common.Required).
		Field("date", req.Date, common.Required)
	if v.HasErrors() {
		return echo.NewHTTPError(http.StatusBadRequest, v.ErrorMessage())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	found := s.detector.Check(c.Request().Context(), duplicate.Candidate{
		UserID:    req.UserID,
		Merchant:  req.Merchant,
		Amount:    req.Amount,
		Date:      date,
		ExcludeID: req.ExcludeID,
	})
	if found == nil {
		found = []entity.DuplicateCandidate{}
	}
	return c.JSON(http.StatusOK, map[string]any{"duplicates": found})
}

func (s *Server) handleRecordCorrection(c echo.Context) error {
	var correction entity.Correction
	if err := c.Bind(&correction); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.corrections.Record(c.Request().Context(), &correction); err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return echo.NewHTTPError(http.StatusBadRequest, status.Convert(err).Message())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "record correction failed")
	}
	return c.JSON(http.StatusCreated, correction)
}

func (s *Server) handleCorrectionStats(c echo.Context) error {
	stats, err := s.corrections.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats unavailable")
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handlePatterns(c echo.Context) error {
	days := s.queryDays(c)
	patterns, err := s.corrections.PatternReport(c.Request().Context(), days, s.miner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "pattern mining failed")
	}
	if patterns == nil {
		patterns = []entity.PatternInsight{}
	}
	return c.JSON(http.StatusOK, map[string]any{"days": days, "patterns": patterns})
}

func (s *Server) handleExport(c echo.Context) error {
	days := s.queryDays(c)
	switch c.QueryParam("format") {
	case "", "xlsx":
		raw, err := s.corrections.ExportXLSX(c.Request().Context(), days)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="corrections.xlsx"`)
		return c.Blob(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", raw)
	case "json":
		recs, err := s.corrections.TrainingRecords(c.Request().Context(), days)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
		}
		return c.JSON(http.StatusOK, map[string]any{"days": days, "records": recs})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be xlsx or json")
	}
}

func (s *Server) queryDays(c echo.Context) int {
	days := s.cfg.WindowDays
	if raw := c.QueryParam("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	return days
}

type startJobRequest struct {
	SinceDays int `json:"since_days"`
}

func (s *Server) handleStartJob(c echo.Context) error {
	var req startJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	job, err := s.manager.StartJob(c.Request().Context(), req.SinceDays)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "start retraining failed")
	}
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleListJobs(c echo.Context) error {
	jobs, err := s.manager.Jobs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "jobs unavailable")
	}
	if jobs == nil {
		jobs = []*entity.RetrainingJob{}
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "job id must be a UUID")
	}
	job, err := s.manager.Job(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "job unavailable")
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleListTemplates(c echo.Context) error {
	versions, err := s.manager.Versions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "templates unavailable")
	}
	if versions == nil {
		versions = []*entity.TemplateVersion{}
	}
	return c.JSON(http.StatusOK, map[string]any{"versions": versions})
}

func (s *Server) handleDeploy(c echo.Context) error {
	version := c.Param("version")
	if err := s.manager.Deploy(c.Request().Context(), version); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound,
				fmt.Sprintf("template version %s not found", version))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "deploy failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"deployed": version})
}

func (s *Server) handleRollback(c echo.Context) error {
	previous, err := s.manager.Rollback(c.Request().Context())
	if err != nil {
		if errors.Is(err, templates.ErrNoPreviousVersion) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "rollback failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"deployed": previous.Version})
}
