// Package httpapi serves the OMR pipeline over HTTP.
//
// Sheet images are posted as multipart forms in the field "image". A layout
// comes from the optional "bubbleMap" field (override JSON), a template
// stored under the "template" name, or is discovered from the posted sheet.
// When a Repository is configured, templates, answer keys and graded results
// are persisted by exam id.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/omr-reader/internal/answers"
	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/pipeline"
	"github.com/ironsheep/omr-reader/internal/scoring"
	"github.com/ironsheep/omr-reader/internal/store"
)

// maxUploadBytes bounds multipart bodies held in memory.
const maxUploadBytes = 32 << 20

// Repository persists templates, keys and results. *store.Store implements it.
type Repository interface {
	SaveTemplate(ctx context.Context, name string, m omr.BubbleCenterMap) error
	LoadTemplate(ctx context.Context, name string) (omr.BubbleCenterMap, error)
	SaveAnswerKey(ctx context.Context, examID string, key []omr.AnswerKeyEntry) error
	LoadAnswerKey(ctx context.Context, examID string) ([]omr.AnswerKeyEntry, error)
	SaveResult(ctx context.Context, examID, source string, answers []omr.StudentAnswerEntry, eval *scoring.Evaluation) (string, error)
	ListResults(ctx context.Context, examID string) ([]store.Result, error)
}

// API holds the handlers' shared state.
type API struct {
	pipeline *pipeline.Pipeline
	repo     Repository
	scoring  scoring.Config
}

// New builds the API. repo may be nil, which disables persistence.
func New(p *pipeline.Pipeline, repo Repository) *API {
	return &API{pipeline: p, repo: repo, scoring: scoring.DefaultConfig()}
}

// Router returns the gin engine with every route registered.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.MaxMultipartMemory = maxUploadBytes

	r.GET("/healthz", a.health)

	v1 := r.Group("/v1")
	v1.POST("/templates", a.discoverTemplate)
	v1.POST("/answer-key", a.answerKey)
	v1.POST("/student-answers", a.studentAnswers)
	v1.POST("/evaluate", a.evaluate)
	v1.GET("/exams/:examId/results", a.listResults)
	return r
}

func (a *API) health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"classifier": a.pipeline.Classifier().Backend(),
		"persisted":  a.repo != nil,
	}
	if w := a.pipeline.Warning(); w != nil {
		body["warning"] = w.Error()
	}
	c.JSON(http.StatusOK, body)
}

// errorKind maps a pipeline error to its HTTP status and kind.
func errorKind(err error) (int, string) {
	var decodeErr *omr.ImageDecodeError
	var gridErr *omr.GridDiscoveryError
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, "image_decode"
	case errors.As(err, &gridErr):
		return http.StatusUnprocessableEntity, "grid_discovery"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, kind := errorKind(err)
	c.AbortWithStatusJSON(status, gin.H{"kind": kind, "error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": fmt.Sprintf(format, args...)})
}

// readImage returns the bytes of the "image" form file.
func readImage(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "missing image: %v", err)
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return data, true
}

// resolveCenters picks the layout from the request. A nil map means the
// sheet discovers its own.
func (a *API) resolveCenters(c *gin.Context) (omr.BubbleCenterMap, bool) {
	raw := c.PostForm("bubbleMap")
	if raw == "" {
		if fh, err := c.FormFile("bubbleMap"); err == nil {
			f, err := fh.Open()
			if err != nil {
				abortWithError(c, err)
				return nil, false
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				abortWithError(c, err)
				return nil, false
			}
			raw = string(data)
		}
	}

	if raw != "" {
		m, malformed, err := omr.DecodeBubbleMap([]byte(raw))
		if err != nil {
			badRequest(c, "invalid bubbleMap: %v", err)
			return nil, false
		}
		for _, e := range malformed {
			log.Printf("Warning: %v", e)
		}
		return m, true
	}

	if name := c.PostForm("template"); name != "" {
		if a.repo == nil {
			badRequest(c, "template %q requested but no store is configured", name)
			return nil, false
		}
		m, err := a.repo.LoadTemplate(c.Request.Context(), name)
		if err != nil {
			abortWithError(c, fmt.Errorf("template %q: %w", name, err))
			return nil, false
		}
		return m, true
	}
	return nil, true
}

func (a *API) discoverTemplate(c *gin.Context) {
	data, ok := readImage(c)
	if !ok {
		return
	}
	d, err := a.pipeline.DiscoverTemplate(data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if name := c.PostForm("name"); name != "" && a.repo != nil {
		if err := a.repo.SaveTemplate(c.Request.Context(), name, d.Centers); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, d)
}

func (a *API) answerKey(c *gin.Context) {
	data, ok := readImage(c)
	if !ok {
		return
	}
	centers, ok := a.resolveCenters(c)
	if !ok {
		return
	}
	key, err := a.pipeline.AnswerKey(data, centers)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if examID := c.PostForm("examId"); examID != "" && a.repo != nil {
		if err := a.repo.SaveAnswerKey(c.Request.Context(), examID, key); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"answerKey": key})
}

func (a *API) studentAnswers(c *gin.Context) {
	data, ok := readImage(c)
	if !ok {
		return
	}
	centers, ok := a.resolveCenters(c)
	if !ok {
		return
	}

	threshold := a.pipeline.Config().SelectionThreshold
	if raw := c.PostForm("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			badRequest(c, "threshold must be a number in [0, 1], got %q", raw)
			return
		}
		threshold = v
	}

	img, err := a.pipeline.Normalize(data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	results, err := a.pipeline.Classify(img, centers)
	if err != nil {
		abortWithError(c, err)
		return
	}
	student := answers.BuildStudentAnswers(results, threshold)
	body := gin.H{"studentAnswers": student}

	examID := c.PostForm("examId")
	if examID == "" || a.repo == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx := c.Request.Context()
	var eval *scoring.Evaluation
	key, err := a.repo.LoadAnswerKey(ctx, examID)
	switch {
	case err == nil:
		eval = scoring.Evaluate(key, student, a.scoring)
		body["evaluation"] = eval
	case errors.Is(err, store.ErrNotFound):
		log.Printf("No answer key for exam %s; storing unscored result", examID)
	default:
		abortWithError(c, err)
		return
	}

	source := c.PostForm("source")
	if source == "" {
		if fh, err := c.FormFile("image"); err == nil {
			source = fh.Filename
		}
	}
	id, err := a.repo.SaveResult(ctx, examID, source, student, eval)
	if err != nil {
		abortWithError(c, err)
		return
	}
	body["resultId"] = id
	c.JSON(http.StatusOK, body)
}

// EvaluateRequest is the body of POST /v1/evaluate. A nil Scoring selects
// the default scheme.
type EvaluateRequest struct {
	AnswerKey      []omr.AnswerKeyEntry     `json:"answerKey"`
	StudentAnswers []omr.StudentAnswerEntry `json:"studentAnswers"`
	Scoring        json.RawMessage          `json:"scoring,omitempty"`
}

func (a *API) evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}

	cfg := a.scoring
	if len(req.Scoring) > 0 && string(req.Scoring) != "null" {
		cfg.Sections = append([]scoring.Section(nil), a.scoring.Sections...)
		if err := json.Unmarshal(req.Scoring, &cfg); err != nil {
			badRequest(c, "invalid scoring: %v", err)
			return
		}
	}
	c.JSON(http.StatusOK, scoring.Evaluate(req.AnswerKey, req.StudentAnswers, cfg))
}

func (a *API) listResults(c *gin.Context) {
	if a.repo == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"kind": "no_store", "error": "no store is configured"})
		return
	}
	results, err := a.repo.ListResults(c.Request.Context(), c.Param("examId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
