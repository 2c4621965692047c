// Package nexradapi talks to the backend that renders a single NEXRAD
// archive file into one georeferenced image.
package nexradapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// Job status values reported by the backend.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var (
	// ErrProcessingTimeout is returned when a job is still processing after
	// the poll budget is spent.
	ErrProcessingTimeout = domain.ErrProcessingTimeout
	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("nexrad api: circuit breaker open")
	// ErrNoImage is returned when a completed job carries no image placement.
	ErrNoImage = errors.New("nexrad api: completed job has no image info")
)

// JobError is an explicit failure reported by the backend for a job.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// Submission is the backend's answer to a processing request.
type Submission struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Cached bool   `json:"cached"`
}

// JobStatus is one poll of a job.
type JobStatus struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Data    *JobData `json:"data,omitempty"`
}

// JobData is the payload of a completed job.
type JobData struct {
	ImageInfo *ImageInfo `json:"image_info"`
	Timestamp string     `json:"timestamp"`
	URL       string     `json:"url"`
}

// ImageInfo places the rendered image on the map.
type ImageInfo struct {
	Coordinates [][2]float64  `json:"coordinates"`
	Bounds      domain.Bounds `json:"bounds"`
}

// ProgressFunc is called before each poll with the 1-based attempt number.
type ProgressFunc = func(attempt, maxPolls int)

// Client submits archive files for processing and polls until the rendered
// image is ready. It implements engine.ArchiveProcessor.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	circuit      *gobreaker.CircuitBreaker
	clock        clockwork.Clock
	pollInterval time.Duration
	maxPolls     int
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// NewClient creates a processing backend client.
func NewClient(opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nexrad-api",
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     1 * time.Minute,
		}),
		clock:        clock,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		logger:       logger,
		metrics:      metrics,
	}
}

// MaxPolls is the poll budget of Wait.
func (c *Client) MaxPolls() int { return c.maxPolls }

// Submit asks the backend to process the archive file at fileURL.
func (c *Client) Submit(ctx context.Context, fileURL string) (Submission, error) {
	body, err := json.Marshal(map[string]string{"url": fileURL})
	if err != nil {
		return Submission{}, fmt.Errorf("encode request: %w", err)
	}

	var sub Submission
	err = c.do(ctx, http.MethodPost, c.baseURL+"/process-nexrad", body, func(status int, r io.Reader) error {
		if status != http.StatusOK {
			return apiError(status, r)
		}
		return json.NewDecoder(r).Decode(&sub)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("submit %s: %w", fileURL, err)
	}
	if sub.JobID == "" {
		return Submission{}, errors.New("submit: response has no job id")
	}
	return sub, nil
}

// Status fetches the current status of a job. The backend reports failed
// jobs with a 500 status and a JSON body, which is decoded like any other.
func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	var js JobStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/data/"+url.PathEscape(jobID), nil, func(status int, r io.Reader) error {
		if status != http.StatusOK && status != http.StatusInternalServerError {
			return apiError(status, r)
		}
		if err := json.NewDecoder(r).Decode(&js); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if status == http.StatusInternalServerError && js.Status == "" {
			js.Status = StatusError
		}
		return nil
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("status %s: %w", jobID, err)
	}
	return js, nil
}

// Wait polls a job every poll interval until it completes, fails, or the
// poll budget runs out. Transient poll errors use up an attempt and polling
// continues.
func (c *Client) Wait(ctx context.Context, jobID string, progress ProgressFunc) (JobData, error) {
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		if progress != nil {
			progress(attempt, c.maxPolls)
		}

		c.metrics.ArchivePolls.Inc()
		js, err := c.Status(ctx, jobID)
		switch {
		case ctx.Err() != nil:
			return JobData{}, ctx.Err()
		case err != nil:
			c.logger.Warn("job poll failed", "job_id", jobID, "attempt", attempt, "error", err)
		case js.Status == StatusCompleted:
			if js.Data == nil || js.Data.ImageInfo == nil {
				return JobData{}, fmt.Errorf("%w: %s", ErrNoImage, jobID)
			}
			return *js.Data, nil
		case js.Status == StatusError:
			msg := js.Error
			if msg == "" {
				msg = "unknown error"
			}
			return JobData{}, &JobError{JobID: jobID, Message: msg}
		}

		if attempt == c.maxPolls {
			break
		}
		select {
		case <-ctx.Done():
			return JobData{}, ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
	return JobData{}, fmt.Errorf("%w: job %s after %d polls", ErrProcessingTimeout, jobID, c.maxPolls)
}

// ImageURL is where the backend serves a completed job's image.
func (c *Client) ImageURL(jobID string) string {
	return c.baseURL + "/image/" + url.PathEscape(jobID)
}

// Process submits fileURL, waits for the job and returns the image to
// display. Cached submissions still fetch the job data once to place the
// image.
func (c *Client) Process(ctx context.Context, fileURL string, progress ProgressFunc) (domain.ArchiveImage, error) {
	sub, err := c.Submit(ctx, fileURL)
	if err != nil {
		c.metrics.ArchiveJobs.WithLabelValues("failed").Inc()
		return domain.ArchiveImage{}, err
	}
	c.logger.Info("archive submitted", "job_id", sub.JobID, "cached", sub.Cached)

	data, err := c.Wait(ctx, sub.JobID, progress)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrProcessingTimeout) {
			outcome = "timeout"
		}
		c.metrics.ArchiveJobs.WithLabelValues(outcome).Inc()
		return domain.ArchiveImage{}, err
	}
	c.metrics.ArchiveJobs.WithLabelValues("completed").Inc()

	info := data.ImageInfo
	coords := info.Coordinates
	if len(coords) != 4 {
		coords = domain.CornersOf(info.Bounds)
	}
	return domain.ArchiveImage{
		JobID:       sub.JobID,
		URL:         c.ImageURL(sub.JobID),
		Coordinates: coords,
		Bounds:      info.Bounds,
		Cached:      sub.Cached,
	}, nil
}

func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, handle func(status int, r io.Reader) error) error {
	_, err := c.circuit.Execute(func() (interface{}, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, rdr)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return nil, handle(resp.StatusCode, resp.Body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func apiError(status int, r io.Reader) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(r, 1024))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("nexrad API error: status %d: %s", status, payload.Error)
	}
	return fmt.Errorf("nexrad API error: status %d: %s", status, bytes.TrimSpace(raw))
}
