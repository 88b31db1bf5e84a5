package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eq-coach-service/internal/models"
)

const (
	codeTooShort   = "TOO_SHORT"
	tooShortPrefix = codeTooShort + ":"
)

// Submitter sends a finished transcript for analysis.
type Submitter interface {
	Submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error)

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	return f(ctx, req)
}

// APIError is a failure reported by the analysis endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis failed (%d %s): %s", e.Status, e.Code, e.Message)
}

// TooShort reports whether the server rejected the text as too short.
func (e *APIError) TooShort() bool {
	return e.Code == codeTooShort || strings.HasPrefix(e.Message, tooShortPrefix)
}

// DisplayMessage returns the message without the machine marker.
func (e *APIError) DisplayMessage() string {
	return strings.TrimSpace(strings.TrimPrefix(e.Message, tooShortPrefix))
}

// HTTPSubmitter posts JSON submissions to the analysis API.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSubmitter creates a submitter for the API at baseURL.
func NewHTTPSubmitter(baseURL string, timeout time.Duration) *HTTPSubmitter {
	return &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit posts req to /v1/analyze and decodes the envelope.
func (s *HTTPSubmitter) Submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post analysis: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env struct {
		Success bool                   `json:"success"`
		Data    *models.AnalysisResult `json:"data"`
		Error   string                 `json:"error"`
		Code    string                 `json:"code"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("unreadable response: %v", err)}
	}
	if !env.Success || resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	if env.Data == nil {
		return nil, &APIError{Status: resp.StatusCode, Message: "response carried no result"}
	}
	return env.Data, nil
}
