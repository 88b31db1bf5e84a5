// Package analysis turns an analyze request into a validated AnalysisResult:
// it normalizes the wire shape, enforces input guardrails, and calls the
// transcription and scoring oracles.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"eq-coach-service/internal/models"
)

// Limits bounds request bodies.
type Limits struct {
	MaxAudioBytes int64
	MaxJSONBytes  int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 25 << 20,
		MaxJSONBytes:  1 << 20,
	}
}

// Form and JSON field names.
const (
	fieldFile           = "file"
	fieldText           = "text"
	fieldMode           = "mode"
	fieldScenarioLabel  = "scenarioLabel"
	fieldScenarioPrompt = "scenarioPrompt"
)

type jsonBody struct {
	Text           string `json:"text"`
	Mode           string `json:"mode"`
	ScenarioLabel  string `json:"scenarioLabel"`
	ScenarioPrompt string `json:"scenarioPrompt"`
}

// Normalize reads an analyze request in either multipart or JSON form.
// Any other content type is rejected with UNSUPPORTED_FORMAT.
func Normalize(r *http.Request, limits Limits) (models.AnalyzeRequest, error) {
	ct := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(ct))
	}

	switch mediaType {
	case "multipart/form-data":
		return normalizeMultipart(r, limits)
	case "application/json":
		return normalizeJSON(r, limits)
	default:
		return models.AnalyzeRequest{}, newError(CodeUnsupportedFormat, http.StatusBadRequest,
			fmt.Sprintf(msgUnsupportedFormat, ct), nil)
	}
}

func normalizeJSON(r *http.Request, limits Limits) (models.AnalyzeRequest, error) {
	max := limits.MaxJSONBytes
	if max <= 0 {
		max = DefaultLimits().MaxJSONBytes
	}

	var body jsonBody
	if err := json.NewDecoder(io.LimitReader(r.Body, max)).Decode(&body); err != nil {
		return models.AnalyzeRequest{}, newError(CodeInvalidBody, http.StatusBadRequest, msgInvalidBody, err)
	}

	return models.AnalyzeRequest{
		Text:           body.Text,
		Mode:           models.ParseMode(body.Mode),
		ScenarioLabel:  strings.TrimSpace(body.ScenarioLabel),
		ScenarioPrompt: strings.TrimSpace(body.ScenarioPrompt),
	}, nil
}

func normalizeMultipart(r *http.Request, limits Limits) (models.AnalyzeRequest, error) {
	max := limits.MaxAudioBytes
	if max <= 0 {
		max = DefaultLimits().MaxAudioBytes
	}

	// Leave headroom for the text fields around the audio part.
	r.Body = http.MaxBytesReader(nil, r.Body, max+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.AnalyzeRequest{}, newError(CodeAudioTooLarge, http.StatusRequestEntityTooLarge,
				fmt.Sprintf(msgAudioTooLarge, max), err)
		}
		return models.AnalyzeRequest{}, newError(CodeInvalidBody, http.StatusBadRequest, msgInvalidBody, err)
	}
	defer r.MultipartForm.RemoveAll()

	req := models.AnalyzeRequest{
		Text:           r.FormValue(fieldText),
		Mode:           models.ParseMode(r.FormValue(fieldMode)),
		ScenarioLabel:  strings.TrimSpace(r.FormValue(fieldScenarioLabel)),
		ScenarioPrompt: strings.TrimSpace(r.FormValue(fieldScenarioPrompt)),
	}

	file, hdr, err := r.FormFile(fieldFile)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return models.AnalyzeRequest{}, newError(CodeInvalidBody, http.StatusBadRequest, msgInvalidBody, err)
	}
	defer file.Close()

	if hdr.Size > max {
		return models.AnalyzeRequest{}, newError(CodeAudioTooLarge, http.StatusRequestEntityTooLarge,
			fmt.Sprintf(msgAudioTooLarge, max), nil)
	}
	data, err := io.ReadAll(io.LimitReader(file, max+1))
	if err != nil {
		return models.AnalyzeRequest{}, newError(CodeInvalidBody, http.StatusBadRequest, msgInvalidBody, err)
	}
	if int64(len(data)) > max {
		return models.AnalyzeRequest{}, newError(CodeAudioTooLarge, http.StatusRequestEntityTooLarge,
			fmt.Sprintf(msgAudioTooLarge, max), nil)
	}

	req.Audio = data
	req.AudioFilename = hdr.Filename
	req.AudioContentType = hdr.Header.Get("Content-Type")
	return req, nil
}
