package analysis

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eq-coach-service/internal/models"
)

func multipartRequest(t *testing.T, fields map[string]string, audio []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if audio != nil {
		fw, err := w.CreateFormFile("file", "recording.webm")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(audio)
	}
	w.Close()

	r := httptest.NewRequest(http.MethodPost, "/v1/analyze", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func TestNormalize_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze",
		strings.NewReader(`{"text":"我注意到你迟到了","mode":"relationship","scenarioLabel":" 冷暴力 "}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	req, err := Normalize(r, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Text != "我注意到你迟到了" {
		t.Errorf("unexpected text %q", req.Text)
	}
	if req.Mode != models.ModeRelationship {
		t.Errorf("expected relationship mode, got %s", req.Mode)
	}
	if req.ScenarioLabel != "冷暴力" {
		t.Errorf("expected trimmed scenario label, got %q", req.ScenarioLabel)
	}
	if req.HasAudio() {
		t.Error("expected no audio")
	}
}

func TestNormalize_JSON_UnknownModeFallsBack(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"text":"hello","mode":"interview"}`))
	r.Header.Set("Content-Type", "application/json")

	req, err := Normalize(r, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Mode != models.ModeWork {
		t.Errorf("expected work fallback, got %s", req.Mode)
	}
}

func TestNormalize_MultipartText(t *testing.T) {
	r := multipartRequest(t, map[string]string{"text": "你好世界你好", "mode": "work"}, nil)

	req, err := Normalize(r, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Text != "你好世界你好" {
		t.Errorf("unexpected text %q", req.Text)
	}
	if req.HasAudio() {
		t.Error("expected no audio")
	}
}

func TestNormalize_MultipartAudio(t *testing.T) {
	r := multipartRequest(t, map[string]string{"mode": "relationship", "scenarioPrompt": "TA一直冷战"}, []byte("RIFFdata"))

	req, err := Normalize(r, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.HasAudio() || string(req.Audio) != "RIFFdata" {
		t.Errorf("expected audio payload, got %q", req.Audio)
	}
	if req.AudioFilename != "recording.webm" {
		t.Errorf("expected filename recording.webm, got %s", req.AudioFilename)
	}
	if req.ScenarioPrompt != "TA一直冷战" {
		t.Errorf("unexpected scenario prompt %q", req.ScenarioPrompt)
	}
}

func TestNormalize_MultipartEmptyAudioIgnored(t *testing.T) {
	r := multipartRequest(t, map[string]string{"text": "备用文字内容"}, []byte{})

	req, err := Normalize(r, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.HasAudio() {
		t.Error("expected empty audio to be treated as absent")
	}
	if req.Text != "备用文字内容" {
		t.Errorf("expected text fallback, got %q", req.Text)
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		build  func() *http.Request
		limits Limits
		code   string
		status int
	}{
		{
			name: "unsupported content type",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("text=hi"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			code:   CodeUnsupportedFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "missing content type",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("hi"))
			},
			code:   CodeUnsupportedFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "invalid json",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"text":`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			code:   CodeInvalidBody,
			status: http.StatusBadRequest,
		},
		{
			name: "audio too large",
			build: func() *http.Request {
				return multipartRequest(t, nil, bytes.Repeat([]byte{1}, 64))
			},
			limits: Limits{MaxAudioBytes: 16},
			code:   CodeAudioTooLarge,
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.build(), tt.limits)

			var aerr *Error
			if !errors.As(err, &aerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if aerr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, aerr.Code)
			}
			if aerr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, aerr.Status)
			}
		})
	}
}

func TestNormalize_UnsupportedMessage(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("x"))
	r.Header.Set("Content-Type", "text/plain")

	_, err := Normalize(r, DefaultLimits())
	if aerr := AsError(err); aerr.Message != "不支持的请求格式: text/plain" {
		t.Errorf("unexpected message %q", aerr.Message)
	}
}
