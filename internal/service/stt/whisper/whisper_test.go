package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"eq-coach-service/internal/service/stt"
)

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestTranscribe_PostsMultipartFile(t *testing.T) {
	var gotAudio, gotName, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected file field: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		gotAudio, gotName = string(data), hdr.Filename
		gotLang = r.FormValue("language")
		w.Write([]byte(`{"text": " 同事总是打断我说话。 "}`))
	}))
	defer srv.Close()

	tr, err := New(srv.URL, WithLanguage("zh"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), stt.Audio{Data: []byte("webm-bytes"), Filename: "a.webm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "同事总是打断我说话。" {
		t.Errorf("expected trimmed transcript, got %q", text)
	}
	if gotAudio != "webm-bytes" || gotName != "a.webm" {
		t.Errorf("unexpected upload: name=%s data=%s", gotName, gotAudio)
	}
	if gotLang != "zh" {
		t.Errorf("expected language 'zh', got %q", gotLang)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, _ := New(srv.URL)
	if _, err := tr.Transcribe(context.Background(), stt.Audio{Data: []byte("x")}); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestTranscribe_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr, _ := New(url)
	_, err := tr.Transcribe(context.Background(), stt.Audio{Data: []byte("x")})
	if !errors.Is(err, stt.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
