// Package google provides Google Cloud Speech-to-Text oracles: a streaming
// recognizer for live practice sessions and a batch transcriber for uploads.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"eq-coach-service/internal/service/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the settings used for browser recordings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "zh-CN",
		SampleRateHz:   48000,
		InterimResults: true,
		AudioEncoding:  "WEBM_OPUS",
	}
}

// parseAudioEncoding maps an encoding name onto the API enum.
// Names are case sensitive; unknown names fall back to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

func (c Config) recognitionConfig() *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(c.AudioEncoding),
		SampleRateHertz:            int32(c.SampleRateHz),
		LanguageCode:               c.LanguageCode,
		EnableAutomaticPunctuation: true,
	}
}

// Adapter implements stt.Recognizer and stt.Transcriber using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Start opens a streaming recognition session, sends the config and
// begins delivering results to cb.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         a.cfg.recognitionConfig(),
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session. Results still in flight are discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.cb = nil
	a.mu.Unlock()

	if stream != nil {
		return stream.CloseSend()
	}
	return nil
}

// listen receives responses until the stream ends. A clean EOF is a passive
// end of session; anything else is reported as an error.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if !a.current(stream) {
			return
		}
		if errors.Is(err, io.EOF) {
			cb.OnEnd()
			return
		}
		if err != nil {
			cb.OnError(err)
			return
		}

		if ev := toEvent(resp); !ev.Empty() {
			cb.OnResult(ev)
		}
	}
}

func (a *Adapter) current(stream speechpb.Speech_StreamingRecognizeClient) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream == stream
}

// toEvent converts one streaming response into an stt.Event.
// Final results become finalized chunks; the non-final tail becomes the interim.
func toEvent(resp *speechpb.StreamingRecognizeResponse) stt.Event {
	var ev stt.Event
	var interim strings.Builder
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		text := r.GetAlternatives()[0].GetTranscript()
		if r.GetIsFinal() {
			ev.Finals = append(ev.Finals, text)
		} else {
			interim.WriteString(text)
		}
	}
	ev.Interim = interim.String()
	return ev
}

// Transcribe runs synchronous recognition over a complete recording.
func (a *Adapter) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: a.cfg.recognitionConfig(),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}
	return joinResults(resp), nil
}

func joinResults(resp *speechpb.RecognizeResponse) string {
	var b strings.Builder
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		b.WriteString(r.GetAlternatives()[0].GetTranscript())
	}
	return strings.TrimSpace(b.String())
}

// Shutdown closes the underlying client connection.
func (a *Adapter) Shutdown() error {
	a.Close()
	return a.client.Close()
}
