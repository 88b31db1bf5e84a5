// Command practiceclient runs a practice session from the terminal: it
// records from a WAV file (or scripted speech), submits the transcript to
// the coaching API and renders the report. The last report is kept in a
// local SQLite file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"eq-coach-service/internal/models"
	"eq-coach-service/internal/observability/logging"
	"eq-coach-service/internal/report"
	"eq-coach-service/internal/service/practice"
	"eq-coach-service/internal/service/session"
	"eq-coach-service/internal/service/stt"
	"eq-coach-service/internal/service/stt/google"
	sttmock "eq-coach-service/internal/service/stt/mock"
	"eq-coach-service/internal/store"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "coaching API base URL")
	audioFile := flag.String("audio", "", "WAV file to record from (16-bit PCM); empty uses scripted speech")
	recognizer := flag.String("recognizer", "mock", "live recognizer: mock or google")
	language := flag.String("language", "zh-CN", "recognition language for google")
	mode := flag.String("mode", "work", "practice mode: work or relationship")
	label := flag.String("label", "", "scenario label")
	prompt := flag.String("prompt", "", "scenario prompt")
	text := flag.String("text", "", "submit this text instead of recording")
	duration := flag.Duration("duration", 8*time.Second, "how long to record before submitting")
	timeout := flag.Duration("timeout", 60*time.Second, "analysis request timeout")
	dbPath := flag.String("db", store.DefaultPath(), "SQLite file for the last report")
	last := flag.Bool("last", false, "show the last saved report and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	lc := logging.DefaultConfig()
	lc.Format = "console"
	lc.Output = os.Stderr
	lc.Level = "warn"
	if *verbose {
		lc.Level = "debug"
	}
	logging.Init(lc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.OpenSQLite(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open result store")
	}
	defer st.Close()

	if *last {
		res, err := st.Load(ctx)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "还没有保存的报告")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load last report")
		}
		if at, err := st.UpdatedAt(ctx); err == nil {
			fmt.Fprintln(os.Stderr, report.DimStyle.Render("保存于 "+at.Local().Format("2006-01-02 15:04")))
		}
		render(res)
		return
	}

	submitter := practice.NewHTTPSubmitter(*server, *timeout)
	req := models.AnalyzeRequest{
		Mode:           models.ParseMode(*mode),
		ScenarioLabel:  strings.TrimSpace(*label),
		ScenarioPrompt: strings.TrimSpace(*prompt),
	}

	if *text != "" {
		req.Text = *text
		res, err := submitter.Submit(ctx, req)
		if err != nil {
			exitWith(err)
		}
		if err := st.Save(ctx, res); err != nil {
			log.Warn().Err(err).Msg("Failed to save report")
		}
		render(res)
		return
	}

	var mic practice.Microphone
	var done <-chan struct{}
	sampleRate := 16000
	if *audioFile != "" {
		format, err := inspectWAV(*audioFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *audioFile).Msg("Unusable audio file")
		}
		log.Info().
			Int("channels", format.Channels).
			Int("sampleRate", format.SampleRate).
			Int("bitsPerSample", format.BitsPerSample).
			Msg("WAV file")
		sampleRate = format.SampleRate
		wm := newWAVMicrophone(*audioFile)
		mic, done = wm, wm.Done()
	} else {
		mic = silentMicrophone{frameBytes: 3200}
	}

	recognizers, err := recognizerFactory(*recognizer, *language, sampleRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid recognizer")
	}

	cfg := practice.DefaultConfig()
	cfg.Mode = req.Mode
	cfg.ScenarioLabel = req.ScenarioLabel
	cfg.ScenarioPrompt = req.ScenarioPrompt
	cfg.ThinkingDuration = 0
	cfg.MaxDuration = 0

	sessionID := session.New().Next(session.NewClientId())
	ctrl := practice.NewController(sessionID, cfg, mic, recognizers, submitter,
		practice.WithStore(st),
		practice.WithObserver(&consoleObserver{}),
	)
	defer ctrl.Close()

	if err := ctrl.StartRecording(ctx); err != nil {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "🎙️  正在录音，按 Ctrl+C 取消")

	timer := time.NewTimer(*duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		ctrl.Cancel()
		fmt.Fprintln(os.Stderr, "\n已取消")
		os.Exit(130)
	case <-done:
	case <-timer.C:
	}

	fmt.Fprintln(os.Stderr, "\n分析中…")
	res, err := ctrl.Finish(ctx)
	if err != nil {
		// The observer already printed the notice.
		os.Exit(1)
	}
	render(res)
}

func recognizerFactory(name, language string, sampleRate int) (practice.RecognizerFactory, error) {
	switch name {
	case "mock":
		return func(ctx context.Context) (stt.Recognizer, error) {
			return sttmock.New(), nil
		}, nil
	case "google":
		cfg := google.Config{
			LanguageCode:   language,
			SampleRateHz:   sampleRate,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		}
		return func(ctx context.Context) (stt.Recognizer, error) {
			a, err := google.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return sessionRecognizer{a}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown recognizer %q", name)
	}
}

// sessionRecognizer shuts the speech client down with the session.
type sessionRecognizer struct {
	*google.Adapter
}

func (r sessionRecognizer) Close() error {
	return r.Shutdown()
}

func render(res *models.AnalysisResult) {
	if err := report.Render(os.Stdout, report.Build(res)); err != nil {
		log.Error().Err(err).Msg("Failed to render report")
	}
}

func exitWith(err error) {
	var apiErr *practice.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintln(os.Stderr, report.BadNoteStyle.Render(apiErr.DisplayMessage()))
	} else {
		fmt.Fprintln(os.Stderr, report.BadNoteStyle.Render(err.Error()))
	}
	os.Exit(1)
}

// consoleObserver prints the live transcript and notices to stderr.
type consoleObserver struct{}

func (consoleObserver) OnState(from, to session.State) {
	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("State")
}

func (consoleObserver) OnTranscript(confirmed, preview string) {
	line := confirmed + report.DimStyle.Render(preview)
	fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
}

func (consoleObserver) OnNotice(n practice.Notice) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, report.BadNoteStyle.Render(n.Message))
}

func (consoleObserver) OnResult(r *models.AnalysisResult) {
	log.Debug().Int("segments", len(r.Segments)).Msg("Result received")
}
