package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"radpad-intake-service/internal/config"
	"radpad-intake-service/internal/dictation"
	"radpad-intake-service/internal/service/capture"
	"radpad-intake-service/internal/service/stt"
	"radpad-intake-service/internal/service/stt/google"
	"radpad-intake-service/internal/service/stt/mock"
)

type captureOptions struct {
	recognizer string
	audio      string
	segments   int
	duration   time.Duration
	validate   bool
	validation validateOptions
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var opts captureOptions

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture dictation from a recognizer into a buffer",
		Long: `Capture dictation continuously, showing interim text as it is recognized.
The mock recognizer plays scripted radiology phrases. The google recognizer
streams a 16-bit mono PCM WAV file given with --audio. Capture ends on Ctrl-C,
after --segments final segments, after --duration, or when the audio runs out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.recognizer == "" {
				opts.recognizer = cfg.Capture.Recognizer
			}
			return runCapture(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.recognizer, "recognizer", "r", "", "Recognizer to use: mock or google (default from config)")
	cmd.Flags().StringVarP(&opts.audio, "audio", "a", "", "WAV file streamed to the google recognizer")
	cmd.Flags().IntVarP(&opts.segments, "segments", "n", 0, "Stop after this many final segments (mock default: one pass of the script)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Submit the captured dictation for validation")
	addValidationFlags(cmd, &opts.validation)
	return cmd
}

func runCapture(ctx context.Context, out io.Writer, cfg *config.Config, opts captureOptions) error {
	rec, closeRec, err := buildRecognizer(ctx, cfg, &opts)
	if err != nil {
		return err
	}
	defer closeRec()

	buf := dictation.NewBuffer()
	segments := make(chan struct{}, 16)
	failures := make(chan error, 1)

	var outMu sync.Mutex
	printf := func(format string, a ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	listener := &capture.BufferListener{
		Buffer: buf,
		OnInterim: func(text string) {
			if text != "" {
				printf("  ... %s\n", text)
			}
		},
		OnSegment: func(text string, snap dictation.Snapshot) {
			printf("+ %s  [%d characters]\n", text, snap.CharacterCount)
			select {
			case segments <- struct{}{}:
			default:
			}
		},
		OnFailure: func(err error) {
			select {
			case failures <- err:
			default:
			}
		},
	}

	pub := newPublisher(cfg)
	defer pub.Close()

	interim := cfg.Capture.InterimResults
	c := capture.New(rec, listener, capture.Options{
		LanguageCode:   cfg.Capture.LanguageCode,
		InterimResults: &interim,
		RestartDelay:   cfg.Capture.RestartDelay,
		Publisher:      pub,
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, opts.duration)
		defer cancel()
	}

	// the session outlives runCtx; Stop ends it
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	printf("Listening with the %s recognizer (session %s). Press Ctrl-C to finish.\n", opts.recognizer, c.SessionID())

	count := 0
wait:
	for {
		select {
		case <-runCtx.Done():
			break wait
		case <-segments:
			count++
			if opts.segments > 0 && count >= opts.segments {
				break wait
			}
		case err := <-failures:
			c.Stop()
			if stt.CodeOf(err) == stt.CodeAudioCapture && opts.audio != "" {
				printf("Audio file finished.\n")
				break wait
			}
			return fmt.Errorf("capture ended: %w", err)
		}
	}
	c.Stop()

	snap := buf.Snapshot()
	printf("\nDictation (%d characters):\n%s\n\n", snap.CharacterCount, snap.Text)

	if !opts.validate {
		return nil
	}
	s, err := openSession(ctx, cfg, c.SessionID())
	if err != nil {
		return err
	}
	defer s.Close()
	return runValidation(ctx, out, s.workflow, buf, opts.validation)
}

func buildRecognizer(ctx context.Context, cfg *config.Config, opts *captureOptions) (stt.Recognizer, func(), error) {
	switch opts.recognizer {
	case "mock":
		if opts.segments == 0 && opts.duration == 0 {
			opts.segments = len(mock.DefaultUtterances)
		}
		return mock.New(), func() {}, nil

	case "google":
		if opts.audio == "" {
			return nil, nil, fmt.Errorf("--audio is required for the google recognizer")
		}
		f, err := os.Open(opts.audio)
		if err != nil {
			return nil, nil, fmt.Errorf("open audio: %w", err)
		}
		format, err := readWAVHeader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}

		gcfg := google.DefaultConfig()
		gcfg.LanguageCode = cfg.Capture.LanguageCode
		gcfg.SampleRateHz = int32(format.SampleRate)
		gcfg.InterimResults = cfg.Capture.InterimResults
		gcfg.AudioEncoding = cfg.Capture.AudioEncoding
		gcfg.Realtime = true

		rec, err := google.New(ctx, gcfg, f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return rec, func() {
			_ = rec.Close()
			_ = f.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown recognizer %q (want mock or google)", opts.recognizer)
	}
}
