// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string // LINEAR16, MULAW, FLAC, etc.
	CredentialsFile string // Defaults to GOOGLE_APPLICATION_CREDENTIALS
	Endpoint        string
	ChunkSize       int
	Realtime        bool // Pace audio at its natural rate (file sources)
}

// DefaultConfig returns the default configuration for dictation audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		ChunkSize:      3200,
	}
}

var ErrAlreadyRunning = errors.New("recognizer already running")

// Recognizer implements stt.Recognizer over single-utterance streaming
// recognition. Each run streams audio from the shared source until the
// service reports the end of the utterance.
type Recognizer struct {
	client *speech.Client
	cfg    Config
	source io.Reader
	logger zerolog.Logger

	mu        sync.Mutex
	cur       *run
	exhausted bool
}

type run struct {
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// New creates a Google recognizer reading audio from source.
func New(ctx context.Context, cfg Config, source io.Reader) (*Recognizer, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Recognizer{
		client: c,
		cfg:    cfg,
		source: source,
		logger: logging.WithComponent("stt-google"),
	}, nil
}

// Available reports whether there is a client and audio left to stream.
func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil && r.source != nil && !r.exhausted
}

// Start opens a streaming session and sends the initial config.
func (r *Recognizer) Start(ctx context.Context, sc stt.Config, sink stt.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur != nil {
		return ErrAlreadyRunning
	}
	if r.exhausted {
		return &stt.Error{Code: stt.CodeAudioCapture, Err: io.EOF}
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(runCtx)
	if err != nil {
		cancel()
		return mapError(err)
	}

	lang := sc.LanguageCode
	if lang == "" {
		lang = r.cfg.LanguageCode
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(r.cfg.AudioEncoding),
					SampleRateHertz:            r.cfg.SampleRateHz,
					LanguageCode:               lang,
					EnableAutomaticPunctuation: true,
				},
				SingleUtterance: !sc.Continuous,
				InterimResults:  sc.InterimResults && r.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return mapError(err)
	}

	cur := &run{cancel: cancel, stop: make(chan struct{})}
	r.cur = cur

	go r.sendAudio(runCtx, stream, cur)
	go r.receive(runCtx, stream, cur, sink)
	return nil
}

// Stop half-closes the audio stream; the service finalizes what it heard.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur != nil {
		cur.requestStop()
	}
	return nil
}

// Abort cancels the streaming call.
func (r *Recognizer) Abort() error {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur != nil {
		cur.cancel()
	}
	return nil
}

// Close releases the client.
func (r *Recognizer) Close() error {
	_ = r.Abort()
	return r.client.Close()
}

func (r *Recognizer) sendAudio(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, cur *run) {
	defer func() {
		if err := stream.CloseSend(); err != nil {
			r.logger.Debug().Err(err).Msg("CloseSend failed")
		}
	}()

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cur.stop:
			return
		default:
		}

		n, err := r.source.Read(buf)
		if n > 0 {
			sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			})
			if sendErr != nil {
				return
			}
			if r.cfg.Realtime {
				r.pace(ctx, n)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.exhausted = true
				r.mu.Unlock()
				r.logger.Info().Msg("Audio source exhausted")
			} else {
				r.logger.Warn().Err(err).Msg("Audio source read failed")
			}
			return
		}
	}
}

func (r *Recognizer) pace(ctx context.Context, n int) {
	bytesPerSecond := int(r.cfg.SampleRateHz) * 2
	if bytesPerSecond <= 0 {
		return
	}
	d := time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// receive reads responses and invokes the sink until the stream ends.
func (r *Recognizer) receive(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, cur *run, sink stt.Sink) {
	defer func() {
		cur.cancel()
		r.mu.Lock()
		if r.cur == cur {
			r.cur = nil
		}
		r.mu.Unlock()
		sink.OnEnd()
	}()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			sink.OnError(mapError(err))
			return
		}

		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			cur.requestStop()
		}
		if ev, ok := toResultEvent(resp); ok {
			sink.OnResult(ev)
		}
	}
}

func toResultEvent(resp *speechpb.StreamingRecognizeResponse) (stt.ResultEvent, bool) {
	var results []stt.Result
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		results = append(results, stt.Result{
			Transcript: alt.Transcript,
			IsFinal:    res.IsFinal,
			Confidence: float64(alt.Confidence),
		})
	}
	if len(results) == 0 {
		return stt.ResultEvent{}, false
	}
	return stt.ResultEvent{Results: results}, true
}

// mapError converts a gRPC status into a recognizer error code.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var code stt.ErrorCode
	switch status.Code(err) {
	case codes.Canceled:
		code = stt.CodeAborted
	case codes.Unavailable, codes.DeadlineExceeded:
		code = stt.CodeNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		code = stt.CodeNotAllowed
	case codes.InvalidArgument, codes.OutOfRange:
		code = stt.CodeAudioCapture
	default:
		code = stt.CodeServiceUnavailable
	}
	return &stt.Error{Code: code, Err: err}
}

// parseAudioEncoding converts string encoding to protobuf enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
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
