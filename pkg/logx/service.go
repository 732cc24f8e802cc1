package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func stdout() io.Writer { return os.Stdout }

// Sender delivers a plain-text line to a chat channel. The Discord adapter
// satisfies this; the indirection keeps logx free of the platform client.
type Sender interface {
	Say(ctx context.Context, channelID, text string) error
}

// Service owns the root zerolog logger and its sinks. Apply() swaps
// levels and outputs at runtime and is safe to call concurrently.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // stores zerolog.Logger

	file *os.File

	// discord sink
	sender    Sender
	channelID string
	minLevel  zerolog.Level
	limiter   *rate.Limiter
	queue     chan string
	sinkOnce  sync.Once
	sinkStop  context.CancelFunc
	sinkWG    sync.WaitGroup
}

// New creates the logging service, applies the initial config immediately,
// and returns both the Service and a root Logger.
func New(cfg Config) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{queue: make(chan string, 256)}
	s.root.Store(zerolog.New(zerolog.ConsoleWriter{Out: stdout(), TimeFormat: timeFormat}).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger())
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	v := s.root.Load()
	zl, ok := v.(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetDiscordSink attaches the chat sender used by the Discord log sink.
// Called once the platform client is connected; the sink stays inert until
// both a sender and an enabled Discord config block are present.
func (s *Service) SetDiscordSink(sender Sender) {
	s.mu.Lock()
	cfg := s.cfg
	s.sender = sender
	s.mu.Unlock()
	s.Apply(cfg)
}

// Apply swaps logger outputs/levels at runtime.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.channelID = strings.TrimSpace(cfg.Discord.ChannelID)
	s.minLevel = parseLevel(cfg.Discord.MinLevel, zerolog.WarnLevel)
	rps := cfg.Discord.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: stdout(), TimeFormat: timeFormat})
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./amd.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Discord.Enabled && s.sender != nil && s.channelID != "" {
		s.sinkOnce.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.sinkStop = cancel
			s.sinkWG.Add(1)
			go func() {
				defer s.sinkWG.Done()
				s.sinkWorker(ctx)
			}()
		})
		writers = append(writers, &discordWriter{svc: s})
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	s.root.Store(zl)
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	stop := s.sinkStop
	s.sinkStop = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		s.sinkWG.Wait()
	}
	if f != nil {
		_ = f.Close()
	}
	return nil
}

// discordWriter forwards events at or above the configured min level to the
// sink worker. Enqueue is non-blocking: losing a log line to backpressure is
// preferable to stalling the caller on a chat API.
type discordWriter struct {
	svc *Service
}

func (w *discordWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w *discordWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.svc.mu.Lock()
	min := w.svc.minLevel
	w.svc.mu.Unlock()
	if level < min {
		return len(p), nil
	}

	line := formatSinkLine(level, p)
	select {
	case w.svc.queue <- line:
	default:
	}
	return len(p), nil
}

func (s *Service) sinkWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.queue:
			s.mu.Lock()
			sender, channel, limiter := s.sender, s.channelID, s.limiter
			s.mu.Unlock()
			if sender == nil || channel == "" {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := sender.Say(ctx, channel, line); err != nil {
				// Deliberately not logged through the service: that could
				// feed the sink its own failures.
				fmt.Fprintf(os.Stderr, "logx: discord sink send failed: %v\n", err)
			}
		}
	}
}

// formatSinkLine reduces a zerolog JSON event to a short readable line.
func formatSinkLine(level zerolog.Level, p []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		return strings.TrimSpace(string(p))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "`%s`", strings.ToUpper(level.String()))
	if msg, ok := ev[zerolog.MessageFieldName].(string); ok && msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	for _, k := range []string{"comp", "task", zerolog.ErrorFieldName} {
		if v, ok := ev[k]; ok {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}
