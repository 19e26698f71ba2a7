// Package server serves streaming recognition over websocket connections.
//
// A client streams 16-bit little-endian mono PCM in binary messages and
// receives one JSON result per message: the utterance result when an
// endpoint was detected, the partial result otherwise. Text messages
// control the connection:
//
//	{"config": {"sample_rate": 8000, "max_alternatives": 0, "words": true, "grammar": ["yes", "no"]}}
//	{"eof": 1}
//
// A config message starts a new session with the given settings. The eof
// message returns the final result and closes the connection.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/asr/pkg/audio/resampler"
	"github.com/haivivi/asr/pkg/recognizer"
	"github.com/haivivi/asr/pkg/storage"
	"github.com/haivivi/asr/pkg/voiceprint"
)

// ErrBadMessage is returned for text messages that are neither a config
// nor an eof message.
var ErrBadMessage = errors.New("server: bad message")

// SessionHeader carries the session id in the upgrade response.
const SessionHeader = "X-Session-Id"

// DefaultReadLimit is the default size limit of one client message.
const DefaultReadLimit = 1 << 20

// Config is the recognition configuration of a connection.
type Config struct {
	SampleRate      int             `json:"sample_rate,omitempty"`
	MaxAlternatives int             `json:"max_alternatives,omitempty"`
	Words           bool            `json:"words,omitempty"`
	Grammar         json.RawMessage `json:"grammar,omitempty"`
}

type message struct {
	Config json.RawMessage `json:"config"`
	EOF    int             `json:"eof"`
}

// Server is an http.Handler that upgrades requests to recognition
// streams.
type Server struct {
	model     *recognizer.Model
	modelRate int
	defaults  Config
	spk       *voiceprint.SpeakerModel
	archive   storage.Store
	readLimit int64
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModelRate sets the sample rate sessions run at. Client audio at
// other rates is resampled. Defaults to 16000.
func WithModelRate(rate int) Option {
	return func(s *Server) { s.modelRate = rate }
}

// WithDefaults sets the configuration connections start with.
func WithDefaults(c Config) Option {
	return func(s *Server) { s.defaults = c }
}

// WithSpeakerModel enables speaker identification for every session.
func WithSpeakerModel(m *voiceprint.SpeakerModel) Option {
	return func(s *Server) { s.spk = m }
}

// WithArchive stores the results of every connection in st, as one JSON
// line per result under "<session id>.jsonl".
func WithArchive(st storage.Store) Option {
	return func(s *Server) { s.archive = st }
}

// WithReadLimit sets the size limit of one client message.
func WithReadLimit(n int64) Option {
	return func(s *Server) { s.readLimit = n }
}

// New creates a Server for model.
func New(model *recognizer.Model, opts ...Option) *Server {
	s := &Server{
		model:     model,
		modelRate: 16000,
		readLimit: DefaultReadLimit,
		logger:    slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaults.SampleRate == 0 {
		s.defaults.SampleRate = s.modelRate
	}
	return s
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	hs := &http.Server{Handler: mux}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(shutdown)
	}()

	s.logger.Info("server: listening", "addr", ln.Addr().String())
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	ws, err := s.upgrader.Upgrade(w, r, http.Header{SessionHeader: {id}})
	if err != nil {
		s.logger.Warn("server: upgrade", "error", err)
		return
	}
	ws.SetReadLimit(s.readLimit)

	c := &conn{
		srv:    s,
		ws:     ws,
		id:     id,
		cfg:    s.defaults,
		logger: s.logger.With("session", id),
	}
	c.logger.Info("server: connected", "remote", r.RemoteAddr)
	c.serve()
	c.close()
}

type conn struct {
	srv    *Server
	ws     *websocket.Conn
	id     string
	cfg    Config
	logger *slog.Logger

	sess    *recognizer.Session
	conv    *resampler.Converter
	results []string
}

func (c *conn) serve() {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("server: read", "error", err)
			}
			return
		}
		reply, done, err := c.handle(typ, data)
		if err != nil {
			c.logger.Warn("server: closing connection", "error", err)
			code := websocket.CloseInternalServerErr
			if errors.Is(err, ErrBadMessage) {
				code = websocket.CloseUnsupportedData
			}
			c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, err.Error()), time.Now().Add(time.Second))
			return
		}
		if reply != "" {
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				c.logger.Warn("server: write", "error", err)
				return
			}
		}
		if done {
			c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		}
	}
}

// handle processes one client message and returns the reply, if any, and
// whether the stream is finished.
func (c *conn) handle(typ int, data []byte) (string, bool, error) {
	if typ == websocket.BinaryMessage {
		return c.audio(data)
	}

	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	switch {
	case msg.Config != nil:
		cfg := c.srv.defaults
		if err := json.Unmarshal(msg.Config, &cfg); err != nil {
			return "", false, fmt.Errorf("%w: config: %v", ErrBadMessage, err)
		}
		if cfg.SampleRate <= 0 {
			return "", false, fmt.Errorf("%w: invalid sample rate %d", ErrBadMessage, cfg.SampleRate)
		}
		c.closeSession()
		c.cfg = cfg
		c.logger.Debug("server: configured", "sample_rate", cfg.SampleRate, "max_alternatives", cfg.MaxAlternatives, "words", cfg.Words)
		return "", false, nil
	case msg.EOF != 0:
		if err := c.open(); err != nil {
			return "", false, err
		}
		tail, err := c.conv.Flush()
		if err != nil {
			return "", false, err
		}
		if len(tail) > 0 {
			if _, err := c.sess.AcceptAudio(tail); err != nil {
				return "", false, err
			}
		}
		res, err := c.sess.FinalResult()
		if err != nil {
			return "", false, err
		}
		c.record(res)
		return res, true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrBadMessage, data)
}

func (c *conn) audio(data []byte) (string, bool, error) {
	if err := c.open(); err != nil {
		return "", false, err
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	samples, err := c.conv.Convert(samples)
	if err != nil {
		return "", false, err
	}
	endpoint, err := c.sess.AcceptAudio(samples)
	if err != nil {
		return "", false, err
	}
	if !endpoint {
		return c.sess.PartialResult(), false, nil
	}
	res, err := c.sess.Result()
	if err != nil {
		return "", false, err
	}
	c.record(res)
	return res, false, nil
}

// record keeps a result for the archive.
func (c *conn) record(res string) {
	if c.srv.archive != nil {
		c.results = append(c.results, res)
	}
}

// open starts a session for the current configuration if there is none.
func (c *conn) open() error {
	if c.sess != nil {
		return nil
	}
	conv, err := resampler.NewConverter(c.cfg.SampleRate, c.srv.modelRate)
	if err != nil {
		return err
	}
	opts := []recognizer.Option{
		recognizer.WithLogger(c.logger),
		recognizer.WithMaxAlternatives(c.cfg.MaxAlternatives),
		recognizer.WithWords(c.cfg.Words),
	}
	if len(c.cfg.Grammar) > 0 {
		opts = append(opts, recognizer.WithGrammar(string(c.cfg.Grammar)))
	}
	if c.srv.spk != nil {
		opts = append(opts, recognizer.WithSpeakerModel(c.srv.spk))
	}
	sess, err := recognizer.New(c.srv.model, float32(c.srv.modelRate), opts...)
	if err != nil {
		return err
	}
	c.sess, c.conv = sess, conv
	return nil
}

func (c *conn) closeSession() {
	if c.sess == nil {
		return
	}
	if err := c.sess.Close(); err != nil {
		c.logger.Warn("server: close session", "error", err)
	}
	c.sess, c.conv = nil, nil
}

func (c *conn) close() {
	c.closeSession()
	c.ws.Close()
	c.logger.Info("server: disconnected")

	if c.srv.archive == nil || len(c.results) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data := strings.Join(c.results, "\n") + "\n"
	if err := storage.Save(ctx, c.srv.archive, c.id+".jsonl", []byte(data)); err != nil {
		c.logger.Error("server: archive results", "error", err)
	}
}
