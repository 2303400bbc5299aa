// Package api provides the REST API server for accordionctl
package api

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/history"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/logging"
	"github.com/james-see/accordionctl/pkg/mirror"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/storage"
	"github.com/james-see/accordionctl/pkg/transport"
	"github.com/james-see/accordionctl/pkg/workspace"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title accordionctl API
// @version 1.0
// @description API for mirroring and editing the keyboards of a MIDI accordion controller
// @host localhost:8080
// @BasePath /api/v1

// Device is the connection state exposed by the API. *transport.Transport implements it.
type Device interface {
	Ready() bool
	Pending() int
	Reannounce() error
}

var _ Device = (*transport.Transport)(nil)

// PortLister returns the available MIDI input and output port names
type PortLister func() (in, out []string)

func listPorts() (in, out []string) {
	return transport.ListInputPorts(), transport.ListOutputPorts()
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for requests and failures
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = logging.OrNop(l)
	}
}

// WithPortLister replaces the MIDI driver port enumeration
func WithPortLister(fn PortLister) Option {
	return func(s *Server) {
		if fn != nil {
			s.ports = fn
		}
	}
}

// Server serves the mirror and the editing workspace over HTTP
type Server struct {
	log       *zap.Logger
	device    Device
	mirror    *mirror.Mirror
	workspace *workspace.Workspace
	ports     PortLister
	dir       string
}

// NewServer creates a Server
func NewServer(device Device, m *mirror.Mirror, w *workspace.Workspace, opts ...Option) *Server {
	s := &Server{
		log:       zap.NewNop(),
		device:    device,
		mirror:    m,
		workspace: w,
		ports:     listPorts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/ports", s.listPorts)
		v1.GET("/status", s.status)
		v1.POST("/device/reannounce", s.reannounce)
		v1.GET("/events", s.events)

		kb := v1.Group("/keyboards")
		kb.POST("/fetch", s.fetchStored)
		kb.GET("/stored", s.listStored)
		kb.POST("/stored", s.storeKeyboard)
		kb.DELETE("/stored/:layout/:name", s.deleteStored)
		kb.POST("/stored/:layout/:name/rename", s.renameStored)
		kb.GET("/current/:side", s.getCurrent)
		kb.PUT("/current", s.pushCurrent)
		kb.GET("/known", s.listKnown)

		ss := v1.Group("/sessions")
		ss.GET("", s.listSessions)
		ss.POST("", s.openSession)
		ss.GET("/:id", s.getSession)
		ss.DELETE("/:id", s.closeSession)
		ss.PUT("/:id/keys/:index", s.setKey)
		ss.POST("/:id/rename", s.renameSession)
		ss.POST("/:id/undo", s.undo)
		ss.POST("/:id/redo", s.redo)
		ss.POST("/:id/save", s.saveSession)
		ss.POST("/:id/push", s.pushSession)
		ss.POST("/:id/store", s.storeSession)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// Run serves on addr until the listener fails
func (s *Server) Run(addr string) error {
	s.log.Info("api listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "accordionctl",
	})
}

// listPorts godoc
// @Summary List MIDI ports
// @Description Returns the MIDI input and output ports of the host
// @Tags device
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /ports [get]
func (s *Server) listPorts(c *gin.Context) {
	in, out := s.ports()
	if in == nil {
		in = []string{}
	}
	if out == nil {
		out = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"inputs": in, "outputs": out})
}

// status godoc
// @Summary Connection status
// @Description Reports whether the device is connected and how many commands await an acknowledgement
// @Tags device
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /status [get]
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ready":   s.device.Ready(),
		"pending": s.device.Pending(),
	})
}

// reannounce godoc
// @Summary Re-announce pending commands
// @Description Asks the device again for permission to send, after a lost acknowledgement
// @Tags device
// @Success 204
// @Failure 503 {object} map[string]string
// @Router /device/reannounce [post]
func (s *Server) reannounce(c *gin.Context) {
	if err := s.device.Reannounce(); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// events godoc
// @Summary Change events
// @Description Streams mirror and session changes as server-sent events
// @Tags events
// @Produce text/event-stream
// @Router /events [get]
func (s *Server) events(c *gin.Context) {
	ch, cancel := s.subscribe(32)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-ch:
			c.SSEvent(string(e.Topic), gin.H{"topic": e.Topic, "id": e.ID})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// subscribe merges the mirror and workspace notifiers into one channel
func (s *Server) subscribe(size int) (<-chan notify.Event, func()) {
	ch := make(chan notify.Event, size)
	forward := func(e notify.Event) {
		select {
		case ch <- e:
		default:
		}
	}

	var cancels []func()
	seen := map[*notify.Notifier]bool{}
	for _, n := range []*notify.Notifier{s.mirror.Notifier(), s.workspace.Notifier()} {
		if seen[n] {
			continue
		}
		seen[n] = true
		cancels = append(cancels, n.Subscribe(forward))
	}
	return ch, func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// fail writes err with the status matching its cause
func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	var (
		validation *keyboard.ValidationError
		format     *storage.FormatError
		decode     *codec.DecodeError
	)
	switch {
	case errors.Is(err, workspace.ErrSessionNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ErrFilesDisabled):
		return http.StatusForbidden
	case errors.Is(err, transport.ErrNotConnected), errors.Is(err, transport.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, history.ErrNothingToUndo), errors.Is(err, history.ErrNothingToRedo):
		return http.StatusConflict
	case errors.As(err, &validation), errors.As(err, &format), errors.As(err, &decode),
		errors.Is(err, keyboard.ErrIndexOutOfRange), errors.Is(err, keyboard.ErrUnknownLayout),
		errors.Is(err, codec.ErrIncomplete), errors.Is(err, codec.ErrInvalidName),
		errors.Is(err, storage.ErrUnknownFormat), errors.Is(err, workspace.ErrNoPath),
		errors.Is(err, ErrPathOutsideDir):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
