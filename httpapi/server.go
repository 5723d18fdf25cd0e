package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	tenauth "github.com/arlox-io/tenauth"
	"github.com/arlox-io/tenauth/middleware"
)

// Server wires the engine, the resource directory, and logging into an
// http.Handler.
type Server struct {
	engine    *tenauth.Engine
	directory Directory
	logger    *zap.Logger
}

func NewServer(engine *tenauth.Engine, directory Directory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    engine,
		directory: directory,
		logger:    logger,
	}
}

// Router builds the route tree. The token endpoint and health probe are
// public; everything under /api sits behind the bearer guard.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Post("/oauth2/token", s.handleToken)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(s.engine))

		r.Get("/api/subscriptions", s.handleSubscriptions)
		r.Get("/api/dropdowns/{kind}", s.handleDropdown)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}
