package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/booking"
	"github.com/example/workshop-booking/internal/logger"
	"github.com/example/workshop-booking/internal/workshop"
)

//go:embed templates/*.html static/*
var fs embed.FS

// Workshop is what the pages need from the booking backend.
type Workshop interface {
	Today() time.Time
	Hours(ctx context.Context) workshop.Hours
	JobTypes(ctx context.Context) ([]workshop.JobType, error)
	Blackout(ctx context.Context, inDays int) (availability.BlackoutSet, error)
	CreateBooking(ctx context.Context, d booking.Draft) (booking.Confirmation, error)
}

type Server struct {
	Workshop Workshop
	Cookies  *booking.CookieCodec
	Rules    booking.Rules

	// BaseURL, when set, makes redirects absolute.
	BaseURL string
}

func (s *Server) url(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.url("/booking"), http.StatusFound)
	})
	mux.HandleFunc("GET /service", s.handleService)
	mux.HandleFunc("GET /booking", s.handleBookingStart)
	mux.HandleFunc("POST /booking", s.handleBookingStep)
	mux.HandleFunc("GET /booking/success", s.handleBookingSuccess)

	return withRequestLog(mux)
}

type serviceData struct {
	Title    string
	Flash    string
	JobTypes []workshop.JobType
	Loading  bool
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	data := serviceData{Title: "Our Services"}
	jts, err := s.Workshop.JobTypes(r.Context())
	if err != nil {
		logger.Warn("job types unavailable", "request_id", requestID(r.Context()), "err", err)
		data.Loading = true
	}
	data.JobTypes = jts
	s.render(w, "templates/service.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		logger.Error("render failed", "template", name, "err", err)
	}
}

func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
