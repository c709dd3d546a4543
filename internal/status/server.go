package status

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"rsc.io/qr"
)

var pageTmpl = template.Must(template.New("status").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><meta http-equiv="refresh" content="5"><title>nimebot</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:3em">
{{if .Connected}}<h2>✅ WhatsApp connected</h2>
{{else if .HasQR}}<h2>Scan with WhatsApp → Linked devices</h2><img src="/qr.png" width="320" height="320" alt="QR code">
{{else}}<h2>⏳ Waiting for a QR code...</h2>
{{end}}</body>
</html>
`))

type Server struct {
	router *chi.Mux
	state  *LoginState
	log    zerolog.Logger
}

func NewServer(state *LoginState, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{router: r, state: state, log: log.With().Str("component", "status").Logger()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/qr.png", s.handleQR)
	s.router.Get("/healthz", s.handleHealth)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, s.state.Snapshot()); err != nil {
		s.log.Error().Err(err).Msg("render status page")
	}
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	if snap.QR == "" {
		http.Error(w, "no pending QR code", http.StatusNotFound)
		return
	}
	code, err := qr.Encode(snap.QR, qr.L)
	if err != nil {
		s.log.Error().Err(err).Msg("encode QR")
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(code.PNG())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	snap := s.state.Snapshot()
	status := "ok"
	if !snap.Connected {
		status = "waiting_for_login"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     status,
		"connected":  snap.Connected,
		"has_qr":     snap.HasQR,
		"updated_at": snap.UpdatedAt,
	})
}
