// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/handlers"
	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/phase"
	"github.com/Ranidpz/qrinfo-sub000/verify"
)

// Deps are the wired application components the routes dispatch to.
type Deps struct {
	DB       *sql.DB
	Cfg      cliparse.Config
	Store    *candidates.Store
	Ledger   *ledger.Ledger
	Ctrl     *phase.Controller
	Gate     *verify.Gate
	Hub      *livesync.Hub
	Registry *prometheus.Registry
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	codeHandler := handlers.NewCodeHandler(d.DB, d.Cfg, d.Ctrl, d.Ledger, d.Hub)
	candidateHandler := handlers.NewCandidateHandler(d.DB, d.Cfg, d.Store, d.Hub)
	voteHandler := handlers.NewVoteHandler(d.DB, d.Ledger)
	verificationHandler := handlers.NewVerificationHandler(d.DB, d.Gate)
	publicHandler := handlers.NewPublicHandler(d.DB, d.Store, d.Hub)
	visitorHandler := handlers.NewVisitorHandler(d.DB, d.Cfg)
	streamHandler := handlers.NewStreamHandler(d.DB, d.Hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics
	if d.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	// Code management (operator operations)
	mux.HandleFunc("POST /codes", middleware.WithLogging(codeHandler.CreateCode))
	mux.HandleFunc("PUT /codes/{id}/qvote", middleware.WithLogging(codeHandler.ConfigureQVote))
	mux.HandleFunc("POST /codes/{id}/qvote/phase", middleware.WithLogging(codeHandler.AdvancePhase))
	mux.HandleFunc("POST /codes/{id}/qvote/reset-votes", middleware.WithLogging(codeHandler.ResetVotes))

	// Candidate management (operator operations)
	mux.HandleFunc("POST /codes/{id}/candidates", middleware.WithLogging(candidateHandler.Create))
	mux.HandleFunc("GET /codes/{id}/candidates", middleware.WithLogging(candidateHandler.List))
	mux.HandleFunc("PUT /codes/{id}/candidates/{cid}", middleware.WithLogging(candidateHandler.Update))
	mux.HandleFunc("DELETE /codes/{id}/candidates/{cid}", middleware.WithLogging(candidateHandler.Delete))
	mux.HandleFunc("POST /codes/{id}/candidates/batch-status", middleware.WithLogging(candidateHandler.BatchStatus))
	mux.HandleFunc("GET /codes/{id}/standings", middleware.WithLogging(candidateHandler.Standings))

	// Visitor voting surface (public)
	mux.HandleFunc("GET /q/{shortId}", middleware.WithLogging(publicHandler.View))
	mux.HandleFunc("GET /q/{shortId}/candidates", middleware.WithLogging(publicHandler.Candidates))
	mux.HandleFunc("POST /q/{shortId}/register", middleware.WithLogging(publicHandler.Register))
	mux.HandleFunc("GET /q/{shortId}/results", middleware.WithLogging(publicHandler.Results))
	mux.HandleFunc("POST /q/{shortId}/votes", middleware.WithLogging(voteHandler.Submit))
	mux.HandleFunc("GET /q/{shortId}/votes", middleware.WithLogging(voteHandler.MyVote))
	mux.HandleFunc("POST /q/{shortId}/votes/reset", middleware.WithLogging(voteHandler.Reset))
	mux.HandleFunc("POST /q/{shortId}/verification/send", middleware.WithLogging(verificationHandler.SendCode))
	mux.HandleFunc("POST /q/{shortId}/verification/verify", middleware.WithLogging(verificationHandler.VerifyCode))
	mux.HandleFunc("GET /q/{shortId}/stream", middleware.WithLogging(streamHandler.Stream))

	// Visitor registry
	mux.HandleFunc("POST /visitors/register", middleware.WithLogging(visitorHandler.Register))
	mux.HandleFunc("GET /visitors/me", middleware.WithLogging(visitorHandler.Me))

	// Root endpoint. The {$} anchor keeps this from swallowing every GET,
	// which would shadow the mux's automatic 405 responses.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("qrinfo qvote API v1"))
	})

	return mux
}
