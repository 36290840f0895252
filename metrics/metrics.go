// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Vote ledger
	MetricVotesSubmitted = "qvote_votes_submitted_total"
	MetricVotesRejected  = "qvote_votes_rejected_total"
	MetricVotesReset     = "qvote_votes_reset_total"
	// Verification gate
	MetricOTPSent         = "qvote_otp_sent_total"
	MetricOTPVerified     = "qvote_otp_verified_total"
	MetricOTPVerifyFailed = "qvote_otp_verify_failed_total"
	// Phase controller
	MetricPhaseTransitions = "qvote_phase_transitions_total"
	// Live sync bridge
	MetricLiveSubscribers = "qvote_live_subscribers"
)

// Service registers and owns all prometheus collectors. A nil *Service is
// valid and records nothing, so core packages never need to care whether
// metrics are wired.
type Service struct {
	votesSubmitted   prometheus.Counter
	votesRejected    *prometheus.CounterVec
	votesReset       prometheus.Counter
	otpSent          *prometheus.CounterVec
	otpVerified      prometheus.Counter
	otpVerifyFailed  prometheus.Counter
	phaseTransitions *prometheus.CounterVec
	liveSubscribers  prometheus.Gauge
}

func NewService(reg prometheus.Registerer) *Service {
	s := &Service{
		votesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricVotesSubmitted,
			Help: "Accepted vote submissions",
		}),
		votesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVotesRejected,
			Help: "Rejected vote submissions by error code",
		}, []string{"code"}),
		votesReset: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricVotesReset,
			Help: "Voter-initiated vote resets",
		}),
		otpSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricOTPSent,
			Help: "Delivered verification codes by method",
		}, []string{"method"}),
		otpVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOTPVerified,
			Help: "Successful code verifications",
		}),
		otpVerifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricOTPVerifyFailed,
			Help: "Failed code verification attempts",
		}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPhaseTransitions,
			Help: "Phase transitions by target phase",
		}, []string{"phase"}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLiveSubscribers,
			Help: "Currently connected live viewer subscriptions",
		}),
	}
	reg.MustRegister(
		s.votesSubmitted,
		s.votesRejected,
		s.votesReset,
		s.otpSent,
		s.otpVerified,
		s.otpVerifyFailed,
		s.phaseTransitions,
		s.liveSubscribers,
	)
	return s
}

func (s *Service) IncVotesSubmitted() {
	if s == nil {
		return
	}
	s.votesSubmitted.Inc()
}

func (s *Service) IncVotesRejected(code string) {
	if s == nil {
		return
	}
	s.votesRejected.WithLabelValues(code).Inc()
}

func (s *Service) IncVotesReset() {
	if s == nil {
		return
	}
	s.votesReset.Inc()
}

func (s *Service) IncOTPSent(method string) {
	if s == nil {
		return
	}
	s.otpSent.WithLabelValues(method).Inc()
}

func (s *Service) IncOTPVerified() {
	if s == nil {
		return
	}
	s.otpVerified.Inc()
}

func (s *Service) IncOTPVerifyFailed() {
	if s == nil {
		return
	}
	s.otpVerifyFailed.Inc()
}

func (s *Service) IncPhaseTransition(phase string) {
	if s == nil {
		return
	}
	s.phaseTransitions.WithLabelValues(phase).Inc()
}

func (s *Service) AddLiveSubscribers(delta float64) {
	if s == nil {
		return
	}
	s.liveSubscribers.Add(delta)
}
