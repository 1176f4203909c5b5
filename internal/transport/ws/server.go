package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"particleswarm.ai/internal/analysis"
	"particleswarm.ai/internal/metrics"
	"particleswarm.ai/internal/persistence/input"
	"particleswarm.ai/internal/protocol"
	"particleswarm.ai/internal/sim/swarm"
	"particleswarm.ai/internal/sim/tuning"
)

type Server struct {
	runner  *analysis.Runner
	tune    tuning.Tuning
	metrics *metrics.Collector
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(runner *analysis.Runner, tune tuning.Tuning, logger *log.Logger) *Server {
	s := &Server{
		runner:  runner,
		tune:    tune,
		metrics: runner.Metrics,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(64 << 20)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 8)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.tune.Server.SubmitRatePerSec), s.tune.Server.SubmitBurst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, msg, limiter)
			b, err := json.Marshal(resp)
			if err != nil {
				s.log.Printf("ws: marshal response: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		cancel()
		<-done
	}
}

// handle turns one inbound message into a REPORT or ERROR message.
func (s *Server) handle(ctx context.Context, msg []byte, limiter *rate.Limiter) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeSubmit {
		return s.reject("", protocol.ErrProtoBadRequest, "expected SUBMIT")
	}
	if base.ProtocolVersion != protocol.Version {
		return s.reject("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if err := protocol.ValidateSubmit(msg); err != nil {
		return s.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	var sub protocol.SubmitMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return s.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	if !limiter.Allow() {
		return s.reject(sub.RequestID, protocol.ErrRateLimit, "too many submissions")
	}
	if limit := s.tune.Server.MaxLinesPerSubmit; limit > 0 && len(sub.Lines) > limit {
		return s.reject(sub.RequestID, protocol.ErrBadRequest, fmt.Sprintf("too many lines: %d > %d", len(sub.Lines), limit))
	}

	ps, err := input.ParseLines(sub.Lines)
	if err != nil {
		return s.rejectErr(sub.RequestID, err)
	}
	source := sub.Source
	if source == "" {
		source = "ws"
	}
	res, err := s.runner.Run(ctx, source, ps, swarm.Options{
		Workers:           s.tune.Workers,
		ReferenceCompat:   sub.ReferenceCompat || s.tune.ReferenceCompat,
		IncludeCollisions: sub.IncludeCollisions,
	})
	if err != nil {
		return s.rejectErr(sub.RequestID, err)
	}
	rep := protocol.NewReport(sub.RequestID, res.RunID, res.Digest, res.Report)
	if !sub.IncludeCollisions {
		rep.Collisions = nil
	}
	s.log.Printf("run %s source=%s particles=%d survivors=%d elapsed=%s", res.RunID, source, res.Report.Len, res.Report.Survivors, res.Elapsed)
	return rep
}

func (s *Server) reject(requestID, code, message string) protocol.ErrorMsg {
	s.metrics.RecordRejected(code)
	return protocol.NewError(requestID, code, message)
}

func (s *Server) rejectErr(requestID string, err error) protocol.ErrorMsg {
	msg := protocol.ErrorFor(requestID, err)
	s.metrics.RecordRejected(msg.Code)
	return msg
}
