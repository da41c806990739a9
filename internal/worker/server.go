package worker

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Server bundles the asynq consumer and the cron scheduler driving the
// periodic sweep.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

// NewServer builds the worker server. sweepSpec is a cron expression for
// the periodic full sweep, e.g. "* * * * *" for every minute.
func NewServer(redisOpt asynq.RedisClientOpt, sweeper *Sweeper, sweepSpec string) (*Server, error) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeScheduleSweep, sweeper.HandleScheduleSweep)
	mux.HandleFunc(TypeFullSweep, sweeper.HandleFullSweep)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(sweepSpec, NewFullSweepTask()); err != nil {
		return nil, fmt.Errorf("register periodic sweep: %w", err)
	}

	return &Server{srv: srv, scheduler: scheduler, mux: mux}, nil
}

// Start runs the scheduler and the consumer in the background.
func (s *Server) Start() error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start sweep scheduler: %w", err)
	}
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start sweep worker: %w", err)
	}
	slog.Info("sweep worker started")
	return nil
}

// Shutdown stops the scheduler and drains the consumer.
func (s *Server) Shutdown() {
	s.scheduler.Shutdown()
	s.srv.Shutdown()
	slog.Info("sweep worker stopped")
}
