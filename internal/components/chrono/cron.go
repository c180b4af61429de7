package chrono

import (
	"fmt"
	"ldmonitor/internal/components/telemetry"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs in the background. A job whose previous run has not
// returned yet is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(tel telemetry.API) *Scheduler {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(cst),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	return &Scheduler{cron: c}
}

// Every runs job every d, with the first run d from now.
func (s *Scheduler) Every(d time.Duration, job func()) {
	s.cron.Schedule(cron.Every(d), cron.FuncJob(job))
}

// Add runs job on a standard cron spec, evaluated in Asia/Shanghai.
func (s *Scheduler) Add(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	return err
}

// Stop waits for running jobs to return, nothing is started afterwards.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger forwards the scheduler's own logs to telemetry.
type cronLogger struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)/2)
	for i := 1; i < len(keysAndValues); i += 2 {
		out = append(out, fmt.Sprint(keysAndValues[i-1], "=", keysAndValues[i]))
	}
	return out
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(msg, append([]any{err}, pairs(keysAndValues)...)...)
}
