package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on a fixed interval while serve is up.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	window    int
	every     time.Duration
	log       *zap.Logger
}

// NewChecker wires a collector and alerter to the monitoring settings.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	every := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if every <= 0 {
		every = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		window:    cfg.LookbackWindowHours,
		every:     every,
		log:       zap.L().Named("monitoring"),
	}
}

// Run checks once per interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("run health checks enabled",
		zap.Duration("every", c.every),
		zap.Int("window_hours", c.window),
	)

	tick := time.NewTicker(c.every)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			c.Check(ctx)
		case <-ctx.Done():
			c.log.Info("run health checks stopped")
			return
		}
	}
}

// Check takes one snapshot of the run history, delivers whatever alerts
// fire and returns them.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.window)
	if err != nil {
		c.log.Error("run health: collect", zap.Error(err))
		return nil
	}

	fired := c.alerter.Evaluate(snap)
	if len(fired) > 0 {
		delivered := c.alerter.SendAlerts(ctx, fired)
		c.log.Warn("run health degraded",
			zap.Int("runs", snap.RunsTotal),
			zap.Float64("failure_rate", snap.FailRate),
			zap.Float64("automation_rate", snap.AutomationRate),
			zap.Int("alerts", len(fired)),
			zap.Int("delivered", delivered),
		)
		return fired
	}
	c.log.Debug("run health ok", zap.Int("runs", snap.RunsTotal))
	return nil
}
