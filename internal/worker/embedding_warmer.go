package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/gatehouse/internal/biometric"
	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/observability/metrics"
)

// EmbeddingWarmer keeps the embedding cache populated for every visitor
// with a stored reference image, so gate-side face identification never
// pays the cost of embedding the whole roster on first use.
type EmbeddingWarmer struct {
	visitorRepo domain.VisitorRepository
	matcher     *biometric.Matcher
	logger      *slog.Logger
	interval    time.Duration
}

func NewEmbeddingWarmer(
	visitorRepo domain.VisitorRepository,
	matcher *biometric.Matcher,
	logger *slog.Logger,
	interval time.Duration,
) *EmbeddingWarmer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &EmbeddingWarmer{
		visitorRepo: visitorRepo,
		matcher:     matcher,
		logger:      logger,
		interval:    interval,
	}
}

// Start begins the warm loop. Runs one pass immediately so a restart does
// not leave the cache cold until the first tick.
func (w *EmbeddingWarmer) Start(ctx context.Context) {
	w.logger.Info("embedding warmer started", slog.Duration("interval", w.interval))

	w.warmAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("embedding warmer stopped")
			return
		case <-ticker.C:
			w.warmAll(ctx)
		}
	}
}

func (w *EmbeddingWarmer) warmAll(ctx context.Context) {
	visitors, err := w.visitorRepo.ListWithPhoto(ctx)
	if err != nil {
		w.logger.Error("embedding warmer: list visitors failed", slog.String("error", err.Error()))
		metrics.ObserveEmbeddingWarm("list_error")
		return
	}

	warmed, failed := 0, 0
	for _, visitor := range visitors {
		if ctx.Err() != nil {
			return
		}
		if err := w.matcher.WarmCache(ctx, visitor); err != nil {
			// A stored image that no longer embeds is logged and skipped;
			// the matcher handles the same condition at identify time.
			w.logger.Warn("embedding warm failed",
				slog.String("visitor_id", visitor.ID),
				slog.String("error", err.Error()),
			)
			metrics.ObserveEmbeddingWarm("error")
			failed++
			continue
		}
		metrics.ObserveEmbeddingWarm("ok")
		warmed++
	}

	w.logger.Info("embedding warm pass complete",
		slog.Int("visitors", len(visitors)),
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
	)
}
