// internal/pipeline/batch/coordinator.go
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bedrock-router/internal/common/config"
	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/common/logger"
	"bedrock-router/internal/common/metrics"
	"bedrock-router/internal/pipeline/cachekey"
	"bedrock-router/internal/pipeline/cachestore"
	"bedrock-router/internal/pipeline/route"
	"bedrock-router/internal/pipeline/validate"
)

// MaxBatchSize is the hard ceiling on items per batch, matching the intake's
// maximum delivery size.
const MaxBatchSize = 10

// Cache is the subset of the cache store the coordinator needs.
type Cache interface {
	Get(ctx context.Context, key string) (*cachestore.CachedResponse, bool, error)
	Put(ctx context.Context, key string, body string) error
}

// Router resolves application names to backend resources.
type Router interface {
	Resolve(appName string) (route.ResourceRef, error)
}

// Backend executes one inference call and returns the assembled response.
type Backend interface {
	Invoke(ctx context.Context, ref route.ResourceRef, sessionID, inputText string) (string, error)
}

// Coordinator runs batches through the pipeline stages. Items are processed
// concurrently and independently: one item's failure never affects another's
// outcome, and every item gets exactly one terminal outcome.
type Coordinator struct {
	validator  *validate.Validator
	keygen     *cachekey.Generator
	cache      Cache
	router     Router
	backend    Backend
	classifier *apperrors.Classifier
	maxBatch   int
	logger     logger.Logger
}

func NewCoordinator(
	cache Cache,
	router Router,
	backend Backend,
	cfg config.Config,
	log logger.Logger,
) *Coordinator {
	maxBatch := cfg.Pipeline.MaxBatchSize
	if maxBatch <= 0 || maxBatch > MaxBatchSize {
		maxBatch = MaxBatchSize
	}
	return &Coordinator{
		validator:  validate.NewValidator(),
		keygen:     cachekey.NewGenerator(cfg.Cache.IncludeSessionInKey),
		cache:      cache,
		router:     router,
		backend:    backend,
		classifier: apperrors.NewClassifier(log),
		maxBatch:   maxBatch,
		logger:     log.WithFields(map[string]interface{}{"component": "coordinator"}),
	}
}

// ProcessBatch runs every item to a terminal outcome. The returned slice is
// index-aligned with items. The only whole-batch error is an oversized
// batch, which indicates an intake misconfiguration rather than bad input.
func (c *Coordinator) ProcessBatch(ctx context.Context, items []RawItem) ([]Outcome, error) {
	if len(items) > c.maxBatch {
		return nil, fmt.Errorf("batch of %d items exceeds maximum of %d", len(items), c.maxBatch)
	}

	start := time.Now()
	outcomes := make([]Outcome, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxBatch)
	for idx, item := range items {
		idx, item := idx, item
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := apperrors.NewInternal(fmt.Errorf("panic processing item: %v", r))
					outcomes[idx] = c.errorOutcome(item, err)
				}
			}()
			outcomes[idx] = c.processItem(ctx, item)
			return nil
		})
	}
	g.Wait() // closures never return errors

	for _, o := range outcomes {
		metrics.ItemsProcessed.WithLabelValues(o.Status).Inc()
	}
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	return outcomes, nil
}

// processItem runs the stages in their required order. Validation always
// precedes the cache lookup so malformed input can never be served from, or
// written to, the cache.
func (c *Coordinator) processItem(ctx context.Context, item RawItem) Outcome {
	req, err := c.validator.Validate(item.Body)
	if err != nil {
		return c.errorOutcome(item, err)
	}

	key := c.keygen.KeyFor(req)

	cached, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble degrades to a miss; the request still completes.
		classified := c.classifier.Classify(err)
		c.logger.Warn("cache lookup failed, proceeding without cache", map[string]interface{}{
			"item_id":     item.ID,
			"tracking_id": classified.TrackingID,
		})
		metrics.CacheRequests.WithLabelValues("error").Inc()
	} else if hit {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return Outcome{
			ItemID:  item.ID,
			Status:  StatusSuccess,
			AppName: req.AppName,
			Body:    cached.Body,
			Cached:  true,
		}
	} else {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	}

	ref, err := c.router.Resolve(req.AppName)
	if err != nil {
		return c.errorOutcome(item, err)
	}

	body, err := c.backend.Invoke(ctx, ref, req.SessionID, req.InputText)
	if err != nil {
		return c.errorOutcome(item, err)
	}

	if err := c.cache.Put(ctx, key, body); err != nil {
		classified := c.classifier.Classify(err)
		c.logger.Warn("cache write failed, returning uncached result", map[string]interface{}{
			"item_id":     item.ID,
			"tracking_id": classified.TrackingID,
		})
	}

	return Outcome{
		ItemID:  item.ID,
		Status:  StatusSuccess,
		AppName: req.AppName,
		Body:    body,
		Cached:  false,
	}
}

func (c *Coordinator) errorOutcome(item RawItem, err error) Outcome {
	classified := c.classifier.Classify(err)
	return Outcome{
		ItemID:     item.ID,
		Status:     StatusError,
		ErrorKind:  classified.Kind,
		TrackingID: classified.TrackingID,
		Message:    classified.ClientMessage,
	}
}
