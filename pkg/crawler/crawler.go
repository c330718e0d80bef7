// Package crawler walks the pages of a listing, turning every item container
// into a record until the listing runs out or a cap is reached. Pages are
// processed one at a time, in order.
package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/amosWeiskopf/harvester/internal/models"
	"github.com/amosWeiskopf/harvester/pkg/extractor"
	"github.com/amosWeiskopf/harvester/pkg/siteconfig"
	"github.com/amosWeiskopf/harvester/pkg/store"
	"github.com/amosWeiskopf/harvester/pkg/utils"
)

type Crawler struct {
	cfg       *siteconfig.Configuration
	fetcher   PageFetcher
	extractor *extractor.Extractor
	store     *store.Store
	logger    *zap.Logger
}

// New creates a crawler for one run. cfg must not be modified afterwards.
func New(cfg *siteconfig.Configuration, fetcher PageFetcher, logger *zap.Logger) (*Crawler, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor.New(cfg.BaseURL, logger.Named("extractor")),
		store:     store.New(cfg.MaxItems),
		logger:    logger,
	}, nil
}

// Store exposes the records gathered so far.
func (c *Crawler) Store() *store.Store {
	return c.store
}

// PageURL is the address of page n.
func (c *Crawler) PageURL(n int) string {
	return utils.PageURL(c.cfg.BaseURL, c.cfg.Pagination.Pattern, siteconfig.PagePlaceholder, n)
}

// Crawl runs pagination from page 1 until a stop condition. A page that
// cannot be fetched or holds no items ends the run just like the real end
// of the listing does; nothing is retried. Canceling ctx also ends the run.
// The store never holds more than MaxItems records.
func (c *Crawler) Crawl(ctx context.Context) *models.RunResult {
	result := &models.RunResult{
		BaseURL:   c.cfg.BaseURL,
		StartedAt: time.Now(),
	}

	for page := 1; ; page++ {
		result.LastPage = page

		if ctx.Err() != nil {
			result.Stop = models.StopCanceled
			break
		}

		stop, done := c.crawlPage(ctx, page, result)
		if done {
			result.Stop = stop
			break
		}
	}

	result.Records = c.store.All()
	result.Duration = time.Since(result.StartedAt)

	c.logger.Info("scrape finished",
		zap.Int("records", len(result.Records)),
		zap.Int("pages_fetched", result.PagesFetched),
		zap.Int("last_page", result.LastPage),
		zap.String("stop_reason", string(result.Stop)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// crawlPage processes page n and reports whether pagination should stop
// and why.
func (c *Crawler) crawlPage(ctx context.Context, n int, result *models.RunResult) (models.StopReason, bool) {
	pageURL := c.PageURL(n)
	logger := c.logger.With(zap.Int("page", n), zap.String("url", pageURL))
	logger.Info("scraping page")

	body, ok := c.fetcher.Fetch(ctx, pageURL)
	if !ok {
		if ctx.Err() != nil {
			return models.StopCanceled, true
		}
		logger.Info("no content, stopping pagination")
		return models.StopNoContent, true
	}
	result.PagesFetched++

	items, err := c.extractor.Containers(body, c.cfg.ItemSelector)
	if err != nil {
		logger.Error("failed to parse page", zap.Error(err))
		return models.StopNoItems, true
	}
	logger.Info("found items on page", zap.Int("items", len(items)))
	if len(items) == 0 {
		logger.Info("no more items found, stopping pagination")
		return models.StopNoItems, true
	}

	added := 0
	for _, item := range items {
		if c.store.Full() {
			break
		}
		if !c.store.TryAppend(c.extractor.Assemble(item, c.cfg.Fields)) {
			break
		}
		added++
	}
	logger.Info("records added", zap.Int("added", added), zap.Int("total", c.store.Count()))

	switch {
	case c.store.Full():
		logger.Info("item cap reached", zap.Int("max_items", c.cfg.MaxItems))
		return models.StopItemCap, true
	case !c.cfg.Pagination.Enabled:
		return models.StopPaginationDisabled, true
	case n >= c.cfg.Pagination.MaxPages:
		logger.Info("page cap reached", zap.Int("max_pages", c.cfg.Pagination.MaxPages))
		return models.StopPageCap, true
	}
	return "", false
}
