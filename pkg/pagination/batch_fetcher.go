package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages in flight.
	// 1 fetches strictly sequentially.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	// BufferSize for the worker pool channels.
	BufferSize int

	// OnProgress, if set, is called after every fetched page with the number
	// of pages fetched so far and the total page count.
	OnProgress func(fetched, total int)
}

// DefaultConfig returns a sequential configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		Timeout:        30 * time.Second,
		BufferSize:     64,
	}
}

// Page is one decoded listing envelope.
type Page struct {
	// TotalItems is the number of items matching the query across all pages.
	TotalItems int

	// Members are the records on this page, kept as raw JSON.
	Members []json.RawMessage
}

// PageFetcher fetches and decodes a single page. Implementations own the
// base URL, headers and filter parameters; the page index is supplied by
// the Fetcher.
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, pageNum int) (Page, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, endpoint string, pageNum int) (Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, endpoint string, pageNum int) (Page, error) {
	return f(ctx, endpoint, pageNum)
}

// pageResult is the outcome of a single worker fetch.
type pageResult struct {
	pageNum int
	page    Page
	err     error
}

// Fetcher aggregates all pages of a listing endpoint.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewFetcher creates a new fetcher.
func NewFetcher(fetcher PageFetcher, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every page of endpoint and returns the concatenation of
// all members in page order. Any failed page aborts the whole fetch; the
// returned slice is nil whenever err is non-nil. A total of zero yields an
// empty, non-nil slice after a single request.
func (f *Fetcher) FetchAll(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	start := time.Now()

	records, err := f.fetchAll(ctx, endpoint)
	if err != nil {
		FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Dur("duration", time.Since(start)).
			Msg("Paginated fetch aborted")
		return nil, err
	}

	FetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	RecordsAggregated.Add(float64(len(records)))
	log.Info().
		Str("endpoint", endpoint).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}

func (f *Fetcher) fetchAll(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	first, err := f.fetchPage(ctx, endpoint, 1)
	if err != nil {
		return nil, err
	}

	total := first.TotalItems
	if total < 0 {
		return nil, &PageError{Page: 1, Err: fmt.Errorf("%w: negative total %d", ErrInvalidEnvelope, total)}
	}
	if total == 0 {
		log.Info().Str("endpoint", endpoint).Msg("No items to fetch")
		f.report(1, 1)
		return []json.RawMessage{}, nil
	}

	pageSize := len(first.Members)
	if pageSize == 0 {
		return nil, &PageError{Page: 1, Err: fmt.Errorf("%w: %d items reported but first page is empty", ErrInvalidEnvelope, total)}
	}
	totalPages := (total + pageSize - 1) / pageSize

	log.Info().
		Str("endpoint", endpoint).
		Int("total_items", total).
		Int("page_size", pageSize).
		Int("total_pages", totalPages).
		Msg("Starting page fetch")

	pages := make([][]json.RawMessage, totalPages)
	pages[0] = first.Members
	f.report(1, totalPages)

	if totalPages > 1 {
		if f.config.MaxConcurrency == 1 {
			err = f.fetchSequential(ctx, endpoint, total, pages)
		} else {
			err = f.fetchConcurrent(ctx, endpoint, total, pages)
		}
		if err != nil {
			return nil, err
		}
	}

	records := make([]json.RawMessage, 0, total)
	for _, members := range pages {
		records = append(records, members...)
	}
	if len(records) != total {
		return nil, fmt.Errorf("%w: got %d records, expected %d", ErrCountMismatch, len(records), total)
	}

	return records, nil
}

// fetchSequential fetches pages 2..n one after another.
func (f *Fetcher) fetchSequential(ctx context.Context, endpoint string, total int, pages [][]json.RawMessage) error {
	for pageNum := 2; pageNum <= len(pages); pageNum++ {
		page, err := f.fetchPage(ctx, endpoint, pageNum)
		if err == nil {
			err = checkTotal(pageNum, total, page)
		}
		if err != nil {
			return err
		}

		pages[pageNum-1] = page.Members
		f.report(pageNum, len(pages))
	}
	return nil
}

// fetchConcurrent distributes pages 2..n across a worker pool. Results are
// slotted by page number. The first failure cancels the remaining workers.
func (f *Fetcher) fetchConcurrent(ctx context.Context, endpoint string, total int, pages [][]json.RawMessage) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	totalPages := len(pages)
	pageQueue := make(chan int, f.config.BufferSize)
	results := make(chan pageResult, f.config.BufferSize)

	// Fill page queue (skip page 1, already fetched)
	go func() {
		defer close(pageQueue)
		for pageNum := 2; pageNum <= totalPages; pageNum++ {
			select {
			case pageQueue <- pageNum:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := min(f.config.MaxConcurrency, totalPages-1)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.worker(ctx, endpoint, pageQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := 1
	var firstErr error
	for result := range results {
		if firstErr != nil {
			continue
		}
		err := result.err
		if err == nil {
			err = checkTotal(result.pageNum, total, result.page)
		}
		if err != nil {
			firstErr = err
			cancel()
			continue
		}

		pages[result.pageNum-1] = result.page.Members
		fetched++
		f.report(fetched, totalPages)

		if fetched%50 == 0 {
			log.Info().
				Int("fetched", fetched).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetched)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	if firstErr != nil {
		return firstErr
	}
	// The parent context may have been cancelled while workers were idle.
	if err := ctx.Err(); err != nil && fetched < totalPages {
		return err
	}
	return nil
}

// worker processes pages from the queue.
func (f *Fetcher) worker(ctx context.Context, endpoint string, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		page, err := f.fetchPage(ctx, endpoint, pageNum)

		select {
		case results <- pageResult{pageNum: pageNum, page: page, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

// fetchPage fetches a single page under the per-page timeout.
func (f *Fetcher) fetchPage(ctx context.Context, endpoint string, pageNum int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, &PageError{Page: pageNum, Err: err}
	}

	pageCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	page, err := f.fetcher.FetchPage(pageCtx, endpoint, pageNum)
	if err != nil {
		PagesFetched.WithLabelValues("error").Inc()
		log.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("page", pageNum).
			Msg("Page fetch failed")
		return Page{}, &PageError{Page: pageNum, Err: err}
	}

	PagesFetched.WithLabelValues("ok").Inc()
	log.Debug().
		Str("endpoint", endpoint).
		Int("page", pageNum).
		Int("members", len(page.Members)).
		Msg("Page fetched")
	return page, nil
}

func (f *Fetcher) report(fetched, total int) {
	if f.config.OnProgress != nil {
		f.config.OnProgress(fetched, total)
	}
}

func checkTotal(pageNum, want int, page Page) error {
	if page.TotalItems != want {
		return &PageError{
			Page: pageNum,
			Err:  fmt.Errorf("%w: page 1 reported %d, page %d reported %d", ErrTotalChanged, want, pageNum, page.TotalItems),
		}
	}
	return nil
}
