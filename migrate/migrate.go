// Package migrate orchestrates a full migration run: discovery, a
// concurrent per-post pipeline, and the final index. Per-post failures are
// isolated; one broken page never stops the run.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netjoints/blogmirror/assemble"
	"github.com/netjoints/blogmirror/classify"
	"github.com/netjoints/blogmirror/config"
	"github.com/netjoints/blogmirror/convert"
	"github.com/netjoints/blogmirror/discover"
	"github.com/netjoints/blogmirror/extract"
	"github.com/netjoints/blogmirror/fetch"
	"github.com/netjoints/blogmirror/media"
	"github.com/netjoints/blogmirror/state"
	"github.com/netjoints/blogmirror/writer"
)

// ledgerFilename is the SQLite ledger kept inside the output tree.
const ledgerFilename = "blogmirror.db"

// Options tunes one migration run beyond the config file.
type Options struct {
	// OutDir is the output tree root.
	OutDir string
	// Resume skips candidates the ledger already marks archived.
	Resume bool
	// DryRun discovers and lists candidates without fetching posts.
	DryRun bool
	// Concurrency overrides the configured worker count when positive.
	Concurrency int
	// MaxArchivePages overrides the configured pagination bound when
	// positive.
	MaxArchivePages int
}

// Summary is the outcome of one run.
type Summary struct {
	RunID      uuid.UUID
	SiteURL    string
	Discovered int
	Archived   int
	Skipped    int
	// Failures counts failed candidates by kind ("fetch", "no_content",
	// "no_date", "is_listing", "write").
	Failures map[string]int
	// MediaFiles is the number of media assets saved.
	MediaFiles int
	// MediaFailed counts media references whose download failed; the posts
	// themselves still archive with the remote URL left in place.
	MediaFailed int
	Elapsed     time.Duration
}

// Failed returns the total failed candidate count.
func (s *Summary) Failed() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// Runner executes migration runs for one site.
type Runner struct {
	siteURL string
	cfg     *config.Config
	opts    Options

	engine    *discover.Engine
	pages     *fetch.Client
	pipeline  *media.Pipeline
	converter *convert.Converter
	out       *writer.Writer
	store     *state.Store

	mu        sync.Mutex
	docs      []*assemble.Document
	filenames map[string]bool
	summary   *Summary
}

// NewRunner wires a runner for siteURL. The output tree and the ledger are
// created eagerly so a misconfigured output path fails before any network
// traffic.
func NewRunner(siteURL string, cfg *config.Config, opts Options) (*Runner, error) {
	classifier, err := classify.New(siteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse site URL: %w", err)
	}

	pages := fetch.NewClient(fetch.Config{
		Timeout:           cfg.FetchTimeout.Std(),
		MaxAttempts:       cfg.Retries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
	})
	assets := fetch.NewClient(fetch.Config{
		Timeout:           cfg.MediaTimeout.Std(),
		MaxAttempts:       cfg.Retries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
	})

	maxPages := cfg.MaxArchivePages
	if opts.MaxArchivePages > 0 {
		maxPages = opts.MaxArchivePages
	}

	out, err := writer.New(opts.OutDir)
	if err != nil {
		return nil, err
	}

	store, err := state.NewStore(filepath.Join(opts.OutDir, ledgerFilename))
	if err != nil {
		return nil, err
	}

	return &Runner{
		siteURL:   siteURL,
		cfg:       cfg,
		opts:      opts,
		engine:    discover.NewEngine(siteURL, pages, classifier, maxPages),
		pages:     pages,
		pipeline:  media.NewPipeline(assets, cfg.SkipHosts...),
		converter: convert.New(),
		out:       out,
		store:     store,
		filenames: map[string]bool{},
	}, nil
}

// Close releases the runner's ledger.
func (r *Runner) Close() error {
	return r.store.Close()
}

// Run executes the migration and returns its summary. It fails outright
// only when discovery finds nothing or the context is cancelled before any
// work happens; everything past discovery degrades per candidate.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	r.summary = &Summary{
		RunID:    uuid.New(),
		SiteURL:  r.siteURL,
		Failures: map[string]int{},
	}
	log.Printf("INFO: Starting migration run %s for %s", r.summary.RunID, r.siteURL)

	candidates, err := r.engine.Discover(ctx)
	if err != nil {
		return nil, err
	}
	r.summary.Discovered = len(candidates)

	if r.opts.DryRun {
		for _, c := range candidates {
			log.Printf("INFO: Would archive %s (source %s)", c.URL, c.Source)
		}
		r.summary.Elapsed = time.Since(start)
		return r.summary, nil
	}

	var archived map[string]bool
	if r.opts.Resume {
		archived, err = r.store.Archived()
		if err != nil {
			return nil, fmt.Errorf("failed to load resume state: %w", err)
		}
	}

	concurrency := r.cfg.Concurrency
	if r.opts.Concurrency > 0 {
		concurrency = r.opts.Concurrency
	}

	extractOpts := extract.Options{
		Now:         time.Now(),
		TodayWindow: r.cfg.TodayWindow.Std(),
	}

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, candidate := range candidates {
		if archived[candidate.Normalized] {
			r.mu.Lock()
			r.summary.Skipped++
			r.mu.Unlock()
			continue
		}

		select {
		case <-ctx.Done():
			log.Println("WARN: Migration interrupted, waiting for in-flight posts")
			wg.Wait()
			return r.finish(start)
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(c discover.Candidate) {
				defer wg.Done()
				defer func() { <-semaphore }()
				r.processCandidate(ctx, c, extractOpts)
			}(candidate)
		}
	}
	wg.Wait()

	return r.finish(start)
}

// finish writes the index and seals the summary. The index is rebuilt from
// the ledger's archived records rather than this run's documents, so posts
// archived by earlier runs keep their entries when a resume run skips them.
func (r *Runner) finish(start time.Time) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.ArchivedRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to load archive index: %w", err)
	}
	indexDocs := make([]*assemble.Document, 0, len(records))
	for _, rec := range records {
		indexDocs = append(indexDocs, indexEntry(rec))
	}

	err = r.out.WriteIndex(indexDocs, writer.IndexStats{
		SiteURL:    r.siteURL,
		Discovered: r.summary.Discovered,
		Failed:     r.summary.Failed(),
		Skipped:    r.summary.Skipped,
		MediaFiles: r.summary.MediaFiles,
	})
	if err != nil {
		return nil, err
	}

	r.summary.Archived = len(r.docs)
	r.summary.Elapsed = time.Since(start)
	log.Printf("INFO: Run %s finished: %d archived, %d failed, %d skipped in %s",
		r.summary.RunID, r.summary.Archived, r.summary.Failed(),
		r.summary.Skipped, r.summary.Elapsed.Round(time.Millisecond))
	return r.summary, nil
}

// indexEntry rebuilds the index-facing view of an archived ledger record.
func indexEntry(rec state.Record) *assemble.Document {
	slug := strings.TrimSuffix(rec.Filename, ".md")
	if i := strings.Index(slug, "_"); i >= 0 {
		slug = slug[i+1:]
	}
	title := rec.Title
	if title == "" {
		title = slug
	}
	return &assemble.Document{
		Filename:    rec.Filename,
		Slug:        slug,
		Title:       title,
		PublishDate: rec.PublishDate,
	}
}

// processCandidate runs the whole per-post pipeline for one candidate and
// records its outcome. Never returns an error: failures are counted,
// logged, and written to the ledger.
func (r *Runner) processCandidate(ctx context.Context, candidate discover.Candidate, opts extract.Options) {
	doc, localized, err := r.archiveOne(ctx, candidate, opts)
	if err != nil {
		kind := failureKind(err)
		log.Printf("WARN: Failed to archive %s (%s): %v", candidate.URL, kind, err)

		r.mu.Lock()
		r.summary.Failures[kind]++
		r.mu.Unlock()

		if err := r.store.Record(state.Record{
			NormalizedURL: candidate.Normalized,
			SourceURL:     candidate.URL,
			Outcome:       state.OutcomeFailed,
			FailureKind:   kind,
			RunID:         r.summary.RunID,
		}); err != nil {
			log.Printf("ERROR: Ledger write failed for %s: %v", candidate.URL, err)
		}
		return
	}

	r.mu.Lock()
	r.docs = append(r.docs, doc)
	r.summary.MediaFiles += len(localized.Assets)
	r.summary.MediaFailed += localized.Failed
	r.mu.Unlock()

	if err := r.store.Record(state.Record{
		NormalizedURL: candidate.Normalized,
		SourceURL:     candidate.URL,
		Outcome:       state.OutcomeArchived,
		Filename:      doc.Filename,
		Title:         doc.Title,
		PublishDate:   doc.PublishDate,
		RunID:         r.summary.RunID,
	}); err != nil {
		log.Printf("ERROR: Ledger write failed for %s: %v", candidate.URL, err)
	}
	log.Printf("INFO: Archived %s as %s", candidate.URL, doc.Filename)
}

// archiveOne fetches, extracts, localizes, converts, and writes a single
// post.
func (r *Runner) archiveOne(ctx context.Context, candidate discover.Candidate, opts extract.Options) (*assemble.Document, *media.Result, error) {
	html, err := r.pages.Get(ctx, candidate.URL)
	if err != nil {
		return nil, nil, err
	}

	post, err := extract.Extract(html, candidate.URL, opts)
	if err != nil {
		return nil, nil, err
	}

	slug := assemble.Slug(post)
	localized, err := r.pipeline.Process(ctx, post.BodyHTML, post.SourceURL, slug)
	if err != nil {
		return nil, nil, err
	}
	post.BodyHTML = localized.BodyHTML

	markdown, _ := r.converter.Markdown(post.BodyHTML, post.SourceURL)

	doc, err := assemble.Build(post, markdown)
	if err != nil {
		return nil, nil, err
	}
	r.reserveFilename(doc)

	for _, asset := range localized.Assets {
		if err := r.out.WriteAsset(asset); err != nil {
			return nil, nil, &writeError{err}
		}
	}
	if err := r.out.WriteDocument(doc); err != nil {
		return nil, nil, &writeError{err}
	}

	return doc, localized, nil
}

// writeError marks a failure in the output tree rather than the network.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// reserveFilename guarantees filename uniqueness within the run. Two posts
// sharing a date and slug get numeric suffixes in processing order.
func (r *Runner) reserveFilename(doc *assemble.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := doc.Filename
	for i := 2; r.filenames[doc.Filename]; i++ {
		doc.Filename = fmt.Sprintf("%s-%d.md", base[:len(base)-len(".md")], i)
	}
	r.filenames[doc.Filename] = true
}

// failureKind buckets an error for the summary and the ledger.
func failureKind(err error) string {
	var failure *extract.Failure
	if errors.As(err, &failure) {
		return string(failure.Kind)
	}
	var status *fetch.StatusError
	if errors.As(err, &status) {
		return "fetch"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	var write *writeError
	if errors.As(err, &write) {
		return "write"
	}
	return "fetch"
}
