package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	domain "github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/domain/job"
	catalogsync "github.com/ecomsync/feedsync/internal/infrastructure/catalog"
	"github.com/ecomsync/feedsync/internal/infrastructure/credentials"
	"github.com/ecomsync/feedsync/internal/infrastructure/rowcache"
	"github.com/ecomsync/feedsync/internal/infrastructure/transport"
	"github.com/ecomsync/feedsync/internal/mapping"
	"github.com/ecomsync/feedsync/internal/tabular"
)

// Error codes stored on failed jobs.
const (
	codeConfig    = "config"
	codeTransport = "transport"
	codeParse     = "parse"
	codeInternal  = "internal"
)

type runnerFeedRepo interface {
	GetByID(ctx context.Context, id string) (*feed.Feed, error)
	UpdateLastSync(ctx context.Context, feedID, checksum string, nextRun *time.Time) error
}

type runnerJobRepo interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	FindPendingByFeed(ctx context.Context, feedID string) (*job.Job, error)
	Status(ctx context.Context, id string) (job.Status, error)
	MarkProcessing(ctx context.Context, id, deliveryID string) error
	SetFile(ctx context.Context, id string, file job.FileInfo) error
	UpdateProgress(ctx context.Context, id string, p job.Progress) error
	SaveCheckpoint(ctx context.Context, id string, cp job.Checkpoint) error
	Complete(ctx context.Context, id string, results job.Results) error
	Fail(ctx context.Context, id, message, code string) error
	Interrupt(ctx context.Context, id string, cp job.Checkpoint, reason string) error
}

type rowLogAppender interface {
	Append(ctx context.Context, logs []job.RowLog) error
}

type resumeEnqueuer interface {
	Enqueue(ctx context.Context, d job.Descriptor) (string, error)
}

// RecordSyncer is the per-shop catalog surface the runner drives.
// Satisfied by *catalog.Syncer.
type RecordSyncer interface {
	SyncRecord(ctx context.Context, mapped mapping.Result, id domain.Identifier, opts catalogsync.SyncOptions) (catalogsync.SyncOutcome, error)
	Preview(ctx context.Context, mapped mapping.Result, id domain.Identifier, opts catalogsync.SyncOptions) (catalogsync.SyncOutcome, error)
	RateLimit(ctx context.Context) error
}

// SyncerFunc resolves the catalog syncer for a shop.
type SyncerFunc func(ctx context.Context, shopID string) (RecordSyncer, error)

// Dispatch is one claimed queue delivery handed to the runner. Heartbeat
// extends the delivery's queue lease and may be nil in tests.
type Dispatch struct {
	ID         string
	Descriptor job.Descriptor
	Heartbeat  func(ctx context.Context) error
}

// RunnerConfig tunes the row loop.
type RunnerConfig struct {
	// WorkDir is where downloaded files are staged. Defaults to the
	// system temp directory.
	WorkDir string
	// CheckpointEvery is the row cadence for checkpoint writes, log
	// flushes, and lease heartbeats.
	CheckpointEvery int
	// RawSampleRows caps how many leading rows keep their raw content
	// on the row log.
	RawSampleRows int
	// PreviewRowLimit is used when a preview dispatch carries none.
	PreviewRowLimit int
	// JobTimeout interrupts a run that exceeds the processing ceiling;
	// zero disables the ceiling.
	JobTimeout time.Duration
	// DownloadAttempts bounds transport retries for one run; the wait
	// between attempts doubles starting from DownloadRetryWait.
	DownloadAttempts  int
	DownloadRetryWait time.Duration
}

// Runner executes one sync job end to end: download, parse, map, and
// apply each row to the catalog, checkpointing as it goes.
type Runner struct {
	feeds     runnerFeedRepo
	jobs      runnerJobRepo
	rowLogs   rowLogAppender
	creds     credentials.Store
	dialer    transport.Dialer
	syncerFor SyncerFunc
	cache     rowcache.Store
	queue     resumeEnqueuer
	cfg       RunnerConfig
}

func NewRunner(
	feeds runnerFeedRepo,
	jobs runnerJobRepo,
	rowLogs rowLogAppender,
	creds credentials.Store,
	dialer transport.Dialer,
	syncerFor SyncerFunc,
	cache rowcache.Store,
	queue resumeEnqueuer,
	cfg RunnerConfig,
) *Runner {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 50
	}
	if cfg.RawSampleRows <= 0 {
		cfg.RawSampleRows = 50
	}
	if cfg.PreviewRowLimit <= 0 {
		cfg.PreviewRowLimit = 100
	}
	if cfg.DownloadAttempts <= 0 {
		cfg.DownloadAttempts = 3
	}
	if cfg.DownloadRetryWait <= 0 {
		cfg.DownloadRetryWait = 2 * time.Second
	}

	return &Runner{
		feeds:     feeds,
		jobs:      jobs,
		rowLogs:   rowLogs,
		creds:     creds,
		dialer:    dialer,
		syncerFor: syncerFor,
		cache:     cache,
		queue:     queue,
		cfg:       cfg,
	}
}

// Run processes one queue delivery. A nil return means the delivery is
// finished and must be acked; errors are also acked because every
// failure path has already updated the job record, but they are
// returned so the worker can log them.
func (r *Runner) Run(ctx context.Context, d Dispatch) error {
	j, err := r.resolveJob(ctx, d.Descriptor)
	if err != nil || j == nil {
		return err
	}

	if err := r.jobs.MarkProcessing(ctx, j.ID, d.ID); err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			// Cancelled before pickup or a duplicate delivery; nothing to run.
			return nil
		}
		return fmt.Errorf("mark job processing: %w", err)
	}

	results := job.Results{}
	startRow := 0
	if d.Descriptor.IsResume() {
		cp := j.Checkpoint()
		results = cp.Results
		startRow = cp.RowIndex
	}

	return r.execute(ctx, d, j, results, startRow)
}

// resolveJob maps a descriptor onto the persisted job it belongs to. A
// nil job without error means the delivery is stale and only needs an
// ack: the job finished, was cancelled, or was already resumed.
func (r *Runner) resolveJob(ctx context.Context, desc job.Descriptor) (*job.Job, error) {
	if desc.IsResume() {
		j, err := r.jobs.Get(ctx, desc.ResumeJobID)
		if errors.Is(err, job.ErrJobNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load resume job: %w", err)
		}
		if j.Status != job.StatusInterrupted {
			return nil, nil
		}
		return j, nil
	}

	j, err := r.jobs.FindPendingByFeed(ctx, desc.FeedID)
	if err != nil {
		return nil, fmt.Errorf("resolve pending job: %w", err)
	}
	return j, nil
}

func (r *Runner) execute(ctx context.Context, d Dispatch, j *job.Job, results job.Results, startRow int) error {
	desc := d.Descriptor

	f, err := r.feeds.GetByID(ctx, desc.FeedID)
	if err != nil {
		return r.fail(ctx, j.ID, fmt.Errorf("load feed: %w", err), codeConfig)
	}

	dl, err := r.download(ctx, f)
	if err != nil {
		return r.fail(ctx, j.ID, err, codeTransport)
	}
	// The staged file never outlives the attempt, whatever the outcome.
	defer os.Remove(dl.LocalPath)

	if r.unchangedFile(f, dl, desc) {
		if err := r.jobs.SetFile(ctx, j.ID, job.FileInfo{
			Path: dl.LocalPath, Checksum: dl.Checksum, Size: dl.Size,
		}); err != nil {
			log.Printf("job %s: record file info: %v", j.ID, err)
		}
		if err := r.jobs.Complete(ctx, j.ID, job.Results{}); err != nil {
			return fmt.Errorf("complete unchanged-file job: %w", err)
		}
		r.recordFeedSync(ctx, f, dl.Checksum)
		return nil
	}

	table, compiled, err := r.parse(f, dl.LocalPath, desc)
	if err != nil {
		code := codeParse
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			code = codeConfig
		}
		return r.fail(ctx, j.ID, err, code)
	}

	if err := r.jobs.SetFile(ctx, j.ID, job.FileInfo{
		Path:     dl.LocalPath,
		Checksum: dl.Checksum,
		Size:     dl.Size,
		RowCount: len(table.Rows),
	}); err != nil {
		return r.fail(ctx, j.ID, fmt.Errorf("record file info: %w", err), codeInternal)
	}

	syncer, err := r.syncerFor(ctx, f.ShopID)
	if err != nil {
		return r.fail(ctx, j.ID, fmt.Errorf("resolve catalog client: %w", err), codeConfig)
	}

	final, outcome, err := r.processRows(ctx, d, j, f, table, compiled, syncer, results, startRow)
	if outcome != runCompleted {
		return err
	}

	if err := r.jobs.Complete(ctx, j.ID, final); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !desc.IsPreview {
		r.recordFeedSync(ctx, f, dl.Checksum)
	}
	return nil
}

type runOutcome int

const (
	runCompleted runOutcome = iota
	runCancelled
	runInterrupted
)

func (r *Runner) processRows(
	ctx context.Context,
	d Dispatch,
	j *job.Job,
	f *feed.Feed,
	table *tabular.Table,
	compiled []mapping.CompiledMapping,
	syncer RecordSyncer,
	results job.Results,
	startRow int,
) (job.Results, runOutcome, error) {
	desc := d.Descriptor
	opts := catalogsync.SyncOptions{
		UpdateExisting: f.Options.UpdateExisting,
		CreateNew:      f.Options.CreateNew,
		AttributeBatch: f.Options.BatchSize,
	}

	logs := make([]job.RowLog, 0, r.cfg.CheckpointEvery)
	flush := func(ctx context.Context) {
		if len(logs) == 0 {
			return
		}
		if err := r.rowLogs.Append(ctx, logs); err != nil {
			log.Printf("job %s: append row logs: %v", j.ID, err)
		}
		logs = logs[:0]
	}

	total := len(table.Rows)
	started := time.Now()

	for i, row := range table.Rows {
		if i < startRow {
			continue
		}

		select {
		case <-ctx.Done():
			// Worker shutdown: persist the checkpoint on a detached
			// context so the sweep can redispatch the job.
			stop := context.WithoutCancel(ctx)
			flush(stop)
			cp := job.Checkpoint{RowIndex: i, Results: results}
			if err := r.jobs.Interrupt(stop, j.ID, cp, "worker shutting down"); err != nil {
				log.Printf("job %s: interrupt on shutdown: %v", j.ID, err)
			}
			r.enqueueResume(stop, j, desc)
			return results, runInterrupted, ctx.Err()
		default:
		}

		rowStart := time.Now()
		entry := job.RowLog{JobID: j.ID, RowNumber: i}
		if i < r.cfg.RawSampleRows {
			entry.RawRow = row
		}

		op := r.processRow(ctx, f, syncer, compiled, row, opts, desc.IsPreview, &entry)
		entry.Duration = time.Since(rowStart)
		logs = append(logs, entry)

		results.Processed++
		switch op {
		case job.OpCreate:
			results.Created++
		case job.OpUpdate:
			results.Updated++
		case job.OpSkip:
			results.Skipped++
		case job.OpError:
			results.Failed++
		}

		current := i + 1

		status, err := r.jobs.Status(ctx, j.ID)
		if err != nil {
			log.Printf("job %s: status poll: %v", j.ID, err)
		} else if status == job.StatusCancelled {
			// The row in flight finished; everything after it is skipped.
			flush(ctx)
			if err := r.jobs.SaveCheckpoint(ctx, j.ID, job.Checkpoint{RowIndex: current, Results: results}); err != nil {
				log.Printf("job %s: save checkpoint on cancel: %v", j.ID, err)
			}
			return results, runCancelled, nil
		}

		if err := r.jobs.UpdateProgress(ctx, j.ID, job.NewProgress(current, total)); err != nil {
			log.Printf("job %s: update progress: %v", j.ID, err)
		}

		if current%r.cfg.CheckpointEvery == 0 {
			flush(ctx)
			if err := r.jobs.SaveCheckpoint(ctx, j.ID, job.Checkpoint{RowIndex: current, Results: results}); err != nil {
				log.Printf("job %s: save checkpoint: %v", j.ID, err)
			}
			if d.Heartbeat != nil {
				if err := d.Heartbeat(ctx); err != nil {
					log.Printf("job %s: extend lease: %v", j.ID, err)
				}
			}
		}

		if r.cfg.JobTimeout > 0 && !desc.IsPreview && time.Since(started) > r.cfg.JobTimeout {
			flush(ctx)
			cp := job.Checkpoint{RowIndex: current, Results: results}
			if err := r.jobs.Interrupt(ctx, j.ID, cp, "processing time limit reached"); err != nil {
				log.Printf("job %s: interrupt on timeout: %v", j.ID, err)
			}
			r.enqueueResume(ctx, j, desc)
			return results, runInterrupted, nil
		}
	}

	flush(ctx)
	return results, runCompleted, nil
}

// processRow handles one CSV row and fills the log entry. The returned
// operation drives the aggregate counters; a row-level failure never
// aborts the run.
func (r *Runner) processRow(
	ctx context.Context,
	f *feed.Feed,
	syncer RecordSyncer,
	compiled []mapping.CompiledMapping,
	row tabular.Row,
	opts catalogsync.SyncOptions,
	preview bool,
	entry *job.RowLog,
) job.RowOperation {
	if !rowIncluded(row, f.Filters) {
		entry.Operation = job.OpSkip
		entry.Status = job.RowSuccess
		entry.Warnings = []string{"excluded by filter"}
		return job.OpSkip
	}

	mapped := mapping.TransformRow(row, compiled, f.Matching, f.ValueMappings)
	entry.Identifier = mapped.Identifier.Value
	entry.Warnings = mapped.Warnings

	if mapped.Identifier.IsZero() {
		entry.Operation = job.OpError
		entry.Status = job.RowError
		entry.ErrorMsg = fmt.Sprintf("row has no value in matching column %q", f.Matching.Column)
		return job.OpError
	}

	if preview {
		outcome, err := syncer.Preview(ctx, mapped, mapped.Identifier, opts)
		if err != nil {
			entry.Operation = job.OpError
			entry.Status = job.RowError
			entry.ErrorMsg = err.Error()
			return job.OpError
		}
		fillEntry(entry, outcome)
		return outcome.Operation
	}

	hash := rowcache.HashRow(row)
	if f.Options.SkipUnchangedRows {
		hit, err := r.cache.Check(ctx, f.ID, mapped.Identifier.Value, hash)
		if err != nil {
			entry.Warnings = append(entry.Warnings, "row cache unavailable")
		} else if hit.Found && !hit.Changed {
			entry.Operation = job.OpSkip
			entry.Status = job.RowSuccess
			entry.RecordID = hit.RecordID
			return job.OpSkip
		}
	}

	outcome, err := syncer.SyncRecord(ctx, mapped, mapped.Identifier, opts)
	if err != nil {
		entry.Operation = job.OpError
		entry.Status = job.RowError
		entry.ErrorMsg = err.Error()
		return job.OpError
	}
	fillEntry(entry, outcome)

	// A partial attribute write must not be remembered as synced; the
	// next run retries the row.
	if f.Options.SkipUnchangedRows && !outcome.AttributesPartial {
		cacheEntry := rowcache.Entry{
			FeedID:      f.ID,
			Identifier:  mapped.Identifier.Value,
			ContentHash: hash,
			RecordID:    entry.RecordID,
		}
		if err := r.cache.Upsert(ctx, cacheEntry); err != nil {
			log.Printf("feed %s: row cache upsert for %s: %v", f.ID, mapped.Identifier.Value, err)
		}
	}

	if outcome.Operation == job.OpCreate || outcome.Operation == job.OpUpdate {
		if err := syncer.RateLimit(ctx); err != nil {
			log.Printf("feed %s: rate limit wait: %v", f.ID, err)
		}
	}
	return outcome.Operation
}

func fillEntry(entry *job.RowLog, outcome catalogsync.SyncOutcome) {
	entry.Operation = outcome.Operation
	entry.Changes = outcome.Changes
	entry.Status = job.RowSuccess
	if outcome.Record != nil {
		entry.RecordID = outcome.Record.ID
	}
	if outcome.AttributesPartial {
		entry.Status = job.RowWarning
		entry.Warnings = append(entry.Warnings, "not all custom attributes were applied")
	}
}

// download fetches the feed file, retrying transient transport failures
// with exponential backoff. Retries happen here rather than through
// queue redelivery: a redelivered dispatch is indistinguishable from a
// duplicate once the job left pending.
func (r *Runner) download(ctx context.Context, f *feed.Feed) (transport.Download, error) {
	creds := credentials.Credentials{}
	if f.Connection.CredentialRef != "" {
		var err error
		creds, err = r.creds.Resolve(ctx, f.Connection.CredentialRef)
		if err != nil {
			return transport.Download{}, fmt.Errorf("resolve credentials: %w", err)
		}
	}

	var lastErr error
	wait := r.cfg.DownloadRetryWait
	for attempt := 1; attempt <= r.cfg.DownloadAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("feed %s: download attempt %d after: %v", f.ID, attempt, lastErr)
			if !sleepWithContext(ctx, wait) {
				return transport.Download{}, ctx.Err()
			}
			wait *= 2
		}

		dl, err := r.fetch(ctx, f, creds)
		if err == nil {
			return dl, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return transport.Download{}, lastErr
}

func (r *Runner) fetch(ctx context.Context, f *feed.Feed, creds credentials.Credentials) (transport.Download, error) {
	conn, err := r.dialer.Dial(ctx, f.Connection, creds)
	if err != nil {
		return transport.Download{}, fmt.Errorf("connect %s: %w", f.Connection.Protocol, err)
	}
	defer conn.Close()

	name := f.Connection.Filename
	if strings.ContainsAny(name, "*?[") {
		name, err = latestMatch(ctx, conn, name)
		if err != nil {
			return transport.Download{}, err
		}
	}

	dl, err := conn.Download(ctx, name, r.cfg.WorkDir)
	if err != nil {
		return transport.Download{}, fmt.Errorf("download %s: %w",
			path.Join(f.Connection.Directory, name), err)
	}
	return dl, nil
}

// latestMatch lists the feed directory and picks the newest regular file
// whose name matches the configured glob pattern.
func latestMatch(ctx context.Context, conn transport.Connector, pattern string) (string, error) {
	infos, err := conn.List(ctx, "")
	if err != nil {
		return "", fmt.Errorf("list feed directory: %w", err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		ok, err := path.Match(pattern, info.Name)
		if err != nil {
			return "", fmt.Errorf("filename pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		if best == "" || info.ModTime.After(bestMod) {
			best = info.Name
			bestMod = info.ModTime
		}
	}
	if best == "" {
		return "", fmt.Errorf("no file matches %q", pattern)
	}
	return best, nil
}

// unchangedFile reports whether the whole run can be skipped because the
// file content matches the last completed sync. Resumes never skip: the
// recorded checksum belongs to an earlier completed run, not the
// interrupted one.
func (r *Runner) unchangedFile(f *feed.Feed, dl transport.Download, desc job.Descriptor) bool {
	return f.Options.SkipUnchangedFile &&
		!desc.IsPreview &&
		!desc.IsResume() &&
		f.LastChecksum != "" &&
		dl.Checksum == f.LastChecksum
}

// configError marks parse-stage failures caused by feed configuration
// rather than file content.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func (r *Runner) parse(f *feed.Feed, localPath string, desc job.Descriptor) (*tabular.Table, []mapping.CompiledMapping, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open downloaded file: %w", err)
	}
	defer file.Close()

	delimiter := ','
	if f.Parse.Delimiter != "" {
		delimiter = []rune(f.Parse.Delimiter)[0]
	}
	rowLimit := 0
	if desc.IsPreview {
		rowLimit = desc.PreviewRowLimit
		if rowLimit <= 0 {
			rowLimit = r.cfg.PreviewRowLimit
		}
	}

	table, err := tabular.Parse(file, tabular.Options{
		Delimiter: delimiter,
		Encoding:  f.Parse.Encoding,
		HasHeader: f.Parse.HasHeader,
		RowLimit:  rowLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("parse file: %w", err)
	}
	if err := tabular.Validate(table, f.Matching.Column); err != nil {
		return nil, nil, fmt.Errorf("validate file: %w", err)
	}

	compiled, errs := mapping.Compile(f.Mappings, table.Headers)
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, nil, &configError{fmt.Errorf("invalid mappings: %s", strings.Join(msgs, "; "))}
	}
	return table, compiled, nil
}

func (r *Runner) enqueueResume(ctx context.Context, j *job.Job, desc job.Descriptor) {
	_, err := r.queue.Enqueue(ctx, job.Descriptor{
		FeedID:      desc.FeedID,
		ShopID:      desc.ShopID,
		Type:        job.TriggerResume,
		ResumeJobID: j.ID,
	})
	if err != nil {
		// The stall sweep picks the interrupted job up later.
		log.Printf("job %s: enqueue resume: %v", j.ID, err)
	}
}

func (r *Runner) fail(ctx context.Context, jobID string, cause error, code string) error {
	if err := r.jobs.Fail(ctx, jobID, cause.Error(), code); err != nil {
		log.Printf("job %s: mark failed: %v", jobID, err)
	}
	return cause
}

// recordFeedSync writes the post-run feed summary; failures here never
// fail an already-completed job.
func (r *Runner) recordFeedSync(ctx context.Context, f *feed.Feed, checksum string) {
	var nextRun *time.Time
	if f.Schedule.Enabled {
		if next, err := feed.NextDailyRun(time.Now(), f.Schedule); err == nil {
			nextRun = &next
		}
	}
	if err := r.feeds.UpdateLastSync(ctx, f.ID, checksum, nextRun); err != nil {
		log.Printf("feed %s: update last sync: %v", f.ID, err)
	}
}
