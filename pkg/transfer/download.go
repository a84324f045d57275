package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gofrs/uuid"

	"github.com/osvaldn/go-httpcore/pkg/log"
	"github.com/osvaldn/go-httpcore/pkg/rest"
)

// Progress is a point-in-time transfer measurement. Fraction is only
// meaningful when Total is positive; callers receive no progress events
// at all when the total size is unknown.
type Progress struct {
	// Completed is the number of bytes transferred so far, including any
	// bytes carried over from a resumed task.
	Completed int64

	// Total is the expected final size in bytes.
	Total int64

	// Fraction is Completed/Total, in (0, 1].
	Fraction float64
}

// DownloadHandler receives the events of one download task. OnProgress
// may fire many times; OnComplete fires at most once, with either the
// final file path or a terminal error. Pausing a task emits neither.
type DownloadHandler struct {
	OnProgress func(Progress)
	OnComplete func(path string, err error)
}

// ErrTaskNotFound is returned by Pause and Cancel when no live task has
// the given id.
var ErrTaskNotFound = errors.New("transfer: task not found")

// ErrCancelled is the terminal error delivered for a cancelled task.
var ErrCancelled = errors.New("transfer: cancelled")

// continuation is the serialized state of a paused download. It is opaque
// to callers, who hold it as bytes and hand it back to Resume.
type continuation struct {
	URL      string `json:"url"`
	Dest     string `json:"dest"`
	TempPath string `json:"temp_path"`
	Offset   int64  `json:"offset"`
	ETag     string `json:"etag,omitempty"`
}

type downloadTask struct {
	id      string
	cancel  context.CancelFunc
	paused  atomic.Bool
	resumed chan continuation
	handler DownloadHandler
}

// Downloader runs download tasks to disk. Each task streams into a
// temporary file next to the destination and renames it into place on
// success, so a partially written destination is never observed.
type Downloader struct {
	requester rest.Requester
	reach     rest.Reachability
	logger    log.Logger
	metrics   *rest.Collector
	tasks     *registry[*downloadTask]
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithRequester replaces the transport used for download calls.
func WithRequester(r rest.Requester) DownloaderOption {
	return func(d *Downloader) { d.requester = r }
}

// WithReachability installs a connectivity gate checked before each task
// is created.
func WithReachability(r rest.Reachability) DownloaderOption {
	return func(d *Downloader) { d.reach = r }
}

// WithLogger installs a logger for task lifecycle events.
func WithLogger(l log.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = l }
}

// WithMetrics records terminal task outcomes on the given collector.
func WithMetrics(m *rest.Collector) DownloaderOption {
	return func(d *Downloader) { d.metrics = m }
}

// NewDownloader builds a Downloader. Downloads run with no overall
// client timeout; a stalled transfer is bounded by the caller's context.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		requester: &http.Client{},
		logger:    log.Discard,
		tasks:     newRegistry[*downloadTask](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins downloading the resource described by spec into dest and
// returns the task id. The handler is registered before any transfer
// work happens, so no event can precede the returned id. When the
// reachability gate reports no connectivity the task is never created.
func (d *Downloader) Start(ctx context.Context, spec rest.Spec, dest string, h DownloadHandler) (string, error) {
	if d.reach != nil && !d.reach.IsReachable() {
		return "", &rest.Error{Kind: rest.KindNoConnection, URL: spec.URL}
	}

	req, err := spec.HTTPRequest(context.Background())
	if err != nil {
		return "", err
	}

	return d.start(ctx, req, dest, 0, "", h)
}

// Resume restarts a paused download from its continuation data. When the
// server honors the range request the transfer appends to the partial
// temp file; a plain 200 response restarts the file from zero.
func (d *Downloader) Resume(ctx context.Context, data []byte, h DownloadHandler) (string, error) {
	var cont continuation
	if err := sonic.Unmarshal(data, &cont); err != nil {
		return "", &rest.Error{Kind: rest.KindInvalidRequest, Cause: err}
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, cont.URL, nil)
	if err != nil {
		return "", &rest.Error{Kind: rest.KindInvalidURL, URL: cont.URL, Cause: err}
	}
	if cont.Offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", cont.Offset))
		if cont.ETag != "" {
			req.Header.Set("If-Range", cont.ETag)
		}
	}

	return d.start(ctx, req, cont.Dest, cont.Offset, cont.TempPath, h)
}

func (d *Downloader) start(ctx context.Context, req *http.Request, dest string, offset int64, tempPath string, h DownloadHandler) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", &rest.Error{Kind: rest.KindUnknown, Cause: err}
	}

	if tempPath == "" {
		tempPath = dest + ".part"
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &downloadTask{
		id:      id.String(),
		cancel:  cancel,
		resumed: make(chan continuation, 1),
		handler: h,
	}
	d.tasks.insert(task.id, task)

	go d.run(taskCtx, task, req.WithContext(taskCtx), dest, tempPath, offset)
	return task.id, nil
}

// Pause stops the task and returns continuation data accepted by Resume.
// The task is removed from the registry and its handler receives no
// terminal event.
func (d *Downloader) Pause(id string) ([]byte, error) {
	task, ok := d.tasks.lookup(id)
	if !ok {
		return nil, ErrTaskNotFound
	}

	// Mark paused before racing the task goroutine for the remove, so a
	// losing goroutine knows to hand over continuation data instead of
	// treating the stop as a cancellation.
	task.paused.Store(true)
	if _, ok := d.tasks.remove(id); !ok {
		return nil, ErrTaskNotFound
	}
	task.cancel()

	cont := <-task.resumed
	return sonic.Marshal(cont)
}

// Cancel stops the task and delivers a cancelled terminal event.
func (d *Downloader) Cancel(id string) error {
	task, ok := d.tasks.remove(id)
	if !ok {
		return ErrTaskNotFound
	}

	task.cancel()
	d.metrics.Transfer("download", "cancelled")
	if task.handler.OnComplete != nil {
		task.handler.OnComplete("", &rest.Error{Kind: rest.KindDownloadFailed, Cause: ErrCancelled})
	}
	return nil
}

// CancelAll cancels every live download task.
func (d *Downloader) CancelAll() {
	for _, id := range d.tasks.snapshotIDs() {
		_ = d.Cancel(id)
	}
}

func (d *Downloader) run(ctx context.Context, task *downloadTask, req *http.Request, dest, tempPath string, offset int64) {
	logger := d.logger.With(log.String("task_id", task.id), log.String("url", req.URL.String()))

	written, etag, err := d.transfer(ctx, task, req, tempPath, offset)

	// The registry remove is the single arbiter of terminal ownership.
	// Losing it means Pause or Cancel won and will answer the caller.
	if _, ok := d.tasks.remove(task.id); !ok {
		if task.paused.Load() {
			logger.Info("download paused", log.Int64("offset", written))
			task.resumed <- continuation{
				URL:      req.URL.String(),
				Dest:     dest,
				TempPath: tempPath,
				Offset:   written,
				ETag:     etag,
			}
			return
		}
		_ = os.Remove(tempPath)
		return
	}

	if err == nil {
		if renameErr := os.Rename(tempPath, dest); renameErr != nil {
			err = &rest.Error{Kind: rest.KindDownloadFailed, URL: req.URL.String(), Cause: renameErr}
		}
	}

	if err != nil {
		logger.Warn("download failed", log.Err(err))
		d.metrics.Transfer("download", "failed")
		if task.handler.OnComplete != nil {
			task.handler.OnComplete("", err)
		}
		return
	}

	logger.Info("download completed", log.String("path", dest), log.Int64("bytes", written))
	d.metrics.Transfer("download", "completed")
	if task.handler.OnComplete != nil {
		task.handler.OnComplete(dest, nil)
	}
}

// transfer streams the response body into the temp file, reporting
// progress as bytes land. It returns the absolute file offset reached and
// the response ETag for resume validation.
func (d *Downloader) transfer(ctx context.Context, task *downloadTask, req *http.Request, tempPath string, offset int64) (int64, string, error) {
	res, err := d.requester.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, URL: req.URL.String(), Cause: ctx.Err()}
		}
		return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, URL: req.URL.String(), Cause: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusPartialContent && offset > 0:
		// Server honored the range; append to the partial file.
	case res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices:
		// Full body, including a 200 answer to a range request. Restart
		// the file from zero.
		offset = 0
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 8*1024))
		return offset, "", &rest.Error{
			Kind:       rest.KindDownloadFailed,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       body,
		}
	}

	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, Cause: err}
	}

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, Cause: err}
	}
	defer f.Close()

	if err := f.Truncate(offset); err != nil {
		return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, Cause: err}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, "", &rest.Error{Kind: rest.KindDownloadFailed, Cause: err}
	}

	total := int64(0)
	if res.ContentLength > 0 {
		total = offset + res.ContentLength
	}

	written := offset
	buf := make([]byte, 32*1024)
	for {
		n, rerr := res.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return written, res.Header.Get("ETag"), &rest.Error{Kind: rest.KindDownloadFailed, Cause: werr}
			}
			written += int64(n)

			// Progress goes through a registry lookup so that a task
			// removed by Cancel or Pause stops reporting immediately.
			if total > 0 {
				if live, ok := d.tasks.lookup(task.id); ok && live.handler.OnProgress != nil {
					live.handler.OnProgress(Progress{
						Completed: written,
						Total:     total,
						Fraction:  float64(written) / float64(total),
					})
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, res.Header.Get("ETag"), nil
			}
			if ctx.Err() != nil {
				return written, res.Header.Get("ETag"), &rest.Error{Kind: rest.KindDownloadFailed, URL: req.URL.String(), Cause: ctx.Err()}
			}
			return written, res.Header.Get("ETag"), &rest.Error{Kind: rest.KindDownloadFailed, URL: req.URL.String(), Cause: rerr}
		}
	}
}
