package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/osvaldn/go-httpcore/pkg/log"
	"github.com/osvaldn/go-httpcore/pkg/rest"
)

// UploadHandler receives the events of one typed upload task. OnProgress
// fires as request body bytes are written, only when the payload size is
// known. OnComplete fires at most once with the decoded server response.
type UploadHandler[T any] struct {
	OnProgress func(Progress)
	OnComplete func(rest.Response[T])
}

// uploadTask erases the handler's type parameter so tasks of different
// response types share one registry. The typed wrapper is rebuilt at the
// call site by StartUpload.
type uploadTask struct {
	id         string
	cancel     context.CancelFunc
	onProgress func(Progress)
	onComplete func(status int, header http.Header, body []byte, err *rest.Error)
}

// Uploader runs upload tasks. It shares the Downloader's lifecycle rules:
// handlers are registered before the first byte moves, terminal delivery
// is at most once, and cancellation goes through the registry.
type Uploader struct {
	requester rest.Requester
	reach     rest.Reachability
	logger    log.Logger
	metrics   *rest.Collector
	tasks     *registry[*uploadTask]
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithUploadRequester replaces the transport used for upload calls.
func WithUploadRequester(r rest.Requester) UploaderOption {
	return func(u *Uploader) { u.requester = r }
}

// WithUploadReachability installs a connectivity gate checked before each
// task is created.
func WithUploadReachability(r rest.Reachability) UploaderOption {
	return func(u *Uploader) { u.reach = r }
}

// WithUploadLogger installs a logger for task lifecycle events.
func WithUploadLogger(l log.Logger) UploaderOption {
	return func(u *Uploader) { u.logger = l }
}

// WithUploadMetrics records terminal task outcomes on the given collector.
func WithUploadMetrics(m *rest.Collector) UploaderOption {
	return func(u *Uploader) { u.metrics = m }
}

// NewUploader builds an Uploader.
func NewUploader(opts ...UploaderOption) *Uploader {
	u := &Uploader{
		requester: &http.Client{},
		logger:    log.Discard,
		tasks:     newRegistry[*uploadTask](),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// StartUpload begins sending body to the endpoint described by spec and
// returns the task id. The Spec's URL, method and headers apply; its Body
// field is ignored in favor of the transfer payload. The
// response body is decoded as JSON into T unless T is rest.Void.
func StartUpload[T any](ctx context.Context, u *Uploader, spec rest.Spec, body Body, h UploadHandler[T]) (string, error) {
	if u.reach != nil && !u.reach.IsReachable() {
		return "", &rest.Error{Kind: rest.KindNoConnection, URL: spec.URL}
	}

	if spec.Method == "" {
		spec.Method = rest.MethodPost
	}
	spec.Body = nil
	req, err := spec.HTTPRequest(context.Background())
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", &rest.Error{Kind: rest.KindUnknown, Cause: err}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	taskID := id.String()
	task := &uploadTask{
		id:     taskID,
		cancel: cancel,
		// Progress goes through a registry lookup so a cancelled task
		// stops reporting immediately.
		onProgress: func(p Progress) {
			if _, ok := u.tasks.lookup(taskID); ok && h.OnProgress != nil {
				h.OnProgress(p)
			}
		},
		onComplete: func(status int, header http.Header, body []byte, ferr *rest.Error) {
			if h.OnComplete == nil {
				return
			}
			if ferr != nil {
				res := rest.Response[T]{StatusCode: status, Header: header, Body: body, Err: ferr}
				h.OnComplete(res)
				return
			}
			value, derr := rest.Decode[T](body)
			if derr != nil {
				h.OnComplete(rest.Response[T]{StatusCode: status, Header: header, Body: body, Err: derr})
				return
			}
			h.OnComplete(rest.Response[T]{StatusCode: status, Header: header, Body: body, Value: value})
		},
	}
	u.tasks.insert(task.id, task)

	go u.run(taskCtx, task, req.WithContext(taskCtx), body)
	return task.id, nil
}

// Cancel stops the task and delivers a cancelled terminal event.
func (u *Uploader) Cancel(id string) error {
	task, ok := u.tasks.remove(id)
	if !ok {
		return ErrTaskNotFound
	}

	task.cancel()
	u.metrics.Transfer("upload", "cancelled")
	task.onComplete(0, nil, nil, &rest.Error{Kind: rest.KindUploadFailed, Cause: ErrCancelled})
	return nil
}

// CancelAll cancels every live upload task.
func (u *Uploader) CancelAll() {
	for _, id := range u.tasks.snapshotIDs() {
		_ = u.Cancel(id)
	}
}

func (u *Uploader) run(ctx context.Context, task *uploadTask, req *http.Request, body Body) {
	logger := u.logger.With(log.String("task_id", task.id), log.String("url", req.URL.String()))

	status, header, resBody, err := u.send(ctx, task, req, body)

	if _, ok := u.tasks.remove(task.id); !ok {
		// Cancel won and already delivered the terminal event.
		return
	}

	if err != nil {
		logger.Warn("upload failed", log.Err(err))
		u.metrics.Transfer("upload", "failed")
		task.onComplete(status, header, resBody, err)
		return
	}

	logger.Info("upload completed", log.Int("status", status))
	u.metrics.Transfer("upload", "completed")
	task.onComplete(status, header, resBody, nil)
}

func (u *Uploader) send(ctx context.Context, task *uploadTask, req *http.Request, body Body) (int, http.Header, []byte, *rest.Error) {
	rc, err := body.open()
	if err != nil {
		var ferr *rest.Error
		if !errors.As(err, &ferr) {
			ferr = &rest.Error{Kind: rest.KindInvalidRequest, Cause: err}
		}
		return 0, nil, nil, ferr
	}

	counted := &countingReader{r: rc, total: body.Size, onProgress: task.onProgress}
	req.Body = struct {
		io.Reader
		io.Closer
	}{counted, rc}
	if body.Size >= 0 {
		req.ContentLength = body.Size
	}
	if body.ContentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", body.ContentType)
	}

	res, err := u.requester.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, nil, &rest.Error{Kind: rest.KindUploadFailed, URL: req.URL.String(), Cause: ctx.Err()}
		}
		return 0, nil, nil, &rest.Error{Kind: rest.KindUploadFailed, URL: req.URL.String(), Cause: err}
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, res.Header, nil, &rest.Error{Kind: rest.KindUploadFailed, URL: req.URL.String(), Cause: err}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return res.StatusCode, res.Header, resBody, &rest.Error{
			Kind:       rest.KindUploadFailed,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       resBody,
		}
	}

	return res.StatusCode, res.Header, resBody, nil
}

// countingReader reports progress as the transport drains the request
// body. Ratios are only emitted when the total size is known.
type countingReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress func(Progress)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.total > 0 && c.onProgress != nil {
			c.onProgress(Progress{
				Completed: c.sent,
				Total:     c.total,
				Fraction:  float64(c.sent) / float64(c.total),
			})
		}
	}
	return n, err
}
