package qr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DownloadStatus is the outcome of a download.
type DownloadStatus string

const (
	DownloadSkipped DownloadStatus = "skipped"
	DownloadSaved   DownloadStatus = "saved"
	DownloadFailed  DownloadStatus = "failed"
)

// Stage names the step a download failed in.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageStatus Stage = "status"
	StageBuffer Stage = "buffer"
	StageRead   Stage = "read"
	StageSave   Stage = "save"
)

// DownloadError is the typed failure of a download.
type DownloadError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Stage, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DownloadResult reports what a download did. Err is set only when Status is
// DownloadFailed.
type DownloadResult struct {
	Status   DownloadStatus
	URL      string
	Filename string
	Bytes    int64
	Err      *DownloadError
}

// Saver receives a finished download and stores it under name.
type Saver interface {
	Save(name string, r io.Reader, size int64) error
}

// DirSaver writes downloads into a directory.
type DirSaver struct {
	Dir string
}

// Save writes r to Dir/name, replacing any existing file.
func (d DirSaver) Save(name string, r io.Reader, size int64) error {
	path := filepath.Join(d.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Downloader fetches generated images and hands them to a Saver.
type Downloader struct {
	client  *http.Client
	tempDir string
	log     *slog.Logger
}

// NewDownloader returns a Downloader. A zero timeout means requests never
// time out; tempDir "" uses the OS default.
func NewDownloader(timeout time.Duration, tempDir string, log *slog.Logger) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		tempDir: tempDir,
		log:     log,
	}
}

// Download fetches imageURL and saves the bytes as qrcode.<format>. It never
// returns an error directly: failures are logged and reported in the result.
// An empty imageURL is a no-op. The payload is spooled to a temp file that is
// removed before Download returns, whatever the outcome.
func (d *Downloader) Download(ctx context.Context, imageURL string, format Format, sink Saver) DownloadResult {
	if imageURL == "" {
		return DownloadResult{Status: DownloadSkipped}
	}

	res := DownloadResult{URL: imageURL, Filename: format.Filename()}
	fail := func(stage Stage, err error) DownloadResult {
		res.Status = DownloadFailed
		res.Err = &DownloadError{Stage: stage, URL: imageURL, Err: err}
		d.log.Error("download failed", "url", imageURL, "stage", stage, "error", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fail(StageFetch, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fail(StageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(StageStatus, fmt.Errorf("unexpected status %s", resp.Status))
	}

	tmp, err := os.CreateTemp(d.tempDir, "qrcode-*."+string(format))
	if err != nil {
		return fail(StageBuffer, err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			d.log.Warn("remove download spool file", "path", tmp.Name(), "error", err)
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return fail(StageRead, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(StageBuffer, err)
	}

	if err := sink.Save(res.Filename, tmp, n); err != nil {
		return fail(StageSave, err)
	}

	res.Status = DownloadSaved
	res.Bytes = n
	d.log.Info("download saved", "url", imageURL, "filename", res.Filename, "bytes", n)
	return res
}
