// Package upload sends images to the storefront admin upload endpoint.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	uploadPath = "/admin/api/upload"
	fieldName  = "image"

	DefaultMaxBytes = 5 << 20
)

// Result is where the server stored the image. DBPath, when present, is the value to save
// on the product; Path is the public URL path.
type Result struct {
	Path   string `json:"path"`
	DBPath string `json:"dbPath"`
}

// Stored returns the value a product record should keep.
func (r Result) Stored() string {
	if r.DBPath != "" {
		return r.DBPath
	}
	return r.Path
}

type requester interface {
	NewRequest(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Request, error)
	Send(op string, req *http.Request, out any) error
}

// Client uploads images. It is safe for concurrent use.
type Client struct {
	api      requester
	maxBytes int64
	logger   *zap.Logger
}

type Option func(*Client)

// WithMaxBytes caps the accepted file size.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l).Named("upload") }
}

func New(api requester, opts ...Option) *Client {
	c := &Client{api: api, maxBytes: DefaultMaxBytes, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFile reads the image at path and uploads it.
func (c *Client) UploadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, domain.NewError(domain.KindValidation, "upload image", err, "could not open %s", filepath.Base(path))
	}
	defer f.Close()
	return c.Upload(ctx, filepath.Base(path), f)
}

// Upload sends r as the multipart field "image". Non-image content and files over the size
// cap are refused before anything is sent.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (Result, error) {
	const op = "upload image"
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return Result{}, domain.NewError(domain.KindValidation, op, err, "could not read image")
	}
	if int64(len(data)) > c.maxBytes {
		return Result{}, domain.NewError(domain.KindValidation, op, nil, "image is larger than %d KB", c.maxBytes>>10)
	}
	if len(data) == 0 {
		return Result{}, domain.NewError(domain.KindValidation, op, nil, "image is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Result{}, domain.NewError(domain.KindValidation, op, nil, "only image files are allowed")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, quoteEscaper.Replace(filepath.Base(filename))))
	h.Set("Content-Type", mt.String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return Result{}, domain.NewError(domain.KindValidation, op, err, "could not build upload")
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, domain.NewError(domain.KindValidation, op, err, "could not build upload")
	}
	if err := mw.Close(); err != nil {
		return Result{}, domain.NewError(domain.KindValidation, op, err, "could not build upload")
	}

	req, err := c.api.NewRequest(ctx, op, http.MethodPost, uploadPath, &body, mw.FormDataContentType())
	if err != nil {
		return Result{}, err
	}
	var out Result
	if err := c.api.Send(op, req, &out); err != nil {
		return Result{}, err
	}
	if out.Stored() == "" {
		return Result{}, domain.NewError(domain.KindMalformedResponse, op, nil, "upload response has no path")
	}
	c.logger.Debug("image uploaded", zap.String("file", filename), zap.String("type", mt.String()), zap.String("path", out.Stored()))
	return out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
