package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/matzehuels/starmark/pkg/buildinfo"
	"github.com/matzehuels/starmark/pkg/errors"
)

const fetchTimeout = 30 * time.Second

// openSource opens a page argument: a file path, an http(s) URL, or "-" or
// nothing for stdin.
func openSource(ctx context.Context, arg string) (io.ReadCloser, error) {
	switch {
	case arg == "" || arg == "-":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		return fetchSource(ctx, arg)
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return f, nil
}

func fetchSource(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := errors.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "text/html")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, errors.New(errors.ErrCodeRemoteStatus, "fetch %s: status %d", rawURL, resp.StatusCode).WithStatus(resp.StatusCode)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// readFragments resolves --navigate values. A value starting with '@' names a
// file holding the fragment.
func readFragments(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if path, ok := strings.CutPrefix(v, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read fragment: %w", err)
			}
			v = string(data)
		}
		out = append(out, v)
	}
	return out, nil
}
