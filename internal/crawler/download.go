package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Report images arrive as JPEG, occasionally PNG.
	_ "image/jpeg"
	_ "image/png"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Download is the result of fetching one certificate image.
type Download struct {
	ExternalID    string
	LocalPath     string
	ContentHash   string
	Size          int64
	AlreadyExists bool
}

// DownloadImage fetches a certificate image, hashes its bytes, and writes
// it as {externalID}_{hash8}.jpg under the image directory. If any file
// already carries the same hash fragment the fetch is recorded as a
// duplicate and nothing is written.
func (c *Crawler) DownloadImage(ctx context.Context, imageURL, externalID string) (*Download, error) {
	data, err := c.fetch.Get(ctx, imageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: download image for %s", externalID)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	short := hash[:8]

	if existing := c.findExistingByHash(short); existing != "" {
		zap.L().Debug("crawler: image already downloaded",
			zap.String("external_id", externalID),
			zap.String("path", existing),
		)
		return &Download{
			ExternalID:    externalID,
			LocalPath:     existing,
			ContentHash:   hash,
			Size:          int64(len(data)),
			AlreadyExists: true,
		}, nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, eris.Wrapf(err, "crawler: invalid image for %s", externalID)
	}

	if err := os.MkdirAll(c.opts.ImageDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "crawler: create image dir")
	}

	path := filepath.Join(c.opts.ImageDir, fmt.Sprintf("%s_%s.jpg", externalID, short))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "crawler: write image %s", path)
	}

	zap.L().Debug("crawler: image downloaded",
		zap.String("external_id", externalID),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return &Download{
		ExternalID:  externalID,
		LocalPath:   path,
		ContentHash: hash,
		Size:        int64(len(data)),
	}, nil
}

// findExistingByHash returns the path of any stored image whose filename
// embeds the hash fragment, or "" when none exists.
func (c *Crawler) findExistingByHash(short string) string {
	matches, err := filepath.Glob(filepath.Join(c.opts.ImageDir, "*"+short+"*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}
