// Package framesource supplies camera frames for a lot.
package framesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"campus_parking/internal/domain"
)

// FrameCycle is the number of distinct frame offsets a poller walks through.
const FrameCycle = 30

var ErrNoFrame = errors.New("no frame available")

type Source interface {
	Frame(ctx context.Context, lotID string, offset int) (domain.Frame, error)
}

var imageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// DirectorySource serves frames from per-lot feed directories. Frames are the image files of
// a directory in name order; offset selects one modulo the frame count.
type DirectorySource struct {
	feeds map[string]string
	now   func() time.Time
}

func NewDirectorySource(lots []domain.Lot) *DirectorySource {
	feeds := make(map[string]string, len(lots))
	for _, lot := range lots {
		if lot.HasFeed() {
			feeds[lot.ID] = lot.FeedPath
		}
	}
	return &DirectorySource{feeds: feeds, now: time.Now}
}

func (s *DirectorySource) Frame(ctx context.Context, lotID string, offset int) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}

	dir, ok := s.feeds[lotID]
	if !ok {
		return domain.Frame{}, fmt.Errorf("%w: lot %q has no feed", ErrNoFrame, lotID)
	}

	files, err := listFrames(dir)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("%w: lot %q: %v", ErrNoFrame, lotID, err)
	}
	if len(files) == 0 {
		return domain.Frame{}, fmt.Errorf("%w: lot %q: feed %s is empty", ErrNoFrame, lotID, dir)
	}

	if offset < 0 {
		offset = -offset
	}
	path := files[offset%len(files)]
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("%w: read %s: %v", ErrNoFrame, path, err)
	}

	return domain.Frame{LotID: lotID, CapturedAt: s.now().UTC(), Data: data}, nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// OffsetAt maps wall-clock time onto the frame cycle.
func OffsetAt(t time.Time) int {
	return int(t.Unix() % FrameCycle)
}
