package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"barscan/internal/faults"
)

var stillExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// stillsSource replays images from a directory (or a single image file) in
// lexical order, one image per ReadFrame.
type stillsSource struct {
	mu       sync.Mutex
	paths    []string
	next     int
	loop     bool
	seq      uint64
	released bool
}

func openStills(cfg Config) (*stillsSource, error) {
	paths, err := listStills(cfg.Device)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "open",
			fmt.Sprintf("no images found in %s", cfg.Device), nil)
	}
	return &stillsSource{paths: paths, loop: cfg.Loop}, nil
}

func listStills(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", "stat stills path", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", "read stills directory", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := stillExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		paths = append(paths, filepath.Join(root, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *stillsSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return Frame{}, ErrEndOfStream
	}
	if s.next >= len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return Frame{}, ErrEndOfStream
		}
		s.next = 0
	}
	path := s.paths[s.next]
	s.next++
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	img, err := decodeImageFile(path)
	if err != nil {
		return Frame{}, faults.Wrap(faults.ErrTransient, "capture", "read", filepath.Base(path), err)
	}
	return FrameFromImage(img, seq, time.Now()), nil
}

func (s *stillsSource) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	return nil
}

func decodeImageFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// LoadImage decodes a PNG, JPEG, BMP or TIFF file into a Frame.
func LoadImage(path string) (Frame, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return Frame{}, err
	}
	return FrameFromImage(img, 1, time.Now()), nil
}
