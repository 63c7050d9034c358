package images

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoImages is returned when a directory holds no readable image files.
var ErrNoImages = errors.New("no images found")

// Frame is a decoded image read from disk.
type Frame struct {
	// Path is the path to the image file.
	Path string
	// Index is the trailing number of the file name, e.g. 12 for frame-12.jpg, or -1.
	Index int
	// Image is the decoded image.
	Image image.Image
}

// LoadFrames decodes a single image file, or every image in a directory.
//
// Arguments:
//   - path: An image file or a directory of images.
//
// Returns:
//   - []Frame: The decoded frames.
//   - error: An error if the path cannot be read or an image fails to decode.
func LoadFrames(path string) ([]Frame, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return []Frame{{Path: path, Index: frameIndex(path), Image: img}}, nil
}

// LoadDir decodes every .jpg, .jpeg, .png and .webp file in dir. Frames are ordered by
// their trailing file name number, then by name. Subdirectories are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []Frame: The decoded frames.
//   - error: ErrNoImages if nothing was found, or a read or decode error.
func LoadDir(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}

	var frames []Frame
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := FormatFromPath(entry.Name()); err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		img, err := Load(path)
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Path: path, Index: frameIndex(path), Image: img})
	}

	if len(frames) == 0 {
		return nil, errors.Wrap(ErrNoImages, dir)
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Index != frames[j].Index {
			return frames[i].Index < frames[j].Index
		}
		return frames[i].Path < frames[j].Path
	})
	return frames, nil
}

// frameIndex returns the number at the end of the file stem, or -1.
func frameIndex(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	end := len(stem)
	start := end
	for start > 0 && stem[start-1] >= '0' && stem[start-1] <= '9' {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return -1
	}
	return n
}
