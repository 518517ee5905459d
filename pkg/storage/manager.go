package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const maxSlugLength = 60

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// StoredImage is an accepted image found in the image directory
type StoredImage struct {
	Name    string
	Path    string
	Source  string
	ID      string
	Size    int64
	ModTime time.Time
}

// Manager owns the image directory
type Manager struct {
	dir string
}

// NewManager creates a storage manager, creating dir if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the image directory path
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the absolute location of name inside the image directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Exists reports whether name is already present
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Slug turns a title into a lower-case filename fragment.
// Runs of non-alphanumeric characters collapse into a single underscore.
func Slug(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// safeID keeps the id free of the field separator and path characters
func safeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '_', r == '/', r == '\\', unicode.IsSpace(r):
			return '-'
		default:
			return r
		}
	}, id)
}

// FileName builds the deterministic name <slug>_<source>_<id>.<ext>
func FileName(title, source, id, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%s_%s.%s", Slug(title), source, safeID(id), ext)
}

// ExtensionFor maps a decoded image format onto a file extension
func ExtensionFor(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg", "":
		return "jpg"
	case "tiff":
		return "tif"
	default:
		return strings.ToLower(format)
	}
}

// ParseName recovers source and id from a name produced by FileName
func ParseName(name string) (source, id string, ok bool) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if !imageExtensions[strings.ToLower(ext)] {
		return "", "", false
	}
	stem := strings.TrimSuffix(base, ext)

	last := strings.LastIndexByte(stem, '_')
	if last <= 0 || last == len(stem)-1 {
		return "", "", false
	}
	id = stem[last+1:]
	rest := stem[:last]

	prev := strings.LastIndexByte(rest, '_')
	if prev <= 0 || prev == len(rest)-1 {
		return "", "", false
	}
	return rest[prev+1:], id, true
}

// Save writes data under name. An existing file is left untouched and
// existed is reported as true.
func (m *Manager) Save(name string, data []byte) (path string, existed bool, err error) {
	path = m.Path(name)
	if _, err := os.Stat(path); err == nil {
		return path, true, nil
	}

	tmp, err := os.CreateTemp(m.dir, ".canvasfetch-*.tmp")
	if err != nil {
		return "", false, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", false, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", false, fmt.Errorf("failed to sync image data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", false, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", false, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return path, false, nil
}

// List returns every accepted image in the directory, sorted by name.
// Temporary files, previews and files not named by FileName are skipped.
func (m *Manager) List() ([]StoredImage, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var images []StoredImage
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || isPreview(name) {
			continue
		}
		source, id, ok := ParseName(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, StoredImage{
			Name:    name,
			Path:    m.Path(name),
			Source:  source,
			ID:      id,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// Find resolves identifier to a stored image. It accepts a 1-based position
// in List order, a full filename or a filename without its extension.
func (m *Manager) Find(identifier string) (StoredImage, error) {
	images, err := m.List()
	if err != nil {
		return StoredImage{}, err
	}
	if len(images) == 0 {
		return StoredImage{}, fmt.Errorf("no images found in %s", m.dir)
	}

	if n, err := strconv.Atoi(identifier); err == nil && n >= 1 && n <= len(images) {
		return images[n-1], nil
	}
	for _, img := range images {
		if img.Name == identifier || strings.TrimSuffix(img.Name, filepath.Ext(img.Name)) == identifier {
			return img, nil
		}
	}
	return StoredImage{}, fmt.Errorf("image %q not found", identifier)
}

// Delete removes name and any preview rendered next to it
func (m *Manager) Delete(name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid image name %q", name)
	}
	if err := os.Remove(m.Path(name)); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, preview := range []string{stem + "_preview.png", stem + ".preview.png"} {
		os.Remove(m.Path(preview))
	}
	return nil
}

func isPreview(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "_preview.png") ||
		strings.HasSuffix(lower, ".preview.png") ||
		strings.HasSuffix(lower, ".tmp")
}
