// Package scanner performs the recursive filesystem walk that builds
// the initial index and feeds reindex operations.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/novasearch/novasearch/internal/model"
	"golang.org/x/time/rate"
)

// entriesPerPercentPerSecond sets how many filesystem entries the
// traversal is allowed to visit per second for each percentage point
// of the configured CPU budget, keeping a self-imposed traversal
// throttle rather than measuring actual CPU usage.
const entriesPerPercentPerSecond = 50

// appRoots are always scanned, regardless of user configuration, with
// the narrower application-directory inclusion rule.
func appRoots(home string) []string {
	roots := []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
		"/var/lib/snapd/desktop/applications",
		"/var/lib/flatpak/exports/share/applications",
		"/opt",
	}
	if home != "" {
		roots = append(roots,
			filepath.Join(home, ".local/share/applications"),
			filepath.Join(home, "snap"),
			filepath.Join(home, ".local/share/flatpak/exports/share/applications"),
			filepath.Join(home, "Applications"),
			filepath.Join(home, ".local/bin"),
			filepath.Join(home, "AppImages"),
		)
	}
	return roots
}

// Progress reports traversal counters that a caller may sample
// concurrently without blocking the scan.
type Progress struct {
	FilesScanned       int64
	DirectoriesScanned int64
	ErrorsEncountered  int64
	CurrentPath        string
}

// Scanner walks the configured include roots plus the fixed
// application-source roots and emits FileEntry records.
type Scanner struct {
	home              string
	includePaths      []string
	excludePatterns   []string
	limiter           *rate.Limiter
	filesScanned      atomic.Int64
	dirsScanned       atomic.Int64
	errorsEncountered atomic.Int64
	currentPath       atomic.Value
}

// New builds a Scanner over includePaths, pruning any entry whose
// basename matches one of excludePatterns (filepath.Match syntax,
// e.g. "*.tmp", "node_modules"). Invalid patterns are skipped,
// matching the original's permissive parse-and-ignore behavior.
// maxCPUPercent throttles the traversal rate; a value of zero or
// below disables throttling entirely.
func New(home string, includePaths, excludePatterns []string, maxCPUPercent uint8) *Scanner {
	s := &Scanner{home: home, includePaths: includePaths}
	s.currentPath.Store("")
	if maxCPUPercent > 0 {
		limit := rate.Limit(int(maxCPUPercent) * entriesPerPercentPerSecond)
		s.limiter = rate.NewLimiter(limit, int(limit))
	}
	for _, p := range excludePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			continue
		}
		s.excludePatterns = append(s.excludePatterns, p)
	}
	return s
}

// Progress returns a snapshot of the current traversal counters.
func (s *Scanner) Progress() Progress {
	cp, _ := s.currentPath.Load().(string)
	return Progress{
		FilesScanned:       s.filesScanned.Load(),
		DirectoriesScanned: s.dirsScanned.Load(),
		ErrorsEncountered:  s.errorsEncountered.Load(),
		CurrentPath:        cp,
	}
}

// Scan walks the application roots (narrow rule) followed by the
// configured include paths (exclude-glob rule), returning every
// discovered entry. Missing roots are skipped without error.
func (s *Scanner) Scan() []model.FileEntry {
	var entries []model.FileEntry

	for _, root := range appRoots(s.home) {
		if !exists(root) {
			continue
		}
		entries = append(entries, s.scanApplicationDirectory(root)...)
	}

	for _, root := range s.includePaths {
		if !exists(root) {
			continue
		}
		entries = append(entries, s.scanDirectory(root)...)
	}

	return entries
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// scanDirectory walks root, pruning any subtree whose basename
// matches an exclude glob before descending into it.
func (s *Scanner) scanDirectory(root string) []model.FileEntry {
	var entries []model.FileEntry

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.errorsEncountered.Add(1)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != root && s.isExcluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		s.recordVisit(path, d.IsDir())
		if entry, ok := s.toFileEntry(path, d); ok {
			entries = append(entries, entry)
		}
		return nil
	})

	return entries
}

// scanApplicationDirectory walks root applying the narrower
// application-source inclusion rule: directories always descend and
// are emitted; files are included only when they look like a
// .desktop launcher or an AppImage bundle.
func (s *Scanner) scanApplicationDirectory(root string) []model.FileEntry {
	var entries []model.FileEntry

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.errorsEncountered.Add(1)
			return nil
		}

		s.recordVisit(path, d.IsDir())

		if d.IsDir() {
			if entry, ok := s.toFileEntry(path, d); ok {
				entries = append(entries, entry)
			}
			return nil
		}

		if !looksLikeApplication(path) {
			return nil
		}
		if entry, ok := s.toFileEntry(path, d); ok {
			entries = append(entries, entry)
		}
		return nil
	})

	return entries
}

func (s *Scanner) recordVisit(path string, isDir bool) {
	if s.limiter != nil {
		s.limiter.Wait(context.Background())
	}
	s.currentPath.Store(path)
	if isDir {
		s.dirsScanned.Add(1)
	} else {
		s.filesScanned.Add(1)
	}
}

func (s *Scanner) isExcluded(name string) bool {
	for _, pattern := range s.excludePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if name == pattern {
			return true
		}
	}
	return false
}

// looksLikeApplication implements the application-directory inclusion
// rule: a recognized extension, a basename containing "AppImage", or
// content starting with the ELF magic or the literal text "AppImage"
// within the first 1024 bytes.
func looksLikeApplication(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "desktop" || ext == "AppImage" {
		return true
	}
	if strings.Contains(filepath.Base(path), "AppImage") {
		return true
	}
	return hasAppImageSignature(path)
}

func hasAppImageSignature(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	buf = buf[:n]

	if len(buf) >= 4 && buf[0] == 0x7f && buf[1] == 'E' && buf[2] == 'L' && buf[3] == 'F' {
		return true
	}
	return strings.Contains(string(buf), "AppImage")
}

func (s *Scanner) toFileEntry(path string, d fs.DirEntry) (model.FileEntry, bool) {
	info, err := d.Info()
	if err != nil {
		s.errorsEncountered.Add(1)
		return model.FileEntry{}, false
	}

	now := time.Now()
	return model.FileEntry{
		Filename:     d.Name(),
		Path:         path,
		Size:         uint64(info.Size()),
		ModifiedTime: info.ModTime(),
		FileType:     fileType(info),
		IndexedTime:  now,
	}, true
}

func fileType(info fs.FileInfo) model.FileType {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return model.FileTypeSymlink
	case info.IsDir():
		return model.FileTypeDirectory
	case info.Mode().IsRegular():
		return model.FileTypeRegular
	default:
		return model.FileTypeOther
	}
}
