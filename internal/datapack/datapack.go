// Package datapack resolves problem case files. A problem may ship its
// cases as a zstd-compressed tar archive; the archive is extracted once
// into a per-problem cache directory and case paths resolve against it.
// Problems without a pack resolve paths directly on the local filesystem.
package datapack

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
)

// Resolver maps a problem's case file names to readable local paths,
// extracting data packs on first use.
type Resolver struct {
	rootDir string

	mu        sync.Mutex
	extracted map[int64]string
}

// NewResolver creates a resolver with the given extraction root.
func NewResolver(rootDir string) *Resolver {
	return &Resolver{
		rootDir:   rootDir,
		extracted: make(map[int64]string),
	}
}

// CasePath returns the readable path for one case file of the problem.
func (r *Resolver) CasePath(problem model.Problem, name string) (string, error) {
	if name == "" {
		return "", appErr.ValidationError("case_file", "required")
	}
	if problem.DataPack == "" {
		return name, nil
	}
	dir, err := r.ensureExtracted(problem)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(name)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", appErr.Newf(appErr.WorkspaceIOFailed, "case file %q escapes the data pack", name)
	}
	return filepath.Join(dir, clean), nil
}

func (r *Resolver) ensureExtracted(problem model.Problem) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir, ok := r.extracted[problem.ID]; ok {
		return dir, nil
	}
	if r.rootDir == "" {
		return "", appErr.New(appErr.WorkspaceIOFailed).WithMessage("data pack root is not configured")
	}
	dir := filepath.Join(r.rootDir, fmt.Sprintf("%d", problem.ID))
	if err := os.RemoveAll(dir); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceIOFailed, "cleanup pack dir failed")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create pack dir failed")
	}
	if err := extract(problem.DataPack, dir); err != nil {
		return "", err
	}
	r.extracted[problem.ID] = dir
	return dir, nil
}

func extract(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "open data pack failed")
	}
	defer file.Close()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.Newf(appErr.WorkspaceIOFailed, "tar entry %q escapes the pack dir", hdr.Name)
		}
		target := filepath.Join(dstDir, cleanName)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create pack subdir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create pack subdir failed")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create pack file failed")
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return appErr.Wrapf(err, appErr.WorkspaceIOFailed, "write pack file failed")
			}
			out.Close()
		default:
			// symlinks and specials are not allowed in packs
		}
	}
	return nil
}
