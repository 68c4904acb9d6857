// SPDX-License-Identifier: MPL-2.0

// Package bundle packs a build output tree into a single reproducible
// tar.zst archive for distribution, and reads it back.
//
// An archive holds a manifest.yaml at the root followed by every regular
// file of the output tree under the artifacts/ prefix. The manifest lists
// each file with its size and SHA-256 digest. Archive entries carry fixed
// ownership, permissions and timestamps, so the same tree and manifest
// always produce the same bytes.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	// Suffix is the file suffix of bundles.
	Suffix = ".tar.zst"
	// ManifestFile is the archive entry holding the manifest.
	ManifestFile = "manifest.yaml"
	// ArtifactsPrefix is the archive directory holding the output tree.
	ArtifactsPrefix = "artifacts"
	// ManifestVersion is the manifest format written by Create.
	ManifestVersion = "1"

	fileMode = 0o644
)

// epoch is the modification time of every archive entry.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	// ErrEmptyTree is returned when the output tree holds no files.
	ErrEmptyTree = errors.New("output tree is empty")
	// ErrMissingManifest is returned when an archive has no manifest.
	ErrMissingManifest = errors.New("bundle has no manifest")
	// ErrDigestMismatch is returned when an archived file does not match
	// its manifest record.
	ErrDigestMismatch = errors.New("bundle file does not match its manifest")
	// ErrUnsafeEntry is returned for archive entries escaping the archive root.
	ErrUnsafeEntry = errors.New("unsafe bundle entry")
)

type (
	// Manifest describes the content of a bundle.
	Manifest struct {
		Version   string    `yaml:"version"`
		RunID     string    `yaml:"run_id,omitempty"`
		CreatedAt time.Time `yaml:"created_at"`
		Files     []File    `yaml:"files"`
	}

	// File is one archived file of the output tree.
	File struct {
		Path   string `yaml:"path"`
		Kind   string `yaml:"kind"`
		Size   int64  `yaml:"size"`
		SHA256 string `yaml:"sha256"`
	}

	// Options configures Create.
	Options struct {
		// Root is the output tree to pack.
		Root string
		// Output is the archive path. Created along with its parent directory.
		Output string
		RunID  string
		// Now stamps the manifest. Defaults to time.Now.
		Now func() time.Time
	}
)

// Name returns the conventional archive file name for a run.
func Name(runID string) string {
	return "mp-" + runID + Suffix
}

// Create packs opts.Root into opts.Output and returns the manifest written
// into the archive. The archive itself is skipped when it lies inside Root.
func Create(ctx context.Context, opts Options) (*Manifest, error) {
	if opts.Root == "" || opts.Output == "" {
		return nil, errors.New("bundle root and output are required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	files, err := collect(ctx, opts.Root, opts.Output)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTree, opts.Root)
	}

	m := &Manifest{
		Version:   ManifestVersion,
		RunID:     opts.RunID,
		CreatedAt: opts.Now().UTC().Truncate(time.Second),
		Files:     files,
	}
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}
	out, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}
	if err := write(ctx, out, manifest, opts.Root, files); err != nil {
		_ = out.Close()
		_ = os.Remove(opts.Output)
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}
	return m, nil
}

// collect hashes every regular file under root in lexical order.
func collect(ctx context.Context, root, skip string) ([]File, error) {
	skipAbs, _ := filepath.Abs(skip)
	var files []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == skipAbs {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		h := sha256.New()
		size, err := io.Copy(h, f)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		files = append(files, File{
			Path:   rel,
			Kind:   kindOf(rel),
			Size:   size,
			SHA256: hex.EncodeToString(h.Sum(nil)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect output tree: %w", err)
	}
	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

func kindOf(rel string) string {
	switch {
	case path.Dir(rel) == "response_integrations" || path.Dir(rel) == "playbooks":
		return "index"
	case strings.HasPrefix(rel, "response_integrations/"):
		return "integration"
	case strings.HasPrefix(rel, "playbooks/"):
		return "playbook"
	default:
		return "file"
	}
}

func write(ctx context.Context, w io.Writer, manifest []byte, root string, files []File) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)

	if err := writeEntry(tw, ManifestFile, bytes.NewReader(manifest), int64(len(manifest))); err != nil {
		_ = enc.Close()
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()
			return err
		}
		src, err := os.Open(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			_ = enc.Close()
			return err
		}
		err = writeEntry(tw, path.Join(ArtifactsPrefix, f.Path), src, f.Size)
		_ = src.Close()
		if err != nil {
			_ = enc.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("close tar stream: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd stream: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, r io.Reader, size int64) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     fileMode,
		Size:     size,
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", name, err)
	}
	if _, err := io.CopyN(tw, r, size); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Read decodes an archive, checks every file against the manifest and
// returns the manifest with the file contents keyed by output-tree path.
func Read(ctx context.Context, r io.Reader) (*Manifest, map[string][]byte, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var (
		m     *Manifest
		files = map[string][]byte{}
		tr    = tar.NewReader(dec)
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, hdr.Name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(hdr.Name)
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, hdr.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
		if name == ManifestFile {
			m = &Manifest{}
			if err := yaml.Unmarshal(data, m); err != nil {
				return nil, nil, fmt.Errorf("unmarshal manifest: %w", err)
			}
			continue
		}
		rel, ok := strings.CutPrefix(name, ArtifactsPrefix+"/")
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, hdr.Name)
		}
		files[rel] = data
	}
	if m == nil {
		return nil, nil, ErrMissingManifest
	}
	if m.Version != ManifestVersion {
		return nil, nil, fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	if err := verify(m, files); err != nil {
		return nil, nil, err
	}
	return m, files, nil
}

func verify(m *Manifest, files map[string][]byte) error {
	if len(files) != len(m.Files) {
		return fmt.Errorf("%w: %d archived files, %d in manifest", ErrDigestMismatch, len(files), len(m.Files))
	}
	for _, f := range m.Files {
		data, ok := files[f.Path]
		if !ok {
			return fmt.Errorf("%w: %s is missing", ErrDigestMismatch, f.Path)
		}
		sum := sha256.Sum256(data)
		if int64(len(data)) != f.Size || hex.EncodeToString(sum[:]) != f.SHA256 {
			return fmt.Errorf("%w: %s", ErrDigestMismatch, f.Path)
		}
	}
	return nil
}
