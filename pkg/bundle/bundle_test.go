// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 4, 9, 30, 15, 500, time.UTC) }

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func outputTree(t *testing.T) string {
	t.Helper()

	return writeTree(t, map[string]string{
		"response_integrations/marketplace.json":                               "[]\n",
		"response_integrations/third_party/community/ping_tool/ping_tool.json": `{"Identifier":"PingTool"}`,
		"playbooks/first_party/phishing_triage/phishing_triage.json":           `{"Definition":{}}`,
	})
}

func TestCreateAndRead(t *testing.T) {
	t.Parallel()

	root := outputTree(t)
	out := filepath.Join(t.TempDir(), "dist", Name("run-1"))

	m, err := Create(context.Background(), Options{Root: root, Output: out, RunID: "run-1", Now: fixedNow})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(m.Files) != 3 {
		t.Fatalf("manifest has %d files, want 3", len(m.Files))
	}
	wantKinds := map[string]string{
		"playbooks/first_party/phishing_triage/phishing_triage.json":           "playbook",
		"response_integrations/marketplace.json":                               "index",
		"response_integrations/third_party/community/ping_tool/ping_tool.json": "integration",
	}
	for i, f := range m.Files {
		if i > 0 && m.Files[i-1].Path >= f.Path {
			t.Errorf("files not sorted: %q before %q", m.Files[i-1].Path, f.Path)
		}
		if wantKinds[f.Path] != f.Kind {
			t.Errorf("kind of %s = %q, want %q", f.Path, f.Kind, wantKinds[f.Path])
		}
	}
	if !m.CreatedAt.Equal(time.Date(2025, 3, 4, 9, 30, 15, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", m.CreatedAt)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, files, err := Read(context.Background(), f)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.RunID != "run-1" || len(got.Files) != 3 {
		t.Errorf("manifest = %+v", got)
	}
	if string(files["response_integrations/marketplace.json"]) != "[]\n" {
		t.Errorf("marketplace.json = %q", files["response_integrations/marketplace.json"])
	}
}

func TestCreate_Deterministic(t *testing.T) {
	t.Parallel()

	root := outputTree(t)
	dir := t.TempDir()
	var archives [][]byte
	for _, name := range []string{"a" + Suffix, "b" + Suffix} {
		out := filepath.Join(dir, name)
		if _, err := Create(context.Background(), Options{Root: root, Output: out, Now: fixedNow}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		archives = append(archives, data)
	}
	if !bytes.Equal(archives[0], archives[1]) {
		t.Error("two bundles of the same tree differ")
	}
}

func TestCreate_SkipsOwnOutput(t *testing.T) {
	t.Parallel()

	root := outputTree(t)
	out := filepath.Join(root, Name("run-2"))
	if err := os.WriteFile(out, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := Create(context.Background(), Options{Root: root, Output: out, Now: fixedNow})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, f := range m.Files {
		if f.Path == Name("run-2") {
			t.Error("bundle contains itself")
		}
	}
}

func TestCreate_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Create(context.Background(), Options{}); err == nil {
		t.Error("Create() without root should fail")
	}

	empty := t.TempDir()
	_, err := Create(context.Background(), Options{Root: empty, Output: filepath.Join(t.TempDir(), "x"+Suffix)})
	if !errors.Is(err, ErrEmptyTree) {
		t.Errorf("Create(empty) error = %v, want ErrEmptyTree", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Create(ctx, Options{Root: outputTree(t), Output: filepath.Join(t.TempDir(), "x"+Suffix)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Create(canceled) error = %v", err)
	}
}

// archive builds a raw bundle from the given entries.
func archive(t *testing.T, entries map[string]string, order ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(enc)
	for _, name := range order {
		body := entries[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	// sha256("a")
	const digestA = "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"
	manifest := "version: \"1\"\ncreated_at: 2025-01-01T00:00:00Z\nfiles:\n" +
		"  - path: x.json\n    kind: file\n    size: 1\n    sha256: " + digestA + "\n"

	tests := []struct {
		name    string
		entries map[string]string
		order   []string
		wantErr error
	}{
		{
			name:    "valid",
			entries: map[string]string{ManifestFile: manifest, "artifacts/x.json": "a"},
			order:   []string{ManifestFile, "artifacts/x.json"},
		},
		{
			name:    "no manifest",
			entries: map[string]string{"artifacts/x.json": "a"},
			order:   []string{"artifacts/x.json"},
			wantErr: ErrMissingManifest,
		},
		{
			name:    "tampered file",
			entries: map[string]string{ManifestFile: manifest, "artifacts/x.json": "b"},
			order:   []string{ManifestFile, "artifacts/x.json"},
			wantErr: ErrDigestMismatch,
		},
		{
			name:    "extra file",
			entries: map[string]string{ManifestFile: manifest, "artifacts/x.json": "a", "artifacts/y.json": "a"},
			order:   []string{ManifestFile, "artifacts/x.json", "artifacts/y.json"},
			wantErr: ErrDigestMismatch,
		},
		{
			name:    "path traversal",
			entries: map[string]string{ManifestFile: manifest, "../x.json": "a"},
			order:   []string{ManifestFile, "../x.json"},
			wantErr: ErrUnsafeEntry,
		},
		{
			name:    "outside artifacts",
			entries: map[string]string{ManifestFile: manifest, "x.json": "a"},
			order:   []string{ManifestFile, "x.json"},
			wantErr: ErrUnsafeEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, files, err := Read(context.Background(), bytes.NewReader(archive(t, tt.entries, tt.order...)))
			if tt.wantErr == nil {
				if err != nil || string(files["x.json"]) != "a" {
					t.Errorf("Read() = %v, %v", files, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Read() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
