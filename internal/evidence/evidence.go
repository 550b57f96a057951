// Package evidence assembles hashed evidence packs from logs and alerts.
package evidence

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	HashesFile   = "hashes.txt"
	ManifestFile = "manifest.json"

	// Notes is recorded in every manifest.
	Notes = "v1 evidence pack (hashes only). Add signing in v2."
)

// Clock stamps generated_at.
var Clock = func() time.Time { return time.Now().UTC() }

// Artifact is one hashed file in the pack.
type Artifact struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// Manifest describes a pack. The last artifact is always hashes.txt.
type Manifest struct {
	GeneratedAt string     `json:"generated_at"`
	Artifacts   []Artifact `json:"artifacts"`
	Notes       string     `json:"notes"`
}

// Files returns the pack's file names, manifest last.
func (m *Manifest) Files() []string {
	out := make([]string, 0, len(m.Artifacts)+1)
	for _, a := range m.Artifacts {
		out = append(out, a.Name)
	}
	return append(out, ManifestFile)
}

// Build copies logs and alerts into outdir and writes hashes.txt and
// manifest.json next to them.
func Build(logs, alerts, outdir string) (*Manifest, error) {
	if filepath.Base(logs) == filepath.Base(alerts) {
		return nil, fmt.Errorf("evidence: logs and alerts share the name %q", filepath.Base(logs))
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create %s: %w", outdir, err)
	}

	m := &Manifest{
		GeneratedAt: Clock().UTC().Format(time.RFC3339Nano),
		Notes:       Notes,
	}
	var hashes bytes.Buffer
	for _, src := range []string{logs, alerts} {
		name := filepath.Base(src)
		sum, err := copyHashed(src, filepath.Join(outdir, name))
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&hashes, "%s  %s\n", sum, name)
		m.Artifacts = append(m.Artifacts, Artifact{Name: name, SHA256: sum})
	}

	if err := os.WriteFile(filepath.Join(outdir, HashesFile), hashes.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("evidence: write %s: %w", HashesFile, err)
	}
	m.Artifacts = append(m.Artifacts, Artifact{Name: HashesFile, SHA256: sumBytes(hashes.Bytes())})

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outdir, ManifestFile), body, 0o644); err != nil {
		return nil, fmt.Errorf("evidence: write %s: %w", ManifestFile, err)
	}
	return m, nil
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check re-hashes every artifact in the pack at dir against its manifest
// and returns the names that no longer match.
func Check(dir string) ([]string, error) {
	body, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("evidence: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("evidence: parse manifest: %w", err)
	}
	var bad []string
	for _, a := range m.Artifacts {
		sum, err := HashFile(filepath.Join(dir, a.Name))
		if err != nil || sum != a.SHA256 {
			bad = append(bad, a.Name)
		}
	}
	return bad, nil
}

func copyHashed(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("evidence: open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("evidence: create %s: %w", dst, err)
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", fmt.Errorf("evidence: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sumBytes(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}
