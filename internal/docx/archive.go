package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Archive error kinds. Callers branch on these with errors.Is; absence of an
// entry is a valid "nothing to do" state for the flattener and replacer, so
// they translate ErrEntryNotFound into an unchanged-input result instead of
// surfacing it.
var (
	ErrCorruptArchive = errors.New("corrupt archive")
	ErrEntryNotFound  = errors.New("entry not found")
)

// Package is a read-only view of an opened document package plus the source
// bytes it came from. Rebuilding always starts from the source, so a Package
// can produce any number of mutated copies without accumulating state.
type Package struct {
	source []byte
	reader *zip.Reader
	byName map[string]*zip.File
}

// OpenPackage parses data as a Zip package. It does not require any
// particular entry to be present; callers decide how to treat a missing
// document entry.
func OpenPackage(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	pkg := &Package{
		source: data,
		reader: zr,
		byName: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		pkg.byName[f.Name] = f
	}
	return pkg, nil
}

// Read returns the decompressed content of the named entry.
func (p *Package) Read(name string) ([]byte, error) {
	f, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", name, err)
	}
	return content, nil
}

// Has reports whether the package contains the named entry.
func (p *Package) Has(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// Entries returns the entry names in archive order.
func (p *Package) Entries() []string {
	names := make([]string, 0, len(p.reader.File))
	for _, f := range p.reader.File {
		names = append(names, f.Name)
	}
	return names
}

// Rebuild writes a new package containing every original entry in its
// original order. Entries named in overrides are written with the override
// bytes (deflate-compressed); all other entries are copied through with
// their original compression, so their stored bytes stay identical to the
// input. Override names that do not exist in the source are appended after
// the original entries.
func (p *Package) Rebuild(overrides map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	written := make(map[string]bool, len(overrides))
	for _, f := range p.reader.File {
		if content, ok := overrides[f.Name]; ok {
			if err := writeEntry(w, f.Name, content); err != nil {
				return nil, err
			}
			written[f.Name] = true
			continue
		}
		if err := copyEntryRaw(w, f); err != nil {
			return nil, err
		}
	}
	appended := make([]string, 0, len(overrides))
	for name := range overrides {
		if !written[name] {
			appended = append(appended, name)
		}
	}
	sort.Strings(appended)
	for _, name := range appended {
		if err := writeEntry(w, name, overrides[name]); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(w *zip.Writer, name string, content []byte) error {
	fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// copyEntryRaw transfers an entry without recompressing it.
func copyEntryRaw(w *zip.Writer, f *zip.File) error {
	header := f.FileHeader
	fw, err := w.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", f.Name, err)
	}
	rr, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	if _, err := io.Copy(fw, rr); err != nil {
		return fmt.Errorf("copy entry %s: %w", f.Name, err)
	}
	return nil
}
