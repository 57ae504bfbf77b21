package snapshotdir

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PowerDNS/simpleblob"
	"github.com/pkg/errors"

	"github.com/ledgerlabs/snapstream/appendvec"
)

// Names of the two directories making up an unpacked snapshot.
const (
	snapshotsDir = "snapshots"
	accountsDir  = "accounts"
)

// Source provides read access to the files of one unpacked snapshot,
// independent of whether they live on a local filesystem or in a blob
// store.
type Source interface {
	// List returns the plain file names directly under dir, sorted by
	// name.
	List(ctx context.Context, dir string) ([]string, error)

	// Open streams the contents of name under dir.
	Open(ctx context.Context, dir, name string) (io.ReadCloser, error)

	// OpenSegment opens the segment file for (slot, id), bounding reads
	// by the manifest-declared length.
	OpenSegment(ctx context.Context, slot, id, declaredLen uint64) (*appendvec.AppendVec, error)
}

// DirSource reads an unpacked snapshot from a local directory tree.
// Segment files are memory-mapped.
type DirSource struct {
	root string
}

// NewDirSource returns a Source rooted at the given directory.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *DirSource) Open(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, dir, name))
	return f, errors.WithStack(err)
}

func (s *DirSource) OpenSegment(ctx context.Context, slot, id, declaredLen uint64) (*appendvec.AppendVec, error) {
	p := filepath.Join(s.root, accountsDir, segmentName(slot, id))
	return appendvec.Open(p, declaredLen, slot, id)
}

// BlobSource reads an unpacked snapshot from a blob storage backend,
// such as an S3 bucket holding the tree under a common prefix. Segment
// files are loaded fully into memory.
type BlobSource struct {
	st     simpleblob.Interface
	prefix string
}

// NewBlobSource returns a Source over the given backend. prefix is
// prepended to every blob name and may be empty.
func NewBlobSource(st simpleblob.Interface, prefix string) *BlobSource {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobSource{st: st, prefix: prefix}
}

func (s *BlobSource) List(ctx context.Context, dir string) ([]string, error) {
	full := s.prefix + dir + "/"
	blobs, err := s.st.List(ctx, full)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	names := make([]string, 0, len(blobs))
	for _, name := range blobs.Names() {
		names = append(names, path.Base(name))
	}
	return names, nil
}

func (s *BlobSource) Open(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	data, err := s.st.Load(ctx, s.prefix+dir+"/"+name)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s/%s", dir, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *BlobSource) OpenSegment(ctx context.Context, slot, id, declaredLen uint64) (*appendvec.AppendVec, error) {
	name := segmentName(slot, id)
	data, err := s.st.Load(ctx, s.prefix+accountsDir+"/"+name)
	if err != nil {
		return nil, errors.Wrapf(err, "load segment %s", name)
	}
	return appendvec.NewFromBytes(data, declaredLen, slot, id)
}

func segmentName(slot, id uint64) string {
	return strconv.FormatUint(slot, 10) + "." + strconv.FormatUint(id, 10)
}

// parseSegmentName splits a "slot.id" file name. Anything else under
// accounts/ is not a segment.
func parseSegmentName(name string) (slot, id uint64, err error) {
	slotStr, idStr, found := strings.Cut(name, ".")
	if !found {
		return 0, 0, errors.Errorf("segment name %q: missing separator", name)
	}
	if slot, err = strconv.ParseUint(slotStr, 10, 64); err != nil {
		return 0, 0, errors.Wrapf(err, "segment name %q", name)
	}
	if id, err = strconv.ParseUint(idStr, 10, 64); err != nil {
		return 0, 0, errors.Wrapf(err, "segment name %q", name)
	}
	return slot, id, nil
}
