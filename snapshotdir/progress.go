package snapshotdir

import (
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/sirupsen/logrus"
)

// ReadProgress receives manifest read progress. Manifests for large
// ledgers run into gigabytes, so loading one is worth reporting on.
type ReadProgress interface {
	// Advance reports n more bytes read.
	Advance(n int)
	// Done reports the end of the read.
	Done()
}

// NopProgress discards all progress.
type NopProgress struct{}

func (NopProgress) Advance(int) {}
func (NopProgress) Done()       {}

// LogProgress logs a line for every logInterval bytes read.
type LogProgress struct {
	log   logrus.FieldLogger
	size  uint64 // stream size if known, else 0
	read  uint64
	next  uint64
}

const logInterval = 256 * datasize.MB

// NewLogProgress returns a LogProgress. size may be zero when the
// stream size is unknown.
func NewLogProgress(log logrus.FieldLogger, size uint64) *LogProgress {
	return &LogProgress{log: log, size: size, next: logInterval.Bytes()}
}

func (p *LogProgress) Advance(n int) {
	p.read += uint64(n)
	metricManifestBytesRead.Add(float64(n))
	if p.read >= p.next {
		p.next += logInterval.Bytes()
		p.log.WithFields(p.fields()).Info("Reading snapshot manifest")
	}
}

func (p *LogProgress) Done() {
	p.log.WithFields(p.fields()).Info("Snapshot manifest read")
}

func (p *LogProgress) fields() logrus.Fields {
	f := logrus.Fields{
		"read": datasize.ByteSize(p.read).HumanReadable(),
	}
	if p.size > 0 {
		f["size"] = datasize.ByteSize(p.size).HumanReadable()
	}
	return f
}

type progressReader struct {
	r io.Reader
	p ReadProgress
}

func newProgressReader(r io.Reader, p ReadProgress) io.Reader {
	return &progressReader{r: r, p: p}
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.p.Advance(n)
	}
	return n, err
}
