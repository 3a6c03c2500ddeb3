package storage

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// PagedFile is the on-disk table abstraction: a sequence of fixed-size
// pages read/written sequentially, with the current page cached in memory.
// Grounded on the Rust prototype's DBFile (original_source/src/db_file.rs),
// adapted to Go's os.File and error-return idiom.
type PagedFile struct {
	file        *os.File
	schema      *schema.Schema
	currentPos  int64 // page index, not byte offset
	currentPage *Page
	pageSize    int
	log         *logrus.Entry
}

// New returns an unopened PagedFile that paginates at pageSize bytes
// (config.Config.Storage.PageSize; a non-positive value falls back to
// DefaultPageSize). Logger may be nil.
func New(log *logrus.Entry, pageSize int) *PagedFile {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PagedFile{log: log, pageSize: pageSize}
}

// Create truncates (or creates) the file at path for read/write and resets
// the cursor to the first page.
func (f *PagedFile) Create(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "storage: create %s", path)
	}
	f.file = file
	f.currentPos = 0
	f.currentPage = NewPage(f.pageSize)
	return nil
}

// Open opens an existing file for read/write and positions at the first
// page. GetNext returns records only once a schema is set; SetSchema may be
// called before or after Open, and loads the first page if the file is open.
func (f *PagedFile) Open(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrapf(err, "storage: open %s", path)
	}
	f.file = file
	f.currentPos = 0
	f.currentPage = NewPage(f.pageSize)
	if f.schema != nil {
		f.MoveFirst()
	}
	return nil
}

// SetSchema associates the owning table's schema with the file, required
// before any page can be decoded.
func (f *PagedFile) SetSchema(sch *schema.Schema) {
	f.schema = sch
	if f.file != nil {
		f.MoveFirst()
	}
}

// Close flushes a partially-filled trailing page and releases the file
// handle.
func (f *PagedFile) Close() error {
	if f.file == nil {
		return nil
	}
	if f.currentPage != nil && !f.currentPage.IsEmpty() {
		if err := f.writeCurrentPage(); err != nil {
			return err
		}
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// MoveFirst resets the read cursor to the first page.
func (f *PagedFile) MoveFirst() {
	f.currentPos = 0
	if f.schema == nil {
		f.currentPage = NewPage(f.pageSize)
		return
	}
	if err := f.loadPage(0); err != nil {
		f.currentPage = NewPage(f.pageSize)
	}
}

// GetNext reads the next record from the current page, loading subsequent
// pages as the current one is exhausted. Returns false once the file is
// exhausted.
func (f *PagedFile) GetNext() (*record.Record, bool, error) {
	if r, ok := f.currentPage.GetFirst(); ok {
		return r, true, nil
	}

	f.currentPos++
	if err := f.loadPage(f.currentPos); err != nil {
		return nil, false, nil
	}
	if r, ok := f.currentPage.GetFirst(); ok {
		return r, true, nil
	}
	return nil, false, nil
}

// Append writes a record to the current page, flushing and advancing to a
// new page first if the current one is full.
func (f *PagedFile) Append(r *record.Record) error {
	if f.currentPage.Append(r) {
		return nil
	}
	if err := f.writeCurrentPage(); err != nil {
		return err
	}
	f.currentPos++
	f.currentPage = NewPage(f.pageSize)
	if !f.currentPage.Append(r) {
		return errors.New("storage: record too large for an empty page")
	}
	return nil
}

// LoadFromText bulk-loads records parsed from a pipe-delimited text file
// under sch into the paged file, which must already be open for write.
func (f *PagedFile) LoadFromText(sch *schema.Schema, textPath string) error {
	f.schema = sch

	text, err := os.Open(textPath)
	if err != nil {
		return errors.Wrapf(err, "storage: open text source %s", textPath)
	}
	defer text.Close()

	reader := bufio.NewReader(text)
	f.currentPos = 0
	f.currentPage = NewPage(f.pageSize)

	for {
		r := record.New()
		ok, err := r.ExtractNext(sch, reader)
		if err != nil {
			return errors.Wrap(err, "storage: load from text")
		}
		if !ok {
			break
		}
		if err := f.Append(r); err != nil {
			return err
		}
	}

	if !f.currentPage.IsEmpty() {
		return f.writeCurrentPage()
	}
	return nil
}

func (f *PagedFile) loadPage(pageNum int64) error {
	if f.file == nil {
		return errors.New("storage: file not open")
	}
	if f.schema == nil {
		return errors.New("storage: schema not set")
	}

	buf := make([]byte, f.pageSize)
	n, err := f.file.ReadAt(buf, pageNum*int64(f.pageSize))
	if n == 0 {
		if err != nil {
			f.currentPage = NewPage(f.pageSize)
			return errors.Wrap(err, "storage: read page")
		}
		f.currentPage = NewPage(f.pageSize)
		return errors.New("storage: empty page read")
	}

	page := NewPage(f.pageSize)
	if err := page.FromBinary(buf, f.schema); err != nil {
		return errors.Wrap(err, "storage: decode page")
	}
	f.currentPage = page
	f.log.WithField("page", pageNum).WithField("fingerprint", page.Fingerprint()).Debug("storage: loaded page")
	return nil
}

func (f *PagedFile) writeCurrentPage() error {
	if f.file == nil {
		return errors.New("storage: file not open")
	}
	data := f.currentPage.ToBinary()
	if _, err := f.file.WriteAt(data, f.currentPos*int64(f.pageSize)); err != nil {
		return errors.Wrap(err, "storage: write page")
	}
	f.log.WithField("page", f.currentPos).WithField("fingerprint", f.currentPage.Fingerprint()).Debug("storage: wrote page")
	return nil
}

// CurrentPagePos exposes the write/read cursor, used by tests.
func (f *PagedFile) CurrentPagePos() int64 { return f.currentPos }
