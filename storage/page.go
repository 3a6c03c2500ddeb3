// Package storage implements the fixed-size paged container that backs an
// on-disk table: whole pipe-delimited records packed into PageSize-byte
// pages, plus the file abstraction that reads/writes them sequentially.
package storage

import (
	"bufio"
	"bytes"

	"github.com/cespare/xxhash"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// DefaultPageSize is the on-disk page budget in bytes used when no
// configuration overrides it (spec.md §6).
const DefaultPageSize = 131072

// maxRecordsPerPage bounds how many records a single page may hold,
// independent of the byte budget, so a page of many tiny records can't grow
// an unbounded in-memory record slice.
const maxRecordsPerPage = 4096

// Page holds records FIFO until appending another would exceed the page's
// byte budget or its record-count cap.
type Page struct {
	pageSize  int
	records   []*record.Record
	sizeBytes int
}

// NewPage returns an empty page budgeted at pageSize bytes. A non-positive
// pageSize falls back to DefaultPageSize.
func NewPage(pageSize int) *Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Page{pageSize: pageSize}
}

// IsEmpty reports whether the page holds no records.
func (p *Page) IsEmpty() bool { return len(p.records) == 0 }

// NumRecords returns how many records the page currently holds.
func (p *Page) NumRecords() int { return len(p.records) }

// Append adds a record to the page, returning false (without mutating the
// page) if doing so would exceed the page's byte budget or maxRecordsPerPage.
func (p *Page) Append(r *record.Record) bool {
	const perRecordOverhead = 8
	size := r.Size() + perRecordOverhead
	if p.sizeBytes+size > p.pageSize || len(p.records) >= maxRecordsPerPage {
		return false
	}
	p.records = append(p.records, r)
	p.sizeBytes += size
	return true
}

// GetFirst pops the first record FIFO, returning false if the page is
// empty.
func (p *Page) GetFirst() (*record.Record, bool) {
	if len(p.records) == 0 {
		return nil, false
	}
	r := p.records[0]
	p.records = p.records[1:]
	return r, true
}

// ToBinary serializes the page to exactly its configured page-size bytes,
// zero-padded. Per spec.md §9.4 the page header stays implicit (records
// delimited by '|' and '\n' only, no record-count prefix), so the on-disk
// contract is exactly the pipe-delimited byte stream described in
// spec.md §6.
func (p *Page) ToBinary() []byte {
	var buf bytes.Buffer
	for _, r := range p.records {
		buf.Write(r.ToBytes())
	}
	payload := buf.Bytes()

	out := make([]byte, p.pageSize)
	copy(out, payload)
	return out
}

// FromBinary reconstructs a page's records from data (exactly the page's
// configured page-size bytes), given the schema that owns it. Trailing zero
// padding is silently ignored: it contains no '|', so ExtractNext reports a
// truncated read there, and FromBinary stops at the first such error.
func (p *Page) FromBinary(data []byte, sch *schema.Schema) error {
	if p.pageSize <= 0 {
		p.pageSize = len(data)
	}
	p.records = nil
	p.sizeBytes = 0

	reader := bufio.NewReader(bytes.NewReader(data))
	for {
		r := record.New()
		ok, err := r.ExtractNext(sch, reader)
		if err != nil {
			// Zero padding where a field was expected has no '|' after
			// it and comes back as a truncated-read error; any error is
			// treated as the end of live data in this page, matching the
			// zero fill ToBinary writes after the records.
			break
		}
		if !ok {
			break
		}
		p.sizeBytes += r.Size() + 8
		p.records = append(p.records, r)
	}
	return nil
}

// Fingerprint returns an xxhash digest of the page's serialized payload
// (the non-padding bytes only). PagedFile logs it at debug level on each page
// write and load; it is not stored on disk or compared against anything, so
// it does not detect a corrupted or torn page and cannot change the wire
// format spec.md §6 fixes.
func (p *Page) Fingerprint() uint64 {
	var buf bytes.Buffer
	for _, r := range p.records {
		buf.Write(r.ToBytes())
	}
	return xxhash.Sum64(buf.Bytes())
}
