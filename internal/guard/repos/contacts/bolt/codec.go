package bolt

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/contacts"
)

// Contact row layout (big endian):
//
//	list u8 | created unix nanos i64 (0 = unset) | name len u16 | name | count u16 |
//	count x (mode u8 | number len u16 | number)
//
// Number index value layout:
//
//	list u8 | mode u8 | owner id
func encodeContact(e domain.ContactEntry) []byte {
	name := clampString(e.Name)
	size := 1 + 8 + 2 + len(name) + 2
	for _, n := range e.Numbers {
		size += 1 + 2 + len(n.Number)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, byte(e.List))
	var created int64
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.UnixNano()
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(created))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(name)))
	buf = append(buf, name...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Numbers)))
	for _, n := range e.Numbers {
		buf = append(buf, byte(n.Mode))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(n.Number)))
		buf = append(buf, n.Number...)
	}
	return buf
}

func decodeContact(id string, v []byte) (domain.ContactEntry, error) {
	r := reader{buf: v}
	e := domain.ContactEntry{ID: id}
	e.List = domain.ListType(r.u8())
	if created := int64(r.u64()); created != 0 {
		e.CreatedAt = time.Unix(0, created).UTC()
	}
	e.Name = r.str()
	count := int(r.u16())
	if r.err {
		return domain.ContactEntry{}, fmt.Errorf("contact %s: %w", id, errCorrupt)
	}
	e.Numbers = make([]domain.ContactNumber, 0, count)
	for i := 0; i < count; i++ {
		mode := domain.MatchMode(r.u8())
		num := r.str()
		e.Numbers = append(e.Numbers, domain.ContactNumber{Number: num, Mode: mode})
	}
	if r.err || len(r.buf) != 0 {
		return domain.ContactEntry{}, fmt.Errorf("contact %s: %w", id, errCorrupt)
	}
	return e, nil
}

func encodeOwner(o contacts.Owner) []byte {
	buf := make([]byte, 0, 2+len(o.ContactID))
	buf = append(buf, byte(o.List), byte(o.Mode))
	return append(buf, o.ContactID...)
}

func decodeOwner(v []byte) (contacts.Owner, error) {
	if len(v) < 3 {
		return contacts.Owner{}, errCorrupt
	}
	return contacts.Owner{
		List:      domain.ListType(v[0]),
		Mode:      domain.MatchMode(v[1]),
		ContactID: string(v[2:]),
	}, nil
}

// clampString cuts s so its length fits a u16 prefix.
func clampString(s string) string {
	if len(s) > math.MaxUint16 {
		return s[:math.MaxUint16]
	}
	return s
}

// reader consumes a row front to back; any short read sets err and yields zero values.
type reader struct {
	buf []byte
	err bool
}

func (r *reader) take(n int) []byte {
	if r.err || len(r.buf) < n {
		r.err = true
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) str() string {
	n := int(r.u16())
	if b := r.take(n); b != nil {
		return string(b)
	}
	return ""
}
