// Package codec reads and writes the binary keyspace snapshot.
//
// Layout, little endian with u32 lengths:
//
//	[item count] { [key len][key][type u8][body] }*
//
// Bodies per entry type:
//
//	String     [key len][key][value len][value]
//	List, Set  [count] { [len][element] }*
//	SortedSet  [count] { [len][member][score f64] }*
//	Hash       [count] { [field len][field][value len][value] }*
//	Geospatial [key len][key][count] { [name len][name][WKB point] }*
//	Channel    [key len][key]
//
// Time to live, subscriptions and published messages are not persisted.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/errors"
	"pyrocache/internal/pyrocache/keyspace"
)

// Upper bound for a single length prefix, matching the largest accepted value.
const MaxChunkLength = 512 * 1024 * 1024

// Size of a little endian XY point in well known binary.
const wkbPointLength = 21

var byteOrder = binary.LittleEndian

type writer struct {
	w       *bufio.Writer
	scratch [8]byte
}

func (w *writer) length(value int) error {
	byteOrder.PutUint32(w.scratch[:4], uint32(value))
	_, err := w.w.Write(w.scratch[:4])
	return err
}

func (w *writer) number(value float64) error {
	byteOrder.PutUint64(w.scratch[:8], math.Float64bits(value))
	_, err := w.w.Write(w.scratch[:8])
	return err
}

func (w *writer) text(value string) error {
	if err := w.length(len(value)); err != nil {
		return err
	}
	_, err := w.w.WriteString(value)
	return err
}

func (w *writer) texts(values []string) error {
	if err := w.length(len(values)); err != nil {
		return err
	}
	for _, value := range values {
		if err := w.text(value); err != nil {
			return err
		}
	}
	return nil
}

type reader struct {
	r       io.Reader
	scratch [8]byte
}

func corrupt(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: truncated stream", errors.ErrorCorruptSnapshot)
	}
	return err
}

func (r *reader) length() (int, error) {
	if _, err := io.ReadFull(r.r, r.scratch[:4]); err != nil {
		return 0, corrupt(err)
	}
	return int(byteOrder.Uint32(r.scratch[:4])), nil
}

func (r *reader) tag() (uint8, error) {
	if _, err := io.ReadFull(r.r, r.scratch[:1]); err != nil {
		return 0, corrupt(err)
	}
	return r.scratch[0], nil
}

func (r *reader) number() (float64, error) {
	if _, err := io.ReadFull(r.r, r.scratch[:8]); err != nil {
		return 0, corrupt(err)
	}
	return math.Float64frombits(byteOrder.Uint64(r.scratch[:8])), nil
}

func (r *reader) text() (string, error) {
	length, err := r.length()
	if err != nil {
		return "", err
	}
	if length > MaxChunkLength {
		return "", fmt.Errorf("%w: length %d exceeds limit", errors.ErrorCorruptSnapshot, length)
	}
	buffer := make([]byte, length)
	if _, err := io.ReadFull(r.r, buffer); err != nil {
		return "", corrupt(err)
	}
	return string(buffer), nil
}

func (r *reader) count() (int, error) {
	count, err := r.length()
	if err != nil {
		return 0, err
	}
	if count > MaxChunkLength {
		return 0, fmt.Errorf("%w: count %d exceeds limit", errors.ErrorCorruptSnapshot, count)
	}
	return count, nil
}

func (r *reader) texts() ([]string, error) {
	count, err := r.count()
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, min(count, 1024))
	for i := 0; i < count; i++ {
		value, err := r.text()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Writes the whole keyspace snapshot
func Encode(w io.Writer, items []keyspace.Item) error {
	buffered := bufio.NewWriter(w)
	out := &writer{w: buffered}

	if err := out.length(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := out.text(item.Key); err != nil {
			return err
		}
		if err := encodeEntry(out, item.Key, item.Entry); err != nil {
			return fmt.Errorf("encoding %q: %w", item.Key, err)
		}
	}
	return buffered.Flush()
}

func EncodeToBytes(items []keyspace.Item) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Encode(&buffer, items); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Reads a whole keyspace snapshot
func Decode(r io.Reader) ([]keyspace.Item, error) {
	in := &reader{r: bufio.NewReader(r)}

	count, err := in.count()
	if err != nil {
		return nil, err
	}

	items := make([]keyspace.Item, 0, min(count, 1024))
	for i := 0; i < count; i++ {
		key, err := in.text()
		if err != nil {
			return nil, err
		}
		entry, err := decodeEntry(in, key)
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		items = append(items, keyspace.Item{Key: key, Entry: entry})
	}
	return items, nil
}

func encodeEntry(out *writer, key string, entry entries.Entry) error {
	if err := out.w.WriteByte(byte(entry.Type())); err != nil {
		return err
	}

	switch typed := entry.(type) {
	case *entries.StringEntry:
		if err := out.text(key); err != nil {
			return err
		}
		return out.text(typed.Value())

	case *entries.ListEntry:
		return out.texts(typed.Values())

	case *entries.SetEntry:
		return out.texts(typed.Members())

	case *entries.SortedSetEntry:
		members := typed.Members()
		if err := out.length(len(members)); err != nil {
			return err
		}
		for _, member := range members {
			if err := out.text(member.Member); err != nil {
				return err
			}
			if err := out.number(member.Score); err != nil {
				return err
			}
		}
		return nil

	case *entries.HashEntry:
		fields := typed.All()
		names := typed.Fields()
		if err := out.length(len(names)); err != nil {
			return err
		}
		for _, name := range names {
			if err := out.text(name); err != nil {
				return err
			}
			if err := out.text(fields[name]); err != nil {
				return err
			}
		}
		return nil

	case *entries.GeoEntry:
		if err := out.text(key); err != nil {
			return err
		}
		points := typed.Points()
		names := typed.Members()
		if err := out.length(len(names)); err != nil {
			return err
		}
		for _, name := range names {
			if err := out.text(name); err != nil {
				return err
			}
			if err := writePoint(out, points[name]); err != nil {
				return err
			}
		}
		return nil

	case *entries.ChannelEntry:
		return out.text(key)

	default:
		return fmt.Errorf("%w: %T", errors.ErrorUnknownEntryType, entry)
	}
}

func decodeEntry(in *reader, key string) (entries.Entry, error) {
	tag, err := in.tag()
	if err != nil {
		return nil, err
	}

	switch entries.EntryType(tag) {
	case entries.StringType:
		if err := expectKey(in, key); err != nil {
			return nil, err
		}
		value, err := in.text()
		if err != nil {
			return nil, err
		}
		return entries.NewString(key, value), nil

	case entries.ListType:
		values, err := in.texts()
		if err != nil {
			return nil, err
		}
		return entries.NewList(key, values...), nil

	case entries.SetType:
		members, err := in.texts()
		if err != nil {
			return nil, err
		}
		return entries.NewSet(key, members...), nil

	case entries.SortedSetType:
		count, err := in.count()
		if err != nil {
			return nil, err
		}
		zset := entries.NewSortedSet(key)
		for i := 0; i < count; i++ {
			member, err := in.text()
			if err != nil {
				return nil, err
			}
			score, err := in.number()
			if err != nil {
				return nil, err
			}
			if math.IsNaN(score) {
				return nil, fmt.Errorf("%w: NaN score for %q", errors.ErrorCorruptSnapshot, member)
			}
			zset.Add(score, member)
		}
		return zset, nil

	case entries.HashType:
		count, err := in.count()
		if err != nil {
			return nil, err
		}
		fields := make(map[string]string, min(count, 1024))
		for i := 0; i < count; i++ {
			field, err := in.text()
			if err != nil {
				return nil, err
			}
			value, err := in.text()
			if err != nil {
				return nil, err
			}
			fields[field] = value
		}
		return entries.NewHash(key, fields), nil

	case entries.GeospatialType:
		if err := expectKey(in, key); err != nil {
			return nil, err
		}
		count, err := in.count()
		if err != nil {
			return nil, err
		}
		points := make(map[string]entries.GeoPoint, min(count, 1024))
		for i := 0; i < count; i++ {
			name, err := in.text()
			if err != nil {
				return nil, err
			}
			point, err := readPoint(in)
			if err != nil {
				return nil, err
			}
			points[name] = point
		}
		return entries.NewGeo(key, points), nil

	case entries.ChannelType:
		if err := expectKey(in, key); err != nil {
			return nil, err
		}
		return entries.NewChannel(key), nil

	default:
		return nil, fmt.Errorf("%w: tag %d", errors.ErrorUnknownEntryType, tag)
	}
}

// Some bodies repeat the item key, it must match the outer one.
func expectKey(in *reader, key string) error {
	inner, err := in.text()
	if err != nil {
		return err
	}
	if inner != key {
		return fmt.Errorf("%w: body key %q", errors.ErrorKeyMismatch, inner)
	}
	return nil
}

func writePoint(out *writer, point entries.GeoPoint) error {
	encoded, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{point.Longitude, point.Latitude}), wkb.NDR)
	if err != nil {
		return err
	}
	_, err = out.w.Write(encoded)
	return err
}

func readPoint(in *reader) (entries.GeoPoint, error) {
	buffer := make([]byte, wkbPointLength)
	if _, err := io.ReadFull(in.r, buffer); err != nil {
		return entries.GeoPoint{}, corrupt(err)
	}

	decoded, err := wkb.Unmarshal(buffer)
	if err != nil {
		return entries.GeoPoint{}, fmt.Errorf("%w: %v", errors.ErrorCorruptSnapshot, err)
	}
	point, ok := decoded.(*geom.Point)
	if !ok {
		return entries.GeoPoint{}, fmt.Errorf("%w: geometry %T is not a point", errors.ErrorCorruptSnapshot, decoded)
	}
	return entries.GeoPoint{Longitude: point.X(), Latitude: point.Y()}, nil
}
