package localindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/ridge/repoindex/codec"
)

// Export streams are snappy-compressed. After the magic, the stream is a
// sequence of uvarint-length-prefixed blocks of packed (node key, value)
// tuples, terminated by an empty block.
var exportMagic = []byte("repoindex\x00export\x01")

const exportBlockSize = 1024

// ErrBadExport is returned when importing a stream that is not an export
var ErrBadExport = errors.New("not an index export stream")

func export(w io.Writer, values codec.Serializer, forEach func(fn func(nodeKey string, v any) error) error) error {
	sw := snappy.NewBufferedWriter(w)
	if _, err := sw.Write(exportMagic); err != nil {
		return err
	}

	block := make([]codec.Tuple, 0, exportBlockSize)
	var buf []byte
	flush := func() error {
		buf = codec.PackTuples(buf[:0], values, block)
		if _, err := sw.Write(binary.AppendUvarint(nil, uint64(len(buf)))); err != nil {
			return err
		}
		_, err := sw.Write(buf)
		block = block[:0]
		return err
	}

	err := forEach(func(nodeKey string, v any) error {
		block = append(block, codec.Tuple{NodeKey: nodeKey, Value: v})
		if len(block) == exportBlockSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(block) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}
	if _, err := sw.Write(binary.AppendUvarint(nil, 0)); err != nil {
		return err
	}
	return sw.Close()
}

func importEntries(r io.Reader, values codec.Serializer, add func(nodeKey string, v any) error) error {
	br := bufio.NewReader(snappy.NewReader(r))
	magic := make([]byte, len(exportMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != string(exportMagic) {
		return ErrBadExport
	}

	var buf []byte
	for {
		size, err := binary.ReadUvarint(br)
		if err != nil {
			return fmt.Errorf("reading export block: %w", err)
		}
		if size == 0 {
			return nil
		}
		if cap(buf) < int(size) {
			buf = make([]byte, size)
		}
		buf = buf[:size]
		if _, err := io.ReadFull(br, buf); err != nil {
			return fmt.Errorf("reading export block: %w", err)
		}
		tuples, _, err := codec.UnpackTuples(buf, values)
		if err != nil {
			return fmt.Errorf("reading export block: %w", err)
		}
		for _, t := range tuples {
			if err := add(t.NodeKey, t.Value); err != nil {
				return err
			}
		}
	}
}
