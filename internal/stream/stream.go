// Package stream holds the little-endian read helpers shared by the
// container readers.
package stream

import (
	"encoding/binary"
	"errors"
	"io"
)

// Int is the set of integer types that can be decoded with ReadInt.
type Int interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64
}

// ReadInt reads a little-endian integer of T's width.
// A source that ends before the value is complete yields io.ErrUnexpectedEOF.
func ReadInt[T Int](r io.Reader) (T, error) {
	var value T
	if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
		return 0, unexpected(err)
	}
	return value, nil
}

// ReadValue decodes a fixed-size value (struct, array or scalar) in
// little-endian byte order.
func ReadValue[T any](r io.Reader) (T, error) {
	var value T
	if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
		return value, unexpected(err)
	}
	return value, nil
}

// ReadSlice decodes n consecutive fixed-size values.
func ReadSlice[T any](r io.Reader, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.New("negative element count")
	}
	values := make([]T, n)
	if n == 0 {
		return values, nil
	}
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return nil, unexpected(err)
	}
	return values, nil
}

// ReadN reads exactly n bytes into a freshly allocated buffer.
func ReadN(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("negative read length")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, unexpected(err)
	}
	return buf, nil
}

// Skip discards n bytes.
func Skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return unexpected(err)
	}
	return nil
}

// Pos returns the current position of s.
func Pos(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// SeekTo moves s to the absolute position pos, refusing positions past end.
func SeekTo(s io.Seeker, pos int64) error {
	end, err := Size(s)
	if err != nil {
		return err
	}
	if pos < 0 || pos > end {
		return io.ErrUnexpectedEOF
	}
	_, err = s.Seek(pos, io.SeekStart)
	return err
}

// Size returns the total length of s without moving its cursor.
func Size(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// IsShort reports whether err means the source ran out of bytes.
func IsShort(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
