package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// The .npy encoding of a one-dimensional array of fixed-width little-endian
// unicode strings, as written by numpy.save for an array of str.
//
// Layout: magic, version, header length, a Python dict literal header padded
// with spaces to a multiple of 64 bytes and terminated by '\n', then each
// element as exactly width UTF-32LE code units, zero padded.

var npyMagic = []byte("\x93NUMPY")

const npyAlign = 64

var ErrNpy = errors.New("decoding npy")

var (
	descrPattern   = regexp.MustCompile(`'descr':\s*'([<>|=]?)U(\d+)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape':\s*\((\d+),?\s*\)`)
)

// EncodeStrings returns the .npy bytes of values as a '<U{n}' array, where n is
// the longest value in code points (at least 1).
func EncodeStrings(values []string) []byte {
	width := 1
	for _, v := range values {
		if n := utf8.RuneCountInString(v); n > width {
			width = n
		}
	}

	header := fmt.Sprintf("{'descr': '<U%d', 'fortran_order': False, 'shape': (%d,), }", width, len(values))
	// magic(6) + version(2) + header length(2) + header + '\n'
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := total % npyAlign; pad != 0 {
		header += string(bytes.Repeat([]byte{' '}, npyAlign-pad))
	}
	header += "\n"

	buf := &bytes.Buffer{}
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	cell := make([]uint32, width)
	for _, v := range values {
		clear(cell)
		i := 0
		for _, r := range v {
			cell[i] = uint32(r)
			i++
		}
		_ = binary.Write(buf, binary.LittleEndian, cell)
	}
	return buf.Bytes()
}

// DecodeStrings parses a .npy file holding a one-dimensional unicode array.
// Trailing NUL code points of each element are stripped, as numpy does.
func DecodeStrings(data []byte) ([]string, error) {
	if !bytes.HasPrefix(data, npyMagic) || len(data) < len(npyMagic)+2 {
		return nil, fmt.Errorf("%w: missing magic string", ErrNpy)
	}
	major := data[len(npyMagic)]
	rest := data[len(npyMagic)+2:]

	var headerLen int
	switch major {
	case 1:
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: truncated header length", ErrNpy)
		}
		headerLen = int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
	case 2, 3:
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: truncated header length", ErrNpy)
		}
		headerLen = int(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNpy, major)
	}
	if len(rest) < headerLen {
		return nil, fmt.Errorf("%w: truncated header", ErrNpy)
	}
	header, body := string(rest[:headerLen]), rest[headerLen:]

	descr := descrPattern.FindStringSubmatch(header)
	if descr == nil {
		return nil, fmt.Errorf("%w: unsupported dtype in header %q", ErrNpy, header)
	}
	order := binary.ByteOrder(binary.LittleEndian)
	if descr[1] == ">" {
		order = binary.BigEndian
	}
	width, err := strconv.Atoi(descr[2])
	if err != nil {
		return nil, fmt.Errorf("%w: width %q: %w", ErrNpy, descr[2], err)
	}

	if fortran := fortranPattern.FindStringSubmatch(header); fortran == nil || fortran[1] != "False" {
		return nil, fmt.Errorf("%w: fortran order not supported", ErrNpy)
	}

	shape := shapePattern.FindStringSubmatch(header)
	if shape == nil {
		return nil, fmt.Errorf("%w: only one-dimensional arrays are supported: %q", ErrNpy, header)
	}
	n, err := strconv.Atoi(shape[1])
	if err != nil {
		return nil, fmt.Errorf("%w: shape %q: %w", ErrNpy, shape[1], err)
	}

	if len(body) != n*width*4 {
		return nil, fmt.Errorf("%w: expected %d bytes of data, got %d", ErrNpy, n*width*4, len(body))
	}

	values := make([]string, n)
	runes := make([]rune, 0, width)
	for i := range values {
		runes = runes[:0]
		cell := body[i*width*4 : (i+1)*width*4]
		for j := 0; j < width; j++ {
			runes = append(runes, rune(order.Uint32(cell[j*4:])))
		}
		for len(runes) > 0 && runes[len(runes)-1] == 0 {
			runes = runes[:len(runes)-1]
		}
		values[i] = string(runes)
	}
	return values, nil
}
