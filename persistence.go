package wgtrain

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// binaryMagic opens every file written by SaveBinary.
var binaryMagic = [4]byte{'W', 'G', 'T', 'W'}

const binaryVersion int32 = 1

func createFile(filename string) (*os.File, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create model file %s: %w", filename, err)
	}
	return f, nil
}

// writeFile writes data to filename through createFile.
func writeFile(filename string, data []byte) error {
	f, err := createFile(filename)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveGob writes the snapshot with encoding/gob.
func (w WeightsSnapshot) SaveGob(filename string) error {
	f, err := createFile(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(w); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadGob reads a snapshot written by SaveGob.
func LoadGob(filename string) (WeightsSnapshot, error) {
	f, err := os.Open(filename)
	if err != nil {
		return WeightsSnapshot{}, fmt.Errorf("failed to open model file %s: %w", filename, err)
	}
	defer f.Close()
	var w WeightsSnapshot
	if err := gob.NewDecoder(f).Decode(&w); err != nil {
		return WeightsSnapshot{}, fmt.Errorf("failed to decode model: %w", err)
	}
	return w, nil
}

// WriteBinary encodes w big-endian: magic, version, H, M, K as int32, then
// weightsIH and weightsHO as float32.
func (w WeightsSnapshot) WriteBinary(out io.Writer) error {
	if err := w.checkLengths(); err != nil {
		return err
	}
	bw := bufio.NewWriter(out)
	for _, v := range []any{
		binaryMagic,
		binaryVersion,
		int32(w.Meta.InputSize),
		int32(w.Meta.HiddenSize),
		int32(w.Meta.OutputSize),
		w.WeightsIH,
		w.WeightsHO,
	} {
		if err := binary.Write(bw, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// checkMatrixFits rejects header dimensions whose matrices would not fit in a
// DefaultMaxBufferSize device buffer. The test is done by division so huge
// dimensions cannot overflow.
func checkMatrixFits(meta ModelSpec) error {
	const maxFloats = DefaultMaxBufferSize / 4
	H, M, K := uint64(meta.InputSize), uint64(meta.HiddenSize), uint64(meta.OutputSize)
	if M > maxFloats/H || K > maxFloats/M {
		return fmt.Errorf("%w: header dimensions %s exceed the %d byte buffer limit",
			ErrShapeMismatch, meta, DefaultMaxBufferSize)
	}
	return nil
}

// ReadBinary decodes the format written by WriteBinary.
func ReadBinary(in io.Reader) (WeightsSnapshot, error) {
	br := bufio.NewReader(in)
	var magic [4]byte
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return WeightsSnapshot{}, err
	}
	if magic != binaryMagic {
		return WeightsSnapshot{}, errors.New("not a weights file (bad magic)")
	}
	var hdr [4]int32
	if err := binary.Read(br, binary.BigEndian, &hdr); err != nil {
		return WeightsSnapshot{}, err
	}
	if hdr[0] != binaryVersion {
		return WeightsSnapshot{}, fmt.Errorf("unsupported weights file version %d", hdr[0])
	}
	meta := ModelSpec{InputSize: int(hdr[1]), HiddenSize: int(hdr[2]), OutputSize: int(hdr[3])}
	if !meta.Valid() {
		return WeightsSnapshot{}, fmt.Errorf("%w: header dimensions %s", ErrMissingMeta, meta)
	}
	if err := checkMatrixFits(meta); err != nil {
		return WeightsSnapshot{}, err
	}
	w := WeightsSnapshot{
		Meta:      meta,
		WeightsIH: make([]float32, meta.WeightsIHLen()),
		WeightsHO: make([]float32, meta.WeightsHOLen()),
	}
	if err := binary.Read(br, binary.BigEndian, w.WeightsIH); err != nil {
		return WeightsSnapshot{}, fmt.Errorf("read weightsIH: %w", err)
	}
	if err := binary.Read(br, binary.BigEndian, w.WeightsHO); err != nil {
		return WeightsSnapshot{}, fmt.Errorf("read weightsHO: %w", err)
	}
	return w, nil
}

// SaveBinary writes the snapshot with WriteBinary.
func (w WeightsSnapshot) SaveBinary(filename string) error {
	f, err := createFile(filename)
	if err != nil {
		return err
	}
	if err := w.WriteBinary(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadBinary reads a snapshot written by SaveBinary.
func LoadBinary(filename string) (WeightsSnapshot, error) {
	f, err := os.Open(filename)
	if err != nil {
		return WeightsSnapshot{}, fmt.Errorf("failed to open model file %s: %w", filename, err)
	}
	defer f.Close()
	return ReadBinary(f)
}
