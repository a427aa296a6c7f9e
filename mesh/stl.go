package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/soypat/geometry/ms3"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 50
	// maxReadTriangles guards allocation when reading untrusted files.
	maxReadTriangles = 1 << 28
)

// WriteBinarySTL writes tris as a binary STL: an 80 byte header holding the
// header text zero padded, the little endian triangle count, then one 50 byte
// record per triangle with the unit normal, the three corners and a zero
// attribute word. It returns the number of bytes written.
func WriteBinarySTL(w io.Writer, tris []Triangle, header string) (int, error) {
	if len(header) > stlHeaderSize {
		return 0, fmt.Errorf("STL header longer than %d bytes", stlHeaderSize)
	}
	if len(header) >= 5 && header[:5] == "solid" {
		return 0, errors.New("binary STL header must not start with \"solid\"")
	}
	if uint64(len(tris)) > math.MaxUint32 {
		return 0, errors.New("too many triangles for STL")
	}
	bw := bufio.NewWriterSize(w, 1<<16)
	var head [stlHeaderSize + 4]byte
	copy(head[:], header)
	binary.LittleEndian.PutUint32(head[stlHeaderSize:], uint32(len(tris)))
	n, err := bw.Write(head[:])
	if err != nil {
		return n, err
	}
	var rec [stlRecordSize]byte
	for _, t := range tris {
		putVec(rec[0:], t.Normal())
		putVec(rec[12:], t[0])
		putVec(rec[24:], t[1])
		putVec(rec[36:], t[2])
		rec[48], rec[49] = 0, 0
		ni, err := bw.Write(rec[:])
		n += ni
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func putVec(b []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

func getVec(b []byte) ms3.Vec {
	return ms3.Vec{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

// ReadBinarySTL reads a binary STL. The header is returned with trailing
// zero bytes removed. Stored normals are ignored.
func ReadBinarySTL(r io.Reader) (header string, tris []Triangle, err error) {
	br := bufio.NewReaderSize(r, 1<<16)
	var head [stlHeaderSize + 4]byte
	_, err = io.ReadFull(br, head[:])
	if err != nil {
		return "", nil, fmt.Errorf("reading STL header: %w", err)
	}
	header = string(bytes.TrimRight(head[:stlHeaderSize], "\x00"))
	count := binary.LittleEndian.Uint32(head[stlHeaderSize:])
	if count > maxReadTriangles {
		return header, nil, fmt.Errorf("STL triangle count %d too large", count)
	}
	tris = make([]Triangle, 0, min(int(count), 1<<20))
	var rec [stlRecordSize]byte
	for i := uint32(0); i < count; i++ {
		_, err = io.ReadFull(br, rec[:])
		if err != nil {
			return header, tris, fmt.Errorf("reading STL triangle %d of %d: %w", i, count, err)
		}
		tris = append(tris, Triangle{getVec(rec[12:]), getVec(rec[24:]), getVec(rec[36:])})
	}
	return header, tris, nil
}

// WriteFileAtomic writes tris as a binary STL file at path. Data goes to a
// temporary file in the same directory that is synced and renamed over path,
// so path is either left untouched or holds the complete file.
func WriteFileAtomic(path string, tris []Triangle, header string) (err error) {
	dir := filepath.Dir(path)
	fp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := fp.Name()
	defer func() {
		if err != nil {
			fp.Close()
			os.Remove(tmp)
		}
	}()
	_, err = WriteBinarySTL(fp, tris, header)
	if err != nil {
		return err
	}
	err = fp.Sync()
	if err != nil {
		return err
	}
	err = fp.Chmod(0o644)
	if err != nil {
		return err
	}
	err = fp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
