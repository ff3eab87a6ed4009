// Package loader supplies shader text to includes that are not found on
// the search path.
//
// An archive is a zip file whose entries are stored, not deflated. Each
// entry holds a random 24-byte nonce followed by the XChaCha20-Poly1305
// sealed, zstd-compressed shader, with the entry path as additional data.
// The entry comment is the hex BLAKE3 hash of the plaintext and is checked
// after decryption. Keys are derived from the caller's key string with
// BLAKE3 in key derivation mode.
package loader

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrNotFound is returned for a path the loader does not have.
	ErrNotFound = errors.New("shader not found")
	// ErrDecrypt is returned when an entry cannot be opened with the key.
	ErrDecrypt = errors.New("cannot decrypt shader")
	// ErrChecksum is returned when a decrypted entry does not match its hash.
	ErrChecksum = errors.New("shader checksum mismatch")
)

const keyContext = "pps shader archive v1"

func newAEAD(key string) (cipher.AEAD, error) {
	derived := make([]byte, chacha20poly1305.KeySize)
	blake3.DeriveKey(keyContext, []byte(key), derived)
	return chacha20poly1305.NewX(derived)
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// normalize maps an include path to its archive entry name.
func normalize(p string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/")
}

// ----------------------------------------------------------------------------
// Writer
// ----------------------------------------------------------------------------

// Writer builds an archive.
type Writer struct {
	zw    *zip.Writer
	enc   *zstd.Encoder
	aead  cipher.AEAD
	names map[string]bool
}

// NewWriter starts an archive on w sealed with key.
func NewWriter(w io.Writer, key string) (*Writer, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, err
	}
	return &Writer{
		zw:    zip.NewWriter(w),
		enc:   enc,
		aead:  aead,
		names: make(map[string]bool),
	}, nil
}

// Add stores data under name.
func (w *Writer) Add(name string, data []byte) error {
	name = normalize(name)
	if name == "." || name == "" {
		return fmt.Errorf("invalid entry name %q", name)
	}
	if w.names[name] {
		return fmt.Errorf("duplicate entry %q", name)
	}
	w.names[name] = true

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(data))
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := w.aead.Seal(nonce, nonce, w.enc.EncodeAll(data, nil), []byte(name))

	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:    name,
		Method:  zip.Store,
		Comment: checksum(data),
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(sealed)
	return err
}

// AddFile stores the file at path under name.
func (w *Writer) AddFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return w.Add(name, data)
}

// Close finishes the archive. It does not close the underlying writer.
func (w *Writer) Close() error {
	w.enc.Close()
	return w.zw.Close()
}

// ----------------------------------------------------------------------------
// Archive
// ----------------------------------------------------------------------------

// Archive reads shaders from an archive. It is safe for concurrent use.
type Archive struct {
	closer io.Closer
	files  map[string]*zip.File
	dec    *zstd.Decoder
}

// Open opens the archive file at path.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	a, err := newArchive(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	a.closer = rc
	return a, nil
}

// NewArchive reads an archive from r.
func NewArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newArchive(zr)
}

// FromBytes reads an archive held in memory.
func FromBytes(data []byte) (*Archive, error) {
	return NewArchive(bytes.NewReader(data), int64(len(data)))
}

func newArchive(zr *zip.Reader) (*Archive, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	a := &Archive{files: make(map[string]*zip.File, len(zr.File)), dec: dec}
	for _, f := range zr.File {
		a.files[f.Name] = f
	}
	return a, nil
}

// Paths returns the entry names in sorted order.
func (a *Archive) Paths() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetShader decrypts and returns the entry for path.
func (a *Archive) GetShader(path, key string) ([]byte, error) {
	name := normalize(path)
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	sealed, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: %s: entry too short", ErrDecrypt, name)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	compressed, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, name)
	}
	data, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Comment != checksum(data) {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, name)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Close releases the archive.
func (a *Archive) Close() error {
	a.dec.Close()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// ----------------------------------------------------------------------------
// Dir
// ----------------------------------------------------------------------------

// Dir serves shaders from a plain directory. The key is ignored.
type Dir string

// GetShader reads path below the directory.
func (d Dir) GetShader(p, key string) ([]byte, error) {
	name := normalize(p)
	if name == ".." || strings.HasPrefix(name, "../") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return data, err
}
