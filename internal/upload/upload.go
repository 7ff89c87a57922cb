// Package upload stores profile images on local disk.
//
// Rules match the API contract: one optional image per registration, at most
// 25 MiB, type restricted to jpg/jpeg/png/heic. Files are named
// "<unix-ms>-<uuid>.<ext>" so names never collide and never reflect
// client-controlled input. The server serves the directory read-only under
// /profile-images/.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/auth-backend/internal/apperror"
)

// MaxImageSize is the largest accepted profile image (25 MiB).
const MaxImageSize = 25 << 20

// allowedTypes maps accepted MIME types to the stored file extension.
var allowedTypes = map[string]string{
	"image/jpg":  "jpg",
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/heic": "heic",
}

// Store writes profile images into a directory on local disk.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed and returns a Store for it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory files are stored in.
func (s *Store) Dir() string { return s.dir }

// SaveProfileImage validates and stores one multipart image part, returning
// the generated filename.
//
// Both the declared Content-Type and the sniffed leading bytes must name an
// allowed type; a .png upload carrying a zip archive is rejected. Size is
// enforced again here regardless of any request-level limit.
func (s *Store) SaveProfileImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxImageSize {
		return "", apperror.ValidationFailed("profile_image", "profile image must be at most 25 MiB")
	}

	declared := strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0])
	ext, ok := allowedTypes[declared]
	if !ok {
		return "", apperror.ValidationFailed("profile_image", "file type not allowed")
	}

	// Sniff the real content. http.DetectContentType does not know HEIC, so
	// the ftyp box is checked by hand for that case.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("upload: reading image: %w", err)
	}
	head = head[:n]
	if !contentMatches(declared, head) {
		return "", apperror.ValidationFailed("profile_image", "file content does not match its declared type")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload: rewinding image: %w", err)
	}

	name := fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: creating %s: %w", path, err)
	}
	defer dst.Close()

	// +1 so a stream that lied about header.Size still cannot exceed the cap.
	written, err := io.Copy(dst, io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload: writing %s: %w", path, err)
	}
	if written > MaxImageSize {
		os.Remove(path)
		return "", apperror.ValidationFailed("profile_image", "profile image must be at most 25 MiB")
	}

	return name, nil
}

// Remove deletes a stored file by name. Used to clean up after a failed
// registration; a missing file is not an error.
func (s *Store) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: removing %s: %w", name, err)
	}
	return nil
}

// contentMatches checks the sniffed head bytes against the declared type.
func contentMatches(declared string, head []byte) bool {
	switch declared {
	case "image/jpg", "image/jpeg":
		return bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF})
	case "image/png":
		return bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	case "image/heic":
		return isHEIC(head)
	}
	return false
}

// isHEIC reports whether head starts with an ISO-BMFF ftyp box carrying a
// HEIC/HEIF brand.
func isHEIC(head []byte) bool {
	if len(head) < 12 || !bytes.Equal(head[4:8], []byte("ftyp")) {
		return false
	}
	switch string(head[8:12]) {
	case "heic", "heix", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}
