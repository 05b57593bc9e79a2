package util

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// Sniff reads up to 512 bytes from r and returns them along with a reader
// that replays the full stream.
func Sniff(r io.Reader) ([]byte, io.Reader, error) {
	var buf [512]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, err
	}
	head := buf[:n]
	return head, io.MultiReader(bytes.NewReader(head), r), nil
}

// DetectMimeType combines content sniffing with the file extension. DOCX files
// sniff as zip archives, so the extension decides for them.
func DetectMimeType(fileName string, head []byte) string {
	detected := http.DetectContentType(head)
	ext := strings.ToLower(path.Ext(fileName))
	switch {
	case ext == ".docx" && strings.HasPrefix(detected, "application/zip"):
		return MimeDOCX
	case strings.HasPrefix(detected, "text/plain"):
		return MimeText
	}
	if i := strings.IndexByte(detected, ';'); i > 0 {
		detected = detected[:i]
	}
	return detected
}

// AllowedResumeMime reports whether a resume file of this type can be processed.
func AllowedResumeMime(mimeType string) bool {
	switch mimeType {
	case MimePDF, MimeDOCX, MimeText:
		return true
	}
	return false
}
