package indexing

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/codesearch/internal/types"
)

// binaryExtensions lists extensions whose files are never text.
var binaryExtensions = map[string]struct{}{
	// fonts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	// images (.svg is XML and stays searchable)
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {}, ".tif": {}, ".tiff": {},
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {}, ".jar": {}, ".war": {},
	// executables and objects
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".lib": {}, ".o": {}, ".obj": {}, ".bin": {}, ".wasm": {},
	// media
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {}, ".ogg": {},
	// office documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	// databases and bytecode
	".db": {}, ".sqlite": {}, ".sqlite3": {}, ".pyc": {}, ".pyo": {}, ".class": {}, ".pkl": {}, ".pickle": {},
}

// magicNumbers are signatures of binary formats that can hide behind any
// extension.
var magicNumbers = [][]byte{
	{0x1F, 0x8B},             // gzip
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x89, 0x50, 0x4E, 0x47}, // png
	{0xFF, 0xD8, 0xFF},       // jpeg
	{0x25, 0x50, 0x44, 0x46}, // pdf
	{0x7F, 0x45, 0x4C, 0x46}, // elf
	{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o fat binary, java class
	{0xCF, 0xFA, 0xED, 0xFE}, // mach-o 64
	{0x00, 0x61, 0x73, 0x6D}, // wasm
}

// BinaryDetector rejects files that are not worth searching as text.
type BinaryDetector struct {
	sniffBytes int
}

func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{sniffBytes: types.BinaryPreCheckBytes}
}

// IsBinaryByExtension needs no I/O, so the loader calls it before reading.
func (bd *BinaryDetector) IsBinaryByExtension(path string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsBinaryContent sniffs the head of a file: a known signature or any NUL
// byte marks it binary. UTF-16 text is treated as binary too.
func (bd *BinaryDetector) IsBinaryContent(content []byte) bool {
	sample := content[:min(len(content), bd.sniffBytes)]
	if len(sample) == 0 {
		return false
	}
	for _, magic := range magicNumbers {
		if bytes.HasPrefix(sample, magic) {
			return true
		}
	}
	return bytes.IndexByte(sample, 0) >= 0
}
