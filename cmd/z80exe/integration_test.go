package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEXE assembles a minimal, well-formed MS-DOS EXE header plus an
// image of the given size and zero relocations. Pages and ExtraBytes cover
// the whole file, header included, as internal/link/emit computes them;
// the header itself is only 2 paragraphs, not emit's 32.
func buildEXE(t *testing.T, imageBytes int) []byte {
	t.Helper()
	const headerParas = 2 // 32 bytes, rounded up to a paragraph boundary
	fileBytes := int(headerParas)*16 + imageBytes
	pages := (fileBytes + 511) / 512
	extra := fileBytes % 512
	if pages == 0 {
		pages = 1
	}

	h := exeHeader{
		Signature:  0x5A4D,
		ExtraBytes: uint16(extra),
		Pages:      uint16(pages),
		RelocItems: 0,
		HeaderSize: headerParas,
		MinAlloc:   0,
		MaxAlloc:   0xFFFF,
		InitSS:     0,
		InitSP:     0,
		CheckSum:   0,
		InitIP:     0,
		InitCS:     0,
		RelocTable: 0x1E,
		Overlay:    0,
	}

	var buf bytes.Buffer
	put := func(v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf.Write(b[:])
	}
	put(h.Signature)
	put(h.ExtraBytes)
	put(h.Pages)
	put(h.RelocItems)
	put(h.HeaderSize)
	put(h.MinAlloc)
	put(h.MaxAlloc)
	put(h.InitSS)
	put(h.InitSP)
	put(h.CheckSum)
	put(h.InitIP)
	put(h.InitCS)
	put(h.RelocTable)
	put(h.Overlay)

	for buf.Len() < int(headerParas)*16 {
		buf.WriteByte(0)
	}
	buf.Write(make([]byte, imageBytes))
	return buf.Bytes()
}

func TestParseHeaderRoundTrip(t *testing.T) {
	data := buildEXE(t, 100)
	h, err := parseHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint16(0x5A4D), h.Signature)
	require.EqualValues(t, 2, h.HeaderSize)
}

func TestParseHeaderRejectsBadSignature(t *testing.T) {
	data := buildEXE(t, 100)
	data[0] = 0x00
	_, err := parseHeader(data)
	require.Error(t, err)
}

func TestImageSizeFormula(t *testing.T) {
	// Exactly one full page: ExtraBytes == 0 means the last page is
	// entirely used, per the classic MS-DOS formula.
	h := exeHeader{Pages: 1, ExtraBytes: 0}
	require.Equal(t, 512, imageSize(h))

	h = exeHeader{Pages: 2, ExtraBytes: 100}
	require.Equal(t, 612, imageSize(h))
}

func TestVerifyCleanFile(t *testing.T) {
	data := buildEXE(t, 100)
	problems := verify("hello.exe", data)
	require.Empty(t, problems)
}

func TestVerifyCatchesFileSizeMismatch(t *testing.T) {
	data := buildEXE(t, 100)
	truncated := data[:len(data)-10]
	problems := verify("hello.exe", truncated)
	require.NotEmpty(t, problems)
	require.Contains(t, problems[0], "file-size mismatch")
}

func TestRunVerifyJSON(t *testing.T) {
	data := buildEXE(t, 100)
	stdout := captureStdout(t, func() {
		require.NoError(t, runVerify("hello.exe", data, true))
	})
	require.Contains(t, stdout, `"headerHex"`)
}

func TestRunCompareIdentical(t *testing.T) {
	data := buildEXE(t, 100)
	stdout := captureStdout(t, func() {
		require.NoError(t, runCompare("a.exe", data, "b.exe", data, false))
	})
	require.Contains(t, stdout, "identical")
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}
