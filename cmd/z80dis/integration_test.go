package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/oisee/x86link/internal/disasm"
	"github.com/stretchr/testify/require"
)

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

// TestDisassembleNopIntRetf is spec §8 scenario 5: 90 CD 21 CB disassembles
// to NOP / INT 21h / RETF.
func TestDisassembleNopIntRetf(t *testing.T) {
	data := []byte{0x90, 0xCD, 0x21, 0xCB}
	dis := disasm.NewDisassembler(data, 0)
	lines := dis.Disassemble()

	want := []string{"NOP", "INT 21h", "RETF"}
	require.Len(t, lines, len(want))
	for i, w := range want {
		require.Equal(t, w, lines[i].Text, "line %d", i)
	}
}

func TestParseOrigin(t *testing.T) {
	v, err := parseOrigin("0x100", false)
	require.NoError(t, err)
	require.Equal(t, uint16(0x100), v)

	v, err = parseOrigin("256", false)
	require.NoError(t, err)
	require.Equal(t, uint16(256), v)

	v, err = parseOrigin("ignored", true)
	require.NoError(t, err)
	require.Equal(t, uint16(0x100), v)

	_, err = parseOrigin("not-a-number", false)
	require.Error(t, err)
}

func TestPrintJSONEncodesEveryLine(t *testing.T) {
	dis := disasm.NewDisassembler([]byte{0x90, 0xCD, 0x21, 0xCB}, 0x100)
	lines := dis.Disassemble()

	stdout := captureStdout(t, func() {
		require.NoError(t, printJSON(lines))
	})

	var decoded []jsonLine
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	require.Len(t, decoded, len(lines))
	require.Equal(t, "0100", decoded[0].Addr)
	require.Equal(t, "90", decoded[0].Bytes)
	require.Equal(t, "NOP", decoded[0].Text)
}
