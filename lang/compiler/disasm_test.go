package compiler_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/internal/filetest"
	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/value"
)

var testUpdateDisasmTests = flag.Bool("test.update-disasm-tests", false, "If set, replace expected disassembly test results with actual results.")

// TestDisassembleGolden pins the exact listing format: one line per
// instruction, a right-aligned offset and line number, then the mnemonic
// and operands.
func TestDisassembleGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".ember") {
		t.Run(fi.Name(), func(t *testing.T) {
			source, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			require.NoError(t, err)

			h := value.NewHeap()
			fn, err := compiler.Compile(source, h)
			require.NoError(t, err)

			var buf bytes.Buffer
			compiler.Disassemble(&buf, &fn.Chunk, "<script>")
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateDisasmTests)
		})
	}
}
