package spreadsheet

import (
	"bytes"
	"go/format"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// the aligned const blocks and doc comment lists drift easily when edited
// by hand
func TestDeclarationTablesAreGofmted(t *testing.T) {
	for _, file := range []string{"result.go", "worksheet.go"} {
		src, err := os.ReadFile(file)
		require.NoError(t, err)
		formatted, err := format.Source(src)
		require.NoError(t, err, file)
		if !bytes.Equal(src, formatted) {
			t.Errorf("%s is not gofmt-formatted", file)
		}
	}
}
