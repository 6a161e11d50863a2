package source

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type sheet struct {
	name string
	rows [][]interface{}
}

// writeWorkbook creates an xlsx file with the given sheets in order.
func writeWorkbook(t *testing.T, path string, sheets ...sheet) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &values))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

var stepHeader = []interface{}{"Seq", "Execute", "COMMAND", "TARGET", "DATA", "CONDITION", "STORE", "Failure Category"}

func stepRow(seq int, command, target, data string) []interface{} {
	return []interface{}{fmt.Sprint(seq), "Y", command, target, data, "", "", ""}
}
