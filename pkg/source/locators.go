package source

import (
	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/locator"
)

// LoadLocators reads locator records from an .xlsx workbook (first sheet)
// or a JSON/YAML array of records.
func LoadLocators(path string) ([]locator.Record, error) {
	switch DetectFormat(path) {
	case FormatExcel:
		return readExcelLocators(path)
	case FormatJSON, FormatYAML:
		return readDocumentLocators(path)
	}
	return nil, core.ErrMalformedTable.WithMessagef("%s: unsupported locator repository format", path)
}

// LoadLocatorRepository reads a locator file and builds the repository.
// An empty path yields an empty repository.
func LoadLocatorRepository(path string) (*locator.Repository, error) {
	if path == "" {
		return locator.Empty(), nil
	}
	records, err := LoadLocators(path)
	if err != nil {
		return nil, err
	}
	return locator.New(records)
}
