// Package xlsx reads roster spreadsheets exported from office tools.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

var (
	nameHeaders  = []string{"name", "horse", "horse name"}
	ownerHeaders = []string{"owner", "owner name"}
)

type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// ParseRoster reads the first sheet. The first row is a header naming a name
// column and, optionally, an owner column. Blank rows are skipped.
func (p *Parser) ParseRoster(r io.Reader) ([]domain.RosterRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "parse roster", fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("parse roster: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewError(domain.ErrValidation, "parse roster", "sheet is empty")
	}

	nameCol, ownerCol := headerIndex(rows[0], nameHeaders), headerIndex(rows[0], ownerHeaders)
	if nameCol < 0 {
		return nil, domain.NewError(domain.ErrValidation, "parse roster", "header row has no name column")
	}

	out := make([]domain.RosterRow, 0, len(rows)-1)
	for idx, row := range rows[1:] {
		name := cell(row, nameCol)
		if name == "" && cell(row, ownerCol) == "" {
			continue
		}
		out = append(out, domain.RosterRow{
			Line:  idx + 2,
			Name:  name,
			Owner: cell(row, ownerCol),
		})
	}
	return out, nil
}

func headerIndex(header []string, candidates []string) int {
	for i, h := range header {
		normalized := domain.NormalizeName(h)
		for _, c := range candidates {
			if normalized == c {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
