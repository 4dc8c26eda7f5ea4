package redact

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

func categoryDisplayName(category string) string {
	if name, ok := CategoryNames[category]; ok {
		return name
	}
	return category
}

// ReportMarkdown renders the comparison table for the audit trail: one
// row per selected match with the original text next to its tag.
func ReportMarkdown(matches []Match) string {
	var sb strings.Builder
	sb.WriteString("# 脱敏替换比对表\n\n")
	sb.WriteString("| 类型 | 原文内容 | 脱敏标记 |\n")
	sb.WriteString("| --- | --- | --- |\n")

	for _, m := range matches {
		if !m.Selected {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", categoryDisplayName(m.Category), m.Original, m.Replacement)
	}
	return sb.String()
}

// ReportXLSX renders the same comparison rows as an Excel workbook.
func ReportXLSX(matches []Match) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Sheet1"

	headers := []string{"类型", "原文内容", "脱敏标记"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, m := range matches {
		if !m.Selected {
			continue
		}
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, categoryDisplayName(m.Category))
		write(2, m.Original)
		write(3, m.Replacement)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
