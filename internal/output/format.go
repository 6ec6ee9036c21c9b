package output

import "strings"

type Format string

const (
	FormatAuto  Format = "auto"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// Formats 按帮助文本中的顺序列出所有取值。
var Formats = []Format{FormatJSON, FormatYAML, FormatTable, FormatCSV, FormatAuto}

func IsValid(f Format) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// Usage 返回 "json|yaml|table|csv|auto"，用于 --format 的说明。
func Usage() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}
