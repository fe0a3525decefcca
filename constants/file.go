package constants

import "strings"

// DefaultLocalDBFile is the SQLite cache file used when LOCAL_DB_PATH is unset.
const DefaultLocalDBFile = "expense-sync.db"

// ExportExt is the extension of workbooks written by the exporter.
const ExportExt = "xlsx"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
