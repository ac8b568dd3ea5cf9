package provisioning

// csv.go parses raw provisioning CSVs into ParsedRows.
//
// The format is deliberately small: comma separation, optional double-quote
// quoting with "" escaping, one header line, UTF-8. encoding/csv is not used
// because the parser must keep reading after a malformed line and report the
// original 1-based line number for every row, while encoding/csv aborts on
// the first structural error and renumbers around skipped blanks.

import (
	"fmt"
	"strings"
)

// ParseCSV turns raw CSV text into parsed rows.
//
// The first non-blank line is the header. If any required column is missing
// the whole batch fails: no rows, one error naming the missing columns. After
// the header, a line with fewer values than the header has columns is skipped
// with a per-line error; parsing continues with the remaining lines.
func ParseCSV(raw string) ParseResult {
	var result ParseResult

	type numberedLine struct {
		number int // 1-based position in the input
		text   string
	}

	var lines []numberedLine
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, numberedLine{number: i + 1, text: line})
	}

	if len(lines) == 0 {
		result.Errors = append(result.Errors, "CSV file is empty.")
		return result
	}

	headers := splitCSVLine(lines[0].text)
	headerIdx := make(map[string]int, len(headers))
	for i, h := range headers {
		headerIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, column := range RequiredColumns {
		if _, ok := headerIdx[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("CSV is missing required columns: %s", strings.Join(missing, ", ")))
		return result
	}

	for _, line := range lines[1:] {
		values := splitCSVLine(line.text)
		if len(values) < len(headers) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Line %d: expected %d columns, found %d.", line.number, len(headers), len(values)))
			continue
		}

		get := func(column string) string {
			return strings.TrimSpace(values[headerIdx[column]])
		}

		result.Rows = append(result.Rows, ParsedRow{
			LineNumber:   line.number,
			FirstName:    get("first_name"),
			LastName:     get("last_name"),
			Email:        get("email"),
			Role:         get("role"),
			TempPassword: get("temp_password"),
		})
	}

	return result
}

// splitCSVLine tokenizes one CSV line. A field may be wrapped in double
// quotes; inside quotes a doubled quote is a literal quote and commas are not
// separators. Each value is trimmed.
func splitCSVLine(line string) []string {
	var values []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		if c == '"' {
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
			continue
		}

		if c == ',' && !inQuotes {
			values = append(values, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}

		current.WriteByte(c)
	}

	values = append(values, strings.TrimSpace(current.String()))
	return values
}
