package ingest

// tokenize splits one raw log line into fields. Fields are separated by runs
// of spaces or tabs; a field opening with a double quote runs, whitespace
// included, to the next double quote, which is stripped from the result.
// Embedded quote escaping is not part of the format. An unterminated quote
// makes the whole line unparsable and reports ok=false.
func tokenize(line string) ([]string, bool) {
	var fields []string
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		if line[i] == '"' {
			end := -1
			for j := i + 1; j < len(line); j++ {
				if line[j] == '"' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, false
			}
			fields = append(fields, line[i+1:end])
			i = end + 1
			continue
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		fields = append(fields, line[start:i])
	}
	return fields, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
