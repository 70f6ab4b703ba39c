package synapse

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// timeLayout matches DATETIME2(7); dates are written without a clock part.
const (
	timeLayout = "2006-01-02 15:04:05.0000000"
	dateLayout = "2006-01-02"
)

// writeCSV writes rows as gzip-compressed, comma separated, LF terminated
// CSV with no header. Null values become empty unquoted fields, which COPY
// INTO loads as NULL; an empty string is written as "" and stays empty.
func writeCSV(w io.Writer, rows [][]any) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(zw, 64<<10)
	var line []byte
	for i, row := range rows {
		line = line[:0]
		for j, v := range row {
			if j > 0 {
				line = append(line, ',')
			}
			line = appendField(line, v)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return zw.Close()
}

// appendField appends one CSV field. Fields holding the separator, a quote
// or a line break are quoted with inner quotes doubled.
func appendField(dst []byte, v any) []byte {
	s := formatValue(v)
	if s == "" {
		if str, ok := v.(string); ok && str == "" {
			return append(dst, '"', '"')
		}
		return dst
	}
	if !strings.ContainsAny(s, ",\"\r\n") {
		return append(dst, s...)
	}
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			dst = append(dst, '"')
		}
		dst = append(dst, s[i])
	}
	return append(dst, '"')
}

// formatValue renders v the way the warehouse parses CSV fields. Non-finite
// floats have no SQL representation and are written as null.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return ""
		}
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		x = x.UTC()
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(dateLayout)
		}
		return x.Format(timeLayout)
	case []byte:
		return hex.EncodeToString(x)
	default:
		return fmt.Sprint(x)
	}
}
