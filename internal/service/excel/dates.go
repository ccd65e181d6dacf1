package excel

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006/1/2 15:04:05",
	"2006/1/2",
	"2006.01.02",
	"20060102",
	"2006年1月2日",
	"2006年01月02日",
}

// ParseTime 解析日期 / 时间单元格。支持常见文本格式和 Excel 日期序列号，结果统一为 UTC。
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	// Excel 序列号（RawCellValue 读取时日期单元格以数字形式出现）
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 2958466 {
		t, err := excelize.ExcelDateToTime(f, false)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
