package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
)

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Reader 读取销售 / 采购表格（xlsx 或 csv），并完成列名规范化
type Reader struct {
	mapper     *parser.FieldMapper
	recognizer *parser.SheetRecognizer
}

// NewReader 创建读取器
func NewReader(mapper *parser.FieldMapper) *Reader {
	if mapper == nil {
		mapper = parser.NewFieldMapper(nil)
	}
	return &Reader{
		mapper:     mapper,
		recognizer: parser.NewSheetRecognizer(mapper),
	}
}

// Mapper 返回使用的字段映射器
func (r *Reader) Mapper() *parser.FieldMapper {
	return r.mapper
}

// ReadFile 读取文件为原始表（未规范化）
func (r *Reader) ReadFile(path string, schema parser.Schema) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return r.Read(filepath.Base(path), f, schema)
}

// Read 按文件名后缀选择解析方式
func (r *Reader) Read(name string, src io.Reader, schema parser.Schema) (*model.Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return r.readWorkbook(name, src, schema)
	case ".csv":
		return readCSV(name, src)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
}

// Load 读取、规范化并校验必要列
func (r *Reader) Load(path string, schema parser.Schema) (*model.Table, parser.MappingReport, error) {
	raw, err := r.ReadFile(path, schema)
	if err != nil {
		return nil, parser.MappingReport{Schema: schema}, err
	}
	table, report := r.mapper.Normalize(raw, schema)
	if schema == parser.SchemaSales {
		table, _ = r.mapper.InferSaleDate(table)
	}
	if err := r.mapper.Require(table, schema); err != nil {
		return nil, report, err
	}
	return table, report, nil
}

func (r *Reader) readWorkbook(name string, src io.Reader, schema parser.Schema) (*model.Table, error) {
	wb, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel %s: %w", name, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", name)
	}

	all := make(map[string][][]string, len(sheets))
	headers := make(map[string][]string, len(sheets))
	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		all[sheet] = rows
		headers[sheet] = rows[0]
	}

	chosen := sheets[0]
	if best, ok := r.recognizer.Best(headers, sheets, schema); ok {
		chosen = best.SheetName
	}
	return buildTable(name, chosen, all[chosen]), nil
}

func readCSV(name string, src io.Reader) (*model.Table, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	return buildTable(name, "", rows), nil
}

func buildTable(name, sheet string, rows [][]string) *model.Table {
	t := &model.Table{Source: name, Sheet: sheet}
	if len(rows) == 0 {
		return t
	}
	t.Columns = make([]string, len(rows[0]))
	for i, col := range rows[0] {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}
	// 保留空白行以便错误提示中的行号与表格一致，解析时跳过
	t.Rows = rows[1:]
	return t
}
