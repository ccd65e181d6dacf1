package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BackupDirName 原始数据备份目录
const BackupDirName = "原始数据备份"

// ReportDir 报表目录：export_path/销售数据_YYYY-MM（不建子目录时即 export_path）
func ReportDir(exportPath string, date time.Time, createSubfolders bool) string {
	if !createSubfolders {
		return exportPath
	}
	return filepath.Join(exportPath, "销售数据_"+date.Format("2006-01"))
}

// ReportFileName 报表文件名
func ReportFileName(date time.Time) string {
	return fmt.Sprintf("销售毛利分析报告_%s.xlsx", date.Format("2006-01-02"))
}

// ReportPath 报表完整路径
func ReportPath(exportPath string, date time.Time, createSubfolders bool) string {
	return filepath.Join(ReportDir(exportPath, date, createSubfolders), ReportFileName(date))
}

// BackupSources 将本次使用的源文件复制到报表目录下的备份目录，返回备份文件路径
func BackupSources(reportDir string, date time.Time, salesPath, purchasePath string) ([]string, error) {
	dir := filepath.Join(reportDir, BackupDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	stamp := date.Format("2006-01-02")

	var out []string
	for _, src := range []struct {
		path   string
		prefix string
	}{
		{salesPath, "销售数据_"},
		{purchasePath, "最新采购数据_"},
	} {
		if src.path == "" {
			continue
		}
		dst := filepath.Join(dir, src.prefix+stamp+filepath.Ext(src.path))
		if err := copyFile(src.path, dst); err != nil {
			return out, fmt.Errorf("backup %s: %w", filepath.Base(src.path), err)
		}
		out = append(out, dst)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
