package util

import (
	"os"
	"os/exec"
	"runtime"
)

// openCommand 返回当前平台打开文件 / 目录的命令
func openCommand(target string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		// rundll32 在 Windows 7 上比 cmd /c start 稳定
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "darwin":
		return exec.Command("open", target)
	default:
		return exec.Command("xdg-open", target)
	}
}

// OpenPath 用系统默认程序打开文件或目录（报表导出后自动打开）
func OpenPath(target string) error {
	if _, err := os.Stat(target); err != nil {
		return err
	}
	err := openCommand(target).Start()
	if err == nil {
		return nil
	}

	// 降级方案
	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", target).Start()
	case "linux":
		for _, fm := range []string{"nautilus", "dolphin", "thunar", "pcmanfm"} {
			if ferr := exec.Command(fm, target).Start(); ferr == nil {
				return nil
			}
		}
	}
	return err
}
