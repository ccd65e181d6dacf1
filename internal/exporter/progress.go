package exporter

// ProgressEvent 导出进度事件（用于 UI 展示）
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// ProgressFunc 进度回调
type ProgressFunc func(ProgressEvent)

func reportProgress(progress ProgressFunc, percent int, stage string) {
	if progress == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	progress(ProgressEvent{
		Percent: percent,
		Stage:   stage,
	})
}

// Scaled 将子任务的 0-100 进度映射到 [from, to] 区间
func Scaled(progress ProgressFunc, from, to int) ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(e ProgressEvent) {
		reportProgress(progress, from+(to-from)*e.Percent/100, e.Stage)
	}
}
