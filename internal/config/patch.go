package config

// Patch 运行时可修改的配置项（nil 表示不修改）
type Patch struct {
	ExportPath       *string `json:"exportPath"`
	AutoOpen         *bool   `json:"autoOpen"`
	CreateSubfolders *bool   `json:"createSubfolders"`
	DateFormat       *string `json:"dateFormat"`
	TopN             *int    `json:"topN"`
	AnalysisType     *string `json:"analysisType"`
	RememberHistory  *bool   `json:"rememberHistory"`
}

// Apply 返回应用修改后的新配置；校验失败时原配置不变
func (p Patch) Apply(c *AppConfig) (*AppConfig, error) {
	next := *c
	next.Server.AllowOrigins = append([]string(nil), c.Server.AllowOrigins...)

	if p.ExportPath != nil {
		next.Export.Path = *p.ExportPath
	}
	if p.AutoOpen != nil {
		next.Export.AutoOpen = *p.AutoOpen
	}
	if p.CreateSubfolders != nil {
		next.Export.CreateSubfolders = *p.CreateSubfolders
	}
	if p.DateFormat != nil {
		next.Export.DateFormat = *p.DateFormat
	}
	if p.TopN != nil {
		next.Export.TopN = *p.TopN
	}
	if p.AnalysisType != nil {
		next.Export.AnalysisType = *p.AnalysisType
	}
	if p.RememberHistory != nil {
		next.History.Remember = *p.RememberHistory
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
