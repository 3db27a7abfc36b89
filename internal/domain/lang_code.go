package domain

type LangCode struct {
	Code string `gorm:"column:code;primaryKey" json:"code"`
	Name string `gorm:"column:name;primaryKey" json:"name"`
}

func (LangCode) TableName() string { return "lang_codes" }

// LangCodesFromMap flattens a code->script mapping from a train config.
func LangCodesFromMap(m map[string]string) []*LangCode {
	out := make([]*LangCode, 0, len(m))
	for code, name := range m {
		if code == "" || name == "" {
			continue
		}
		out = append(out, &LangCode{Code: code, Name: name})
	}
	return out
}
