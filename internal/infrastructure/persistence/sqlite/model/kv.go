package model

type KV struct {
	Key       string  `gorm:"column:key;type:text;primaryKey"`
	Value     string  `gorm:"column:value;type:text;not null"`
	UpdatedAt string  `gorm:"column:updated_at;type:text;not null"`
	ExpiresAt *string `gorm:"column:expires_at;type:text"`
}

func (KV) TableName() string {
	return "kv"
}

// All lists every table the schema migration creates.
func All() []any {
	return []any{
		&Housing{},
		&ProjectScope{},
		&Incidence{},
		&HistoryEvent{},
		&PostSaleForm{},
		&PostSaleItem{},
		&KV{},
	}
}
