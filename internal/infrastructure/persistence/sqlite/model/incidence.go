package model

type Incidence struct {
	IncidenceID  uint64  `gorm:"column:incidence_id;primaryKey;autoIncrement"`
	HousingID    uint64  `gorm:"column:housing_id;not null;index"`
	ReporterID   uint64  `gorm:"column:reporter_id;not null;index"`
	TechnicianID *uint64 `gorm:"column:technician_id;index"`

	Category    string `gorm:"column:category;type:text;not null"`
	Description string `gorm:"column:description;type:text;not null"`
	Source      string `gorm:"column:source;type:text;not null"`

	Priority       string `gorm:"column:priority;type:text;not null"`
	PriorityOrigin string `gorm:"column:priority_origin;type:text;not null"`
	PriorityFinal  string `gorm:"column:priority_final;type:text;not null"`
	PriorityBasis  string `gorm:"column:priority_basis;type:text;not null"`

	WarrantyClass  *string `gorm:"column:warranty_class;type:text"`
	WarrantyExpiry *string `gorm:"column:warranty_expiry;type:text"`
	WarrantyValid  *bool   `gorm:"column:warranty_valid"`
	WarrantySource string  `gorm:"column:warranty_source;type:text;not null"`

	AttentionDeadline string `gorm:"column:attention_deadline;type:text;not null"`
	ClosureDeadline   string `gorm:"column:closure_deadline;type:text;not null"`

	State       string  `gorm:"column:state;type:text;not null;index"`
	ReportedAt  string  `gorm:"column:reported_at;type:text;not null"`
	AssignedAt  *string `gorm:"column:assigned_at;type:text"`
	InProcessAt *string `gorm:"column:in_process_at;type:text"`
	ResolvedAt  *string `gorm:"column:resolved_at;type:text"`
	ClosedAt    *string `gorm:"column:closed_at;type:text"`

	BeneficiaryConformity *bool   `gorm:"column:beneficiary_conformity"`
	ConformityAt          *string `gorm:"column:conformity_at;type:text"`
}

func (Incidence) TableName() string {
	return "incidences"
}
