package model

type Housing struct {
	HousingID     uint64  `gorm:"column:housing_id;primaryKey;autoIncrement:false"`
	ProjectID     uint64  `gorm:"column:project_id;not null;index"`
	Code          string  `gorm:"column:code;type:text;not null"`
	BeneficiaryID *uint64 `gorm:"column:beneficiary_id;index"`
	DeliveryDate  *string `gorm:"column:delivery_date;type:text"`
}

func (Housing) TableName() string {
	return "housings"
}

type ProjectScope struct {
	ActorID   uint64 `gorm:"column:actor_id;not null;primaryKey"`
	ProjectID uint64 `gorm:"column:project_id;not null;primaryKey"`
}

func (ProjectScope) TableName() string {
	return "project_scopes"
}
