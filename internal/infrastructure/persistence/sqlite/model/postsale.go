package model

type PostSaleForm struct {
	FormID        uint64  `gorm:"column:form_id;primaryKey;autoIncrement"`
	HousingID     uint64  `gorm:"column:housing_id;not null;index"`
	BeneficiaryID uint64  `gorm:"column:beneficiary_id;not null"`
	State         string  `gorm:"column:state;type:text;not null"`
	CreatedAt     string  `gorm:"column:created_at;type:text;not null"`
	SubmittedAt   *string `gorm:"column:submitted_at;type:text"`
	ReviewedAt    *string `gorm:"column:reviewed_at;type:text"`
	ReviewerID    *uint64 `gorm:"column:reviewer_id"`
	ReviewComment *string `gorm:"column:review_comment;type:text"`
	ReviewMode    string  `gorm:"column:review_mode;type:text;not null;default:''"`
}

func (PostSaleForm) TableName() string {
	return "postsale_forms"
}

type PostSaleItem struct {
	ItemID          uint64  `gorm:"column:item_id;primaryKey;autoIncrement"`
	FormID          uint64  `gorm:"column:form_id;not null;index"`
	Category        string  `gorm:"column:category;type:text;not null"`
	Description     string  `gorm:"column:description;type:text;not null"`
	OK              *bool   `gorm:"column:ok"`
	Severity        string  `gorm:"column:severity;type:text;not null;default:''"`
	Comment         string  `gorm:"column:comment;type:text;not null;default:''"`
	CreateIncidence *bool   `gorm:"column:create_incidence"`
	IncidenceID     *uint64 `gorm:"column:incidence_id"`
}

func (PostSaleItem) TableName() string {
	return "postsale_items"
}
