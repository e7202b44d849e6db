package models

import "time"

type Favorite struct {
	ContractorEmail string    `gorm:"column:email_contratista;primaryKey;size:150" json:"email_contratista"`
	WorkerEmail     string    `gorm:"column:email_trabajador;primaryKey;size:150" json:"email_trabajador"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Favorite) TableName() string { return "favoritos" }
