package models

import "time"

// Rating is unique per assignment.
type Rating struct {
	ID              uint      `gorm:"column:id_calificacion;primaryKey;autoIncrement" json:"idCalificacion"`
	ContractorEmail string    `gorm:"column:email_contratista;size:150;not null;index" json:"emailContratista"`
	WorkerEmail     string    `gorm:"column:email_trabajador;size:150;not null;index" json:"emailTrabajador"`
	AssignmentID    uint      `gorm:"column:id_asignacion;not null;uniqueIndex" json:"idAsignacion"`
	Stars           int       `gorm:"column:estrellas;not null;check:estrellas >= 1 AND estrellas <= 5" json:"estrellas"` // 1-5
	Review          *string   `gorm:"column:resena;type:text" json:"resena,omitempty"`
	RatedAt         time.Time `gorm:"column:fecha_calificacion;not null" json:"fechaCalificacion"`
}

func (Rating) TableName() string { return "calificaciones_trabajadores" }
