package models

import "time"

type AssignmentState string

const (
	AssignmentActive    AssignmentState = "activo"
	AssignmentCancelled AssignmentState = "cancelado"
	AssignmentFinished  AssignmentState = "finalizado"
)

// Assignment pairs one contractor, one worker and one job.
// A worker holds at most one activo assignment.
type Assignment struct {
	ID              uint            `gorm:"column:id_asignacion;primaryKey;autoIncrement" json:"idAsignacion"`
	ContractorEmail string          `gorm:"column:email_contratista;size:150;not null;index" json:"emailContratista"`
	WorkerEmail     string          `gorm:"column:email_trabajador;size:150;not null;index" json:"emailTrabajador"`
	JobKind         JobKind         `gorm:"column:tipo_trabajo;size:10;not null" json:"tipoTrabajo"`
	JobID           uint            `gorm:"column:id_trabajo;not null" json:"idTrabajo"`
	State           AssignmentState `gorm:"column:estado;size:20;not null;index" json:"estado"`
	AssignedAt      time.Time       `gorm:"column:fecha_asignacion;not null" json:"fechaAsignacion"`
	CancelledAt     *time.Time      `gorm:"column:fecha_cancelacion" json:"fechaCancelacion,omitempty"`
	FinishedAt      *time.Time      `gorm:"column:fecha_finalizacion" json:"fechaFinalizacion,omitempty"`
}

func (Assignment) TableName() string { return "asignaciones_trabajo" }

func (a Assignment) JobRef() JobRef {
	return JobRef{Kind: a.JobKind, ID: a.JobID}
}
