package models

import "time"

type RequestState string

const (
	RequestPending  RequestState = "pendiente"
	RequestAccepted RequestState = "aceptada"
	RequestRejected RequestState = "rechazada"
	RequestExpired  RequestState = "expirada"
)

// MaxPendingRequests caps the pending requests a worker may hold.
const MaxPendingRequests = 3

// Request is a worker's time-boxed application ("solicitud") to a job.
// Every state but pendiente is terminal.
type Request struct {
	ID              uint         `gorm:"column:id_solicitud;primaryKey;autoIncrement" json:"idSolicitud"`
	WorkerEmail     string       `gorm:"column:email_trabajador;size:150;not null;index" json:"emailTrabajador"`
	ContractorEmail string       `gorm:"column:email_contratista;size:150;not null;index" json:"emailContratista"`
	JobKind         JobKind      `gorm:"column:tipo_trabajo;size:10;not null" json:"tipoTrabajo"`
	JobID           uint         `gorm:"column:id_trabajo;not null" json:"idTrabajo"`
	State           RequestState `gorm:"column:estado;size:20;not null;index" json:"estado"`
	CreatedAt       time.Time    `gorm:"column:created_at" json:"createdAt"`
	ExpiresAt       time.Time    `gorm:"column:expira_en;not null;index" json:"expiraEn"`
	RespondedAt     *time.Time   `gorm:"column:respondido_en" json:"respondidoEn,omitempty"`
}

func (Request) TableName() string { return "solicitudes_trabajo" }

func (r Request) JobRef() JobRef {
	return JobRef{Kind: r.JobKind, ID: r.JobID}
}
