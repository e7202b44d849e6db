// internal/models/job.go
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type JobKind string

const (
	JobShortTerm JobKind = "corto"
	JobLongTerm  JobKind = "largo"
)

func (k JobKind) Valid() bool {
	return k == JobShortTerm || k == JobLongTerm
}

// ParseJobKind accepts the stored names and their long forms.
func ParseJobKind(s string) (JobKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "corto", "corto_plazo", "corto-plazo":
		return JobShortTerm, true
	case "largo", "largo_plazo", "largo-plazo":
		return JobLongTerm, true
	}
	return "", false
}

type JobState string

const (
	JobActive    JobState = "activo"
	JobPaused    JobState = "pausado"
	JobCompleted JobState = "completado"
)

// JobRef identifies a job across both job tables.
type JobRef struct {
	Kind JobKind `json:"tipoTrabajo"`
	ID   uint    `json:"idTrabajo"`
}

func (r JobRef) Valid() bool {
	return r.Kind.Valid() && r.ID > 0
}

// JobSnapshot is the part of a job the lifecycle engine reads and writes.
type JobSnapshot struct {
	Ref             JobRef    `json:"ref"`
	ContractorEmail string    `json:"email_contratista"`
	Title           string    `json:"titulo"`
	Description     string    `json:"descripcion"`
	Vacancies       int       `json:"vacantes_disponibles"`
	State           JobState  `json:"estado"`
	Latitude        *float64  `json:"latitud"`
	Longitude       *float64  `json:"longitud"`
	Address         string    `json:"direccion"`
	CreatedAt       time.Time `json:"created_at"`
}

// Open reports whether the job accepts applications and hires.
func (s JobSnapshot) Open() bool {
	return s.State == JobActive && s.Vacancies > 0
}

// JobRecord is implemented by both job tables.
type JobRecord interface {
	Snapshot() JobSnapshot
}

type ShortTermJob struct {
	ID              uint     `gorm:"column:id_trabajo_corto;primaryKey;autoIncrement" json:"id_trabajo_corto"`
	ContractorEmail string   `gorm:"column:email_contratista;size:150;not null;index" json:"email_contratista"`
	Title           string   `gorm:"column:titulo;size:200;not null" json:"titulo"`
	Description     string   `gorm:"column:descripcion;type:text" json:"descripcion"`
	PayRange        string   `gorm:"column:rango_pago;size:100" json:"rango_pago"`
	Currency        string   `gorm:"column:moneda;size:10" json:"moneda"`
	Latitude        *float64 `gorm:"column:latitud" json:"latitud"`
	Longitude       *float64 `gorm:"column:longitud" json:"longitud"`
	Address         string   `gorm:"column:direccion" json:"direccion"`
	Availability    string   `gorm:"column:disponibilidad;size:100" json:"disponibilidad"`
	Specialty       string   `gorm:"column:especialidad;size:100" json:"especialidad"`
	Vacancies       int      `gorm:"column:vacantes_disponibles;not null;check:vacantes_disponibles >= 0" json:"vacantes_disponibles"`
	State           JobState `gorm:"column:estado;size:20;not null;index" json:"estado"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ShortTermJob) TableName() string { return "trabajos_corto_plazo" }

func (j ShortTermJob) Snapshot() JobSnapshot {
	return JobSnapshot{
		Ref:             JobRef{Kind: JobShortTerm, ID: j.ID},
		ContractorEmail: j.ContractorEmail,
		Title:           j.Title,
		Description:     j.Description,
		Vacancies:       j.Vacancies,
		State:           j.State,
		Latitude:        j.Latitude,
		Longitude:       j.Longitude,
		Address:         j.Address,
		CreatedAt:       j.CreatedAt,
	}
}

type LongTermJob struct {
	ID              uint            `gorm:"column:id_trabajo_largo;primaryKey;autoIncrement" json:"id_trabajo_largo"`
	ContractorEmail string          `gorm:"column:email_contratista;size:150;not null;index" json:"email_contratista"`
	Title           string          `gorm:"column:titulo;size:200;not null" json:"titulo"`
	Description     string          `gorm:"column:descripcion;type:text" json:"descripcion"`
	Latitude        *float64        `gorm:"column:latitud" json:"latitud"`
	Longitude       *float64        `gorm:"column:longitud" json:"longitud"`
	Address         string          `gorm:"column:direccion" json:"direccion"`
	StartDate       *time.Time      `gorm:"column:fecha_inicio" json:"fecha_inicio"`
	EndDate         *time.Time      `gorm:"column:fecha_fin" json:"fecha_fin"`
	WorkType        string          `gorm:"column:tipo_obra;size:100" json:"tipo_obra"`
	Frequency       string          `gorm:"column:frecuencia;size:50" json:"frecuencia"`
	Budget          decimal.Decimal `gorm:"column:presupuesto;type:numeric(12,2);not null" json:"presupuesto"`
	Vacancies       int             `gorm:"column:vacantes_disponibles;not null;check:vacantes_disponibles >= 0" json:"vacantes_disponibles"`
	State           JobState        `gorm:"column:estado;size:20;not null;index" json:"estado"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (LongTermJob) TableName() string { return "trabajos_largo_plazo" }

func (j LongTermJob) Snapshot() JobSnapshot {
	return JobSnapshot{
		Ref:             JobRef{Kind: JobLongTerm, ID: j.ID},
		ContractorEmail: j.ContractorEmail,
		Title:           j.Title,
		Description:     j.Description,
		Vacancies:       j.Vacancies,
		State:           j.State,
		Latitude:        j.Latitude,
		Longitude:       j.Longitude,
		Address:         j.Address,
		CreatedAt:       j.CreatedAt,
	}
}
