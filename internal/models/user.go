// internal/models/user.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleWorker     Role = "trabajador"
	RoleContractor Role = "contratista"
)

func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleContractor
}

// Worker is a job seeker. Available is false while the worker holds an
// active assignment or MaxPendingRequests pending requests.
type Worker struct {
	Email      string `gorm:"column:email;primaryKey;size:150" json:"email"`
	Username   string `gorm:"column:username;size:60;uniqueIndex;not null" json:"username"`
	FirstName  string `gorm:"column:nombre;size:100;not null" json:"nombre"`
	LastName   string `gorm:"column:apellido;size:100" json:"apellido"`
	Password   string `gorm:"column:password;not null" json:"-"`
	Phone      string `gorm:"column:telefono;size:30" json:"telefono"`
	CategoryID uint   `gorm:"column:categoria;index" json:"categoria"`
	Experience int    `gorm:"column:experiencia;not null" json:"experiencia"`

	AverageRating decimal.Decimal `gorm:"column:calificacion_promedio;type:numeric(4,2);not null" json:"calificacion_promedio"`
	Available     bool            `gorm:"column:disponible;not null" json:"disponible"`

	Latitude          *float64   `gorm:"column:latitud" json:"latitud"`
	Longitude         *float64   `gorm:"column:longitud" json:"longitud"`
	LocationUpdatedAt *time.Time `gorm:"column:ubicacion_actualizada" json:"ubicacion_actualizada,omitempty"`
	PhotoURL          string     `gorm:"column:foto_perfil" json:"foto_perfil"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Worker) TableName() string { return "trabajadores" }

func (w Worker) DisplayName() string {
	if w.LastName == "" {
		return w.FirstName
	}
	return w.FirstName + " " + w.LastName
}

// Contractor posts jobs. Contractors have no availability flag.
type Contractor struct {
	Email     string `gorm:"column:email;primaryKey;size:150" json:"email"`
	Username  string `gorm:"column:username;size:60;uniqueIndex;not null" json:"username"`
	FirstName string `gorm:"column:nombre;size:100;not null" json:"nombre"`
	LastName  string `gorm:"column:apellido;size:100" json:"apellido"`
	Password  string `gorm:"column:password;not null" json:"-"`
	Phone     string `gorm:"column:telefono;size:30" json:"telefono"`
	Company   string `gorm:"column:empresa;size:150" json:"empresa"`

	Latitude          *float64   `gorm:"column:latitud" json:"latitud"`
	Longitude         *float64   `gorm:"column:longitud" json:"longitud"`
	LocationUpdatedAt *time.Time `gorm:"column:ubicacion_actualizada" json:"ubicacion_actualizada,omitempty"`
	PhotoURL          string     `gorm:"column:foto_perfil" json:"foto_perfil"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Contractor) TableName() string { return "contratistas" }

func (c Contractor) DisplayName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type Category struct {
	ID   uint   `gorm:"column:id_categoria;primaryKey;autoIncrement" json:"id_categoria"`
	Name string `gorm:"column:nombre;size:100;uniqueIndex;not null" json:"nombre"`
}

func (Category) TableName() string { return "categorias" }
