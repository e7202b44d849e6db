package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotifRequestCreated         NotificationKind = "solicitud_trabajo"
	NotifRequestUpdated         NotificationKind = "solicitud_actualizada"
	NotifRequestAccepted        NotificationKind = "solicitud_aceptada"
	NotifContractorInterested   NotificationKind = "contratista_interesado"
	NotifDismissal              NotificationKind = "desvinculacion"
	NotifWorkerCancelled        NotificationKind = "solicitud_cancelada"
	NotifWorkerRated            NotificationKind = "calificacion_trabajador"
	NotifContractorCancellation NotificationKind = "cancelacion_contratista"
)

// Notification is an in-app inbox row. Data holds the typed payload of Kind;
// the reference columns are copied out of it so cleanups can filter on them.
type Notification struct {
	ID             uuid.UUID        `gorm:"column:id_notificacion;type:uuid;primaryKey" json:"id"`
	RecipientEmail string           `gorm:"column:email_destino;size:150;not null;index" json:"email_destino"`
	Title          string           `gorm:"column:titulo;size:200;not null" json:"titulo"`
	Body           string           `gorm:"column:cuerpo;type:text;not null" json:"cuerpo"`
	Kind           NotificationKind `gorm:"column:tipo;size:50;not null;index" json:"tipo"`
	Data           datatypes.JSON   `gorm:"column:data_json" json:"data"`
	Image          string           `gorm:"column:imagen" json:"imagen,omitempty"`
	Read           bool             `gorm:"column:leida;not null" json:"leida"`
	ReadAt         *time.Time       `gorm:"column:leida_en" json:"leida_en,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"created_at"`
	ExpiresAt      *time.Time       `gorm:"column:expira_en;index" json:"expira_en,omitempty"`

	RequestID    *uint   `gorm:"column:id_solicitud;index" json:"-"`
	AssignmentID *uint   `gorm:"column:id_asignacion;index" json:"-"`
	WorkerEmail  *string `gorm:"column:email_trabajador;size:150;index" json:"-"`
}

func (Notification) TableName() string { return "notificaciones_usuario" }

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// Device is a push token registered by a mobile client.
type Device struct {
	Token     string    `gorm:"column:token;primaryKey;size:255" json:"token"`
	Email     string    `gorm:"column:email;size:150;not null;index" json:"email"`
	UserType  Role      `gorm:"column:tipo_usuario;size:20;not null" json:"tipo_usuario"`
	Platform  string    `gorm:"column:plataforma;size:20" json:"plataforma"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Device) TableName() string { return "dispositivos_notificaciones" }
