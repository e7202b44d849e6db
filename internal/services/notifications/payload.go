package notifications

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// Payload is the typed data carried by one notification kind.
type Payload interface {
	Kind() models.NotificationKind
}

// RequestCreated goes to the contractor when a worker applies.
type RequestCreated struct {
	RequestID     uint          `json:"solicitudId"`
	Job           models.JobRef `json:"trabajo"`
	JobTitle      string        `json:"tituloTrabajo"`
	WorkerEmail   string        `json:"emailTrabajador"`
	WorkerName    string        `json:"nombreTrabajador"`
	WorkerPhone   string        `json:"telefonoTrabajador"`
	CategoryID    uint          `json:"categoria"`
	Experience    int           `json:"experiencia"`
	AverageRating string        `json:"calificacionPromedio"`
}

func (RequestCreated) Kind() models.NotificationKind { return models.NotifRequestCreated }

// RequestUpdated goes to the worker when a pending request is rejected or expires.
type RequestUpdated struct {
	RequestID       uint                `json:"solicitudId"`
	Job             models.JobRef       `json:"trabajo"`
	JobTitle        string              `json:"tituloTrabajo"`
	State           models.RequestState `json:"estado"`
	ContractorEmail string              `json:"emailContratista"`
	ContractorName  string              `json:"nombreContratista"`
}

func (RequestUpdated) Kind() models.NotificationKind { return models.NotifRequestUpdated }

type RequestAccepted struct {
	RequestID       uint          `json:"solicitudId"`
	AssignmentID    uint          `json:"idAsignacion"`
	Job             models.JobRef `json:"trabajo"`
	JobTitle        string        `json:"tituloTrabajo"`
	ContractorEmail string        `json:"emailContratista"`
	ContractorName  string        `json:"nombreContratista"`
}

func (RequestAccepted) Kind() models.NotificationKind { return models.NotifRequestAccepted }

// ContractorInterested announces a direct hire or a manual expression of interest.
type ContractorInterested struct {
	AssignmentID    uint          `json:"idAsignacion,omitempty"`
	Job             models.JobRef `json:"trabajo"`
	JobTitle        string        `json:"tituloTrabajo"`
	ContractorEmail string        `json:"emailContratista"`
	ContractorName  string        `json:"nombreContratista"`
}

func (ContractorInterested) Kind() models.NotificationKind { return models.NotifContractorInterested }

// Dismissal goes to the worker when an assignment is cancelled.
type Dismissal struct {
	AssignmentID    uint          `json:"idAsignacion"`
	Job             models.JobRef `json:"trabajo"`
	JobTitle        string        `json:"tituloTrabajo"`
	ContractorEmail string        `json:"emailContratista"`
	ContractorName  string        `json:"nombreContratista"`
}

func (Dismissal) Kind() models.NotificationKind { return models.NotifDismissal }

// WorkerCancelled goes to the contractor when the worker walks away.
type WorkerCancelled struct {
	AssignmentID uint          `json:"idAsignacion"`
	Job          models.JobRef `json:"trabajo"`
	JobTitle     string        `json:"tituloTrabajo"`
	WorkerEmail  string        `json:"emailTrabajador"`
	WorkerName   string        `json:"nombreTrabajador"`
}

func (WorkerCancelled) Kind() models.NotificationKind { return models.NotifWorkerCancelled }

type WorkerRated struct {
	AssignmentID    uint                   `json:"idAsignacion"`
	Job             models.JobRef          `json:"trabajo"`
	JobTitle        string                 `json:"tituloTrabajo"`
	Stars           int                    `json:"estrellas"`
	Average         string                 `json:"calificacionPromedio"`
	Context         models.AssignmentState `json:"contexto"`
	ContractorEmail string                 `json:"emailContratista"`
	ContractorName  string                 `json:"nombreContratista"`
}

func (WorkerRated) Kind() models.NotificationKind { return models.NotifWorkerRated }

type ContractorCancellation struct {
	Job             models.JobRef `json:"trabajo"`
	JobTitle        string        `json:"tituloTrabajo"`
	ContractorEmail string        `json:"emailContratista"`
	ContractorName  string        `json:"nombreContratista"`
}

func (ContractorCancellation) Kind() models.NotificationKind {
	return models.NotifContractorCancellation
}

// Encode serializes a payload for the data_json column.
func Encode(p Payload) (datatypes.JSON, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return datatypes.JSON(b), nil
}

func Decode(kind models.NotificationKind, raw datatypes.JSON) (Payload, error) {
	var p Payload
	switch kind {
	case models.NotifRequestCreated:
		p = &RequestCreated{}
	case models.NotifRequestUpdated:
		p = &RequestUpdated{}
	case models.NotifRequestAccepted:
		p = &RequestAccepted{}
	case models.NotifContractorInterested:
		p = &ContractorInterested{}
	case models.NotifDismissal:
		p = &Dismissal{}
	case models.NotifWorkerCancelled:
		p = &WorkerCancelled{}
	case models.NotifWorkerRated:
		p = &WorkerRated{}
	case models.NotifContractorCancellation:
		p = &ContractorCancellation{}
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// pushData flattens a payload into the string map push gateways expect.
func pushData(p Payload) (map[string]string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
		default:
			nested, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			out[k] = string(nested)
		}
	}
	out["tipo"] = string(p.Kind())
	return out, nil
}
