package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// Message is one notification to create and push.
type Message struct {
	Recipient string
	Title     string
	Body      string
	Payload   Payload
	// zero means the dispatcher default
	ExpiresIn time.Duration

	RequestID    *uint
	AssignmentID *uint
	WorkerEmail  *string
}

func contractorTitle(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Contratista"
	}
	return "Contratista: " + strings.ToUpper(strings.TrimSpace(name))
}

func quotedTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "el trabajo"
	}
	return `"` + strings.TrimSpace(title) + `"`
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func ref[T any](v T) *T { return &v }

func NewRequestCreated(contractorEmail string, p RequestCreated, expiresIn time.Duration) Message {
	title := "Solicitud de trabajador"
	body := fmt.Sprintf("Un trabajador se interesó en el proyecto %s. Recuerda que puedes contactarlo por WhatsApp en caso de aceptarlo.", quotedTitle(p.JobTitle))
	if p.WorkerName != "" {
		title = "Trabajador: " + p.WorkerName
		body = fmt.Sprintf("%s se interesó en el proyecto %s. Recuerda que puedes contactarlo por WhatsApp en caso de aceptarlo.", p.WorkerName, quotedTitle(p.JobTitle))
	}
	return Message{
		Recipient:   contractorEmail,
		Title:       title,
		Body:        body,
		Payload:     p,
		ExpiresIn:   expiresIn,
		RequestID:   ref(p.RequestID),
		WorkerEmail: ref(p.WorkerEmail),
	}
}

func NewRequestUpdated(workerEmail string, p RequestUpdated) Message {
	var body string
	if p.State == models.RequestExpired {
		body = fmt.Sprintf("Tu solicitud hacia el proyecto %s expiró sin respuesta. Ahora estás disponible para más proyectos y distintos contratistas.", quotedTitle(p.JobTitle))
	} else {
		body = fmt.Sprintf("Ha rechazado/cancelado la solicitud hacia el proyecto %s. Ahora estás disponible para más proyectos y distintos contratistas.", quotedTitle(p.JobTitle))
	}
	return Message{
		Recipient: workerEmail,
		Title:     contractorTitle(p.ContractorName),
		Body:      body,
		Payload:   p,
	}
}

func NewRequestAccepted(workerEmail string, p RequestAccepted) Message {
	return Message{
		Recipient:    workerEmail,
		Title:        contractorTitle(p.ContractorName),
		Body:         fmt.Sprintf("Aceptó tu solicitud para el proyecto %s. Mantente al tanto de tu WhatsApp, por ahí te contactará.", quotedTitle(p.JobTitle)),
		Payload:      p,
		AssignmentID: ref(p.AssignmentID),
	}
}

func NewContractorInterested(workerEmail string, p ContractorInterested) Message {
	body := "Un contratista se ha interesado en ti. Mantente al tanto de tu WhatsApp, ahí te contactará."
	if p.ContractorName != "" {
		body = fmt.Sprintf("El contratista %s se ha interesado en ti. Mantente al tanto de tu WhatsApp, ahí te contactará.", p.ContractorName)
	}
	m := Message{
		Recipient: workerEmail,
		Title:     contractorTitle(p.ContractorName),
		Body:      body,
		Payload:   p,
	}
	if p.AssignmentID != 0 {
		m.AssignmentID = ref(p.AssignmentID)
	}
	return m
}

func NewDismissal(workerEmail string, p Dismissal) Message {
	return Message{
		Recipient:    workerEmail,
		Title:        contractorTitle(p.ContractorName),
		Body:         fmt.Sprintf("%s ha cancelado la contratación. Ahora estás disponible hacia más proyectos y distintos contratistas.", orDefault(p.ContractorName, "El contratista")),
		Payload:      p,
		AssignmentID: ref(p.AssignmentID),
	}
}

func NewWorkerCancelled(contractorEmail string, p WorkerCancelled) Message {
	title := "Trabajador"
	if p.WorkerName != "" {
		title = "Trabajador: " + strings.ToUpper(p.WorkerName)
	}
	return Message{
		Recipient:    contractorEmail,
		Title:        title,
		Body:         fmt.Sprintf("El trabajador perteneciente al proyecto %s canceló su instancia.", quotedTitle(p.JobTitle)),
		Payload:      p,
		AssignmentID: ref(p.AssignmentID),
		WorkerEmail:  ref(p.WorkerEmail),
	}
}

// NewWorkerRated words the message after the assignment outcome: a cancelled
// assignment reads as a dismissal, anything else as a completed job.
func NewWorkerRated(workerEmail string, p WorkerRated) Message {
	name := orDefault(p.ContractorName, p.ContractorEmail)
	var body string
	if p.Context == models.AssignmentCancelled {
		body = fmt.Sprintf("El contratista %s te ha desvinculado del trabajo %s y registró tu calificación. Tu valoración fue de %d/5 estrellas.", name, quotedTitle(p.JobTitle), p.Stars)
	} else {
		body = fmt.Sprintf("El contratista %s ha terminado el trabajo %s y registró tu calificación. Tu valoración fue de %d/5 estrellas.", name, quotedTitle(p.JobTitle), p.Stars)
	}
	return Message{
		Recipient:    workerEmail,
		Title:        contractorTitle(p.ContractorName),
		Body:         body,
		Payload:      p,
		AssignmentID: ref(p.AssignmentID),
	}
}

func NewContractorCancellation(workerEmail string, p ContractorCancellation) Message {
	return Message{
		Recipient: workerEmail,
		Title:     contractorTitle(p.ContractorName),
		Body:      fmt.Sprintf("%s ha cancelado la contratación. Ahora estás disponible hacia más proyectos y distintos contratistas.", orDefault(p.ContractorName, "El contratista")),
		Payload:   p,
	}
}
