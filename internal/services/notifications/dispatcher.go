package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// PushMessage is what leaves the process for push delivery.
type PushMessage struct {
	Recipient string            `json:"recipient"`
	Tokens    []string          `json:"tokens"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Image     string            `json:"image,omitempty"`
	Data      map[string]string `json:"data"`
}

type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// Notifier is the side-effect surface the lifecycle services use after commit.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	DeleteForRequests(ctx context.Context, ids []uint) error
	DeleteCancellationNotices(ctx context.Context, contractorEmail, workerEmail string) error
	DeleteCancellationForAssignment(ctx context.Context, contractorEmail string, assignmentID uint) error
}

type Dispatcher struct {
	DB            *gorm.DB
	Pusher        Pusher
	Logger        logrus.FieldLogger
	DefaultExpiry time.Duration
	Image         string
	Now           func() time.Time
}

func NewDispatcher(db *gorm.DB, pusher Pusher, logger logrus.FieldLogger, defaultExpiry time.Duration, image string) *Dispatcher {
	if defaultExpiry <= 0 {
		defaultExpiry = time.Hour
	}
	return &Dispatcher{
		DB:            db,
		Pusher:        pusher,
		Logger:        logger,
		DefaultExpiry: defaultExpiry,
		Image:         image,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

var errIncomplete = errors.New("notification needs recipient, title, body and payload")

// Create stores the inbox row and returns its id.
func (d *Dispatcher) Create(ctx context.Context, msg Message) (uuid.UUID, error) {
	if strings.TrimSpace(msg.Recipient) == "" || msg.Title == "" || msg.Body == "" || msg.Payload == nil {
		return uuid.Nil, errIncomplete
	}
	data, err := Encode(msg.Payload)
	if err != nil {
		return uuid.Nil, err
	}

	expiry := msg.ExpiresIn
	if expiry <= 0 {
		expiry = d.DefaultExpiry
	}
	now := d.Now()
	expiresAt := now.Add(expiry)

	n := models.Notification{
		RecipientEmail: msg.Recipient,
		Title:          msg.Title,
		Body:           msg.Body,
		Kind:           msg.Payload.Kind(),
		Data:           data,
		Image:          d.Image,
		CreatedAt:      now,
		ExpiresAt:      &expiresAt,
		RequestID:      msg.RequestID,
		AssignmentID:   msg.AssignmentID,
		WorkerEmail:    msg.WorkerEmail,
	}
	if err := d.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}
	return n.ID, nil
}

func (d *Dispatcher) DeviceTokens(ctx context.Context, email string) ([]string, error) {
	var tokens []string
	err := d.DB.WithContext(ctx).
		Model(&models.Device{}).
		Where("email = ?", email).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("device tokens: %w", err)
	}
	return tokens, nil
}

func (d *Dispatcher) Push(ctx context.Context, msg PushMessage) error {
	if d.Pusher == nil {
		return nil
	}
	if msg.Image == "" {
		msg.Image = d.Image
	}
	return d.Pusher.Push(ctx, msg)
}

// Notify creates the inbox row and pushes it to the recipient's devices and
// open sessions.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	id, err := d.Create(ctx, msg)
	if err != nil {
		return err
	}
	tokens, err := d.DeviceTokens(ctx, msg.Recipient)
	if err != nil {
		return err
	}
	data, err := pushData(msg.Payload)
	if err != nil {
		return fmt.Errorf("push data: %w", err)
	}
	data["notificationId"] = id.String()

	return d.Push(ctx, PushMessage{
		Recipient: msg.Recipient,
		Tokens:    tokens,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      data,
	})
}

func (d *Dispatcher) DeleteForRequests(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return d.DB.WithContext(ctx).
		Where("id_solicitud IN ?", ids).
		Delete(&models.Notification{}).Error
}

// DeleteCancellationNotices drops the contractor's "worker cancelled" notices
// about one worker.
func (d *Dispatcher) DeleteCancellationNotices(ctx context.Context, contractorEmail, workerEmail string) error {
	return d.DB.WithContext(ctx).
		Where("email_destino = ? AND tipo = ? AND email_trabajador = ?",
			contractorEmail, models.NotifWorkerCancelled, workerEmail).
		Delete(&models.Notification{}).Error
}

func (d *Dispatcher) DeleteCancellationForAssignment(ctx context.Context, contractorEmail string, assignmentID uint) error {
	return d.DB.WithContext(ctx).
		Where("email_destino = ? AND tipo = ? AND id_asignacion = ?",
			contractorEmail, models.NotifWorkerCancelled, assignmentID).
		Delete(&models.Notification{}).Error
}
