package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

const inboxLimit = 100

type InboxItem struct {
	models.Notification
	Payload Payload `json:"payload"`
}

// List returns the user's notifications that have not expired, newest first.
func (d *Dispatcher) List(ctx context.Context, email string) ([]InboxItem, error) {
	var rows []models.Notification
	err := d.DB.WithContext(ctx).
		Where("email_destino = ?", email).
		Where("expira_en IS NULL OR expira_en > ?", d.Now()).
		Order("created_at DESC").
		Limit(inboxLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	items := make([]InboxItem, 0, len(rows))
	for _, n := range rows {
		p, err := Decode(n.Kind, n.Data)
		if err != nil {
			d.Logger.WithError(err).WithField("notificationId", n.ID).Warn("skip undecodable notification payload")
			continue
		}
		items = append(items, InboxItem{Notification: n, Payload: p})
	}
	return items, nil
}

// MarkRead marks the given notifications as read; no ids marks them all.
func (d *Dispatcher) MarkRead(ctx context.Context, email string, ids []uuid.UUID) (int64, error) {
	q := d.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("email_destino = ? AND leida = ?", email, false)
	if len(ids) > 0 {
		q = q.Where("id_notificacion IN ?", ids)
	}
	res := q.Updates(map[string]any{"leida": true, "leida_en": d.Now()})
	if res.Error != nil {
		return 0, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReferencedRequests lists the request ids mentioned in the user's inbox.
func (d *Dispatcher) ReferencedRequests(ctx context.Context, email string) ([]uint, error) {
	var ids []uint
	err := d.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("email_destino = ? AND id_solicitud IS NOT NULL", email).
		Distinct().
		Pluck("id_solicitud", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("referenced requests: %w", err)
	}
	return ids, nil
}

func (d *Dispatcher) DeleteAll(ctx context.Context, email string) (int64, error) {
	res := d.DB.WithContext(ctx).
		Where("email_destino = ?", email).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RegisterDevice stores a push token; a token moves to the latest account
// that registers it.
func (d *Dispatcher) RegisterDevice(ctx context.Context, token, email string, role models.Role, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" || email == "" {
		return errIncomplete
	}
	now := d.Now()
	dev := models.Device{
		Token:     token,
		Email:     email,
		UserType:  role,
		Platform:  platform,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "tipo_usuario", "plataforma", "updated_at"}),
	}).Create(&dev).Error
}

func (d *Dispatcher) RemoveDevice(ctx context.Context, token, email string) (int64, error) {
	res := d.DB.WithContext(ctx).
		Where("token = ? AND email = ?", token, email).
		Delete(&models.Device{})
	return res.RowsAffected, res.Error
}
