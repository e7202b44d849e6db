package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// ContractorName returns the contractor's display name, or "" when unknown.
func ContractorName(ctx context.Context, db *gorm.DB, email string) string {
	var c models.Contractor
	if err := db.WithContext(ctx).Select("nombre", "apellido").Where("email = ?", email).First(&c).Error; err != nil {
		return ""
	}
	return c.DisplayName()
}

func WorkerName(ctx context.Context, db *gorm.DB, email string) string {
	var w models.Worker
	if err := db.WithContext(ctx).Select("nombre", "apellido").Where("email = ?", email).First(&w).Error; err != nil {
		return ""
	}
	return w.DisplayName()
}
