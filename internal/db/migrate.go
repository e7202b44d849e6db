package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// partial unique indexes backing the lifecycle invariants; both postgres
// and sqlite accept this syntax
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_solicitudes_pendiente_por_trabajo
		ON solicitudes_trabajo (email_trabajador, tipo_trabajo, id_trabajo)
		WHERE estado = 'pendiente'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_asignaciones_trabajador_activo
		ON asignaciones_trabajo (email_trabajador)
		WHERE estado = 'activo'`,
	`CREATE INDEX IF NOT EXISTS ix_solicitudes_pendientes_expira
		ON solicitudes_trabajo (expira_en)
		WHERE estado = 'pendiente'`,
	`CREATE INDEX IF NOT EXISTS ix_asignaciones_trabajo_ref
		ON asignaciones_trabajo (tipo_trabajo, id_trabajo)`,
}

// Migrate creates or updates the schema. Safe to run on every start.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.Category{},
		&models.Worker{},
		&models.Contractor{},
		&models.ShortTermJob{},
		&models.LongTermJob{},
		&models.Request{},
		&models.Assignment{},
		&models.Rating{},
		&models.Notification{},
		&models.Device{},
		&models.Favorite{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	for _, stmt := range indexes {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
