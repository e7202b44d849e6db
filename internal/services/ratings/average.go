package ratings

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// Mean is the arithmetic mean of stars rounded half away from zero to two
// decimals. An empty slice averages to zero.
func Mean(stars []int) decimal.Decimal {
	if len(stars) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range stars {
		sum = sum.Add(decimal.NewFromInt(int64(s)))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(stars))), 2)
}

// RecomputeAverage stores the mean of every rating the worker has received.
func RecomputeAverage(tx *gorm.DB, workerEmail string) (decimal.Decimal, error) {
	var stars []int
	if err := tx.Model(&models.Rating{}).
		Where("email_trabajador = ?", workerEmail).
		Pluck("estrellas", &stars).Error; err != nil {
		return decimal.Zero, err
	}
	avg := Mean(stars)
	err := tx.Model(&models.Worker{}).
		Where("email = ?", workerEmail).
		Update("calificacion_promedio", avg).Error
	return avg, err
}

// Upsert writes the rating of an assignment, replacing stars, review and
// timestamp when one already exists.
func Upsert(tx *gorm.DB, r *models.Rating) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id_asignacion"}},
		DoUpdates: clause.AssignmentColumns([]string{"estrellas", "resena", "fecha_calificacion"}),
	}).Create(r).Error
}
