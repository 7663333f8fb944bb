package database

import (
	"inmopresence/config"
	"inmopresence/internal/domain"
	"inmopresence/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.UserPresence{},
	)
}

// SeedSuperAdmin creates the initial super_admin profile when the table
// is empty so a fresh install can log in.
func SeedSuperAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.Profile{}).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("change-me"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	db.Create(&models.Profile{
		ID:           uuid.New(),
		Email:        "admin@inmobiliaria.local",
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
		FullName:     "Administrador",
	})
}
