package main

import (
	"github.com/sportfabrik/bonuscard/internal/config"
	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("failed to migrate database: %v", err)
	}

	staffAccounts := []struct {
		Username string
		Password string
		Role     string
	}{
		{Username: "admin", Password: "admin123", Role: constants.StaffRoleAdmin},
		{Username: "empfang1", Password: "empfang123", Role: constants.StaffRoleReception},
		{Username: "empfang2", Password: "empfang123", Role: constants.StaffRoleReception},
	}

	for _, account := range staffAccounts {
		var existing models.Staff
		if err := models.DB.Where("username = ?", account.Username).First(&existing).Error; err == nil {
			stdLog.Printf("Staff already exists: %s", account.Username)
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Printf("Failed to hash password for %s: %v", account.Username, err)
			continue
		}
		staff := models.Staff{
			Username:     account.Username,
			PasswordHash: string(hash),
			Role:         account.Role,
			IsActive:     true,
		}
		if err := models.DB.Create(&staff).Error; err != nil {
			stdLog.Printf("Failed to create staff %s: %v", account.Username, err)
		} else {
			stdLog.Printf("Created staff: %s (%s)", account.Username, account.Role)
		}
	}

	members := []models.Member{
		{Name: "Anna Schmidt", Email: "anna.schmidt@example.de", IsActive: true},
		{Name: "Jonas Becker", Email: "jonas.becker@example.de", IsActive: true},
		{Name: "Lea Hoffmann", Email: "lea.hoffmann@example.de", IsActive: true},
		{Name: "Max Keller", Email: "max.keller@example.de", IsActive: false},
	}

	for _, member := range members {
		var existing models.Member
		if err := models.DB.Where("email = ?", member.Email).First(&existing).Error; err == nil {
			stdLog.Printf("Member already exists: %s", member.Email)
			continue
		}
		if err := models.DB.Create(&member).Error; err != nil {
			stdLog.Printf("Failed to create member %s: %v", member.Email, err)
		} else {
			stdLog.Printf("Created member: %s <%s>", member.Name, member.Email)
		}
	}

	stdLog.Println("Seed data created")
}
