package cmd

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"gorm.io/gorm"

	"support-backend/internal/auth"
	"support-backend/internal/database"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// EnsureAdminUser seeds the bootstrap admin account when it does not exist
// yet. The password is only applied on first creation.
func EnsureAdminUser(ctx context.Context, db *gorm.DB, email, password string) {
	if email == "" || password == "" {
		slog.Warn("no admin credentials configured, skipping admin seeding")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	var admin database.User
	if err := db.WithContext(ctx).
		Where(database.User{Email: email}).
		Attrs(database.User{Password: hash, Role: database.RoleAdmin}).
		FirstOrCreate(&admin).Error; err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	if admin.Role != database.RoleAdmin {
		log.Fatalf("User %s exists but does not have the admin role", email)
	}
}
