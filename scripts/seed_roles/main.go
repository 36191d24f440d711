package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
	"github.com/noah-isme/role-approval-api/internal/service"
	"github.com/noah-isme/role-approval-api/pkg/config"
	"github.com/noah-isme/role-approval-api/pkg/database"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/logger"
)

func main() {
	var (
		adminEmail    string
		adminPassword string
		adminName     string
		timeout       time.Duration
	)

	flag.StringVar(&adminEmail, "admin-email", "", "Bootstrap a superadmin account with this email")
	flag.StringVar(&adminPassword, "admin-password", "", "Password for the bootstrap superadmin")
	flag.StringVar(&adminName, "admin-name", "Super Admin", "Display name for the bootstrap superadmin")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	roles, err := repository.NewRoleRepository(db)
	if err != nil {
		log.Fatalf("failed to init role repository: %v", err)
	}

	seeded := make([]models.Role, 0, len(models.SeedRoles))
	for _, seed := range models.SeedRoles {
		role := seed
		if err := roles.Upsert(ctx, &role); err != nil {
			log.Fatalf("failed to seed role %q: %v", seed.Name, err)
		}
		seeded = append(seeded, role)
	}
	printRoles(seeded)

	if adminEmail == "" {
		return
	}
	users := service.NewUserService(repository.NewUserRepository(db), roles, nil, logr)
	user, err := users.CreateByAdmin(ctx, dto.CreateUserRequest{
		Name:     adminName,
		Email:    adminEmail,
		Password: adminPassword,
		Role:     models.RoleSuperAdmin,
	}, "seed")
	switch {
	case err == nil:
		fmt.Printf("superadmin created: %s (%s)\n", user.Email, user.ID)
	case appErrors.HasCode(err, appErrors.ErrConflict):
		fmt.Printf("superadmin %s already exists, skipped\n", adminEmail)
	default:
		log.Fatalf("failed to create superadmin: %v", err)
	}
}

func printRoles(roles []models.Role) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIER\tID")
	for _, role := range roles {
		fmt.Fprintf(w, "%s\t%d\t%s\n", role.Name, role.Tier, role.ID)
	}
	w.Flush() //nolint:errcheck
}
