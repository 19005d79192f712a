package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"

	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/database"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
)

const usage = `Usage: admin <command> [args]

Commands:
  add-user <username> <password>        Create a user
  reset-password <username> <password>  Set a user's password
  delete-user <username>                Remove a user and their devices
  add-device <username> <name> [tz]     Register a device for a user
  list                                  Show users and devices
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load configuration: %v", err)
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		fatal("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		fatal("Failed to run migrations: %v", err)
	}

	repos := database.NewRepositories(db)
	ctx := context.Background()

	switch os.Args[1] {
	case "add-user":
		requireArgs(4)
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[3]), bcrypt.DefaultCost)
		if err != nil {
			fatal("Failed to hash password: %v", err)
		}
		user := &models.User{Username: os.Args[2], PasswordHash: string(hash)}
		if err := repos.User.Create(ctx, user); err != nil {
			fatal("Failed to create user: %v", err)
		}
		fmt.Printf("Created user %s (id %d)\n", user.Username, user.ID)

	case "reset-password":
		requireArgs(4)
		user, err := repos.User.GetByUsername(ctx, os.Args[2])
		if err != nil {
			fatal("User not found: %v", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[3]), bcrypt.DefaultCost)
		if err != nil {
			fatal("Failed to hash password: %v", err)
		}
		user.PasswordHash = string(hash)
		if err := repos.User.Update(ctx, user); err != nil {
			fatal("Failed to update user: %v", err)
		}
		fmt.Printf("Password updated for %s\n", user.Username)

	case "delete-user":
		requireArgs(3)
		user, err := repos.User.GetByUsername(ctx, os.Args[2])
		if err != nil {
			fatal("User not found: %v", err)
		}
		if err := repos.User.Delete(ctx, user.ID); err != nil {
			fatal("Failed to delete user: %v", err)
		}
		fmt.Printf("Deleted user %s\n", user.Username)

	case "add-device":
		requireArgs(4)
		user, err := repos.User.GetByUsername(ctx, os.Args[2])
		if err != nil {
			fatal("User not found: %v", err)
		}
		timezone := "UTC"
		if len(os.Args) > 4 {
			timezone = os.Args[4]
		}
		device := &models.Device{UserID: user.ID, Name: os.Args[3], Timezone: timezone}
		if err := repos.Device.Create(ctx, device); err != nil {
			fatal("Failed to create device: %v", err)
		}
		fmt.Printf("Created device %s (id %d) for %s\n", device.Name, device.ID, user.Username)

	case "list":
		users, err := repos.User.GetAll(ctx)
		if err != nil {
			fatal("Failed to list users: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tDEVICE ID\tDEVICE\tTIMEZONE")
		for _, user := range users {
			devs, err := repos.Device.GetByUser(ctx, user.ID)
			if err != nil {
				fatal("Failed to list devices for %s: %v", user.Username, err)
			}
			if len(devs) == 0 {
				fmt.Fprintf(w, "%s\t-\t-\t-\n", user.Username)
				continue
			}
			for _, device := range devs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user.Username, strconv.Itoa(device.ID), device.Name, device.Timezone)
			}
		}
		w.Flush()

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func requireArgs(n int) {
	if len(os.Args) < n {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
