package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/karimelassali/baraka-dispatch/internal/config"
	"github.com/karimelassali/baraka-dispatch/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the customer directory with sample data",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/baraka/dispatch.yaml", "Path to configuration file")
}

var sampleCustomers = []struct {
	contact     string
	displayName string
	nationality string
	points      int
}{
	{"+201001000001", "Ahmed Hassan", "EG", 320},
	{"+201001000002", "Mona Khalil", "EG", 85},
	{"+966501000003", "Fahad Alotaibi", "SA", 150},
	{"+966501000004", "Noura Alqahtani", "SA", 40},
	{"+971501000005", "Omar Haddad", "AE", 510},
	{"+971501000006", "Layla Nasser", "AE", 95},
	{"", "Walk-in Customer", "EG", 10}, // no contact on file
	{"+212601000008", "Youssef Amrani", "MA", 230},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	for _, c := range sampleCustomers {
		_, err := database.Exec(`
			INSERT INTO customers (id, contact, display_name, nationality, points)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), c.contact, c.displayName, c.nationality, c.points,
		)
		if err != nil {
			return fmt.Errorf("failed to seed customer %q: %w", c.displayName, err)
		}
	}

	fmt.Printf("Seeded %d customers\n", len(sampleCustomers))
	return nil
}
