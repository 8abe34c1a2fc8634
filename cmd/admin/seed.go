package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"

	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/store"
)

// fixtures is the seed file layout.
type fixtures struct {
	Users []struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		FullName string `yaml:"full_name"`
		Role     string `yaml:"role"`
	} `yaml:"users"`
	Records []struct {
		Email    string `yaml:"email"`
		PhotoURL string `yaml:"photo_url"`
		Notes    string `yaml:"notes"`
		Location string `yaml:"location"`
		// At is an absolute time, or a duration before now such as "26h".
		At string `yaml:"at"`
	} `yaml:"records"`
}

func loadFixtures(path string) (fixtures, error) {
	var fx fixtures
	b, err := os.ReadFile(path)
	if err != nil {
		return fx, err
	}
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return fx, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// seed loads a fixture file. Users that already exist are left untouched.
func (cli *commandLine) seed(ctx context.Context, path string) error {
	fx, err := loadFixtures(path)
	if err != nil {
		return err
	}
	profiles := store.NewProfiles(cli.db.X)

	for _, u := range fx.Users {
		role := attendance.RoleUser
		if u.Role != "" {
			if role, err = attendance.ParseRole(u.Role); err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
		}
		email, err := auth.NormalizeEmail(u.Email)
		if err != nil {
			return err
		}
		if _, err := profiles.GetByEmail(ctx, email); err == nil {
			fmt.Fprintf(cli.out, "skip %s: exists\n", email)
			continue
		}
		if _, err := cli.auth.CreateUser(ctx, email, u.Password, u.FullName, role); err != nil {
			return fmt.Errorf("user %s: %w", email, err)
		}
	}

	now := cli.now()
	for i, r := range fx.Records {
		email, err := auth.NormalizeEmail(r.Email)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		p, err := profiles.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("record %d: %s: %w", i, email, err)
		}
		at, err := parseAt(r.At, now)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		_, err = cli.attendance.CreateRecord(ctx, attendance.NewRecord{
			UserID:      p.ID,
			PhotoURL:    r.PhotoURL,
			Notes:       null.StringFrom(r.Notes),
			Location:    null.StringFrom(r.Location),
			Status:      attendance.StatusPresent,
			CheckInTime: at,
		})
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	fmt.Fprintf(cli.out, "seeded %d users, %d records\n", len(fx.Users), len(fx.Records))
	return nil
}

func parseAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("at %q: want RFC 3339 or a duration", s)
	}
	return t, nil
}
