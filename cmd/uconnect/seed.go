package main

import (
	"context"
	"fmt"
	"os"

	"github.com/uconnect/campus/internal/friends"
	"github.com/uconnect/campus/internal/models"
	"gopkg.in/yaml.v3"
)

// seedFile is the --seed format:
//
//	users:
//	  - id: 7b0c...   # optional
//	    name: Ada
//	    email: ada@campus.edu
type seedFile struct {
	Users []struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		Email     string `yaml:"email"`
		AvatarURL string `yaml:"avatarUrl"`
	} `yaml:"users"`
}

type userSeeder interface {
	CreateUser(ctx context.Context, user *models.User) error
}

type memorySeeder struct{ store *friends.MemoryStore }

func (m memorySeeder) CreateUser(_ context.Context, user *models.User) error {
	*user = m.store.AddUser(*user)
	return nil
}

func seedUsers(ctx context.Context, dst userSeeder, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	for i, u := range f.Users {
		user := models.User{Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
		if u.ID != "" {
			if err := user.ID.UnmarshalText([]byte(u.ID)); err != nil {
				return i, fmt.Errorf("seed user %d: invalid id: %w", i, err)
			}
		}
		if err := dst.CreateUser(ctx, &user); err != nil {
			return i, fmt.Errorf("seed user %q: %w", u.Email, err)
		}
	}
	return len(f.Users), nil
}
