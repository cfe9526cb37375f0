// Package keyword manages the registry of collection query terms.
package keyword

import (
	"context"
	"strings"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
)

type Repository interface {
	Add(ctx context.Context, keyword string) (bool, error)
	Remove(ctx context.Context, keyword string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// Normalize trims surrounding whitespace and case-folds the keyword.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add normalizes and stores a keyword. Duplicates are rejected.
func (s *Service) Add(ctx context.Context, raw string) (string, error) {
	kw := Normalize(raw)
	if kw == "" {
		return "", apperror.New(apperror.BadRequest, "keyword cannot be empty")
	}

	added, err := s.repo.Add(ctx, kw)
	if err != nil {
		return "", err
	}
	if !added {
		return "", apperror.New(apperror.Conflict, "keyword already exists")
	}
	return kw, nil
}

func (s *Service) Remove(ctx context.Context, raw string) error {
	kw := Normalize(raw)
	if kw == "" {
		return apperror.New(apperror.BadRequest, "keyword cannot be empty")
	}

	removed, err := s.repo.Remove(ctx, kw)
	if err != nil {
		return err
	}
	if !removed {
		return apperror.New(apperror.NotFound, "keyword not found")
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.repo.List(ctx)
}
