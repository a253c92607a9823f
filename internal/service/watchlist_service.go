package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"streamwatch/internal/repository"
)

var (
	ErrStreamerExists  = errors.New("streamer already in watchlist")
	ErrInvalidStreamer = errors.New("streamer name is required")
)

// WatchlistService administra el conjunto de streamers seguidos por usuario.
type WatchlistService struct {
	logger *zap.Logger
	repo   repository.WatchlistRepository
}

func NewWatchlistService(logger *zap.Logger, repo repository.WatchlistRepository) *WatchlistService {
	return &WatchlistService{
		logger: logger,
		repo:   repo,
	}
}

// List devuelve los streamers seguidos; el orden no está definido.
func (s *WatchlistService) List(ctx context.Context, username string) ([]string, error) {
	names, err := s.repo.List(ctx, username)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Add agrega un streamer al watchlist; un duplicado devuelve ErrStreamerExists
// sin modificar nada.
func (s *WatchlistService) Add(ctx context.Context, username, streamerName string) error {
	streamerName = strings.TrimSpace(streamerName)
	if streamerName == "" {
		return ErrInvalidStreamer
	}
	added, err := s.repo.Add(ctx, username, streamerName)
	if err != nil {
		return err
	}
	if !added {
		return ErrStreamerExists
	}
	return nil
}

// Remove quita un streamer; quitar uno ausente es un no-op exitoso.
func (s *WatchlistService) Remove(ctx context.Context, username, streamerName string) error {
	streamerName = strings.TrimSpace(streamerName)
	if streamerName == "" {
		return ErrInvalidStreamer
	}
	return s.repo.Remove(ctx, username, streamerName)
}
