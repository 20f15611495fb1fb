package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
)

type ListGreetingsInput struct {
	UserEmail string
	Limit     int
	Cursor    string
	TimeDesc  bool
}

type ListGreetingsOutput struct {
	Items      []*model.Greeting `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type GreetingService interface {
	GetByTaskID(ctx context.Context, taskID string) (*model.Greeting, error)
	List(ctx context.Context, in ListGreetingsInput) (*ListGreetingsOutput, error)
}

type greetingService struct {
	r repo.GreetingRepo
}

func NewGreetingService(r repo.GreetingRepo) GreetingService {
	return &greetingService{r: r}
}

func (s *greetingService) GetByTaskID(ctx context.Context, taskID string) (*model.Greeting, error) {
	return s.r.GetByTaskID(ctx, taskID)
}

func (s *greetingService) List(ctx context.Context, in ListGreetingsInput) (*ListGreetingsOutput, error) {
	limit := in.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	afterCreatedAt, afterID, err := decodeCursor(in.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	items, err := s.r.ListWithCursor(ctx, in.UserEmail, afterCreatedAt, afterID, limit, in.TimeDesc)
	if err != nil {
		return nil, err
	}

	out := &ListGreetingsOutput{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		out.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

// cursor format: base64("RFC3339Nano|uuid")
func encodeCursor(t time.Time, id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString([]byte(t.Format(time.RFC3339Nano) + "|" + id.String()))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return t, id, nil
}
