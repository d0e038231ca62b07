package members

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studygarden.ru/backend/internal/common"
)

type memStore struct {
	byID map[int64]*Member
}

func (m *memStore) Upsert(_ context.Context, p Profile) error {
	if m.byID == nil {
		m.byID = make(map[int64]*Member)
	}
	m.byID[p.UserID] = &Member{UserID: p.UserID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}
	return nil
}

func (m *memStore) GetByUserID(_ context.Context, userID int64) (*Member, error) {
	if mem, ok := m.byID[userID]; ok {
		return mem, nil
	}
	return nil, common.ErrUserNotFound
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*Member, error) {
	for _, mem := range m.byID {
		if strings.EqualFold(mem.Username, username) {
			return mem, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func TestResolve(t *testing.T) {
	svc := NewService(&memStore{})
	ctx := context.Background()
	if err := svc.EnsureMember(ctx, Profile{UserID: 42, Username: "Alice", FirstName: "Алиса"}); err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}

	for _, ref := range []string{"42", "@alice", "ALICE", " @Alice "} {
		m, err := svc.Resolve(ctx, ref)
		if err != nil || m.UserID != 42 {
			t.Errorf("Resolve(%q) = %+v, %v", ref, m, err)
		}
	}
	for _, ref := range []string{"", "@bob", "7"} {
		if _, err := svc.Resolve(ctx, ref); !errors.Is(err, common.ErrUserNotFound) {
			t.Errorf("Resolve(%q): expected ErrUserNotFound, got %v", ref, err)
		}
	}
}

func TestEnsureMemberRejectsEmptyID(t *testing.T) {
	svc := NewService(&memStore{})
	if err := svc.EnsureMember(context.Background(), Profile{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		m    Member
		want string
	}{
		{Member{Username: "alice", FirstName: "Алиса"}, "@alice"},
		{Member{FirstName: "Алиса", LastName: "Смирнова"}, "Алиса Смирнова"},
		{Member{FirstName: "Алиса"}, "Алиса"},
	}
	for _, tt := range tests {
		if got := tt.m.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}
