package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "console.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestInstanceCRUD(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	created, err := s.CreateInstance(ctx, Instance{
		Owner:    10001,
		WorkMode: "group",
		QQBot:    QQBot{Uin: 123456, Type: BotTypeNapCat, WSURL: "ws://127.0.0.1:3001"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.GetInstance(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != 10001 || got.WorkMode != "group" || got.QQBot.Uin != 123456 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.IsSetup {
		t.Fatal("expected is_setup false by default")
	}
	if got.PairCount != 0 {
		t.Fatalf("expected zero pairs, got %d", got.PairCount)
	}

	got.IsSetup = true
	got.WorkMode = "personal"
	if err := s.UpdateInstance(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = s.GetInstance(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !got.IsSetup || got.WorkMode != "personal" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := s.DeleteInstance(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetInstance(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInstanceDefaultBotType(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	created, err := s.CreateInstance(ctx, Instance{Owner: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetInstance(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QQBot.Type != BotTypeNapCat {
		t.Fatalf("expected default bot type %q, got %q", BotTypeNapCat, got.QQBot.Type)
	}
}

func TestUpdateMissingInstance(t *testing.T) {
	s := openTest(t)
	err := s.UpdateInstance(context.Background(), Instance{ID: 404})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPairCRUDAndCount(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	inst, err := s.CreateInstance(ctx, Instance{Owner: 1})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}

	p1, err := s.CreatePair(ctx, Pair{InstanceID: inst.ID, QQRoomID: -100200, TGChatID: 300, Enabled: true})
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	if _, err := s.CreatePair(ctx, Pair{InstanceID: inst.ID, QQRoomID: -100201, TGChatID: 301, Enabled: false}); err != nil {
		t.Fatalf("create second pair: %v", err)
	}

	n, err := s.CountPairs(ctx, inst.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pairs, got %d", n)
	}

	got, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got.PairCount != 2 {
		t.Fatalf("expected pair count 2 on instance, got %d", got.PairCount)
	}

	pairs, err := s.ListPairs(ctx, inst.ID)
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs listed, got %d", len(pairs))
	}
	if !pairs[0].Enabled || pairs[1].Enabled {
		t.Fatalf("enabled flags wrong: %+v", pairs)
	}

	p1.TGChatID = 999
	p1.Enabled = false
	if err := s.UpdatePair(ctx, p1); err != nil {
		t.Fatalf("update pair: %v", err)
	}
	back, err := s.GetPair(ctx, p1.ID)
	if err != nil {
		t.Fatalf("get pair: %v", err)
	}
	if back.TGChatID != 999 || back.Enabled {
		t.Fatalf("pair update not persisted: %+v", back)
	}

	if err := s.DeletePair(ctx, p1.ID); err != nil {
		t.Fatalf("delete pair: %v", err)
	}
	if _, err := s.GetPair(ctx, p1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPairRequiresInstance(t *testing.T) {
	s := openTest(t)
	_, err := s.CreatePair(context.Background(), Pair{InstanceID: 404, QQRoomID: 1, TGChatID: 2})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteInstanceCascadesPairs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	inst, err := s.CreateInstance(ctx, Instance{Owner: 1})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}
	pair, err := s.CreatePair(ctx, Pair{InstanceID: inst.ID, QQRoomID: 1, TGChatID: 2, Enabled: true})
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}

	if err := s.DeleteInstance(ctx, inst.ID); err != nil {
		t.Fatalf("delete instance: %v", err)
	}
	if _, err := s.GetPair(ctx, pair.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pair gone with instance, got %v", err)
	}
}
